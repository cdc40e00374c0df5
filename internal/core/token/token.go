package token

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"

	"github.com/dhermawa/ticketgate/internal/core/domain"
)

// Claims is the redemption token payload. The keyed signature makes
// tampering detectable without a lookup; final validation always re-checks
// live ticket state.
type Claims struct {
	TicketID string `json:"tid"`
	EventID  string `json:"eid"`
	BuyerID  string `json:"bid"`
	jwt.RegisteredClaims
}

// Signer issues and verifies redemption tokens with an HMAC-SHA256 key.
type Signer struct {
	key []byte
}

func NewSigner(key []byte) (*Signer, error) {
	if len(key) < 16 {
		return nil, errors.New("signing key must be at least 16 bytes")
	}
	return &Signer{key: key}, nil
}

func (s *Signer) Issue(t *domain.Ticket) (string, error) {
	jti, err := randomID()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}

	claims := Claims{
		TicketID: t.ID.String(),
		EventID:  t.EventID.String(),
		BuyerID:  t.BuyerID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       jti,
			IssuedAt: jwt.NewNumericDate(t.IssuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify checks the signature and returns the embedded claims. Any parse or
// signature failure maps to ErrInvalidToken; the caller must still check the
// live ticket record.
func (s *Signer) Verify(raw string) (*Claims, error) {
	var claims Claims

	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil || !tok.Valid {
		return nil, domain.ErrInvalidToken
	}

	return &claims, nil
}

// randomID returns a base58-encoded 128-bit random value. It makes every
// token unique and unguessable independent of the ticket number.
func randomID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base58.Encode(b), nil
}
