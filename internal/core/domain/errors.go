package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrUnknownCategory   = errors.New("unknown category")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidBuyer      = errors.New("invalid buyer id")
	ErrSaleClosed        = errors.New("event not open for sale")
	ErrHoldNotFound      = errors.New("hold not found")
	ErrHoldNotPending    = errors.New("hold not pending")
	ErrHoldExpired       = errors.New("hold expired")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrInvalidToken      = errors.New("invalid redemption token")
	ErrAlreadyUsed       = errors.New("ticket already used")
	ErrTicketVoid        = errors.New("ticket void")
	ErrEventNotEnterable = errors.New("event not enterable")
	ErrStoreUnavailable  = errors.New("store unavailable")
)

// SoldOutError names the category that could not be reserved and how many
// units were left at the time of the attempt.
type SoldOutError struct {
	Category  string
	Remaining int
}

func (e *SoldOutError) Error() string {
	return fmt.Sprintf("category %s sold out: %d remaining", e.Category, e.Remaining)
}

func (e *SoldOutError) Unwrap() error {
	return ErrQuotaExceeded
}
