package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dhermawa/ticketgate/internal/core/domain"
	"github.com/dhermawa/ticketgate/internal/core/ports"
	"github.com/dhermawa/ticketgate/internal/core/token"
	"github.com/dhermawa/ticketgate/internal/platform/clock"
)

const (
	defaultEntryOpensBefore = 3 * time.Hour
	defaultEntryClosesAfter = 2 * time.Hour
)

// Rejection reasons returned to gate devices. Rejections are normal
// outcomes, not errors.
const (
	ReasonInvalidToken      = "invalid_token"
	ReasonTicketNotFound    = "ticket_not_found"
	ReasonAlreadyUsed       = "already_used"
	ReasonVoid              = "void"
	ReasonEventNotEnterable = "event_not_enterable"
)

type ValidationResult struct {
	Accepted bool           `json:"accepted"`
	Reason   string         `json:"reason,omitempty"`
	Ticket   *TicketSummary `json:"ticket,omitempty"`
}

type TicketSummary struct {
	TicketID string `json:"ticket_id"`
	Code     string `json:"code"`
	EventID  string `json:"event_id"`
	Category string `json:"category"`
	Status   string `json:"status"`
	UsedAt   string `json:"used_at,omitempty"`
	UsedBy   string `json:"used_by,omitempty"`
}

// RedemptionGate validates a ticket exactly once at the point of entry.
// Both the token path and the manual-entry path funnel into the same
// compare-and-swap on the ticket status; no other code path marks a
// ticket used.
type RedemptionGate struct {
	tickets          ports.TicketRepository
	catalog          ports.EventCatalog
	verifier         *token.Signer
	clock            clock.Clock
	entryOpensBefore time.Duration
	entryClosesAfter time.Duration
}

type GateOption func(*RedemptionGate)

// WithEntryWindow sets how long before the event start the gate opens and
// how long after it stays open.
func WithEntryWindow(opensBefore, closesAfter time.Duration) GateOption {
	return func(g *RedemptionGate) {
		if opensBefore > 0 {
			g.entryOpensBefore = opensBefore
		}
		if closesAfter > 0 {
			g.entryClosesAfter = closesAfter
		}
	}
}

func NewRedemptionGate(
	tickets ports.TicketRepository,
	catalog ports.EventCatalog,
	verifier *token.Signer,
	clk clock.Clock,
	opts ...GateOption,
) *RedemptionGate {
	g := &RedemptionGate{
		tickets:          tickets,
		catalog:          catalog,
		verifier:         verifier,
		clock:            clk,
		entryOpensBefore: defaultEntryOpensBefore,
		entryClosesAfter: defaultEntryClosesAfter,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Validate redeems a signed token. The signature check rejects tampered
// tokens before any lookup; the live ticket record decides everything else.
func (g *RedemptionGate) Validate(ctx context.Context, rawToken, validatorID, entryLocation string) (ValidationResult, error) {
	claims, err := g.verifier.Verify(rawToken)
	if err != nil {
		return ValidationResult{Reason: ReasonInvalidToken}, nil
	}

	ticketID, err := uuid.Parse(claims.TicketID)
	if err != nil {
		return ValidationResult{Reason: ReasonInvalidToken}, nil
	}

	t, err := g.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, domain.ErrTicketNotFound) {
			return ValidationResult{Reason: ReasonTicketNotFound}, nil
		}
		return ValidationResult{}, err
	}

	// A valid signature over stale or foreign identifiers is still a forgery.
	if t.EventID.String() != claims.EventID || t.BuyerID.String() != claims.BuyerID {
		return ValidationResult{Reason: ReasonInvalidToken}, nil
	}

	return g.redeem(ctx, t, validatorID, entryLocation)
}

// ValidateByCode is the manual-entry path for when a QR scan is not
// possible. It shares the redeem primitive with Validate.
func (g *RedemptionGate) ValidateByCode(ctx context.Context, ticketCode, validatorID, entryLocation string) (ValidationResult, error) {
	t, err := g.tickets.GetByCode(ctx, ticketCode)
	if err != nil {
		if errors.Is(err, domain.ErrTicketNotFound) {
			return ValidationResult{Reason: ReasonTicketNotFound}, nil
		}
		return ValidationResult{}, err
	}

	return g.redeem(ctx, t, validatorID, entryLocation)
}

// VoidTicket marks an active ticket void for a refund. Void is terminal.
func (g *RedemptionGate) VoidTicket(ctx context.Context, ticketID uuid.UUID) error {
	won, err := g.tickets.MarkVoid(ctx, ticketID)
	if err != nil {
		return err
	}
	if !won {
		t, err := g.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return err
		}
		if t.Status == domain.TicketVoid {
			return domain.ErrTicketVoid
		}
		return domain.ErrAlreadyUsed
	}
	return nil
}

func (g *RedemptionGate) redeem(ctx context.Context, t *domain.Ticket, validatorID, entryLocation string) (ValidationResult, error) {
	switch t.Status {
	case domain.TicketUsed:
		return ValidationResult{Reason: ReasonAlreadyUsed, Ticket: summarize(t)}, nil
	case domain.TicketVoid:
		return ValidationResult{Reason: ReasonVoid, Ticket: summarize(t)}, nil
	}

	ev, err := g.catalog.GetEvent(ctx, t.EventID)
	if err != nil {
		return ValidationResult{}, err
	}

	now := g.clock.Now()
	if now.Before(ev.StartsAt.Add(-g.entryOpensBefore)) || now.After(ev.StartsAt.Add(g.entryClosesAfter)) {
		return ValidationResult{Reason: ReasonEventNotEnterable, Ticket: summarize(t)}, nil
	}

	var won bool
	err = withRetry(ctx, func() error {
		var markErr error
		won, markErr = g.tickets.MarkUsed(ctx, t.ID, validatorID, entryLocation, now)
		return markErr
	})
	if err != nil {
		return ValidationResult{}, err
	}
	if !won {
		// Lost the race against a simultaneous scan of the same ticket.
		used, err := g.tickets.GetByID(ctx, t.ID)
		if err != nil {
			return ValidationResult{}, err
		}
		reason := ReasonAlreadyUsed
		if used.Status == domain.TicketVoid {
			reason = ReasonVoid
		}
		return ValidationResult{Reason: reason, Ticket: summarize(used)}, nil
	}

	t.Status = domain.TicketUsed
	t.UsedAt = &now
	t.UsedBy = validatorID
	t.EntryLocation = entryLocation

	return ValidationResult{Accepted: true, Ticket: summarize(t)}, nil
}

func summarize(t *domain.Ticket) *TicketSummary {
	s := &TicketSummary{
		TicketID: t.ID.String(),
		Code:     t.Code,
		EventID:  t.EventID.String(),
		Category: t.Category,
		Status:   string(t.Status),
		UsedBy:   t.UsedBy,
	}
	if t.UsedAt != nil {
		s.UsedAt = t.UsedAt.Format(time.RFC3339)
	}
	return s
}
