package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dhermawa/ticketgate/internal/core/domain"
	"github.com/dhermawa/ticketgate/internal/core/ports"
	"github.com/dhermawa/ticketgate/internal/core/token"
	"github.com/dhermawa/ticketgate/internal/platform/clock"
)

const defaultCommitGrace = 5 * time.Minute

// TicketIssuer converts a paid hold into ticket records, exactly once.
// Payment webhooks retry, so CommitHold must be idempotent: the losing
// caller gets the winner's tickets back, never a duplicate mint.
type TicketIssuer struct {
	holds   ports.HoldRepository
	tickets ports.TicketRepository
	ledger  ports.Ledger
	seqs    ports.SequenceRepository
	signer  *token.Signer
	clock   clock.Clock
	grace   time.Duration
}

type IssuerOption func(*TicketIssuer)

// WithCommitGrace overrides how long past expiry a payment may still commit.
func WithCommitGrace(d time.Duration) IssuerOption {
	return func(s *TicketIssuer) {
		if d >= 0 {
			s.grace = d
		}
	}
}

func NewTicketIssuer(
	holds ports.HoldRepository,
	tickets ports.TicketRepository,
	ledger ports.Ledger,
	seqs ports.SequenceRepository,
	signer *token.Signer,
	clk clock.Clock,
	opts ...IssuerOption,
) *TicketIssuer {
	svc := &TicketIssuer{
		holds:   holds,
		tickets: tickets,
		ledger:  ledger,
		seqs:    seqs,
		signer:  signer,
		clock:   clk,
		grace:   defaultCommitGrace,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// IssuedTicket pairs a minted ticket with its signed redemption token.
type IssuedTicket struct {
	Ticket *domain.Ticket
	Token  string
}

func (s *TicketIssuer) CommitHold(ctx context.Context, orderID uuid.UUID) ([]IssuedTicket, error) {
	hold, err := s.holds.GetHold(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch hold.Status {
	case domain.HoldCommitted:
		return s.reissue(ctx, orderID)
	case domain.HoldPending:
		// fall through to the commit path
	default:
		return nil, domain.ErrHoldNotPending
	}

	now := s.clock.Now()
	if now.After(hold.ExpiresAt.Add(s.grace)) {
		return nil, domain.ErrHoldExpired
	}

	won, err := s.holds.UpdateStatusIfPending(ctx, orderID, domain.HoldCommitted, now)
	if err != nil {
		return nil, err
	}
	if !won {
		// A concurrent commit, cancel or sweep got there first.
		hold, err = s.holds.GetHold(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if hold.Status == domain.HoldCommitted {
			return s.reissue(ctx, orderID)
		}
		return nil, domain.ErrHoldNotPending
	}

	for _, item := range hold.Items {
		category := item.Category
		qty := item.Quantity
		err := withRetry(ctx, func() error {
			return s.ledger.Commit(ctx, hold.EventID, category, qty)
		})
		if err != nil {
			log.Printf("Failed to commit %d units of %s for order %s: %v", qty, category, hold.Code, err)
			return nil, err
		}
	}

	minted, err := s.mint(ctx, hold, now)
	if err != nil {
		return nil, err
	}

	// The CAS already published the commit, so a store blip here must not
	// lose the mint: retry the insert, and if it still fails leave the
	// order in a state the webhook retry recognizes as incomplete.
	records := make([]*domain.Ticket, 0, len(minted))
	for _, issued := range minted {
		records = append(records, issued.Ticket)
	}
	err = withRetry(ctx, func() error {
		return s.tickets.CreateTickets(ctx, records)
	})
	if err != nil {
		log.Printf("Failed to store %d tickets for order %s: %v", len(records), hold.Code, err)
		return nil, err
	}

	log.Printf("Order %s committed: %d tickets issued", hold.Code, len(minted))
	return minted, nil
}

func (s *TicketIssuer) mint(ctx context.Context, hold *domain.Hold, now time.Time) ([]IssuedTicket, error) {
	var minted []IssuedTicket

	for _, item := range hold.Items {
		for i := 0; i < item.Quantity; i++ {
			var seq int
			err := withRetry(ctx, func() error {
				var seqErr error
				seq, seqErr = s.seqs.NextTicketNumber(ctx, now.Year())
				return seqErr
			})
			if err != nil {
				return nil, err
			}

			t := &domain.Ticket{
				ID:       uuid.New(),
				Code:     domain.TicketCode(now.Year(), seq),
				OrderID:  hold.ID,
				EventID:  hold.EventID,
				BuyerID:  hold.BuyerID,
				Category: item.Category,
				Price:    item.UnitPrice,
				Status:   domain.TicketActive,
				IssuedAt: now,
			}

			signed, err := s.signer.Issue(t)
			if err != nil {
				return nil, err
			}

			minted = append(minted, IssuedTicket{Ticket: t, Token: signed})
		}
	}
	return minted, nil
}

// reissue returns the tickets minted by an earlier commit, with freshly
// signed tokens for the same records. A committed order with no stored
// tickets means the winning commit has not finished persisting yet (or its
// insert is still failing); that is a retryable condition, never an empty
// success.
func (s *TicketIssuer) reissue(ctx context.Context, orderID uuid.UUID) ([]IssuedTicket, error) {
	var records []*domain.Ticket
	err := withRetry(ctx, func() error {
		var getErr error
		records, getErr = s.tickets.GetByOrder(ctx, orderID)
		if getErr != nil {
			return getErr
		}
		if len(records) == 0 {
			return fmt.Errorf("order %s committed but tickets not stored yet: %w", orderID, domain.ErrStoreUnavailable)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	issued := make([]IssuedTicket, 0, len(records))
	for _, t := range records {
		signed, err := s.signer.Issue(t)
		if err != nil {
			return nil, err
		}
		issued = append(issued, IssuedTicket{Ticket: t, Token: signed})
	}
	return issued, nil
}
