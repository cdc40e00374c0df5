package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dhermawa/ticketgate/internal/core/domain"
)

// Ledger owns the (eventID, category) counter triples. Every mutation is
// atomic and linearizes with all other calls on the same key: check-then-
// reserve is one indivisible step, never a read followed by a separate write.
type Ledger interface {
	// Reserve moves qty units from available to reserved. On
	// ErrQuotaExceeded no change is made and remaining reports how many
	// units were left.
	Reserve(ctx context.Context, eventID uuid.UUID, category string, qty int) (remaining int, err error)
	// Commit moves qty units from reserved to sold.
	Commit(ctx context.Context, eventID uuid.UUID, category string, qty int) error
	// Release moves qty units from reserved back to available.
	Release(ctx context.Context, eventID uuid.UUID, category string, qty int) error
	Snapshot(ctx context.Context, eventID uuid.UUID, category string) (domain.CategoryQuota, error)
}

type HoldRepository interface {
	CreateHold(ctx context.Context, hold *domain.Hold) error
	GetHold(ctx context.Context, id uuid.UUID) (*domain.Hold, error)
	// UpdateStatusIfPending transitions the hold to the given status only if
	// it is still PENDING, and reports whether the caller won the transition.
	UpdateStatusIfPending(ctx context.Context, id uuid.UUID, to domain.HoldStatus, at time.Time) (bool, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Hold, error)
}

type TicketRepository interface {
	CreateTickets(ctx context.Context, tickets []*domain.Ticket) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	GetByCode(ctx context.Context, code string) (*domain.Ticket, error)
	GetByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.Ticket, error)
	// MarkUsed is the only way a ticket becomes USED. It is a compare-and-
	// swap on status ACTIVE; false means another caller won or the ticket
	// was never active.
	MarkUsed(ctx context.Context, id uuid.UUID, usedBy, entryLocation string, at time.Time) (bool, error)
	MarkVoid(ctx context.Context, id uuid.UUID) (bool, error)
}

// EventCatalog is the read-only view onto the external event/stadium catalog.
type EventCatalog interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
}

// SequenceRepository allocates the per-year monotonic numbers behind
// ORD-/TKT- codes.
type SequenceRepository interface {
	NextOrderNumber(ctx context.Context, year int) (int, error)
	NextTicketNumber(ctx context.Context, year int) (int, error)
}
