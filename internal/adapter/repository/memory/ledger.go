package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dhermawa/ticketgate/internal/core/domain"
)

type quotaKey struct {
	eventID  uuid.UUID
	category string
}

type counters struct {
	mu       sync.Mutex
	total    int
	sold     int
	reserved int
}

// Ledger keeps one mutex-guarded counter triple per (event, category) key,
// so contention on one category never blocks another.
type Ledger struct {
	mu     sync.RWMutex
	quotas map[quotaKey]*counters
}

func NewLedger() *Ledger {
	return &Ledger{quotas: make(map[quotaKey]*counters)}
}

// Configure seeds the quota for a key. Total is immutable once units are sold.
func (l *Ledger) Configure(eventID uuid.UUID, category string, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.quotas[quotaKey{eventID, category}] = &counters{total: total}
}

func (l *Ledger) get(eventID uuid.UUID, category string) (*counters, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.quotas[quotaKey{eventID, category}]
	return c, ok
}

func (l *Ledger) Reserve(_ context.Context, eventID uuid.UUID, category string, qty int) (int, error) {
	if qty <= 0 {
		return 0, domain.ErrInvalidQuantity
	}

	c, ok := l.get(eventID, category)
	if !ok {
		return 0, domain.ErrUnknownCategory
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := c.total - c.sold - c.reserved
	if qty > remaining {
		return remaining, domain.ErrQuotaExceeded
	}

	c.reserved += qty
	return remaining - qty, nil
}

func (l *Ledger) Commit(_ context.Context, eventID uuid.UUID, category string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	c, ok := l.get(eventID, category)
	if !ok {
		return domain.ErrUnknownCategory
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if qty > c.reserved {
		return domain.ErrInvalidQuantity
	}

	c.reserved -= qty
	c.sold += qty
	return nil
}

func (l *Ledger) Release(_ context.Context, eventID uuid.UUID, category string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	c, ok := l.get(eventID, category)
	if !ok {
		return domain.ErrUnknownCategory
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if qty > c.reserved {
		return domain.ErrInvalidQuantity
	}

	c.reserved -= qty
	return nil
}

func (l *Ledger) Snapshot(_ context.Context, eventID uuid.UUID, category string) (domain.CategoryQuota, error) {
	c, ok := l.get(eventID, category)
	if !ok {
		return domain.CategoryQuota{}, domain.ErrUnknownCategory
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return domain.CategoryQuota{
		EventID:  eventID,
		Category: category,
		Total:    c.total,
		Sold:     c.sold,
		Reserved: c.reserved,
	}, nil
}
