package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dhermawa/ticketgate/internal/core/domain"
)

// Catalog is an in-process EventCatalog, used in tests and as a seedable
// stand-in for the external catalog service.
type Catalog struct {
	mu     sync.RWMutex
	events map[uuid.UUID]*domain.Event
}

func NewCatalog() *Catalog {
	return &Catalog{events: make(map[uuid.UUID]*domain.Event)}
}

func (c *Catalog) Put(ev *domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *ev
	cp.Categories = append([]domain.EventCategory(nil), ev.Categories...)
	c.events[ev.ID] = &cp
}

func (c *Catalog) GetEvent(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ev, ok := c.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}

	cp := *ev
	cp.Categories = append([]domain.EventCategory(nil), ev.Categories...)
	return &cp, nil
}
