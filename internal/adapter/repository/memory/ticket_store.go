package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dhermawa/ticketgate/internal/core/domain"
)

// TicketStore is an in-process TicketRepository. MarkUsed is the single
// compare-and-swap gate onto the USED status.
type TicketStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*domain.Ticket
	byCode  map[string]uuid.UUID
	byOrder map[uuid.UUID][]uuid.UUID
}

func NewTicketStore() *TicketStore {
	return &TicketStore{
		byID:    make(map[uuid.UUID]*domain.Ticket),
		byCode:  make(map[string]uuid.UUID),
		byOrder: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (s *TicketStore) CreateTickets(_ context.Context, tickets []*domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range tickets {
		cp := cloneTicket(t)
		s.byID[t.ID] = cp
		s.byCode[t.Code] = t.ID
		s.byOrder[t.OrderID] = append(s.byOrder[t.OrderID], t.ID)
	}
	return nil
}

func (s *TicketStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	return cloneTicket(t), nil
}

func (s *TicketStore) GetByCode(_ context.Context, code string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	return cloneTicket(s.byID[id]), nil
}

func (s *TicketStore) GetByOrder(_ context.Context, orderID uuid.UUID) ([]*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byOrder[orderID]
	tickets := make([]*domain.Ticket, 0, len(ids))
	for _, id := range ids {
		tickets = append(tickets, cloneTicket(s.byID[id]))
	}
	return tickets, nil
}

func (s *TicketStore) MarkUsed(_ context.Context, id uuid.UUID, usedBy, entryLocation string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return false, domain.ErrTicketNotFound
	}
	if t.Status != domain.TicketActive {
		return false, nil
	}

	usedAt := at
	t.Status = domain.TicketUsed
	t.UsedAt = &usedAt
	t.UsedBy = usedBy
	t.EntryLocation = entryLocation
	return true, nil
}

func (s *TicketStore) MarkVoid(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return false, domain.ErrTicketNotFound
	}
	if t.Status != domain.TicketActive {
		return false, nil
	}

	t.Status = domain.TicketVoid
	return true, nil
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	cp := *t
	if t.UsedAt != nil {
		at := *t.UsedAt
		cp.UsedAt = &at
	}
	return &cp
}
