package memory

import (
	"context"
	"sync"
)

// SequenceStore hands out the per-year monotonic order/ticket numbers.
type SequenceStore struct {
	mu      sync.Mutex
	orders  map[int]int
	tickets map[int]int
}

func NewSequenceStore() *SequenceStore {
	return &SequenceStore{
		orders:  make(map[int]int),
		tickets: make(map[int]int),
	}
}

func (s *SequenceStore) NextOrderNumber(_ context.Context, year int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[year]++
	return s.orders[year], nil
}

func (s *SequenceStore) NextTicketNumber(_ context.Context, year int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tickets[year]++
	return s.tickets[year], nil
}
