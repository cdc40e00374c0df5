package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dhermawa/ticketgate/internal/core/domain"
)

// HoldStore is an in-process HoldRepository. All status transitions away
// from PENDING go through the compare-and-swap in UpdateStatusIfPending.
type HoldStore struct {
	mu    sync.Mutex
	holds map[uuid.UUID]*domain.Hold
}

func NewHoldStore() *HoldStore {
	return &HoldStore{holds: make(map[uuid.UUID]*domain.Hold)}
}

func (s *HoldStore) CreateHold(_ context.Context, hold *domain.Hold) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := cloneHold(hold)
	s.holds[hold.ID] = cp
	return nil
}

func (s *HoldStore) GetHold(_ context.Context, id uuid.UUID) (*domain.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holds[id]
	if !ok {
		return nil, domain.ErrHoldNotFound
	}
	return cloneHold(h), nil
}

func (s *HoldStore) UpdateStatusIfPending(_ context.Context, id uuid.UUID, to domain.HoldStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holds[id]
	if !ok {
		return false, domain.ErrHoldNotFound
	}
	if h.Status != domain.HoldPending {
		return false, nil
	}

	h.Status = to
	if to == domain.HoldCommitted {
		committedAt := at
		h.CommittedAt = &committedAt
	}
	return true, nil
}

func (s *HoldStore) ListExpired(_ context.Context, now time.Time, limit int) ([]*domain.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*domain.Hold
	for _, h := range s.holds {
		if h.Status != domain.HoldPending || h.ExpiresAt.After(now) {
			continue
		}
		expired = append(expired, cloneHold(h))
		if limit > 0 && len(expired) >= limit {
			break
		}
	}
	return expired, nil
}

func cloneHold(h *domain.Hold) *domain.Hold {
	cp := *h
	cp.Items = append([]domain.HoldItem(nil), h.Items...)
	if h.CommittedAt != nil {
		t := *h.CommittedAt
		cp.CommittedAt = &t
	}
	return &cp
}
