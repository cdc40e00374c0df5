package domain

import (
	"time"

	"github.com/google/uuid"
)

type HoldStatus string

const (
	HoldPending   HoldStatus = "PENDING"
	HoldCommitted HoldStatus = "COMMITTED"
	HoldCancelled HoldStatus = "CANCELLED"
	HoldExpired   HoldStatus = "EXPIRED"
)

// Hold reserves ledger units for a buyer until payment or expiry.
type Hold struct {
	ID          uuid.UUID
	Code        string
	EventID     uuid.UUID
	BuyerID     uuid.UUID
	TotalAmount float64
	Status      HoldStatus
	CreatedAt   time.Time
	ExpiresAt   time.Time
	CommittedAt *time.Time
	Items       []HoldItem
}

type HoldItem struct {
	ID        uuid.UUID
	HoldID    uuid.UUID
	Category  string
	Quantity  int
	UnitPrice float64
}

func (h *Hold) IsPending() bool {
	return h.Status == HoldPending
}

func (h *Hold) IsExpired(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}
