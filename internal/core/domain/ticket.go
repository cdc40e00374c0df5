package domain

import (
	"time"

	"github.com/google/uuid"
)

type TicketStatus string

const (
	TicketActive TicketStatus = "ACTIVE"
	TicketUsed   TicketStatus = "USED"
	TicketVoid   TicketStatus = "VOID"
)

// Ticket is one redeemable unit minted from a committed hold.
// Status is monotonic: ACTIVE -> USED is permanent, VOID never returns to ACTIVE.
type Ticket struct {
	ID            uuid.UUID
	Code          string
	OrderID       uuid.UUID
	EventID       uuid.UUID
	BuyerID       uuid.UUID
	Category      string
	Price         float64
	Status        TicketStatus
	IssuedAt      time.Time
	UsedAt        *time.Time
	UsedBy        string
	EntryLocation string
}

func (t *Ticket) IsActive() bool {
	return t.Status == TicketActive
}
