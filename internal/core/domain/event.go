package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is catalog data supplied by an external collaborator; the engine
// only reads it to decide whether sale and entry are open.
type Event struct {
	ID         uuid.UUID
	Name       string
	StartsAt   time.Time
	SaleOpen   bool
	Categories []EventCategory
}

type EventCategory struct {
	Name      string
	UnitPrice float64
	Quota     int
}

func (e *Event) Category(name string) (EventCategory, bool) {
	for _, c := range e.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return EventCategory{}, false
}

func (e *Event) HasStarted(now time.Time) bool {
	return !now.Before(e.StartsAt)
}
