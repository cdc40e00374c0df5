package domain

import "github.com/google/uuid"

// CategoryQuota is the counter triple for one (event, category) key.
// Invariant: Sold + Reserved <= Total at all times.
type CategoryQuota struct {
	EventID  uuid.UUID
	Category string
	Total    int
	Sold     int
	Reserved int
}

func (q CategoryQuota) Available() int {
	return q.Total - q.Sold - q.Reserved
}
