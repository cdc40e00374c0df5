package services

import (
	"context"
	"errors"
	"time"

	"github.com/dhermawa/ticketgate/internal/core/domain"
)

const (
	retryAttempts    = 3
	retryBaseBackoff = 50 * time.Millisecond
)

// withRetry re-runs fn on ErrStoreUnavailable with bounded backoff. Any
// other error, including the normal quota/redemption outcomes, returns
// immediately.
func withRetry(ctx context.Context, fn func() error) error {
	backoff := retryBaseBackoff

	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if err = fn(); err == nil || !errors.Is(err, domain.ErrStoreUnavailable) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
