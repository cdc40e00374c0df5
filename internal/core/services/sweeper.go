package services

import (
	"context"
	"log"
	"time"

	"go.uber.org/atomic"

	"github.com/dhermawa/ticketgate/internal/core/domain"
	"github.com/dhermawa/ticketgate/internal/core/ports"
	"github.com/dhermawa/ticketgate/internal/platform/clock"
)

const (
	defaultSweepInterval = 1 * time.Minute
	defaultSweepBatch    = 100
)

// ExpirySweeper is the backstop against abandoned holds leaking quota. It
// races fairly with cancel and commit: the status compare-and-swap decides
// the single winner per hold.
type ExpirySweeper struct {
	holds    ports.HoldRepository
	ledger   ports.Ledger
	clock    clock.Clock
	interval time.Duration
	batch    int
	released atomic.Int64
}

type SweeperOption func(*ExpirySweeper)

func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *ExpirySweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

func NewExpirySweeper(holds ports.HoldRepository, ledger ports.Ledger, clk clock.Clock, opts ...SweeperOption) *ExpirySweeper {
	s := &ExpirySweeper{
		holds:    holds,
		ledger:   ledger,
		clock:    clk,
		interval: defaultSweepInterval,
		batch:    defaultSweepBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep expires pending holds whose deadline has passed and returns how
// many holds it reclaimed.
func (s *ExpirySweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.holds.ListExpired(ctx, now, s.batch)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, hold := range expired {
		won, err := s.holds.UpdateStatusIfPending(ctx, hold.ID, domain.HoldExpired, now)
		if err != nil {
			log.Printf("Failed to expire hold %s: %v", hold.Code, err)
			continue
		}
		if !won {
			// Cancelled or committed while we were scanning.
			continue
		}

		for _, item := range hold.Items {
			category := item.Category
			qty := item.Quantity
			err := withRetry(ctx, func() error {
				return s.ledger.Release(ctx, hold.EventID, category, qty)
			})
			if err != nil {
				log.Printf("Failed to release %d units of %s for expired hold %s: %v", qty, category, hold.Code, err)
			}
		}

		count++
	}

	if count > 0 {
		s.released.Add(int64(count))
		log.Printf("Sweeper expired %d holds (%d total)", count, s.released.Load())
	}
	return count, nil
}

// Released reports how many holds the sweeper has reclaimed since start.
func (s *ExpirySweeper) Released() int64 {
	return s.released.Load()
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("Expiry sweeper started: checking abandoned holds every %s...", s.interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("Expiry sweeper stopped.")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, s.clock.Now()); err != nil {
				log.Printf("Sweep failed: %v", err)
			}
		}
	}
}
