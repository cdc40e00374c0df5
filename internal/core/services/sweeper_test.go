package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhermawa/ticketgate/internal/core/domain"
	"github.com/dhermawa/ticketgate/internal/core/services"
	"github.com/dhermawa/ticketgate/internal/platform/clock"
)

func TestSweep_ReclaimsExpiredHolds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	abandoned := f.createHold(t, services.HoldItemRequest{Category: "VIP", Quantity: 2})
	require.Equal(t, 0, f.snapshot(t, "VIP").Available())

	// Before the TTL passes the sweeper must leave the hold alone.
	count, err := f.sweeperAt(testNow.Add(10 * time.Minute)).Sweep(ctx, testNow.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	after := testNow.Add(16 * time.Minute)
	sweeper := f.sweeperAt(after)

	count, err = sweeper.Sweep(ctx, after)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, int64(1), sweeper.Released())

	hold, err := f.holds.GetHold(ctx, abandoned)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldExpired, hold.Status)

	vip := f.snapshot(t, "VIP")
	assert.Equal(t, 0, vip.Reserved)
	assert.Equal(t, 2, vip.Available())

	// The reclaimed units are sellable again.
	resp, err := f.reservationsAt(after).CreateHold(ctx, services.CreateHoldRequest{
		EventID: f.eventID.String(),
		BuyerID: f.buyerID.String(),
		Items:   []services.HoldItemRequest{{Category: "VIP", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.OrderID)
}

func TestSweep_IdempotentAcrossRuns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createHold(t, services.HoldItemRequest{Category: "GA", Quantity: 5})

	after := testNow.Add(20 * time.Minute)
	sweeper := f.sweeperAt(after)

	count, err := sweeper.Sweep(ctx, after)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// A second pass finds nothing pending and must not release twice.
	count, err = sweeper.Sweep(ctx, after)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	ga := f.snapshot(t, "GA")
	assert.Equal(t, 0, ga.Reserved)
	assert.Equal(t, 100, ga.Available())
}

func TestSweep_ConcurrentWithCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	orderID := f.createHold(t, services.HoldItemRequest{Category: "GA", Quantity: 3})

	// CancelHold checks expiry lazily, so run the race just before the
	// deadline for the cancel side and just after for the sweeper.
	cancelSvc := f.reservationsAt(testNow.Add(14 * time.Minute))
	sweeper := f.sweeperAt(testNow.Add(15 * time.Minute))

	var wg sync.WaitGroup
	var cancelErr error
	var swept int

	wg.Add(2)
	go func() {
		defer wg.Done()
		cancelErr = cancelSvc.CancelHold(ctx, orderID, f.buyerID)
	}()
	go func() {
		defer wg.Done()
		swept, _ = sweeper.Sweep(ctx, testNow.Add(15*time.Minute))
	}()
	wg.Wait()

	hold, err := f.holds.GetHold(ctx, orderID)
	require.NoError(t, err)

	switch hold.Status {
	case domain.HoldCancelled:
		require.NoError(t, cancelErr)
		assert.Equal(t, 0, swept)
	case domain.HoldExpired:
		assert.ErrorIs(t, cancelErr, domain.ErrHoldNotPending)
		assert.Equal(t, 1, swept)
	default:
		t.Fatalf("hold ended in unexpected status %s", hold.Status)
	}

	// Whoever won, the units came back exactly once.
	ga := f.snapshot(t, "GA")
	assert.Equal(t, 0, ga.Reserved)
	assert.Equal(t, 100, ga.Available())
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)

	sweeper := services.NewExpirySweeper(f.holds, f.ledger, clock.NewFixed(testNow), services.WithSweepInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}
