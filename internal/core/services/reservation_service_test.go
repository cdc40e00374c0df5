package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhermawa/ticketgate/internal/core/domain"
	"github.com/dhermawa/ticketgate/internal/core/ports"
	"github.com/dhermawa/ticketgate/internal/core/services"
	"github.com/dhermawa/ticketgate/internal/platform/clock"
)

func TestCreateHold_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.reservations().CreateHold(ctx, services.CreateHoldRequest{
		EventID: f.eventID.String(),
		BuyerID: f.buyerID.String(),
		Items: []services.HoldItemRequest{
			{Category: "VIP", Quantity: 1},
			{Category: "GA", Quantity: 3},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "ORD-2026-000001", resp.OrderCode)
	assert.Equal(t, string(domain.HoldPending), resp.Status)
	assert.Equal(t, 150.0+3*50.0, resp.TotalAmount)
	assert.Equal(t, testNow.Add(15*time.Minute).Format(time.RFC3339), resp.ExpiresAt)

	assert.Equal(t, 1, f.snapshot(t, "VIP").Reserved)
	assert.Equal(t, 3, f.snapshot(t, "GA").Reserved)
}

func TestCreateHold_AllOrNothingRollback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// VIP has quota 2, so the second line item cannot be satisfied and the
	// GA reservation must be rolled back with it.
	_, err := f.reservations().CreateHold(ctx, services.CreateHoldRequest{
		EventID: f.eventID.String(),
		BuyerID: f.buyerID.String(),
		Items: []services.HoldItemRequest{
			{Category: "GA", Quantity: 10},
			{Category: "VIP", Quantity: 3},
		},
	})

	require.Error(t, err)

	var soldOut *domain.SoldOutError
	require.ErrorAs(t, err, &soldOut)
	assert.Equal(t, "VIP", soldOut.Category)
	assert.Equal(t, 2, soldOut.Remaining)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)

	assert.Equal(t, 0, f.snapshot(t, "GA").Reserved, "partial reservation must be rolled back")
	assert.Equal(t, 0, f.snapshot(t, "VIP").Reserved)
}

func TestCreateHold_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("unknown event", func(t *testing.T) {
		_, err := f.reservations().CreateHold(ctx, services.CreateHoldRequest{
			EventID: uuid.New().String(),
			BuyerID: f.buyerID.String(),
			Items:   []services.HoldItemRequest{{Category: "GA", Quantity: 1}},
		})
		assert.ErrorIs(t, err, domain.ErrEventNotFound)
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := f.reservations().CreateHold(ctx, services.CreateHoldRequest{
			EventID: f.eventID.String(),
			BuyerID: f.buyerID.String(),
			Items:   []services.HoldItemRequest{{Category: "BALCONY", Quantity: 1}},
		})
		assert.ErrorIs(t, err, domain.ErrUnknownCategory)
	})

	t.Run("zero quantity", func(t *testing.T) {
		_, err := f.reservations().CreateHold(ctx, services.CreateHoldRequest{
			EventID: f.eventID.String(),
			BuyerID: f.buyerID.String(),
			Items:   []services.HoldItemRequest{{Category: "GA", Quantity: 0}},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	})

	t.Run("no items", func(t *testing.T) {
		_, err := f.reservations().CreateHold(ctx, services.CreateHoldRequest{
			EventID: f.eventID.String(),
			BuyerID: f.buyerID.String(),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	})

	t.Run("event already started", func(t *testing.T) {
		_, err := f.reservationsAt(testNow.Add(3*time.Hour)).CreateHold(ctx, services.CreateHoldRequest{
			EventID: f.eventID.String(),
			BuyerID: f.buyerID.String(),
			Items:   []services.HoldItemRequest{{Category: "GA", Quantity: 1}},
		})
		assert.ErrorIs(t, err, domain.ErrSaleClosed)
	})

	t.Run("sale closed", func(t *testing.T) {
		closedEvent := uuid.New()
		f.catalog.Put(&domain.Event{
			ID:         closedEvent,
			Name:       "Closed",
			StartsAt:   testNow.Add(24 * time.Hour),
			SaleOpen:   false,
			Categories: []domain.EventCategory{{Name: "GA", UnitPrice: 10, Quota: 5}},
		})

		_, err := f.reservations().CreateHold(ctx, services.CreateHoldRequest{
			EventID: closedEvent.String(),
			BuyerID: f.buyerID.String(),
			Items:   []services.HoldItemRequest{{Category: "GA", Quantity: 1}},
		})
		assert.ErrorIs(t, err, domain.ErrSaleClosed)
	})
}

func TestCancelHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.reservations()

	orderID := f.createHold(t, services.HoldItemRequest{Category: "GA", Quantity: 4})
	require.Equal(t, 4, f.snapshot(t, "GA").Reserved)

	t.Run("wrong caller", func(t *testing.T) {
		err := svc.CancelHold(ctx, orderID, uuid.New())
		assert.ErrorIs(t, err, domain.ErrHoldNotFound)
	})

	t.Run("releases units", func(t *testing.T) {
		require.NoError(t, svc.CancelHold(ctx, orderID, f.buyerID))
		assert.Equal(t, 0, f.snapshot(t, "GA").Reserved)

		hold, err := svc.GetHold(ctx, orderID)
		require.NoError(t, err)
		assert.Equal(t, domain.HoldCancelled, hold.Status)
	})

	t.Run("second cancel is rejected", func(t *testing.T) {
		err := svc.CancelHold(ctx, orderID, f.buyerID)
		assert.ErrorIs(t, err, domain.ErrHoldNotPending)
		assert.Equal(t, 0, f.snapshot(t, "GA").Reserved, "units must not be released twice")
	})

	t.Run("expired hold is not cancellable", func(t *testing.T) {
		expiredOrder := f.createHold(t, services.HoldItemRequest{Category: "GA", Quantity: 1})

		late := f.reservationsAt(testNow.Add(16 * time.Minute))
		err := late.CancelHold(ctx, expiredOrder, f.buyerID)
		assert.ErrorIs(t, err, domain.ErrHoldNotPending)
	})

	t.Run("unknown hold", func(t *testing.T) {
		err := svc.CancelHold(ctx, uuid.New(), f.buyerID)
		assert.ErrorIs(t, err, domain.ErrHoldNotFound)
	})
}

// The scenario from the sales floor: VIP quota 2, buyers A and B take the
// last units concurrently, C is denied with remaining=0, then A cancels and
// C's retry succeeds.
func TestReservation_LastUnitsScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.reservations()

	buyerA := uuid.New()
	buyerB := uuid.New()
	buyerC := uuid.New()

	reserve := func(buyer uuid.UUID) (*services.CreateHoldResponse, error) {
		return svc.CreateHold(ctx, services.CreateHoldRequest{
			EventID: f.eventID.String(),
			BuyerID: buyer.String(),
			Items:   []services.HoldItemRequest{{Category: "VIP", Quantity: 1}},
		})
	}

	var wg sync.WaitGroup
	var respA, respB *services.CreateHoldResponse
	var errA, errB error

	wg.Add(2)
	go func() { defer wg.Done(); respA, errA = reserve(buyerA) }()
	go func() { defer wg.Done(); respB, errB = reserve(buyerB) }()
	wg.Wait()

	require.NoError(t, errA)
	require.NoError(t, errB)

	_, errC := reserve(buyerC)
	var soldOut *domain.SoldOutError
	require.ErrorAs(t, errC, &soldOut)
	assert.Equal(t, "VIP", soldOut.Category)
	assert.Equal(t, 0, soldOut.Remaining)

	// A abandons before paying.
	orderA, err := uuid.Parse(respA.OrderID)
	require.NoError(t, err)
	require.NoError(t, svc.CancelHold(ctx, orderA, buyerA))

	respC, err := reserve(buyerC)
	require.NoError(t, err)
	assert.NotEqual(t, respB.OrderID, respC.OrderID)
	assert.Equal(t, 2, f.snapshot(t, "VIP").Reserved)
}

func TestCreateHold_RetriesTransientLedgerFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	flaky := &flakyLedger{Ledger: f.ledger, failures: 2}
	svc := services.NewReservationService(f.catalog, flaky, f.holds, f.seqs, clock.NewFixed(testNow))

	_, err := svc.CreateHold(ctx, services.CreateHoldRequest{
		EventID: f.eventID.String(),
		BuyerID: f.buyerID.String(),
		Items:   []services.HoldItemRequest{{Category: "GA", Quantity: 1}},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, flaky.calls, "reserve must be retried past transient failures")
}

// flakyLedger fails the first N Reserve calls with a retryable error.
type flakyLedger struct {
	Ledger   ports.Ledger
	failures int
	calls    int
}

func (f *flakyLedger) Reserve(ctx context.Context, eventID uuid.UUID, category string, qty int) (int, error) {
	f.calls++
	if f.calls <= f.failures {
		return 0, fmt.Errorf("connection refused: %w", domain.ErrStoreUnavailable)
	}
	return f.Ledger.Reserve(ctx, eventID, category, qty)
}

func (f *flakyLedger) Commit(ctx context.Context, eventID uuid.UUID, category string, qty int) error {
	return f.Ledger.Commit(ctx, eventID, category, qty)
}

func (f *flakyLedger) Release(ctx context.Context, eventID uuid.UUID, category string, qty int) error {
	return f.Ledger.Release(ctx, eventID, category, qty)
}

func (f *flakyLedger) Snapshot(ctx context.Context, eventID uuid.UUID, category string) (domain.CategoryQuota, error) {
	return f.Ledger.Snapshot(ctx, eventID, category)
}
