package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dhermawa/ticketgate/internal/adapter/repository/memory"
	"github.com/dhermawa/ticketgate/internal/core/domain"
	"github.com/dhermawa/ticketgate/internal/core/services"
	"github.com/dhermawa/ticketgate/internal/core/token"
	"github.com/dhermawa/ticketgate/internal/platform/clock"
)

var testNow = time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)

type fixture struct {
	catalog *memory.Catalog
	ledger  *memory.Ledger
	holds   *memory.HoldStore
	tickets *memory.TicketStore
	seqs    *memory.SequenceStore
	signer  *token.Signer
	eventID uuid.UUID
	buyerID uuid.UUID
}

// newFixture seeds one event starting two hours from testNow with a VIP
// quota of 2 and a GA quota of 100.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	signer, err := token.NewSigner([]byte("test-signing-key-0123456789"))
	require.NoError(t, err)

	f := &fixture{
		catalog: memory.NewCatalog(),
		ledger:  memory.NewLedger(),
		holds:   memory.NewHoldStore(),
		tickets: memory.NewTicketStore(),
		seqs:    memory.NewSequenceStore(),
		signer:  signer,
		eventID: uuid.New(),
		buyerID: uuid.New(),
	}

	f.catalog.Put(&domain.Event{
		ID:       f.eventID,
		Name:     "Stadium Night",
		StartsAt: testNow.Add(2 * time.Hour),
		SaleOpen: true,
		Categories: []domain.EventCategory{
			{Name: "VIP", UnitPrice: 150, Quota: 2},
			{Name: "GA", UnitPrice: 50, Quota: 100},
		},
	})
	f.ledger.Configure(f.eventID, "VIP", 2)
	f.ledger.Configure(f.eventID, "GA", 100)

	return f
}

func (f *fixture) reservations(opts ...services.ReservationOption) *services.ReservationService {
	return services.NewReservationService(f.catalog, f.ledger, f.holds, f.seqs, clock.NewFixed(testNow), opts...)
}

func (f *fixture) reservationsAt(now time.Time, opts ...services.ReservationOption) *services.ReservationService {
	return services.NewReservationService(f.catalog, f.ledger, f.holds, f.seqs, clock.NewFixed(now), opts...)
}

func (f *fixture) issuer(opts ...services.IssuerOption) *services.TicketIssuer {
	return services.NewTicketIssuer(f.holds, f.tickets, f.ledger, f.seqs, f.signer, clock.NewFixed(testNow), opts...)
}

func (f *fixture) issuerAt(now time.Time, opts ...services.IssuerOption) *services.TicketIssuer {
	return services.NewTicketIssuer(f.holds, f.tickets, f.ledger, f.seqs, f.signer, clock.NewFixed(now), opts...)
}

func (f *fixture) gate(opts ...services.GateOption) *services.RedemptionGate {
	return services.NewRedemptionGate(f.tickets, f.catalog, f.signer, clock.NewFixed(testNow), opts...)
}

func (f *fixture) gateAt(now time.Time, opts ...services.GateOption) *services.RedemptionGate {
	return services.NewRedemptionGate(f.tickets, f.catalog, f.signer, clock.NewFixed(now), opts...)
}

func (f *fixture) sweeperAt(now time.Time) *services.ExpirySweeper {
	return services.NewExpirySweeper(f.holds, f.ledger, clock.NewFixed(now))
}

// createHold is the happy path used by issuer/gate/sweeper tests.
func (f *fixture) createHold(t *testing.T, items ...services.HoldItemRequest) uuid.UUID {
	t.Helper()

	if len(items) == 0 {
		items = []services.HoldItemRequest{{Category: "GA", Quantity: 2}}
	}

	resp, err := f.reservations().CreateHold(context.Background(), services.CreateHoldRequest{
		EventID: f.eventID.String(),
		BuyerID: f.buyerID.String(),
		Items:   items,
	})
	require.NoError(t, err)

	orderID, err := uuid.Parse(resp.OrderID)
	require.NoError(t, err)
	return orderID
}

func (f *fixture) snapshot(t *testing.T, category string) domain.CategoryQuota {
	t.Helper()

	snapshot, err := f.ledger.Snapshot(context.Background(), f.eventID, category)
	require.NoError(t, err)
	return snapshot
}
