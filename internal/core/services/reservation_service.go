package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dhermawa/ticketgate/internal/core/domain"
	"github.com/dhermawa/ticketgate/internal/core/ports"
	"github.com/dhermawa/ticketgate/internal/platform/clock"
)

const defaultHoldTTL = 15 * time.Minute

type CreateHoldRequest struct {
	EventID string            `json:"event_id"`
	BuyerID string            `json:"buyer_id"`
	Items   []HoldItemRequest `json:"items"`
}

type HoldItemRequest struct {
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
}

type CreateHoldResponse struct {
	OrderID     string             `json:"order_id"`
	OrderCode   string             `json:"order_code"`
	Status      string             `json:"status"`
	Items       []HoldItemResponse `json:"items"`
	TotalAmount float64            `json:"total_amount"`
	ExpiresAt   string             `json:"expires_at"`
}

type HoldItemResponse struct {
	Category  string  `json:"category"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// ReservationService creates and cancels time-bounded holds against the
// ledger. A multi-category request reserves all items or none.
type ReservationService struct {
	catalog ports.EventCatalog
	ledger  ports.Ledger
	holds   ports.HoldRepository
	seqs    ports.SequenceRepository
	clock   clock.Clock
	holdTTL time.Duration
}

type ReservationOption func(*ReservationService)

// WithHoldTTL overrides the default TTL for new holds.
func WithHoldTTL(d time.Duration) ReservationOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

func NewReservationService(
	catalog ports.EventCatalog,
	ledger ports.Ledger,
	holds ports.HoldRepository,
	seqs ports.SequenceRepository,
	clk clock.Clock,
	opts ...ReservationOption,
) *ReservationService {
	svc := &ReservationService{
		catalog: catalog,
		ledger:  ledger,
		holds:   holds,
		seqs:    seqs,
		clock:   clk,
		holdTTL: defaultHoldTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *ReservationService) CreateHold(ctx context.Context, req CreateHoldRequest) (*CreateHoldResponse, error) {
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return nil, domain.ErrEventNotFound
	}

	buyerID, err := uuid.Parse(req.BuyerID)
	if err != nil {
		return nil, domain.ErrInvalidBuyer
	}

	if len(req.Items) == 0 {
		return nil, domain.ErrInvalidQuantity
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
	}

	ev, err := s.catalog.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !ev.SaleOpen || ev.HasStarted(now) {
		return nil, domain.ErrSaleClosed
	}

	holdID := uuid.New()

	var reserved []domain.HoldItem
	var totalAmount float64

	for _, item := range req.Items {
		category, ok := ev.Category(item.Category)
		if !ok {
			s.rollbackReservations(ctx, eventID, reserved)
			return nil, domain.ErrUnknownCategory
		}

		var remaining int
		err := withRetry(ctx, func() error {
			var reserveErr error
			remaining, reserveErr = s.ledger.Reserve(ctx, eventID, item.Category, item.Quantity)
			return reserveErr
		})
		if err != nil {
			s.rollbackReservations(ctx, eventID, reserved)
			if errors.Is(err, domain.ErrQuotaExceeded) {
				return nil, &domain.SoldOutError{Category: item.Category, Remaining: remaining}
			}
			return nil, err
		}

		totalAmount += category.UnitPrice * float64(item.Quantity)
		reserved = append(reserved, domain.HoldItem{
			ID:        uuid.New(),
			HoldID:    holdID,
			Category:  item.Category,
			Quantity:  item.Quantity,
			UnitPrice: category.UnitPrice,
		})
	}

	orderSeq, err := s.seqs.NextOrderNumber(ctx, now.Year())
	if err != nil {
		s.rollbackReservations(ctx, eventID, reserved)
		return nil, err
	}

	hold := &domain.Hold{
		ID:          holdID,
		Code:        domain.OrderCode(now.Year(), orderSeq),
		EventID:     eventID,
		BuyerID:     buyerID,
		TotalAmount: totalAmount,
		Status:      domain.HoldPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.holdTTL),
		Items:       reserved,
	}

	if err := s.holds.CreateHold(ctx, hold); err != nil {
		s.rollbackReservations(ctx, eventID, reserved)
		return nil, err
	}

	items := make([]HoldItemResponse, 0, len(hold.Items))
	for _, item := range hold.Items {
		items = append(items, HoldItemResponse{
			Category:  item.Category,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	return &CreateHoldResponse{
		OrderID:     hold.ID.String(),
		OrderCode:   hold.Code,
		Status:      string(hold.Status),
		Items:       items,
		TotalAmount: hold.TotalAmount,
		ExpiresAt:   hold.ExpiresAt.Format(time.RFC3339),
	}, nil
}

// CancelHold releases the hold's reserved units. Only the buyer may cancel,
// only while the hold is still pending and unexpired.
func (s *ReservationService) CancelHold(ctx context.Context, orderID, callerID uuid.UUID) error {
	hold, err := s.holds.GetHold(ctx, orderID)
	if err != nil {
		return err
	}

	if hold.BuyerID != callerID {
		return domain.ErrHoldNotFound
	}

	now := s.clock.Now()
	if hold.IsExpired(now) {
		return domain.ErrHoldNotPending
	}

	won, err := s.holds.UpdateStatusIfPending(ctx, orderID, domain.HoldCancelled, now)
	if err != nil {
		return err
	}
	if !won {
		return domain.ErrHoldNotPending
	}

	s.releaseItems(ctx, hold.EventID, hold.Items)
	return nil
}

func (s *ReservationService) GetHold(ctx context.Context, orderID uuid.UUID) (*domain.Hold, error) {
	return s.holds.GetHold(ctx, orderID)
}

func (s *ReservationService) Availability(ctx context.Context, eventID uuid.UUID, category string) (domain.CategoryQuota, error) {
	return s.ledger.Snapshot(ctx, eventID, category)
}

func (s *ReservationService) rollbackReservations(ctx context.Context, eventID uuid.UUID, items []domain.HoldItem) {
	s.releaseItems(ctx, eventID, items)
}

func (s *ReservationService) releaseItems(ctx context.Context, eventID uuid.UUID, items []domain.HoldItem) {
	for _, item := range items {
		qty := item.Quantity
		category := item.Category
		err := withRetry(ctx, func() error {
			return s.ledger.Release(ctx, eventID, category, qty)
		})
		if err != nil {
			log.Printf("Failed to release %d units of %s for event %s: %v", qty, category, eventID, err)
		}
	}
}
