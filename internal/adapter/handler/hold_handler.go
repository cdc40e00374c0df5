package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/dhermawa/ticketgate/internal/core/domain"
	"github.com/dhermawa/ticketgate/internal/core/services"
)

type HoldHandler struct {
	svc *services.ReservationService
}

func NewHoldHandler(svc *services.ReservationService) *HoldHandler {
	return &HoldHandler{svc: svc}
}

func (h *HoldHandler) CreateHold(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req services.CreateHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	resp, err := h.svc.CreateHold(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

type cancelHoldRequest struct {
	OrderID  string `json:"order_id"`
	CallerID string `json:"caller_id"`
}

func (h *HoldHandler) CancelHold(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req cancelHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	callerID, err := uuid.Parse(req.CallerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid caller id")
		return
	}

	if err := h.svc.CancelHold(r.Context(), orderID, callerID); err != nil {
		writeServiceError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"status": string(domain.HoldCancelled)})
}

func (h *HoldHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	eventID, err := uuid.Parse(r.URL.Query().Get("event_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	category := r.URL.Query().Get("category")
	if category == "" {
		writeError(w, http.StatusBadRequest, "category is required")
		return
	}

	snapshot, err := h.svc.Availability(r.Context(), eventID, category)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]int{
		"total":     snapshot.Total,
		"sold":      snapshot.Sold,
		"reserved":  snapshot.Reserved,
		"available": snapshot.Available(),
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeServiceError(w http.ResponseWriter, err error) {
	var soldOut *domain.SoldOutError
	if errors.As(err, &soldOut) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{
			"error":     soldOut.Error(),
			"category":  soldOut.Category,
			"remaining": soldOut.Remaining,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrEventNotFound),
		errors.Is(err, domain.ErrHoldNotFound),
		errors.Is(err, domain.ErrTicketNotFound),
		errors.Is(err, domain.ErrUnknownCategory):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidBuyer),
		errors.Is(err, domain.ErrSaleClosed):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrQuotaExceeded),
		errors.Is(err, domain.ErrHoldNotPending),
		errors.Is(err, domain.ErrHoldExpired),
		errors.Is(err, domain.ErrAlreadyUsed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store unavailable, retry later")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
