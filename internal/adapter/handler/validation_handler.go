package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/dhermawa/ticketgate/internal/core/services"
)

type ValidationHandler struct {
	gate   *services.RedemptionGate
	issuer *services.TicketIssuer
}

func NewValidationHandler(gate *services.RedemptionGate, issuer *services.TicketIssuer) *ValidationHandler {
	return &ValidationHandler{gate: gate, issuer: issuer}
}

type validateRequest struct {
	Token         string `json:"token,omitempty"`
	TicketCode    string `json:"ticket_code,omitempty"`
	ValidatorID   string `json:"validator_id"`
	EntryLocation string `json:"entry_location"`
	DeviceInfo    string `json:"device_info,omitempty"`
}

// ValidateTicket serves both gate paths: a scanned token or a manually
// keyed ticket code. Rejections come back with 200 and accepted=false;
// only store failures are HTTP errors.
func (h *ValidationHandler) ValidateTicket(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if req.ValidatorID == "" {
		writeError(w, http.StatusBadRequest, "validator_id is required")
		return
	}

	var result services.ValidationResult
	var err error

	switch {
	case req.Token != "":
		result, err = h.gate.Validate(r.Context(), req.Token, req.ValidatorID, req.EntryLocation)
	case req.TicketCode != "":
		result, err = h.gate.ValidateByCode(r.Context(), req.TicketCode, req.ValidatorID, req.EntryLocation)
	default:
		writeError(w, http.StatusBadRequest, "token or ticket_code is required")
		return
	}

	if err != nil {
		writeServiceError(w, err)
		return
	}

	json.NewEncoder(w).Encode(result)
}

type paymentCompletedRequest struct {
	OrderID string `json:"order_id"`
}

// PaymentCompleted is the webhook twin of the AMQP consumer. It is safe to
// call repeatedly for the same order.
func (h *ValidationHandler) PaymentCompleted(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req paymentCompletedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	issued, err := h.issuer.CommitHold(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	type issuedTicket struct {
		TicketID string `json:"ticket_id"`
		Code     string `json:"code"`
		Category string `json:"category"`
		Token    string `json:"token"`
	}

	tickets := make([]issuedTicket, 0, len(issued))
	for _, t := range issued {
		tickets = append(tickets, issuedTicket{
			TicketID: t.Ticket.ID.String(),
			Code:     t.Ticket.Code,
			Category: t.Ticket.Category,
			Token:    t.Token,
		})
	}

	json.NewEncoder(w).Encode(map[string]any{
		"order_id": req.OrderID,
		"tickets":  tickets,
	})
}
