package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/havenlab/apiserver/internal/auth"
	"github.com/havenlab/apiserver/internal/services"
)

// PaymentHandler exposes the ledger endpoints. Amounts on the wire are minor
// units (cents).
type PaymentHandler struct {
	ledger *services.LedgerService
}

func NewPaymentHandler(ledger *services.LedgerService) *PaymentHandler {
	return &PaymentHandler{ledger: ledger}
}

// PaymentRouter registers payment routes on the given router.
func PaymentRouter(r chi.Router, ledger *services.LedgerService) {
	handler := NewPaymentHandler(ledger)

	r.Use(RequireCapability(auth.CapRecordPayments))
	r.Post("/", handler.RecordPayment)
	r.Post("/bulk", handler.RecordBulkPayment)
	r.Get("/", handler.ListPayments)
}

type paymentRequest struct {
	SaleID     string `json:"saleId"`
	Amount     int64  `json:"amount"`
	DayOfStay  int    `json:"dayOfStay,omitempty"`
	Note       string `json:"note,omitempty"`
	ReceivedBy string `json:"receivedBy,omitempty"`
}

type bulkPaymentRequest struct {
	CustomerName   string `json:"customerName"`
	NormalizedName string `json:"normalizedName,omitempty"`
	TotalAmount    int64  `json:"totalAmount"`
	Note           string `json:"note,omitempty"`
	ReceivedBy     string `json:"receivedBy,omitempty"`
}

type bulkNotFoundResponse struct {
	Error      string   `json:"error"`
	Candidates []string `json:"candidates,omitempty"`
}

// RecordPayment applies a payment to one booking, whole-stay or day-specific.
func (h *PaymentHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.SaleID = strings.TrimSpace(req.SaleID)
	if req.SaleID == "" {
		writeError(w, http.StatusBadRequest, "saleId is required")
		return
	}

	principal := principalFromContext(r.Context())
	receivedBy := req.ReceivedBy
	if receivedBy == "" {
		receivedBy = principal.UserID
	}

	result, err := h.ledger.RecordPayment(r.Context(), req.SaleID, req.Amount, services.PaymentOptions{
		DayOfStay:  req.DayOfStay,
		Note:       req.Note,
		ReceivedBy: receivedBy,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: result})
}

// RecordBulkPayment spreads one amount across a customer's unpaid bookings.
func (h *PaymentHandler) RecordBulkPayment(w http.ResponseWriter, r *http.Request) {
	var req bulkPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		name = strings.TrimSpace(req.NormalizedName)
	}
	if name == "" {
		writeError(w, http.StatusBadRequest, "customerName is required")
		return
	}

	result, err := h.ledger.RecordBulkPayment(r.Context(), name, req.TotalAmount, services.PaymentOptions{
		Note:       req.Note,
		ReceivedBy: req.ReceivedBy,
	})
	if err != nil {
		var noUnpaid *services.NoUnpaidBookingsError
		if errors.As(err, &noUnpaid) {
			writeJSON(w, http.StatusNotFound, bulkNotFoundResponse{
				Error:      noUnpaid.Error(),
				Candidates: noUnpaid.Candidates,
			})
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: result})
}

// ListPayments returns the audit trail for one booking.
func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	bookingID := strings.TrimSpace(r.URL.Query().Get("bookingId"))
	if bookingID == "" {
		writeError(w, http.StatusBadRequest, "bookingId is required")
		return
	}

	payments, err := h.ledger.ListPayments(r.Context(), bookingID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: payments})
}
