package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/havenlab/apiserver/internal/auth"
	"github.com/havenlab/apiserver/internal/services"
	"github.com/havenlab/apiserver/types"
)

type BookingHandler struct {
	bookings *services.BookingService
}

func NewBookingHandler(bookings *services.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// BookingRouter registers booking routes on the given router.
func BookingRouter(r chi.Router, bookings *services.BookingService) {
	handler := NewBookingHandler(bookings)

	r.Use(RequireCapability(auth.CapManageBookings))
	r.Post("/", handler.Create)
	r.Get("/", handler.List)
	r.Get("/{bookingID}", handler.Get)
	r.Patch("/{bookingID}/status", handler.SetStatus)
}

type createBookingRequest struct {
	CustomerName string    `json:"customerName"`
	RoomNumber   string    `json:"roomNumber"`
	CheckIn      time.Time `json:"checkIn"`
	CheckOut     time.Time `json:"checkOut"`
	TotalAmount  int64     `json:"totalAmount"`
}

type setStatusRequest struct {
	Status string `json:"status"`
}

type bookingListResponse struct {
	Bookings []types.Booking `json:"bookings"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	Limit    int             `json:"limit"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	booking, err := h.bookings.Create(r.Context(), types.Booking{
		CustomerName: req.CustomerName,
		RoomNumber:   req.RoomNumber,
		CheckIn:      req.CheckIn,
		CheckOut:     req.CheckOut,
		TotalAmount:  req.TotalAmount,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SuccessResponse{Success: true, Data: booking})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	booking, err := h.bookings.Get(r.Context(), chi.URLParam(r, "bookingID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: booking})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bookings, total, err := h.bookings.List(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: bookingListResponse{
		Bookings: bookings,
		Total:    total,
		Page:     page,
		Limit:    limit,
	}})
}

func (h *BookingHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	booking, err := h.bookings.SetStatus(r.Context(), chi.URLParam(r, "bookingID"), req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: booking})
}
