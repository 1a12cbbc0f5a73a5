package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/havenlab/apiserver/internal/store"
	"github.com/havenlab/apiserver/types"
)

// BookingRepository defines the persistence operations for booking CRUD.
type BookingRepository interface {
	GetByID(ctx context.Context, id string) (types.Booking, error)
	Create(ctx context.Context, booking types.Booking) (types.Booking, error)
	List(ctx context.Context, offset, limit int) ([]types.Booking, int64, error)
	Update(ctx context.Context, booking types.Booking) (types.Booking, error)
}

// BookingService encapsulates booking use-cases outside the ledger.
type BookingService struct {
	repo BookingRepository
}

func NewBookingService(repo BookingRepository) *BookingService {
	return &BookingService{repo: repo}
}

// Create opens a booking with a fresh ledger: nothing paid, everything
// outstanding.
func (s *BookingService) Create(ctx context.Context, booking types.Booking) (types.Booking, error) {
	booking.CustomerName = strings.TrimSpace(booking.CustomerName)
	if booking.CustomerName == "" {
		return types.Booking{}, fmt.Errorf("%w: customer name is required", store.ErrInvalidArgument)
	}
	if booking.TotalAmount < 0 {
		return types.Booking{}, fmt.Errorf("%w: total amount must not be negative", store.ErrInvalidArgument)
	}
	if !booking.CheckOut.After(booking.CheckIn) {
		return types.Booking{}, fmt.Errorf("%w: check-out must follow check-in", store.ErrInvalidArgument)
	}

	if booking.TotalNights == 0 {
		booking.TotalNights = nightsBetween(booking.CheckIn, booking.CheckOut)
	}
	if booking.TotalNights < 1 {
		return types.Booking{}, fmt.Errorf("%w: stay must cover at least one night", store.ErrInvalidArgument)
	}

	booking.ID = uuid.NewString()
	booking.Status = types.BookingPending
	booking.PaidAmount = 0
	booking.Outstanding = booking.TotalAmount
	booking.DailyPayments = nil
	booking.PaymentStatus = types.PaymentPending

	return s.repo.Create(ctx, booking)
}

func (s *BookingService) Get(ctx context.Context, id string) (types.Booking, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *BookingService) List(ctx context.Context, offset, limit int) ([]types.Booking, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit)
}

// SetStatus moves a booking through its lifecycle. Ledger fields are never
// touched here; they are retained for audit even after checkout.
func (s *BookingService) SetStatus(ctx context.Context, id, status string) (types.Booking, error) {
	switch status {
	case types.BookingPending, types.BookingConfirmed, types.BookingCheckedIn,
		types.BookingCheckedOut, types.BookingCancelled:
	default:
		return types.Booking{}, fmt.Errorf("%w: status %q", store.ErrInvalidArgument, status)
	}

	booking, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.Booking{}, err
	}
	booking.Status = status
	return s.repo.Update(ctx, booking)
}

func nightsBetween(checkIn, checkOut time.Time) int {
	return int(checkOut.Sub(checkIn).Hours() / 24)
}
