package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/havenlab/apiserver/internal/events"
	"github.com/havenlab/apiserver/internal/store"
	"github.com/havenlab/apiserver/types"
	"go.uber.org/zap"
)

// BookingStore defines the booking persistence operations the ledger needs.
type BookingStore interface {
	GetByID(ctx context.Context, id string) (types.Booking, error)
	ApplyLedger(ctx context.Context, booking types.Booking, expectedPaid int64) error
	ListUnpaidByCustomer(ctx context.Context, customerName string) ([]types.Booking, error)
	UnpaidCustomerNames(ctx context.Context) ([]string, error)
}

// PaymentStore is the append-only payment audit log.
type PaymentStore interface {
	Append(ctx context.Context, payment types.Payment) (types.Payment, error)
	ListByBooking(ctx context.Context, bookingID string) ([]types.Payment, error)
}

// PaymentOptions carries the optional payment attributes. A zero DayOfStay
// means the payment applies to the booking as a whole.
type PaymentOptions struct {
	DayOfStay  int
	Note       string
	ReceivedBy string
}

// PaymentResult is the updated ledger view plus the appended audit record.
type PaymentResult struct {
	Payment types.Payment `json:"payment"`
	Booking types.Booking `json:"booking"`
}

// Allocation is one booking's share of a bulk payment.
type Allocation struct {
	BookingID string `json:"bookingId"`
	Amount    int64  `json:"amount"`
}

// BulkResult reports how a bulk payment was spread across bookings. A
// nonzero Remaining is reported but deliberately not persisted anywhere.
type BulkResult struct {
	Processed    []Allocation `json:"processedPayments"`
	TotalApplied int64        `json:"totalAmount"`
	Remaining    int64        `json:"remainingAmount"`
	Count        int          `json:"paymentsProcessed"`
}

// EqualNightlySplit divides a total evenly across nights. The remainder
// cents land on the last night so the slices always sum to the total. This
// is the named allocation policy for lazy day-entry seeding; a
// season-weighted policy could replace it without touching the ledger.
func EqualNightlySplit(totalCents int64, nights int) []int64 {
	if nights < 1 {
		return nil
	}
	base := totalCents / int64(nights)
	amounts := make([]int64, nights)
	for i := range amounts {
		amounts[i] = base
	}
	amounts[nights-1] += totalCents - base*int64(nights)
	return amounts
}

// LedgerService applies payments to booking ledgers, keeping the three
// booking totals consistent with each other and with the per-night entries.
type LedgerService struct {
	bookings BookingStore
	payments PaymentStore
	bus      *events.Bus
	receipts *ReceiptService
	logger   *zap.Logger
}

func NewLedgerService(bookings BookingStore, payments PaymentStore, bus *events.Bus, receipts *ReceiptService, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		bookings: bookings,
		payments: payments,
		bus:      bus,
		receipts: receipts,
		logger:   logger,
	}
}

// RecordPayment applies a payment to a booking, either against one night of
// the stay or against the whole booking. Totals are always recomputed from
// the source fields, never incremented, so repeated payments cannot drift.
func (s *LedgerService) RecordPayment(ctx context.Context, bookingID string, amount int64, opts PaymentOptions) (PaymentResult, error) {
	if amount <= 0 {
		return PaymentResult{}, fmt.Errorf("%w: amount must be positive", store.ErrInvalidArgument)
	}

	// One retry when a concurrent payment moves the ledger between our read
	// and the guarded write.
	var booking types.Booking
	var err error
	var confirmed bool
	for attempt := 0; attempt < 2; attempt++ {
		booking, err = s.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return PaymentResult{}, err
		}
		paidAsRead := booking.PaidAmount
		wasPending := booking.Status == types.BookingPending

		booking, err = applyPayment(booking, amount, opts.DayOfStay)
		if err != nil {
			return PaymentResult{}, err
		}
		confirmed = wasPending && booking.Status == types.BookingConfirmed

		err = s.bookings.ApplyLedger(ctx, booking, paidAsRead)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflict) {
			return PaymentResult{}, &PersistenceError{Side: "local", Err: err}
		}
	}
	if err != nil {
		return PaymentResult{}, err
	}

	payment, err := s.payments.Append(ctx, types.Payment{
		ID:         uuid.NewString(),
		BookingID:  bookingID,
		Amount:     amount,
		DayOfStay:  opts.DayOfStay,
		Note:       opts.Note,
		ReceivedBy: opts.ReceivedBy,
	})
	if err != nil {
		// The ledger write already landed; the audit row is the one lost.
		return PaymentResult{}, &PersistenceError{Side: "local", Err: err}
	}

	s.logger.Info("payment recorded",
		zap.String("booking_id", bookingID),
		zap.Int64("amount", amount),
		zap.Int("day_of_stay", opts.DayOfStay),
		zap.String("payment_status", booking.PaymentStatus))

	s.emit(ctx, events.TopicPaymentRecorded, PaymentResult{Payment: payment, Booking: booking})
	if confirmed {
		s.emit(ctx, events.TopicBookingConfirmed, booking)
	}
	if s.receipts != nil {
		s.receipts.Archive(ctx, payment, booking)
	}

	return PaymentResult{Payment: payment, Booking: booking}, nil
}

// RecordBulkPayment spreads one incoming amount across a customer's unpaid
// bookings, strictly oldest check-in first, paying each down before moving to
// the next. The loop is not transactional: a failure partway through leaves
// earlier bookings paid.
func (s *LedgerService) RecordBulkPayment(ctx context.Context, customerName string, total int64, opts PaymentOptions) (BulkResult, error) {
	if total <= 0 {
		return BulkResult{}, fmt.Errorf("%w: amount must be positive", store.ErrInvalidArgument)
	}

	bookings, err := s.bookings.ListUnpaidByCustomer(ctx, customerName)
	if err != nil {
		return BulkResult{}, err
	}
	if len(bookings) == 0 {
		candidates, listErr := s.bookings.UnpaidCustomerNames(ctx)
		if listErr != nil {
			s.logger.Warn("candidate lookup failed", zap.Error(listErr))
		}
		return BulkResult{}, &NoUnpaidBookingsError{CustomerName: customerName, Candidates: candidates}
	}

	result := BulkResult{Remaining: total}
	for _, booking := range bookings {
		if result.Remaining <= 0 {
			break
		}
		pay := min(result.Remaining, booking.Outstanding)

		if _, err := s.RecordPayment(ctx, booking.ID, pay, PaymentOptions{
			Note:       opts.Note,
			ReceivedBy: opts.ReceivedBy,
		}); err != nil {
			return result, err
		}

		result.Processed = append(result.Processed, Allocation{BookingID: booking.ID, Amount: pay})
		result.TotalApplied += pay
		result.Remaining -= pay
		result.Count++
	}

	s.logger.Info("bulk payment recorded",
		zap.String("customer", customerName),
		zap.Int64("applied", result.TotalApplied),
		zap.Int64("remaining", result.Remaining),
		zap.Int("bookings", result.Count))

	return result, nil
}

// ListPayments returns the audit trail for one booking, oldest first.
func (s *LedgerService) ListPayments(ctx context.Context, bookingID string) ([]types.Payment, error) {
	if _, err := s.bookings.GetByID(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.payments.ListByBooking(ctx, bookingID)
}

// applyPayment computes the next ledger state. Pure with respect to storage;
// validation happens here, before any write.
func applyPayment(booking types.Booking, amount int64, dayOfStay int) (types.Booking, error) {
	if dayOfStay != 0 {
		if dayOfStay < 1 || dayOfStay > booking.TotalNights {
			return types.Booking{}, fmt.Errorf("%w: day %d outside stay of %d nights", store.ErrInvalidArgument, dayOfStay, booking.TotalNights)
		}

		if len(booking.DailyPayments) == 0 {
			booking.DailyPayments = seedDailyPayments(booking.TotalAmount, booking.TotalNights, booking.PaidAmount)
		}

		day := &booking.DailyPayments[dayOfStay-1]
		if amount > day.Outstanding {
			return types.Booking{}, fmt.Errorf("%w: amount exceeds outstanding balance for this day", store.ErrInvalidArgument)
		}

		now := time.Now()
		day.PaidAmount += amount
		day.Outstanding = max(0, day.Amount-day.PaidAmount)
		day.IsPaid = day.Outstanding <= 0
		day.PaymentDate = &now

		booking = recomputeTotals(booking)
	} else {
		if amount > booking.Outstanding {
			return types.Booking{}, fmt.Errorf("%w: amount exceeds outstanding balance", store.ErrInvalidArgument)
		}
		if len(booking.DailyPayments) > 0 {
			// Once day entries exist they stay the source of truth: spread the
			// payment across outstanding nights, earliest first.
			now := time.Now()
			remaining := amount
			for i := range booking.DailyPayments {
				if remaining <= 0 {
					break
				}
				day := &booking.DailyPayments[i]
				pay := min(remaining, day.Outstanding)
				if pay == 0 {
					continue
				}
				day.PaidAmount += pay
				day.Outstanding = day.Amount - day.PaidAmount
				day.IsPaid = day.Outstanding <= 0
				day.PaymentDate = &now
				remaining -= pay
			}
			booking = recomputeTotals(booking)
		} else {
			booking.PaidAmount += amount
			booking.Outstanding = max(0, booking.TotalAmount-booking.PaidAmount)
		}
	}

	switch {
	case booking.Outstanding <= 0:
		booking.PaymentStatus = types.PaymentPaid
	case booking.PaidAmount > 0:
		booking.PaymentStatus = types.PaymentPartial
	default:
		booking.PaymentStatus = types.PaymentPending
	}

	if booking.PaymentStatus == types.PaymentPaid && booking.Status == types.BookingPending {
		booking.Status = types.BookingConfirmed
	}

	return booking, nil
}

// recomputeTotals re-derives the booking totals from the day entries. Totals
// are never patched incrementally once entries exist.
func recomputeTotals(booking types.Booking) types.Booking {
	var paid, outstanding int64
	for _, d := range booking.DailyPayments {
		paid += d.PaidAmount
		outstanding += d.Outstanding
	}
	booking.PaidAmount = paid
	booking.Outstanding = outstanding
	return booking
}

// seedDailyPayments lazily initializes the per-night entries. Any amount
// already paid against the booking as a whole is folded in, earliest nights
// first, so the day sums keep matching the booking totals and paid-ness
// never regresses.
func seedDailyPayments(totalAmount int64, totalNights int, alreadyPaid int64) []types.DailyPayment {
	amounts := EqualNightlySplit(totalAmount, totalNights)
	days := make([]types.DailyPayment, len(amounts))
	for i, amount := range amounts {
		paid := min(alreadyPaid, amount)
		alreadyPaid -= paid
		days[i] = types.DailyPayment{
			DayOfStay:   i + 1,
			Amount:      amount,
			PaidAmount:  paid,
			Outstanding: amount - paid,
			IsPaid:      amount-paid <= 0,
		}
	}
	return days
}

func (s *LedgerService) emit(ctx context.Context, topic string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Emit(ctx, topic, payload); err != nil {
		s.logger.Warn("event publish failed", zap.String("topic", topic), zap.Error(err))
	}
}
