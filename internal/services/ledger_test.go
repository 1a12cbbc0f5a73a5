package services

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/havenlab/apiserver/internal/events"
	"github.com/havenlab/apiserver/internal/store"
	"github.com/havenlab/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBookingStore struct {
	bookings map[string]types.Booking
	// conflictsLeft fails ApplyLedger with ErrConflict this many times,
	// simulating a concurrent payment moving the ledger.
	conflictsLeft int
	reads         int
}

func newFakeBookingStore(bookings ...types.Booking) *fakeBookingStore {
	s := &fakeBookingStore{bookings: make(map[string]types.Booking)}
	for _, b := range bookings {
		s.bookings[b.ID] = b
	}
	return s
}

func (s *fakeBookingStore) GetByID(_ context.Context, id string) (types.Booking, error) {
	s.reads++
	b, ok := s.bookings[id]
	if !ok {
		return types.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (s *fakeBookingStore) ApplyLedger(_ context.Context, booking types.Booking, expectedPaid int64) error {
	current, ok := s.bookings[booking.ID]
	if !ok {
		return store.ErrNotFound
	}
	if s.conflictsLeft > 0 {
		s.conflictsLeft--
		// A concurrent whole-booking payment of one cent landed first.
		current.PaidAmount++
		current.Outstanding = current.TotalAmount - current.PaidAmount
		s.bookings[booking.ID] = current
		return store.ErrConflict
	}
	if current.PaidAmount != expectedPaid {
		return store.ErrConflict
	}
	s.bookings[booking.ID] = booking
	return nil
}

func (s *fakeBookingStore) ListUnpaidByCustomer(_ context.Context, customerName string) ([]types.Booking, error) {
	var out []types.Booking
	for _, b := range s.bookings {
		if b.CustomerName == customerName && b.Outstanding > 0 {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckIn.Before(out[j].CheckIn) })
	return out, nil
}

func (s *fakeBookingStore) UnpaidCustomerNames(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	var names []string
	for _, b := range s.bookings {
		if b.Outstanding > 0 && !seen[b.CustomerName] {
			seen[b.CustomerName] = true
			names = append(names, b.CustomerName)
		}
	}
	sort.Strings(names)
	return names, nil
}

type fakePaymentStore struct {
	payments []types.Payment
}

func (s *fakePaymentStore) Append(_ context.Context, payment types.Payment) (types.Payment, error) {
	payment.CreatedAt = time.Now()
	s.payments = append(s.payments, payment)
	return payment, nil
}

func (s *fakePaymentStore) ListByBooking(_ context.Context, bookingID string) ([]types.Payment, error) {
	var out []types.Payment
	for _, p := range s.payments {
		if p.BookingID == bookingID {
			out = append(out, p)
		}
	}
	return out, nil
}

func testBooking(id string, totalCents int64, nights int) types.Booking {
	checkIn := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return types.Booking{
		ID:            id,
		CustomerName:  "Asha Rahman",
		RoomNumber:    "204",
		CheckIn:       checkIn,
		CheckOut:      checkIn.AddDate(0, 0, nights),
		TotalNights:   nights,
		Status:        types.BookingPending,
		TotalAmount:   totalCents,
		PaidAmount:    0,
		Outstanding:   totalCents,
		PaymentStatus: types.PaymentPending,
	}
}

func newTestLedger(bookings *fakeBookingStore, payments *fakePaymentStore) *LedgerService {
	return NewLedgerService(bookings, payments, nil, nil, zap.NewNop())
}

func requireLedgerConsistent(t *testing.T, b types.Booking) {
	t.Helper()
	require.Equal(t, max(0, b.TotalAmount-b.PaidAmount), b.Outstanding)
	if len(b.DailyPayments) > 0 {
		var total, paid int64
		for _, d := range b.DailyPayments {
			total += d.Amount
			paid += d.PaidAmount
			require.Equal(t, max(0, d.Amount-d.PaidAmount), d.Outstanding)
			require.Equal(t, d.Outstanding == 0, d.IsPaid)
		}
		require.Equal(t, b.TotalAmount, total)
		require.Equal(t, b.PaidAmount, paid)
	}
}

func TestEqualNightlySplit(t *testing.T) {
	assert.Equal(t, []int64{10000, 10000, 10000}, EqualNightlySplit(30000, 3))
	assert.Equal(t, []int64{3333, 3333, 3334}, EqualNightlySplit(10000, 3))
	assert.Equal(t, []int64{0, 0}, EqualNightlySplit(0, 2))
	assert.Nil(t, EqualNightlySplit(10000, 0))

	// Slices always sum back to the total.
	for _, nights := range []int{1, 2, 3, 7, 31} {
		var sum int64
		for _, a := range EqualNightlySplit(99999, nights) {
			sum += a
		}
		assert.Equal(t, int64(99999), sum)
	}
}

func TestRecordPaymentWholeBooking(t *testing.T) {
	bookings := newFakeBookingStore(testBooking("b1", 30000, 3))
	payments := &fakePaymentStore{}
	ledger := newTestLedger(bookings, payments)
	ctx := context.Background()

	result, err := ledger.RecordPayment(ctx, "b1", 12000, PaymentOptions{ReceivedBy: "user_front_desk"})
	require.NoError(t, err)
	assert.Equal(t, int64(12000), result.Booking.PaidAmount)
	assert.Equal(t, int64(18000), result.Booking.Outstanding)
	assert.Equal(t, types.PaymentPartial, result.Booking.PaymentStatus)
	assert.Equal(t, types.BookingPending, result.Booking.Status)
	requireLedgerConsistent(t, result.Booking)

	result, err = ledger.RecordPayment(ctx, "b1", 18000, PaymentOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Booking.Outstanding)
	assert.Equal(t, types.PaymentPaid, result.Booking.PaymentStatus)
	assert.Equal(t, types.BookingConfirmed, result.Booking.Status)
	requireLedgerConsistent(t, result.Booking)

	require.Len(t, payments.payments, 2)
	assert.Equal(t, "b1", payments.payments[0].BookingID)
	assert.Equal(t, "user_front_desk", payments.payments[0].ReceivedBy)
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	bookings := newFakeBookingStore(testBooking("b1", 30000, 3))
	ledger := newTestLedger(bookings, &fakePaymentStore{})
	ctx := context.Background()

	// Exactly the outstanding amount is accepted; one cent more is not.
	_, err := ledger.RecordPayment(ctx, "b1", 30001, PaymentOptions{})
	require.ErrorIs(t, err, store.ErrInvalidArgument)

	result, err := ledger.RecordPayment(ctx, "b1", 30000, PaymentOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.PaymentPaid, result.Booking.PaymentStatus)

	_, err = ledger.RecordPayment(ctx, "b1", 1, PaymentOptions{})
	require.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestRecordPaymentRejectsNonPositiveAmount(t *testing.T) {
	ledger := newTestLedger(newFakeBookingStore(testBooking("b1", 30000, 3)), &fakePaymentStore{})

	_, err := ledger.RecordPayment(context.Background(), "b1", 0, PaymentOptions{})
	require.ErrorIs(t, err, store.ErrInvalidArgument)
	_, err = ledger.RecordPayment(context.Background(), "b1", -500, PaymentOptions{})
	require.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestRecordPaymentUnknownBooking(t *testing.T) {
	ledger := newTestLedger(newFakeBookingStore(), &fakePaymentStore{})

	_, err := ledger.RecordPayment(context.Background(), "missing", 100, PaymentOptions{})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordPaymentDaySpecificSeedsLazily(t *testing.T) {
	bookings := newFakeBookingStore(testBooking("b1", 30000, 3))
	ledger := newTestLedger(bookings, &fakePaymentStore{})
	ctx := context.Background()

	result, err := ledger.RecordPayment(ctx, "b1", 10000, PaymentOptions{DayOfStay: 2})
	require.NoError(t, err)
	require.Len(t, result.Booking.DailyPayments, 3)

	day2 := result.Booking.DailyPayments[1]
	assert.Equal(t, 2, day2.DayOfStay)
	assert.Equal(t, int64(10000), day2.Amount)
	assert.True(t, day2.IsPaid)
	require.NotNil(t, day2.PaymentDate)

	assert.Equal(t, int64(10000), result.Booking.PaidAmount)
	assert.Equal(t, int64(20000), result.Booking.Outstanding)
	assert.Equal(t, types.PaymentPartial, result.Booking.PaymentStatus)
	assert.False(t, result.Booking.DailyPayments[0].IsPaid)
	requireLedgerConsistent(t, result.Booking)
}

func TestRecordPaymentDayRejectsOverpayment(t *testing.T) {
	bookings := newFakeBookingStore(testBooking("b1", 30000, 3))
	ledger := newTestLedger(bookings, &fakePaymentStore{})
	ctx := context.Background()

	_, err := ledger.RecordPayment(ctx, "b1", 10001, PaymentOptions{DayOfStay: 1})
	require.ErrorIs(t, err, store.ErrInvalidArgument)

	// The rejected attempt must not have persisted any seeding.
	stored, err := bookings.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, stored.DailyPayments)
	assert.Equal(t, int64(0), stored.PaidAmount)

	result, err := ledger.RecordPayment(ctx, "b1", 10000, PaymentOptions{DayOfStay: 1})
	require.NoError(t, err)
	assert.True(t, result.Booking.DailyPayments[0].IsPaid)
}

func TestRecordPaymentDayOutOfRange(t *testing.T) {
	ledger := newTestLedger(newFakeBookingStore(testBooking("b1", 30000, 3)), &fakePaymentStore{})
	ctx := context.Background()

	_, err := ledger.RecordPayment(ctx, "b1", 100, PaymentOptions{DayOfStay: 4})
	require.ErrorIs(t, err, store.ErrInvalidArgument)
	_, err = ledger.RecordPayment(ctx, "b1", 100, PaymentOptions{DayOfStay: -1})
	require.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestSeedingFoldsPriorWholeBookingPayments(t *testing.T) {
	bookings := newFakeBookingStore(testBooking("b1", 30000, 3))
	ledger := newTestLedger(bookings, &fakePaymentStore{})
	ctx := context.Background()

	_, err := ledger.RecordPayment(ctx, "b1", 15000, PaymentOptions{})
	require.NoError(t, err)

	// First day-specific payment seeds the entries; the 15000 already paid
	// is folded in earliest night first.
	result, err := ledger.RecordPayment(ctx, "b1", 5000, PaymentOptions{DayOfStay: 2})
	require.NoError(t, err)

	days := result.Booking.DailyPayments
	require.Len(t, days, 3)
	assert.Equal(t, int64(10000), days[0].PaidAmount)
	assert.True(t, days[0].IsPaid)
	assert.Equal(t, int64(10000), days[1].PaidAmount)
	assert.True(t, days[1].IsPaid)
	assert.Equal(t, int64(0), days[2].PaidAmount)

	assert.Equal(t, int64(20000), result.Booking.PaidAmount)
	assert.Equal(t, types.PaymentPartial, result.Booking.PaymentStatus)
	requireLedgerConsistent(t, result.Booking)
}

func TestWholePaymentAfterSeedingSpreadsAcrossDays(t *testing.T) {
	bookings := newFakeBookingStore(testBooking("b1", 30000, 3))
	ledger := newTestLedger(bookings, &fakePaymentStore{})
	ctx := context.Background()

	_, err := ledger.RecordPayment(ctx, "b1", 10000, PaymentOptions{DayOfStay: 2})
	require.NoError(t, err)

	result, err := ledger.RecordPayment(ctx, "b1", 15000, PaymentOptions{})
	require.NoError(t, err)

	days := result.Booking.DailyPayments
	require.Len(t, days, 3)
	assert.Equal(t, int64(10000), days[0].PaidAmount)
	assert.True(t, days[0].IsPaid)
	assert.Equal(t, int64(5000), days[2].PaidAmount)
	assert.False(t, days[2].IsPaid)
	assert.Equal(t, int64(25000), result.Booking.PaidAmount)
	requireLedgerConsistent(t, result.Booking)
}

func TestRecordPaymentRemainderLandsOnLastNight(t *testing.T) {
	bookings := newFakeBookingStore(testBooking("b1", 10000, 3))
	ledger := newTestLedger(bookings, &fakePaymentStore{})
	ctx := context.Background()

	result, err := ledger.RecordPayment(ctx, "b1", 3334, PaymentOptions{DayOfStay: 3})
	require.NoError(t, err)

	days := result.Booking.DailyPayments
	assert.Equal(t, int64(3333), days[0].Amount)
	assert.Equal(t, int64(3333), days[1].Amount)
	assert.Equal(t, int64(3334), days[2].Amount)
	assert.True(t, days[2].IsPaid)
	requireLedgerConsistent(t, result.Booking)
}

func TestRecordPaymentRetriesOnConflict(t *testing.T) {
	bookings := newFakeBookingStore(testBooking("b1", 30000, 3))
	bookings.conflictsLeft = 1
	ledger := newTestLedger(bookings, &fakePaymentStore{})

	result, err := ledger.RecordPayment(context.Background(), "b1", 10000, PaymentOptions{})
	require.NoError(t, err)
	// The concurrent cent and our payment both survive.
	assert.Equal(t, int64(10001), result.Booking.PaidAmount)
	assert.Equal(t, 2, bookings.reads)
}

func TestRecordPaymentGivesUpAfterSecondConflict(t *testing.T) {
	bookings := newFakeBookingStore(testBooking("b1", 30000, 3))
	bookings.conflictsLeft = 2
	ledger := newTestLedger(bookings, &fakePaymentStore{})

	_, err := ledger.RecordPayment(context.Background(), "b1", 10000, PaymentOptions{})
	require.ErrorIs(t, err, store.ErrConflict)
}

func TestRecordBulkPaymentOldestFirst(t *testing.T) {
	older := testBooking("b-old", 10000, 1)
	newer := testBooking("b-new", 2000, 1)
	newer.CheckIn = older.CheckIn.AddDate(0, 0, 10)
	newer.CheckOut = newer.CheckIn.AddDate(0, 0, 1)

	bookings := newFakeBookingStore(older, newer)
	ledger := newTestLedger(bookings, &fakePaymentStore{})

	result, err := ledger.RecordBulkPayment(context.Background(), "Asha Rahman", 11000, PaymentOptions{})
	require.NoError(t, err)

	require.Equal(t, []Allocation{
		{BookingID: "b-old", Amount: 10000},
		{BookingID: "b-new", Amount: 1000},
	}, result.Processed)
	assert.Equal(t, int64(11000), result.TotalApplied)
	assert.Equal(t, int64(0), result.Remaining)
	assert.Equal(t, 2, result.Count)

	// Oldest booking settled, newer one partially paid.
	old, _ := bookings.GetByID(context.Background(), "b-old")
	assert.Equal(t, types.PaymentPaid, old.PaymentStatus)
	recent, _ := bookings.GetByID(context.Background(), "b-new")
	assert.Equal(t, int64(1000), recent.Outstanding)
}

func TestRecordBulkPaymentReportsUnusedRemainder(t *testing.T) {
	bookings := newFakeBookingStore(testBooking("b1", 5000, 1))
	ledger := newTestLedger(bookings, &fakePaymentStore{})

	result, err := ledger.RecordBulkPayment(context.Background(), "Asha Rahman", 8000, PaymentOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), result.TotalApplied)
	assert.Equal(t, int64(3000), result.Remaining)

	// The remainder is reported to the caller but not stored anywhere.
	b, _ := bookings.GetByID(context.Background(), "b1")
	assert.Equal(t, int64(5000), b.PaidAmount)
}

func TestRecordBulkPaymentNoUnpaidBookings(t *testing.T) {
	other := testBooking("b1", 5000, 1)
	other.CustomerName = "Asha Rahmann"
	bookings := newFakeBookingStore(other)
	ledger := newTestLedger(bookings, &fakePaymentStore{})

	_, err := ledger.RecordBulkPayment(context.Background(), "Asha Rahman", 5000, PaymentOptions{})

	var noUnpaid *NoUnpaidBookingsError
	require.ErrorAs(t, err, &noUnpaid)
	assert.Equal(t, "Asha Rahman", noUnpaid.CustomerName)
	assert.Contains(t, noUnpaid.Candidates, "Asha Rahmann")
}

func TestListPaymentsUnknownBooking(t *testing.T) {
	ledger := newTestLedger(newFakeBookingStore(), &fakePaymentStore{})

	_, err := ledger.ListPayments(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestPaymentStatusNeverRegresses(t *testing.T) {
	bookings := newFakeBookingStore(testBooking("b1", 30000, 3))
	ledger := newTestLedger(bookings, &fakePaymentStore{})
	ctx := context.Background()

	rank := map[string]int{types.PaymentPending: 0, types.PaymentPartial: 1, types.PaymentPaid: 2}
	last := rank[types.PaymentPending]

	steps := []PaymentOptions{
		{},
		{DayOfStay: 1},
		{DayOfStay: 3},
		{},
	}
	amounts := []int64{5000, 5000, 10000, 10000}

	for i, opts := range steps {
		result, err := ledger.RecordPayment(ctx, "b1", amounts[i], opts)
		require.NoError(t, err)
		requireLedgerConsistent(t, result.Booking)
		require.GreaterOrEqual(t, rank[result.Booking.PaymentStatus], last)
		last = rank[result.Booking.PaymentStatus]
	}
	final, _ := bookings.GetByID(ctx, "b1")
	assert.Equal(t, types.PaymentPaid, final.PaymentStatus)
}

type recordingBackend struct {
	topics []string
}

func (b *recordingBackend) Publish(_ context.Context, topic string, _ []byte, _ map[string]string) (string, error) {
	b.topics = append(b.topics, topic)
	return "m1", nil
}

func (b *recordingBackend) Subscribe(context.Context, string, events.Handler) error { return nil }

func (b *recordingBackend) Close() error { return nil }

func TestConfirmedEventOnlyOnStatusTransition(t *testing.T) {
	pending := testBooking("b-pending", 10000, 2)

	settled := testBooking("b-confirmed", 10000, 2)
	settled.Status = types.BookingConfirmed

	bookings := newFakeBookingStore(pending, settled)
	backend := &recordingBackend{}
	ledger := NewLedgerService(bookings, &fakePaymentStore{}, events.New(backend), nil, zap.NewNop())
	ctx := context.Background()

	// Full payment moves a pending booking to confirmed.
	result, err := ledger.RecordPayment(ctx, "b-pending", 10000, PaymentOptions{})
	require.NoError(t, err)
	require.Equal(t, types.BookingConfirmed, result.Booking.Status)
	assert.Equal(t, []string{events.TopicPaymentRecorded, events.TopicBookingConfirmed}, backend.topics)

	// A booking confirmed by hand settles without a second confirmation event.
	backend.topics = nil
	result, err = ledger.RecordPayment(ctx, "b-confirmed", 10000, PaymentOptions{})
	require.NoError(t, err)
	require.Equal(t, types.PaymentPaid, result.Booking.PaymentStatus)
	assert.Equal(t, []string{events.TopicPaymentRecorded}, backend.topics)
}
