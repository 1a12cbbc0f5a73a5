package types

import "time"

// Booking lifecycle states.
const (
	BookingPending    = "pending"
	BookingConfirmed  = "confirmed"
	BookingCheckedIn  = "checked_in"
	BookingCheckedOut = "checked_out"
	BookingCancelled  = "cancelled"
)

// Payment states derived from the ledger. The progression is
// pending -> partial -> paid; there is no refund operation, so paid-ness
// never regresses.
const (
	PaymentPending = "pending"
	PaymentPartial = "partial"
	PaymentPaid    = "paid"
)

// All currency values are minor units (cents). Division of a total across
// nights is exact by construction: see EqualNightlySplit.

// DailyPayment is one night's slice of a booking's ledger. Entries are seeded
// lazily the first time a day-specific payment is recorded.
type DailyPayment struct {
	// DayOfStay is 1-based: day 1 is the check-in night.
	DayOfStay   int        `bson:"day_of_stay" json:"dayOfStay"`
	Amount      int64      `bson:"amount" json:"amount"`
	PaidAmount  int64      `bson:"paid_amount" json:"paidAmount"`
	Outstanding int64      `bson:"outstanding_amount" json:"outstandingAmount"`
	IsPaid      bool       `bson:"is_paid" json:"isPaid"`
	PaymentDate *time.Time `bson:"payment_date,omitempty" json:"paymentDate,omitempty"`
}

// Booking is a hotel stay with its embedded payment ledger.
type Booking struct {
	ID           string    `bson:"_id" json:"id"`
	CustomerName string    `bson:"customer_name" json:"customerName"`
	RoomNumber   string    `bson:"room_number" json:"roomNumber"`
	CheckIn      time.Time `bson:"check_in" json:"checkIn"`
	CheckOut     time.Time `bson:"check_out" json:"checkOut"`
	TotalNights  int       `bson:"total_nights" json:"totalNights"`
	Status       string    `bson:"status" json:"status"`

	// Ledger fields. Invariant after every mutation:
	// Outstanding == max(0, TotalAmount - PaidAmount), and when DailyPayments
	// is non-empty both totals equal the sums over the day entries.
	TotalAmount   int64          `bson:"total_amount" json:"totalAmount"`
	PaidAmount    int64          `bson:"paid_amount" json:"paidAmount"`
	Outstanding   int64          `bson:"outstanding_amount" json:"outstandingAmount"`
	DailyPayments []DailyPayment `bson:"daily_payments,omitempty" json:"dailyPayments,omitempty"`
	PaymentStatus string         `bson:"payment_status" json:"paymentStatus"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Payment is an immutable audit record. Rows are only ever inserted.
type Payment struct {
	ID         string    `bson:"_id" json:"id"`
	BookingID  string    `bson:"booking_id" json:"bookingId"`
	Amount     int64     `bson:"amount" json:"amount"`
	DayOfStay  int       `bson:"day_of_stay,omitempty" json:"dayOfStay,omitempty"`
	Note       string    `bson:"note,omitempty" json:"note,omitempty"`
	ReceivedBy string    `bson:"received_by,omitempty" json:"receivedBy,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

// Room is a unit of hotel inventory.
type Room struct {
	ID        string    `bson:"_id" json:"id"`
	Number    string    `bson:"number" json:"number"`
	Type      string    `bson:"type" json:"type"`
	RateCents int64     `bson:"rate_cents" json:"rateCents"`
	Available bool      `bson:"available" json:"available"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}
