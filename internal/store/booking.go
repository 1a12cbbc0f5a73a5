package store

import (
	"context"
	"errors"
	"time"

	"github.com/havenlab/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BookingRepository handles persistence for bookings and their embedded
// payment ledgers.
type BookingRepository struct {
	bookings *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{bookings: db.Collection("bookings")}
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (types.Booking, error) {
	var booking types.Booking
	err := r.bookings.FindOne(ctx, bson.M{"_id": id}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Booking{}, ErrNotFound
		}
		return types.Booking{}, err
	}
	return booking, nil
}

func (r *BookingRepository) Create(ctx context.Context, booking types.Booking) (types.Booking, error) {
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	if _, err := r.bookings.InsertOne(ctx, booking); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.Booking{}, ErrConflict
		}
		return types.Booking{}, err
	}
	return booking, nil
}

func (r *BookingRepository) List(ctx context.Context, offset, limit int) ([]types.Booking, int64, error) {
	total, err := r.bookings.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSkip(int64(offset)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "check_in", Value: -1}})
	cursor, err := r.bookings.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	bookings := make([]types.Booking, 0, limit)
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func (r *BookingRepository) Update(ctx context.Context, booking types.Booking) (types.Booking, error) {
	booking.UpdatedAt = time.Now()
	result, err := r.bookings.ReplaceOne(ctx, bson.M{"_id": booking.ID}, booking)
	if err != nil {
		return types.Booking{}, err
	}
	if result.MatchedCount == 0 {
		return types.Booking{}, ErrNotFound
	}
	return booking, nil
}

// ApplyLedger writes the recomputed ledger fields in one atomic document
// update, guarded by the paid amount the caller read. A concurrent payment
// moves paid_amount and makes the filter miss, which surfaces as ErrConflict
// so the caller can reload and retry.
func (r *BookingRepository) ApplyLedger(ctx context.Context, booking types.Booking, expectedPaid int64) error {
	filter := bson.M{"_id": booking.ID, "paid_amount": expectedPaid}
	update := bson.M{
		"$set": bson.M{
			"paid_amount":        booking.PaidAmount,
			"outstanding_amount": booking.Outstanding,
			"daily_payments":     booking.DailyPayments,
			"payment_status":     booking.PaymentStatus,
			"status":             booking.Status,
			"updated_at":         time.Now(),
		},
	}
	result, err := r.bookings.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		// Distinguish a missing booking from a lost race.
		if _, getErr := r.GetByID(ctx, booking.ID); getErr != nil {
			return getErr
		}
		return ErrConflict
	}
	return nil
}

// ListUnpaidByCustomer returns a customer's bookings with an outstanding
// balance, oldest check-in first. Matching is exact on customer name.
func (r *BookingRepository) ListUnpaidByCustomer(ctx context.Context, customerName string) ([]types.Booking, error) {
	filter := bson.M{
		"customer_name":      customerName,
		"outstanding_amount": bson.M{"$gt": 0},
	}
	opts := options.Find().SetSort(bson.D{{Key: "check_in", Value: 1}})
	cursor, err := r.bookings.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var bookings []types.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// UnpaidCustomerNames lists distinct customer names that still owe money,
// used to suggest candidates when a bulk payment matches nothing.
func (r *BookingRepository) UnpaidCustomerNames(ctx context.Context) ([]string, error) {
	values, err := r.bookings.Distinct(ctx, "customer_name", bson.M{
		"outstanding_amount": bson.M{"$gt": 0},
	})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(values))
	for _, v := range values {
		if name, ok := v.(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}
