package store

import (
	"context"
	"time"

	"github.com/havenlab/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PaymentRepository is the append-only audit trail of accepted payments.
// Records are only ever inserted, never updated or deleted.
type PaymentRepository struct {
	payments *mongo.Collection
}

func NewPaymentRepository(db *mongo.Database) *PaymentRepository {
	return &PaymentRepository{payments: db.Collection("payments")}
}

func (r *PaymentRepository) Append(ctx context.Context, payment types.Payment) (types.Payment, error) {
	payment.CreatedAt = time.Now()
	if _, err := r.payments.InsertOne(ctx, payment); err != nil {
		return types.Payment{}, err
	}
	return payment, nil
}

func (r *PaymentRepository) ListByBooking(ctx context.Context, bookingID string) ([]types.Payment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.payments.Find(ctx, bson.M{"booking_id": bookingID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var payments []types.Payment
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, err
	}
	return payments, nil
}
