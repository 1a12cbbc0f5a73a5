package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/havenlab/apiserver/internal/storage"
	"github.com/havenlab/apiserver/types"
	"go.uber.org/zap"
)

// ReceiptService renders a receipt for each accepted payment and archives it
// in object storage. Archiving is best-effort: failures are logged and never
// fail the payment.
type ReceiptService struct {
	archive *storage.Archive
	logger  *zap.Logger
}

func NewReceiptService(archive *storage.Archive, logger *zap.Logger) *ReceiptService {
	return &ReceiptService{archive: archive, logger: logger}
}

type receipt struct {
	PaymentID     string    `json:"paymentId"`
	BookingID     string    `json:"bookingId"`
	CustomerName  string    `json:"customerName"`
	RoomNumber    string    `json:"roomNumber"`
	Amount        int64     `json:"amount"`
	DayOfStay     int       `json:"dayOfStay,omitempty"`
	PaidToDate    int64     `json:"paidToDate"`
	Outstanding   int64     `json:"outstandingBalance"`
	PaymentStatus string    `json:"paymentStatus"`
	ReceivedBy    string    `json:"receivedBy,omitempty"`
	IssuedAt      time.Time `json:"issuedAt"`
}

// Archive stores a JSON receipt under receipts/<bookingID>/<paymentID>.json.
func (s *ReceiptService) Archive(ctx context.Context, payment types.Payment, booking types.Booking) {
	doc := receipt{
		PaymentID:     payment.ID,
		BookingID:     booking.ID,
		CustomerName:  booking.CustomerName,
		RoomNumber:    booking.RoomNumber,
		Amount:        payment.Amount,
		DayOfStay:     payment.DayOfStay,
		PaidToDate:    booking.PaidAmount,
		Outstanding:   booking.Outstanding,
		PaymentStatus: booking.PaymentStatus,
		ReceivedBy:    payment.ReceivedBy,
		IssuedAt:      time.Now().UTC(),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		s.logger.Warn("receipt marshal failed", zap.String("payment_id", payment.ID), zap.Error(err))
		return
	}

	key := fmt.Sprintf("receipts/%s/%s.json", booking.ID, payment.ID)
	if err := s.archive.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		s.logger.Warn("receipt archive failed",
			zap.String("payment_id", payment.ID),
			zap.String("key", key),
			zap.Error(err))
	}
}
