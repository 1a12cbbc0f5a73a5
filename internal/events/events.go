// Package events publishes audit events (user syncs, role changes, recorded
// payments) to a broker-agnostic bus. Publishing is best-effort: a broker
// failure is logged by the caller and never fails the originating request.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the services.
const (
	TopicUserSynced       = "user.synced"
	TopicRoleChanged      = "role.changed"
	TopicPaymentRecorded  = "payment.recorded"
	TopicBookingConfirmed = "booking.confirmed"
)

// Message is a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// Bus wraps a backend with a typed publish API.
type Bus struct {
	backend Backend
}

// New constructs a Bus over the provided backend.
func New(backend Backend) *Bus {
	return &Bus{backend: backend}
}

type envelope struct {
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Emit marshals payload into a dated envelope and publishes it on topic.
func (b *Bus) Emit(ctx context.Context, topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(envelope{
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	})
	if err != nil {
		return err
	}
	_, err = b.backend.Publish(ctx, topic, data, map[string]string{"topic": topic})
	return err
}

// Subscribe consumes messages from the named topic.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	return b.backend.Subscribe(ctx, topic, handler)
}

// Close closes the underlying backend.
func (b *Bus) Close() error {
	return b.backend.Close()
}
