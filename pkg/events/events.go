// Package events publishes consultation domain events.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Subjects published by the consultation service.
const (
	SubjectConsultationRequested     = "consultation.requested"
	SubjectConsultationStatusChanged = "consultation.status_changed"
)

// Event is the envelope written to the bus.
type Event struct {
	ID         string      `json:"id"`
	Subject    string      `json:"subject"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

// New stamps a payload with an id and timestamp.
func New(subject string, payload interface{}) Event {
	return Event{ID: uuid.NewString(), Subject: subject, OccurredAt: time.Now().UTC(), Payload: payload}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher discards events. Used when no bus is configured.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }
