package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TypeReviewRecorded is emitted after a review has been persisted.
const TypeReviewRecorded = "review.recorded"

// Event is a notification published by a service. It carries a typed
// payload serialized as JSON so that handlers need no dependency on the
// emitting package.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type identifies the payload shape
	Type string `json:"type"`

	// Payload contains the event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// OccurredAt is the time the underlying change happened
	OccurredAt time.Time `json:"occurred_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates a new Event with the specified type and payload.
func NewEvent(eventType string, payload interface{}, occurredAt time.Time) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:         uuid.New(),
		Type:       eventType,
		Payload:    payloadBytes,
		OccurredAt: occurredAt,
	}, nil
}

// ReviewRecorded is the payload of a TypeReviewRecorded event.
type ReviewRecorded struct {
	UserID   uuid.UUID `json:"user_id"`
	CardID   uuid.UUID `json:"card_id"`
	ModuleID uuid.UUID `json:"module_id"`
	Status   string    `json:"status"`
	DueAt    time.Time `json:"due_at"`
	Version  int64     `json:"version"`
}

// NewReviewRecordedEvent wraps a ReviewRecorded payload in an Event.
func NewReviewRecordedEvent(payload ReviewRecorded, occurredAt time.Time) (*Event, error) {
	return NewEvent(TypeReviewRecorded, payload, occurredAt)
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to the EventHandler interface.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent calls f(ctx, event).
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *Event) error
}
