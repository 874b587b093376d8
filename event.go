package reactivedomain

import (
	"time"

	"github.com/google/uuid"
)

var now = time.Now

// Event is a domain event describing a change that has happened to an aggregate.
type Event interface {
	AggregateID() string
	EventType() string
}

// Envelope wraps a domain event with the infrastructure metadata the store and
// bus need: identity, stream position, occurrence time and the causal chain
// linking the event back to the command that produced it.
//
// CorrelationID is shared by every message in one causal chain; CausationID is
// the message id of the immediate parent. A chain root carries its own id in
// both fields.
type Envelope struct {
	EventID       uuid.UUID
	StreamID      string
	CorrelationID uuid.UUID
	CausationID   uuid.UUID
	Metadata      map[string]any
	Event         Event
	Version       uint64
	OccurredAt    time.Time
}

// EventOption mutates an envelope before it is recorded.
type EventOption func(*Envelope)

// WithMetadata sets a metadata key on the envelope.
func WithMetadata(key string, value any) EventOption {
	return func(env *Envelope) {
		if env.Metadata == nil {
			env.Metadata = make(map[string]any)
		}
		env.Metadata[key] = value
	}
}

// WithOccurredAt overrides the envelope timestamp. Intended for replays and tests.
func WithOccurredAt(t time.Time) EventOption {
	return func(env *Envelope) {
		env.OccurredAt = t
	}
}
