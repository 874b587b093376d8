package fixtures

import (
	"time"

	"github.com/google/uuid"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

// EnvelopeOption is a functional option for configuring an Envelope.
type EnvelopeOption func(*rd.Envelope)

// NewEnvelope creates an Envelope with the given event and options. By
// default the envelope roots its own causal chain.
func NewEnvelope(event rd.Event, opts ...EnvelopeOption) *rd.Envelope {
	id := uuid.New()
	env := &rd.Envelope{
		EventID:       id,
		StreamID:      event.AggregateID(),
		CorrelationID: id,
		CausationID:   id,
		Event:         event,
		Version:       1,
		OccurredAt:    time.Now(),
		Metadata:      make(map[string]any),
	}

	for _, opt := range opts {
		opt(env)
	}

	return env
}

// WithEventID sets a specific event ID.
func WithEventID(id uuid.UUID) EnvelopeOption {
	return func(e *rd.Envelope) {
		e.EventID = id
	}
}

// WithStreamID overrides the stream ID (defaults to event's AggregateID).
func WithStreamID(id string) EnvelopeOption {
	return func(e *rd.Envelope) {
		e.StreamID = id
	}
}

// WithVersion sets the stream version.
func WithVersion(v uint64) EnvelopeOption {
	return func(e *rd.Envelope) {
		e.Version = v
	}
}

// WithCorrelation sets the causal chain ids.
func WithCorrelation(correlation, causation uuid.UUID) EnvelopeOption {
	return func(e *rd.Envelope) {
		e.CorrelationID = correlation
		e.CausationID = causation
	}
}

// WithTimestamp sets the occurred-at timestamp.
func WithTimestamp(t time.Time) EnvelopeOption {
	return func(e *rd.Envelope) {
		e.OccurredAt = t
	}
}

// WithMetadataField adds a single metadata field.
func WithMetadataField(key string, value any) EnvelopeOption {
	return func(e *rd.Envelope) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}

// EnvelopesFromEvents creates envelopes from a slice of events with
// sequential versions and a shared causal chain.
func EnvelopesFromEvents(events ...rd.Event) []*rd.Envelope {
	envelopes := make([]*rd.Envelope, len(events))
	baseTime := time.Now()
	correlation := uuid.New()

	for i, event := range events {
		id := uuid.New()
		envelopes[i] = &rd.Envelope{
			EventID:       id,
			StreamID:      event.AggregateID(),
			CorrelationID: correlation,
			CausationID:   id,
			Event:         event,
			Version:       uint64(i + 1),
			OccurredAt:    baseTime.Add(time.Duration(i) * time.Millisecond),
			Metadata:      make(map[string]any),
		}
	}

	return envelopes
}

// EnvelopeValuesFromEvents creates envelope values from a slice of events.
func EnvelopeValuesFromEvents(events ...rd.Event) []rd.Envelope {
	ptrs := EnvelopesFromEvents(events...)
	values := make([]rd.Envelope, len(ptrs))
	for i, p := range ptrs {
		values[i] = *p
	}
	return values
}
