package reactivedomain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is the wire shape of one stored event: a type tag, the correlation
// metadata, and the payload bytes. Stores that persist raw bytes (disk, wire
// protocols) exchange Records through a Serializer.
type Record struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	StreamID      string          `json:"stream_id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	CausationID   uuid.UUID       `json:"causation_id"`
	Version       uint64          `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Data          json.RawMessage `json:"data"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// Serializer converts between envelopes and raw records. It must round-trip
// every event type the aggregate registers apply handlers for.
type Serializer interface {
	Serialize(env Envelope) (Record, error)
	Deserialize(rec Record) (*Envelope, error)
}

// JSONSerializer encodes event payloads as JSON and resolves concrete event
// types through the event registry. Registered factories must return pointer
// instances so payloads can be unmarshaled in place.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(env Envelope) (Record, error) {
	data, err := json.Marshal(env.Event)
	if err != nil {
		return Record{}, fmt.Errorf("serialize event %s: %w", TypeName(env.Event), err)
	}

	var metadata json.RawMessage
	if len(env.Metadata) > 0 {
		metadata, err = json.Marshal(env.Metadata)
		if err != nil {
			return Record{}, fmt.Errorf("serialize metadata for event %s: %w", TypeName(env.Event), err)
		}
	}

	return Record{
		EventID:       env.EventID,
		EventType:     env.Event.EventType(),
		StreamID:      env.StreamID,
		CorrelationID: env.CorrelationID,
		CausationID:   env.CausationID,
		Version:       env.Version,
		OccurredAt:    env.OccurredAt,
		Data:          data,
		Metadata:      metadata,
	}, nil
}

func (JSONSerializer) Deserialize(rec Record) (*Envelope, error) {
	event, err := NewEventByName(rec.EventType)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rec.Data, event); err != nil {
		return nil, fmt.Errorf("deserialize event %s: %w", rec.EventType, err)
	}

	var metadata map[string]any
	if len(rec.Metadata) > 0 {
		if err := json.Unmarshal(rec.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("deserialize metadata for event %s: %w", rec.EventType, err)
		}
	}

	return &Envelope{
		EventID:       rec.EventID,
		StreamID:      rec.StreamID,
		CorrelationID: rec.CorrelationID,
		CausationID:   rec.CausationID,
		Metadata:      metadata,
		Event:         event,
		Version:       rec.Version,
		OccurredAt:    rec.OccurredAt,
	}, nil
}
