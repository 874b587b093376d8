package reactivedomain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

type wireProbeEvent struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
}

func (e *wireProbeEvent) AggregateID() string { return e.ID }
func (e *wireProbeEvent) EventType() string   { return "wireProbeEvent" }

func init() {
	RegisterEventByType(func() Event { return &wireProbeEvent{} })
}

func TestJSONSerializer_RoundTrip(t *testing.T) {
	s := JSONSerializer{}

	env := Envelope{
		EventID:       uuid.New(),
		StreamID:      "probe-p1",
		CorrelationID: uuid.New(),
		CausationID:   uuid.New(),
		Metadata:      map[string]any{"tenant": "acme"},
		Event:         &wireProbeEvent{ID: "p1", Amount: 42},
		Version:       3,
		OccurredAt:    time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}

	rec, err := s.Serialize(env)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if rec.EventType != "wireProbeEvent" {
		t.Fatalf("EventType = %q", rec.EventType)
	}
	if rec.Version != 3 || rec.StreamID != "probe-p1" {
		t.Fatalf("record = %+v", rec)
	}

	got, err := s.Deserialize(rec)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	ev, ok := got.Event.(*wireProbeEvent)
	if !ok {
		t.Fatalf("deserialized event is %T", got.Event)
	}
	if ev.ID != "p1" || ev.Amount != 42 {
		t.Fatalf("payload = %+v", ev)
	}
	if got.EventID != env.EventID || got.CorrelationID != env.CorrelationID || got.CausationID != env.CausationID {
		t.Fatalf("identity fields lost: %+v", got)
	}
	if !got.OccurredAt.Equal(env.OccurredAt) {
		t.Fatalf("OccurredAt = %v, want %v", got.OccurredAt, env.OccurredAt)
	}
	if got.Metadata["tenant"] != "acme" {
		t.Fatalf("metadata = %v", got.Metadata)
	}
}

func TestJSONSerializer_EmptyMetadataOmitted(t *testing.T) {
	s := JSONSerializer{}

	rec, err := s.Serialize(Envelope{
		EventID: uuid.New(),
		Event:   &wireProbeEvent{ID: "p1"},
		Version: 1,
	})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if rec.Metadata != nil {
		t.Fatalf("expected no metadata bytes, got %s", rec.Metadata)
	}

	got, err := s.Deserialize(rec)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.Metadata != nil {
		t.Fatalf("metadata = %v, want nil", got.Metadata)
	}
}

func TestJSONSerializer_UnregisteredType(t *testing.T) {
	s := JSONSerializer{}

	rec, err := s.Serialize(Envelope{
		EventID: uuid.New(),
		Event:   stubEvent{Agg: "a", Typ: "neverRegisteredWireType"},
		Version: 1,
	})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	if _, err := s.Deserialize(rec); err == nil {
		t.Fatalf("expected error for unregistered event type")
	}
}
