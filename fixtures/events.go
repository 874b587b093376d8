// Package fixtures provides test doubles and builders shared by the package
// tests: spy stores and buses, envelope and iterator factories, and a small
// Account aggregate exercising the full raise/persist/replay cycle.
package fixtures

import (
	"fmt"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

// TestEvent is a configurable test event implementing the Event interface.
type TestEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data string `json:"data"`
}

func (e TestEvent) AggregateID() string { return e.ID }
func (e TestEvent) EventType() string   { return e.Type }

// TestEventBuilder provides a fluent API for constructing test events.
type TestEventBuilder struct {
	id   string
	typ  string
	data string
}

// NewTestEvent creates a new TestEventBuilder with sensible defaults.
func NewTestEvent() *TestEventBuilder {
	return &TestEventBuilder{
		id:  "aggregate-1",
		typ: "TestEvent",
	}
}

// WithID sets the aggregate ID.
func (b *TestEventBuilder) WithID(id string) *TestEventBuilder {
	b.id = id
	return b
}

// WithType sets the event type.
func (b *TestEventBuilder) WithType(typ string) *TestEventBuilder {
	b.typ = typ
	return b
}

// WithData sets custom data on the event.
func (b *TestEventBuilder) WithData(data string) *TestEventBuilder {
	b.data = data
	return b
}

// Build constructs the TestEvent.
func (b *TestEventBuilder) Build() TestEvent {
	return TestEvent{
		ID:   b.id,
		Type: b.typ,
		Data: b.data,
	}
}

// BuildN creates n events with sequential data.
func (b *TestEventBuilder) BuildN(n int) []rd.Event {
	events := make([]rd.Event, n)
	for i := 0; i < n; i++ {
		events[i] = TestEvent{
			ID:   b.id,
			Type: b.typ,
			Data: fmt.Sprintf("%s-%d", b.data, i+1),
		}
	}
	return events
}

// Common pre-built events for quick testing.
var (
	OrderCreatedEvent = TestEvent{ID: "order-1", Type: "OrderCreated"}
	OrderUpdatedEvent = TestEvent{ID: "order-1", Type: "OrderUpdated"}

	UserCreatedEvent = TestEvent{ID: "user-1", Type: "UserCreated"}
)
