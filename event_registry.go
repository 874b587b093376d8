package reactivedomain

import (
	"fmt"
	"sync"
)

// The registry maps event type names to factory functions so serializers can
// materialize concrete event types from stored records. Every event type an
// aggregate registers apply handlers for must also be registered here if it is
// to round-trip through a store that persists raw records.
var (
	registry   = map[string]func() Event{}
	registryMu sync.RWMutex
)

// RegisterEventByType registers an event factory under the event's own
// EventType name.
//
// Panics on a nil factory, a factory returning nil, or a duplicate
// registration. Registration happens at package initialization; failing loudly
// there beats a schema error during replay.
func RegisterEventByType(fn func() Event) {
	if fn == nil {
		panic("cannot register nil event factory")
	}
	registerEventName(fn().EventType(), fn)
}

// RegisterEventByName registers an event factory under a custom name,
// independent of EventType. Used when the wire name of an event diverged from
// its type name during schema evolution.
func RegisterEventByName(name string, fn func() Event) {
	registerEventName(name, fn)
}

// NewEventByName creates a new instance of a registered event by name.
func NewEventByName(name string) (Event, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("event not registered: %s", name)
	}
	ev := factory()
	if ev == nil {
		return nil, fmt.Errorf("factory returned nil for event: %s", name)
	}
	return ev, nil
}

func registerEventName(name string, fn func() Event) {
	if fn == nil {
		panic("cannot register nil event factory")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("event already registered: %s", name))
	}

	if ev := fn(); ev == nil {
		panic(fmt.Sprintf("factory returned nil for event: %s", name))
	}

	registry[name] = fn
}
