package reactivedomain

import (
	"context"
	"fmt"
	"sort"
)

// EventHandler processes a single event. Implementations back projections,
// read models and process managers; the aggregate core never calls them.
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}

// NewEventHandlerFunc creates an EventHandler from a plain function.
func NewEventHandlerFunc(fn func(ctx context.Context, event Event) error) EventHandler {
	return eventHandlerFunc(fn)
}

type eventHandlerFunc func(ctx context.Context, event Event) error

func (h eventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return h(ctx, event)
}

// typedEventHandler is a strongly typed event handler for a specific event type T.
type typedEventHandler[T Event] func(ctx context.Context, ev T) error

// EventName returns the name of the event type T, used for routing.
func (h typedEventHandler[T]) EventName() string {
	var zero T
	return TypeName(zero)
}

// Handle processes the event if it matches T, otherwise returns ErrSkippedEvent.
func (h typedEventHandler[T]) Handle(ctx context.Context, event Event) error {
	ev, ok := event.(T)
	if !ok {
		return &ErrSkippedEvent{Event: event}
	}
	return h(ctx, ev)
}

// OnEvent creates a strongly-typed EventHandler for a specific event type.
// Handlers built this way carry their event name and can be grouped in an
// EventGroupProcessor for routing.
//
//	handler := OnEvent(func(ctx context.Context, ev AccountDeactivated) error {
//	    fmt.Println("deactivated:", ev.AggregateID())
//	    return nil
//	})
func OnEvent[T Event](fn func(ctx context.Context, ev T) error) EventHandler {
	return typedEventHandler[T](fn)
}

// EventGroupProcessor routes incoming events to the typed handler registered
// for their type name. Events with no handler are reported as skipped, which
// buses treat as non-fatal.
type EventGroupProcessor struct {
	handlers map[string]EventHandler
}

// NewEventGroupProcessor groups typed handlers created via OnEvent. Panics on
// a handler without an EventName or a duplicate registration: both are
// programming errors caught at wiring time.
func NewEventGroupProcessor(handlers ...EventHandler) *EventGroupProcessor {
	m := make(map[string]EventHandler, len(handlers))
	for _, h := range handlers {
		named, ok := h.(interface{ EventName() string })
		if !ok {
			panic(fmt.Errorf("handler %T does not expose EventName()", h))
		}

		name := named.EventName()
		if _, exists := m[name]; exists {
			panic(fmt.Errorf("handler for event %s: %w", name, ErrDuplicateHandler))
		}
		m[name] = h
	}

	return &EventGroupProcessor{handlers: m}
}

// Handle routes the event to the matching typed handler.
func (p *EventGroupProcessor) Handle(ctx context.Context, event Event) error {
	h, ok := p.handlers[TypeName(event)]
	if !ok {
		return &ErrSkippedEvent{Event: event}
	}
	return h.Handle(ctx, event)
}

// StreamFilter returns the sorted list of event names handled by this group,
// usable as a subscription filter.
func (p *EventGroupProcessor) StreamFilter() []string {
	out := make([]string, 0, len(p.handlers))
	for name := range p.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
