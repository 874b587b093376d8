package reactivedomain

import "fmt"

// ApplyHandler mutates aggregate state for one concrete event type.
type ApplyHandler interface {
	// EventName returns the type name the handler dispatches on.
	EventName() string

	// Apply folds the event into aggregate state. The event is guaranteed to
	// be of the handler's concrete type.
	Apply(event Event)
}

type genericApplyHandler[T Event] struct {
	applyFunc func(event T)
}

// OnApply creates an ApplyHandler for the event type inferred from the
// function argument. Handlers built this way are registered once, at aggregate
// construction, via NewApplier.
func OnApply[T Event](applyFunc func(event T)) ApplyHandler {
	return &genericApplyHandler[T]{applyFunc: applyFunc}
}

func (h *genericApplyHandler[T]) EventName() string {
	var zero T
	return TypeName(zero)
}

func (h *genericApplyHandler[T]) Apply(e Event) {
	h.applyFunc(e.(T))
}

// Applier dispatches an event to the Apply handler registered for its type.
// An event with no registered handler is a schema defect, never skipped:
// skipping would desynchronize derived state from true history.
type Applier func(event Event) error

// NewApplier builds the dispatch table once, at aggregate-type initialization.
// It panics on a duplicate handler, which is a programming error.
func NewApplier(handlers ...ApplyHandler) Applier {
	table := make(map[string]ApplyHandler, len(handlers))
	for _, h := range handlers {
		name := h.EventName()
		if _, exists := table[name]; exists {
			panic(fmt.Sprintf("duplicate apply handler for event %s", name))
		}
		table[name] = h
	}

	return func(event Event) error {
		h, ok := table[TypeName(event)]
		if !ok {
			return &UnregisteredEventError{EventName: TypeName(event)}
		}
		h.Apply(event)
		return nil
	}
}
