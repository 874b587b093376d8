package reactivedomain

import (
	"context"
	"fmt"
)

// QueryBus is a registry of query handlers keyed by query and result type.
// Handlers are executed through a typed GenericQueryGateway.
type QueryBus struct {
	handlers map[string]any
}

// NewQueryBus creates an empty bus ready for handler registration.
func NewQueryBus() *QueryBus {
	return &QueryBus{
		handlers: make(map[string]any),
	}
}

// HandlerOption reserves room for per-handler configuration such as timeouts
// or worker pools.
type HandlerOption func(*handlerSettings)

type handlerSettings struct {
}

// RegisterQueryHandler registers a handler for the (query, result) type pair.
// Registering the same pair twice panics: it is a wiring-time programming error.
func RegisterQueryHandler[T Query, R any](bus *QueryBus, handler QueryHandler[T, R], opts ...HandlerOption) {
	key := queryKey[T, R]()

	if _, exists := bus.handlers[key]; exists {
		panic(fmt.Sprintf("query handler already registered for %s", key))
	}

	settings := &handlerSettings{}
	for _, opt := range opts {
		opt(settings)
	}

	bus.handlers[key] = handler
}

func queryKey[T Query, R any]() string {
	var qry T
	var res R
	return fmt.Sprintf("%T|%T", qry, res)
}

// GenericQueryGateway is the typed execution surface over a QueryBus. It
// implements QueryHandler[T, R] itself, so it can stand in wherever a handler
// is expected.
type GenericQueryGateway[T Query, R any] struct {
	bus *QueryBus
}

// NewQueryGateway creates a typed gateway for one query type.
func NewQueryGateway[T Query, R any](bus *QueryBus) GenericQueryGateway[T, R] {
	return GenericQueryGateway[T, R]{bus: bus}
}

// HandleQuery executes the handler registered for (T, R).
func (g GenericQueryGateway[T, R]) HandleQuery(ctx context.Context, qry T) (R, error) {
	var zero R

	h, ok := g.bus.handlers[queryKey[T, R]()]
	if !ok {
		return zero, fmt.Errorf("no handler registered for query %T -> %T", qry, zero)
	}

	handler, ok := h.(QueryHandler[T, R])
	if !ok {
		return zero, fmt.Errorf("handler type mismatch for query %T -> %T", qry, zero)
	}

	return handler.HandleQuery(ctx, qry)
}
