package reactivedomain

import "context"

// SubscriberOption configures a subscription on a concrete bus implementation.
type SubscriberOption func(cfg any)

// EventBus distributes published envelopes to registered subscribers. Delivery
// order across subscribers is not guaranteed; within one subscriber, envelopes
// are delivered in publish order.
type EventBus interface {
	// Publish hands envelopes to all current subscribers.
	Publish(ctx context.Context, envelopes ...*Envelope) error

	// Subscribe registers a named handler. Returns an error if the handler is
	// nil, the name is taken, or the bus is closed. The handler receives the
	// bare event; envelope metadata travels in the context (WithEnvelope).
	Subscribe(ctx context.Context, name string, handler EventHandler, opts ...SubscriberOption) error

	// Unsubscribe removes a named handler.
	Unsubscribe(name string) error

	// Errors returns a channel where async handling errors are sent.
	Errors() <-chan error

	// Close closes the bus and waits for all handlers to finish. Idempotent.
	Close() error
}
