package fixtures

import (
	"context"
	"sync"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

// EventBusSpy is a configurable mock EventBus for testing. It tracks
// subscriptions and publications and can deliver published envelopes
// synchronously to its subscribers.
type EventBusSpy struct {
	mu sync.Mutex

	// Function overrides
	PublishFn   func(ctx context.Context, envelopes ...*rd.Envelope) error
	SubscribeFn func(ctx context.Context, name string, handler rd.EventHandler, options ...rd.SubscriberOption) error
	CloseFn     func() error

	// Call tracking
	PublishCalls   int
	SubscribeCalls int
	CloseCalls     int

	// Captured data
	Published     []*rd.Envelope
	Subscriptions []Subscription

	// Deliver makes Publish hand envelopes to subscribers synchronously.
	Deliver bool

	// Error injection
	publishErr   error
	subscribeErr error
	errChan      chan error
	closed       bool
}

var _ rd.EventBus = (*EventBusSpy)(nil)

// Subscription captures details of a Subscribe call.
type Subscription struct {
	Name    string
	Handler rd.EventHandler
}

// NewEventBusSpy creates a new EventBusSpy.
func NewEventBusSpy() *EventBusSpy {
	return &EventBusSpy{
		errChan: make(chan error, 10),
	}
}

// WithDelivery makes Publish deliver envelopes synchronously to subscribers.
func (b *EventBusSpy) WithDelivery() *EventBusSpy {
	b.Deliver = true
	return b
}

// FailOnPublish configures the bus to return an error on Publish.
func (b *EventBusSpy) FailOnPublish(err error) *EventBusSpy {
	b.publishErr = err
	return b
}

// FailOnSubscribe configures the bus to return an error on Subscribe.
func (b *EventBusSpy) FailOnSubscribe(err error) *EventBusSpy {
	b.subscribeErr = err
	return b
}

// Publish implements EventBus.Publish.
func (b *EventBusSpy) Publish(ctx context.Context, envelopes ...*rd.Envelope) error {
	b.mu.Lock()
	b.PublishCalls++
	b.Published = append(b.Published, envelopes...)
	subs := append([]Subscription(nil), b.Subscriptions...)
	deliver := b.Deliver
	b.mu.Unlock()

	if b.PublishFn != nil {
		return b.PublishFn(ctx, envelopes...)
	}
	if b.publishErr != nil {
		return b.publishErr
	}

	if deliver {
		for _, env := range envelopes {
			for _, sub := range subs {
				if err := sub.Handler.Handle(rd.WithEnvelope(ctx, env), env.Event); err != nil {
					b.SendError(err)
				}
			}
		}
	}
	return nil
}

// Subscribe implements EventBus.Subscribe.
func (b *EventBusSpy) Subscribe(ctx context.Context, name string, handler rd.EventHandler, options ...rd.SubscriberOption) error {
	b.mu.Lock()
	b.SubscribeCalls++
	b.Subscriptions = append(b.Subscriptions, Subscription{
		Name:    name,
		Handler: handler,
	})
	b.mu.Unlock()

	if b.SubscribeFn != nil {
		return b.SubscribeFn(ctx, name, handler, options...)
	}

	return b.subscribeErr
}

// Unsubscribe implements EventBus.Unsubscribe.
func (b *EventBusSpy) Unsubscribe(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.Subscriptions[:0]
	for _, sub := range b.Subscriptions {
		if sub.Name != name {
			kept = append(kept, sub)
		}
	}
	b.Subscriptions = kept
	return nil
}

// Errors implements EventBus.Errors.
func (b *EventBusSpy) Errors() <-chan error {
	return b.errChan
}

// Close implements EventBus.Close.
func (b *EventBusSpy) Close() error {
	b.mu.Lock()
	b.CloseCalls++
	if !b.closed {
		b.closed = true
		close(b.errChan)
	}
	b.mu.Unlock()

	if b.CloseFn != nil {
		return b.CloseFn()
	}
	return nil
}

// SendError sends an error to the error channel for testing error handling.
func (b *EventBusSpy) SendError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		select {
		case b.errChan <- err:
		default:
		}
	}
}

// HasSubscription checks if a subscription with the given name exists.
func (b *EventBusSpy) HasSubscription(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.Subscriptions {
		if sub.Name == name {
			return true
		}
	}
	return false
}

// EventHandlerSpy is a configurable mock EventHandler for testing.
type EventHandlerSpy struct {
	mu sync.Mutex

	// Function override
	HandleFn func(ctx context.Context, event rd.Event) error

	// Call tracking
	HandleCalls int

	// Captured events
	ReceivedEvents []rd.Event

	// Error injection
	handleErr error
}

var _ rd.EventHandler = (*EventHandlerSpy)(nil)

// NewEventHandlerSpy creates a new EventHandlerSpy.
func NewEventHandlerSpy() *EventHandlerSpy {
	return &EventHandlerSpy{}
}

// FailOnHandle configures the handler to return an error.
func (h *EventHandlerSpy) FailOnHandle(err error) *EventHandlerSpy {
	h.handleErr = err
	return h
}

// Handle implements EventHandler.Handle.
func (h *EventHandlerSpy) Handle(ctx context.Context, event rd.Event) error {
	h.mu.Lock()
	h.HandleCalls++
	h.ReceivedEvents = append(h.ReceivedEvents, event)
	h.mu.Unlock()

	if h.HandleFn != nil {
		return h.HandleFn(ctx, event)
	}

	return h.handleErr
}

// LastEvent returns the most recently received event, or nil if none.
func (h *EventHandlerSpy) LastEvent() rd.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.ReceivedEvents) == 0 {
		return nil
	}
	return h.ReceivedEvents[len(h.ReceivedEvents)-1]
}

// EventCount returns the number of events received.
func (h *EventHandlerSpy) EventCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ReceivedEvents)
}
