// Package memory provides an in-process EventBus. Envelopes are fanned out to
// per-subscriber buffered channels; a slow subscriber drops envelopes rather
// than blocking publishers.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

type subscriber struct {
	name      string
	handler   rd.EventHandler
	envelopes chan *rd.Envelope
	cancel    context.CancelFunc
}

type eventBus struct {
	mu         sync.RWMutex
	subs       map[string]*subscriber
	closed     bool
	errs       chan error
	wg         sync.WaitGroup
	bufferSize int
}

// NewEventBus constructs a bus with the given per-subscriber buffer size.
func NewEventBus(bufferSize int) rd.EventBus {
	return &eventBus{
		subs:       make(map[string]*subscriber),
		errs:       make(chan error, 64),
		bufferSize: bufferSize,
	}
}

// Publish fans the envelopes out to all current subscribers. Within one
// subscriber, envelopes arrive in publish order.
func (b *eventBus) Publish(_ context.Context, envelopes ...*rd.Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.New("eventbus is closed")
	}

	for _, env := range envelopes {
		for _, s := range b.subs {
			select {
			case s.envelopes <- env:
			default:
				// Drop envelope if subscriber is busy
			}
		}
	}
	return nil
}

// Subscribe registers a named handler. The subscription ends when ctx is
// cancelled, Unsubscribe is called, or the bus closes.
func (b *eventBus) Subscribe(ctx context.Context, name string, handler rd.EventHandler, _ ...rd.SubscriberOption) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New("eventbus is closed")
	}

	if _, exists := b.subs[name]; exists {
		return fmt.Errorf("handler with name %q already registered", name)
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	s := &subscriber{
		name:      name,
		handler:   handler,
		envelopes: make(chan *rd.Envelope, b.bufferSize),
		cancel:    cancel,
	}

	b.subs[name] = s

	b.wg.Add(1)
	go b.runSubscriber(workerCtx, s)

	// Automatically remove when the caller's ctx finishes
	go func() {
		<-ctx.Done()
		b.removeSubscriber(name)
	}()

	return nil
}

// Unsubscribe removes a named handler and stops its worker.
func (b *eventBus) Unsubscribe(name string) error {
	b.mu.RLock()
	_, ok := b.subs[name]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no handler with name %q", name)
	}
	b.removeSubscriber(name)
	return nil
}

func (b *eventBus) Errors() <-chan error {
	return b.errs
}

// Close shuts down the bus and waits for all workers.
func (b *eventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	for name, s := range b.subs {
		s.cancel()
		close(s.envelopes)
		delete(b.subs, name)
	}
	b.mu.Unlock()

	b.wg.Wait()
	close(b.errs)

	return nil
}

// runSubscriber processes envelopes for a single handler. Envelope fields
// travel to the handler through the context.
func (b *eventBus) runSubscriber(ctx context.Context, s *subscriber) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case env, ok := <-s.envelopes:
			if !ok {
				return
			}

			if err := s.handler.Handle(rd.WithEnvelope(ctx, env), env.Event); err != nil {
				select {
				case b.errs <- fmt.Errorf("handler %q: %w", s.name, err):
				default:
					// Drop error if channel full
				}
			}
		}
	}
}

func (b *eventBus) removeSubscriber(name string) {
	b.mu.Lock()
	s, ok := b.subs[name]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subs, name)
	b.mu.Unlock()

	s.cancel()
	close(s.envelopes)
}
