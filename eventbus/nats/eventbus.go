// Package nats provides an EventBus over NATS core publish/subscribe, for
// fan-out across processes without a shared event store connection. Envelopes
// travel as JSON records on one subject per stream under a common prefix;
// subscribers listen to the whole prefix and decode through the event
// registry.
//
// Delivery is at-most-once per connected subscriber, matching the in-memory
// bus. Catch-up remains the store's job (StreamListener replays history before
// going live).
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	natsgo "github.com/nats-io/nats.go"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

const defaultSubjectPrefix = "events"

// Config configures the bus.
type Config struct {
	// SubjectPrefix for event subjects, e.g. "orders" -> orders.<stream>.
	// Defaults to "events".
	SubjectPrefix string
}

type subscriber struct {
	name string
	sub  *natsgo.Subscription
}

// EventBus is a NATS-backed bus over an existing connection. The connection
// is borrowed; Close drains this bus's subscriptions but leaves the
// connection open for its owner.
type EventBus struct {
	nc         *natsgo.Conn
	prefix     string
	serializer rd.Serializer

	mu     sync.Mutex
	subs   map[string]*subscriber
	closed bool
	errs   chan error
}

var _ rd.EventBus = (*EventBus)(nil)

// NewEventBus creates a bus over nc.
func NewEventBus(nc *natsgo.Conn, cfg Config) (*EventBus, error) {
	if nc == nil {
		return nil, errors.New("nats connection cannot be nil")
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}

	return &EventBus{
		nc:         nc,
		prefix:     prefix,
		serializer: rd.JSONSerializer{},
		subs:       make(map[string]*subscriber),
		errs:       make(chan error, 64),
	}, nil
}

// subjectFor maps a stream id onto a NATS subject token. Dots are token
// separators in NATS, so they are folded into underscores.
func (b *EventBus) subjectFor(streamID string) string {
	return b.prefix + "." + strings.ReplaceAll(streamID, ".", "_")
}

// Publish sends each envelope on its stream's subject.
func (b *EventBus) Publish(_ context.Context, envelopes ...*rd.Envelope) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return errors.New("eventbus is closed")
	}

	for _, env := range envelopes {
		rec, err := b.serializer.Serialize(*env)
		if err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := b.nc.Publish(b.subjectFor(env.StreamID), data); err != nil {
			return fmt.Errorf("publish to %q: %w", env.StreamID, err)
		}
	}
	return nil
}

// Subscribe registers a named handler receiving every envelope published
// under the bus prefix. The subscription ends when ctx is cancelled,
// Unsubscribe is called, or the bus closes.
func (b *EventBus) Subscribe(ctx context.Context, name string, handler rd.EventHandler, _ ...rd.SubscriberOption) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New("eventbus is closed")
	}
	if _, exists := b.subs[name]; exists {
		return fmt.Errorf("subscriber %q already exists", name)
	}

	sub, err := b.nc.Subscribe(b.prefix+".>", func(msg *natsgo.Msg) {
		var rec rd.Record
		if err := json.Unmarshal(msg.Data, &rec); err != nil {
			b.reportError(fmt.Errorf("subscriber %q: decode record: %w", name, err))
			return
		}
		env, err := b.serializer.Deserialize(rec)
		if err != nil {
			b.reportError(fmt.Errorf("subscriber %q: %w", name, err))
			return
		}
		if err := handler.Handle(rd.WithEnvelope(ctx, env), env.Event); err != nil {
			b.reportError(fmt.Errorf("handler %q: %w", name, err))
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %q: %w", name, err)
	}

	b.subs[name] = &subscriber{name: name, sub: sub}

	go func() {
		<-ctx.Done()
		_ = b.Unsubscribe(name)
	}()

	return nil
}

// Unsubscribe removes a named handler.
func (b *EventBus) Unsubscribe(name string) error {
	b.mu.Lock()
	s, ok := b.subs[name]
	if ok {
		delete(b.subs, name)
	}
	b.mu.Unlock()

	if !ok {
		return fmt.Errorf("no subscriber with name %q", name)
	}
	return s.sub.Unsubscribe()
}

func (b *EventBus) Errors() <-chan error {
	return b.errs
}

// Close drains this bus's subscriptions. The connection stays open. Drain is
// asynchronous, so in-flight callbacks may still fire afterwards; their
// errors are dropped once the bus is closed.
func (b *EventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	close(b.errs)
	b.mu.Unlock()

	for _, s := range subs {
		_ = s.sub.Drain()
	}
	return nil
}

// reportError sends on errs unless the bus has closed. The send happens under
// the mutex so it can never race Close's close(errs).
func (b *EventBus) reportError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.errs <- err:
	default:
		// Drop error if channel full
	}
}
