// Package kurrentdb provides an EventBus over a KurrentDB $all subscription.
// Publish appends to the server, so the paired eventstore/kurrentdb package
// already acts as the publishing side; subscribers here receive everything
// the server commits, regardless of which process wrote it.
package kurrentdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kurrent-io/KurrentDB-Client-Go/kurrentdb"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

type eventBus struct {
	db     *kurrentdb.Client
	subs   map[string]*subscriber
	mu     sync.RWMutex
	closed bool
	errs   chan error
	wg     sync.WaitGroup
}

type subscriber struct {
	name    string
	opt     kurrentdb.SubscribeToAllOptions
	handler rd.EventHandler
	cancel  context.CancelFunc
}

// NewEventBus creates a KurrentDB-backed event bus over an existing client.
func NewEventBus(db *kurrentdb.Client) rd.EventBus {
	return &eventBus{
		db:   db,
		subs: make(map[string]*subscriber),
		errs: make(chan error, 64),
	}
}

// Publish appends each envelope to its stream without a revision requirement.
// Subscribers on any connected process observe the append through $all.
func (b *eventBus) Publish(ctx context.Context, envelopes ...*rd.Envelope) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return errors.New("eventbus is closed")
	}

	for _, env := range envelopes {
		payload, err := json.Marshal(env.Event)
		if err != nil {
			return err
		}
		metadata, err := json.Marshal(map[string]any{
			"$correlationId": env.CorrelationID.String(),
			"$causationId":   env.CausationID.String(),
			"custom":         env.Metadata,
		})
		if err != nil {
			return err
		}

		_, err = b.db.AppendToStream(ctx, env.StreamID, kurrentdb.AppendToStreamOptions{
			StreamState: kurrentdb.Any{},
		}, kurrentdb.EventData{
			EventID:     env.EventID,
			EventType:   env.Event.EventType(),
			ContentType: kurrentdb.ContentTypeJson,
			Data:        payload,
			Metadata:    metadata,
		})
		if err != nil {
			return rd.WrapEventStoreError(err)
		}
	}
	return nil
}

func (b *eventBus) Subscribe(ctx context.Context, name string, handler rd.EventHandler, opts ...rd.SubscriberOption) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("eventbus is closed")
	}
	if _, exists := b.subs[name]; exists {
		b.mu.Unlock()
		return fmt.Errorf("subscriber %q already exists", name)
	}

	workerCtx, cancel := context.WithCancel(context.Background())

	opt := kurrentdb.SubscribeToAllOptions{
		From: kurrentdb.End{},
	}
	for _, o := range opts {
		o(&opt)
	}

	sub := &subscriber{name: name, handler: handler, cancel: cancel, opt: opt}
	b.subs[name] = sub
	b.mu.Unlock()

	b.wg.Add(1)
	go b.runSubscriber(workerCtx, sub)

	go func() {
		<-ctx.Done()
		b.removeSubscriber(name)
	}()

	return nil
}

func (b *eventBus) Unsubscribe(name string) error {
	b.mu.RLock()
	_, ok := b.subs[name]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no subscriber with name %q", name)
	}
	b.removeSubscriber(name)
	return nil
}

func (b *eventBus) runSubscriber(ctx context.Context, s *subscriber) {
	defer b.wg.Done()

	stream, err := b.db.SubscribeToAll(ctx, s.opt)
	if err != nil {
		b.reportError(fmt.Errorf("subscriber %q: %w", s.name, err))
		return
	}
	defer stream.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		subscriptionEvent := stream.Recv()

		if dropped := subscriptionEvent.SubscriptionDropped; dropped != nil {
			b.reportError(fmt.Errorf("subscriber %q dropped: %w", s.name, dropped.Error))
			return
		}

		kEvent := subscriptionEvent.EventAppeared
		if kEvent == nil || kEvent.Event == nil {
			// confirmation or checkpoint notification
			continue
		}

		env, err := toEnvelope(kEvent)
		if err != nil {
			b.reportError(fmt.Errorf("subscriber %q: %w", s.name, err))
			continue
		}

		if err := s.handler.Handle(rd.WithEnvelope(ctx, env), env.Event); err != nil {
			b.reportError(fmt.Errorf("subscriber %q: %w", s.name, err))
		}
	}
}

func toEnvelope(resolved *kurrentdb.ResolvedEvent) (*rd.Envelope, error) {
	recorded := resolved.Event

	event, err := rd.NewEventByName(recorded.EventType)
	if err != nil {
		return nil, fmt.Errorf("cannot create event %q: %w", recorded.EventType, err)
	}
	if err := json.Unmarshal(recorded.Data, event); err != nil {
		return nil, fmt.Errorf("cannot unmarshal event %q: %w", recorded.EventType, err)
	}

	env := &rd.Envelope{
		EventID:    recorded.EventID,
		StreamID:   recorded.StreamID,
		Event:      event,
		Version:    recorded.EventNumber + 1,
		OccurredAt: recorded.CreatedDate,
	}

	var meta struct {
		CorrelationID string         `json:"$correlationId"`
		CausationID   string         `json:"$causationId"`
		Custom        map[string]any `json:"custom"`
	}
	if len(recorded.UserMetadata) > 0 && json.Unmarshal(recorded.UserMetadata, &meta) == nil {
		if id, err := uuid.Parse(meta.CorrelationID); err == nil {
			env.CorrelationID = id
		}
		if id, err := uuid.Parse(meta.CausationID); err == nil {
			env.CausationID = id
		}
		env.Metadata = meta.Custom
	}

	return env, nil
}

func (b *eventBus) reportError(err error) {
	select {
	case b.errs <- err:
	default:
	}
}

func (b *eventBus) removeSubscriber(name string) {
	b.mu.Lock()
	sub, ok := b.subs[name]
	if ok {
		delete(b.subs, name)
		sub.cancel()
	}
	b.mu.Unlock()
}

func (b *eventBus) Errors() <-chan error {
	return b.errs
}

func (b *eventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	for _, sub := range b.subs {
		sub.cancel()
	}
	b.subs = nil
	b.mu.Unlock()

	b.wg.Wait()
	close(b.errs)
	return nil
}

// WithFromStart makes the subscription replay from the beginning of $all
// instead of joining at the live end.
func WithFromStart() rd.SubscriberOption {
	return func(cfg any) {
		opts, ok := cfg.(*kurrentdb.SubscribeToAllOptions)
		if !ok {
			panic(fmt.Sprintf("WithFromStart: expected *SubscribeToAllOptions, got %T", cfg))
		}
		opts.From = kurrentdb.Start{}
	}
}

// WithFilterEvents filters the subscription server-side by event type prefix.
func WithFilterEvents(filteredEvents []string) rd.SubscriberOption {
	return func(cfg any) {
		opts, ok := cfg.(*kurrentdb.SubscribeToAllOptions)
		if !ok {
			panic(fmt.Sprintf("WithFilterEvents: expected *SubscribeToAllOptions, got %T", cfg))
		}
		opts.Filter = &kurrentdb.SubscriptionFilter{
			Type:     kurrentdb.EventFilterType,
			Prefixes: filteredEvents,
		}
	}
}

// WithFilterStream filters the subscription server-side by stream prefix.
func WithFilterStream(streams []string) rd.SubscriberOption {
	return func(cfg any) {
		opts, ok := cfg.(*kurrentdb.SubscribeToAllOptions)
		if !ok {
			panic(fmt.Sprintf("WithFilterStream: expected *SubscribeToAllOptions, got %T", cfg))
		}
		opts.Filter = &kurrentdb.SubscriptionFilter{
			Type:     kurrentdb.StreamFilterType,
			Prefixes: streams,
		}
	}
}
