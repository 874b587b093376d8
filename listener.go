package reactivedomain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// StreamListener replays a stream's history through an event handler and then,
// when a bus is attached, switches to live delivery. The stream may be an
// instance stream, a category stream ($ce-) or an event-type projection
// stream ($et-).
//
// Listeners serve read models; the aggregate core never uses one. A listener
// holds its subscription capability by reference rather than inheriting bus
// behavior, so the same listener works against any EventBus implementation.
type StreamListener struct {
	store EventStore
	bus   EventBus
	log   *logrus.Entry

	mu          sync.Mutex
	lastVersion map[string]uint64
	started     bool
	name        string
}

// ListenerOption configures a StreamListener.
type ListenerOption func(*StreamListener)

// WithListenerBus attaches the bus used for live delivery after catch-up.
// Without a bus the listener stops at the end of history.
func WithListenerBus(bus EventBus) ListenerOption {
	return func(l *StreamListener) { l.bus = bus }
}

// WithListenerLogger sets the listener's logger.
func WithListenerLogger(log *logrus.Entry) ListenerOption {
	return func(l *StreamListener) { l.log = log }
}

// NewStreamListener creates a listener reading history from store. name
// identifies the listener's bus subscription.
func NewStreamListener(name string, store EventStore, opts ...ListenerOption) (*StreamListener, error) {
	if store == nil {
		return nil, errors.New("event store is nil")
	}
	l := &StreamListener{
		name:        name,
		store:       store,
		log:         logrus.NewEntry(logrus.StandardLogger()).WithField("listener", name),
		lastVersion: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Start replays the named stream from the checkpoint (exclusive) through
// handler, in stream order, then subscribes for live events when a bus is
// attached. Catch-up respects ctx: bound it with a deadline when waiting for
// a busy stream to reach live.
//
// Live events for a stream version at or below the replayed checkpoint are
// dropped, so events published while catching up are not delivered twice.
func (l *StreamListener) Start(ctx context.Context, streamID string, checkpoint uint64, handler EventHandler) error {
	if handler == nil {
		return errors.New("handler is nil")
	}

	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return fmt.Errorf("listener %q already started", l.name)
	}
	l.started = true
	l.mu.Unlock()

	replayed, err := l.catchUp(ctx, streamID, checkpoint, handler)
	if err != nil {
		return err
	}
	l.log.WithFields(logrus.Fields{"stream": streamID, "replayed": replayed}).Debug("caught up")

	if l.bus == nil {
		return nil
	}

	live := NewEventHandlerFunc(func(ctx context.Context, event Event) error {
		source := StreamIDFromContext(ctx)
		if !streamCovers(streamID, source, event) {
			return nil
		}
		version := VersionFromContext(ctx)

		l.mu.Lock()
		if version <= l.lastVersion[source] {
			l.mu.Unlock()
			return nil
		}
		l.lastVersion[source] = version
		l.mu.Unlock()

		return handler.Handle(ctx, event)
	})

	return l.bus.Subscribe(ctx, l.name, live)
}

// Stop removes the live subscription, if any.
func (l *StreamListener) Stop() error {
	if l.bus == nil {
		return nil
	}
	return l.bus.Unsubscribe(l.name)
}

// streamCovers reports whether an event published on instance stream source
// belongs to the listened stream: an exact match, the category stream of
// source's aggregate type, or the by-event-type projection stream.
func streamCovers(listened, source string, event Event) bool {
	switch {
	case listened == source:
		return true
	case strings.HasPrefix(listened, "$ce-"):
		category := strings.TrimPrefix(listened, "$ce-")
		return strings.HasPrefix(source, category+"-")
	case strings.HasPrefix(listened, "$et-"):
		return strings.TrimPrefix(listened, "$et-") == event.EventType()
	default:
		return false
	}
}

func (l *StreamListener) catchUp(ctx context.Context, streamID string, checkpoint uint64, handler EventHandler) (int, error) {
	iter, err := l.store.LoadStreamFrom(ctx, streamID, checkpoint)
	if err != nil {
		if errors.Is(err, ErrStreamNotFound) {
			// nothing written yet; live subscription picks up from zero
			return 0, nil
		}
		return 0, err
	}

	replayed := 0
	for iter.Next(ctx) {
		env := iter.Value()
		if err := handler.Handle(WithEnvelope(ctx, env), env.Event); err != nil {
			return replayed, err
		}
		l.mu.Lock()
		if env.Version > l.lastVersion[env.StreamID] {
			l.lastVersion[env.StreamID] = env.Version
		}
		l.mu.Unlock()
		replayed++
	}
	return replayed, iter.Err()
}
