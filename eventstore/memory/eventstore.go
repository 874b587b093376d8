// Package memory provides an in-memory event store, primarily for tests and
// examples. It honors the full store contract: revision checks, soft and hard
// stream deletion, and resolution of $ce- and $et- projection streams from the
// instance streams it holds.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

var _ rd.EventStore = (*Store)(nil)

// Store is an in-memory EventStore. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	global  []*rd.Envelope
	streams map[string][]*rd.Envelope
	deleted map[string]bool
	publish rd.EventBus
	closed  bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithPublishTo forwards successfully appended envelopes to the given bus,
// wiring live subscribers to the store without an external relay.
func WithPublishTo(bus rd.EventBus) StoreOption {
	return func(s *Store) { s.publish = bus }
}

// NewStore creates an empty in-memory store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		streams: make(map[string][]*rd.Envelope),
		deleted: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save appends the batch to the stream named by the envelopes, enforcing the
// revision requirement. All envelopes must target the same stream.
func (s *Store) Save(ctx context.Context, events []rd.Envelope, revision rd.StreamState) (rd.AppendResult, error) {
	if len(events) == 0 {
		return rd.AppendResult{Successful: true}, nil
	}

	streamID := events[0].StreamID
	for i, env := range events {
		if env.StreamID != streamID {
			return rd.AppendResult{}, fmt.Errorf(
				"save to stream %q: %w: event %d targets stream %q",
				streamID, rd.ErrInvalidEventBatch, i, env.StreamID)
		}
	}

	s.mu.Lock()
	if s.deleted[streamID] {
		s.mu.Unlock()
		return rd.AppendResult{}, fmt.Errorf("stream %q: %w", streamID, rd.ErrStreamDeleted)
	}

	currentRevision := uint64(len(s.streams[streamID]))

	switch rev := revision.(type) {
	case rd.Any:
		// no concurrency check
	case rd.NoStream:
		if currentRevision != 0 {
			s.mu.Unlock()
			return rd.AppendResult{}, &rd.StreamRevisionConflictError{
				Stream:   streamID,
				Expected: rd.NoStream{},
				Actual:   rd.Revision(currentRevision),
			}
		}
	case rd.StreamExists:
		if currentRevision == 0 {
			s.mu.Unlock()
			return rd.AppendResult{}, fmt.Errorf("stream %q: %w", streamID, rd.ErrStreamNotFound)
		}
	case rd.Revision:
		if currentRevision != uint64(rev) {
			s.mu.Unlock()
			return rd.AppendResult{}, &rd.StreamRevisionConflictError{
				Stream:   streamID,
				Expected: rev,
				Actual:   rd.Revision(currentRevision),
			}
		}
	default:
		s.mu.Unlock()
		return rd.AppendResult{}, fmt.Errorf("stream %q: %w", streamID, rd.ErrInvalidRevision)
	}

	appended := make([]*rd.Envelope, 0, len(events))
	for i := range events {
		env := events[i]
		appended = append(appended, &env)
	}
	s.streams[streamID] = append(s.streams[streamID], appended...)
	s.global = append(s.global, appended...)
	next := uint64(len(s.streams[streamID]))
	s.mu.Unlock()

	if s.publish != nil {
		if err := s.publish.Publish(ctx, appended...); err != nil {
			return rd.AppendResult{Successful: true, NextExpectedVersion: next}, err
		}
	}

	return rd.AppendResult{Successful: true, NextExpectedVersion: next}, nil
}

// LoadStream loads all events of the named stream. Category ($ce-) and
// by-event-type ($et-) streams are resolved against the instance streams.
func (s *Store) LoadStream(ctx context.Context, streamID string) (*rd.Iterator[*rd.Envelope], error) {
	return s.LoadStreamFrom(ctx, streamID, 0)
}

// LoadStreamFrom loads events after the given checkpoint. For instance streams
// the checkpoint is a stream version; for projection streams it is a
// zero-based offset into the projected sequence.
func (s *Store) LoadStreamFrom(ctx context.Context, streamID string, version uint64) (*rd.Iterator[*rd.Envelope], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if strings.HasPrefix(streamID, "$ce-") || strings.HasPrefix(streamID, "$et-") {
		projected := s.projectLocked(streamID)
		if uint64(len(projected)) <= version {
			return rd.NewSliceIterator([]*rd.Envelope(nil)), nil
		}
		return rd.NewSliceIterator(projected[version:]), nil
	}

	if s.deleted[streamID] {
		return nil, fmt.Errorf("stream %q: %w", streamID, rd.ErrStreamDeleted)
	}

	events, ok := s.streams[streamID]
	if !ok {
		return nil, fmt.Errorf("stream %q: %w", streamID, rd.ErrStreamNotFound)
	}

	tail := make([]*rd.Envelope, 0, len(events))
	for _, env := range events {
		if env.Version > version {
			tail = append(tail, env)
		}
	}
	return rd.NewSliceIterator(tail), nil
}

// LoadFromAll loads events across all streams in append order, starting at the
// given global position. Soft-deleted streams stay visible here for audit.
func (s *Store) LoadFromAll(ctx context.Context, position uint64) (*rd.Iterator[*rd.Envelope], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if uint64(len(s.global)) <= position {
		return rd.NewSliceIterator([]*rd.Envelope(nil)), nil
	}
	all := make([]*rd.Envelope, len(s.global)-int(position))
	copy(all, s.global[position:])
	return rd.NewSliceIterator(all), nil
}

// DeleteStream tombstones the named stream. Soft deletion keeps the events in
// the global sequence for audit; hard deletion removes them everywhere.
// Either way the stream can no longer be loaded or appended to.
func (s *Store) DeleteStream(ctx context.Context, streamID string, hard bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.streams[streamID]
	if !exists {
		if s.deleted[streamID] {
			return fmt.Errorf("stream %q: %w", streamID, rd.ErrStreamDeleted)
		}
		return fmt.Errorf("stream %q: %w", streamID, rd.ErrStreamNotFound)
	}

	if hard {
		kept := s.global[:0]
		for _, env := range s.global {
			if env.StreamID != streamID {
				kept = append(kept, env)
			}
		}
		s.global = kept
		delete(s.streams, streamID)
	}

	s.deleted[streamID] = true
	if !hard {
		// events remain in the global sequence for LoadFromAll audit reads
		delete(s.streams, streamID)
	}
	return nil
}

// Close is a no-op for the in-memory store. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// projectLocked resolves a $ce- or $et- stream against the global sequence.
// Caller holds at least a read lock.
func (s *Store) projectLocked(streamID string) []*rd.Envelope {
	var match func(env *rd.Envelope) bool
	switch {
	case strings.HasPrefix(streamID, "$ce-"):
		category := strings.TrimPrefix(streamID, "$ce-") + "-"
		match = func(env *rd.Envelope) bool {
			return strings.HasPrefix(env.StreamID, category)
		}
	case strings.HasPrefix(streamID, "$et-"):
		eventType := strings.TrimPrefix(streamID, "$et-")
		match = func(env *rd.Envelope) bool {
			return env.Event.EventType() == eventType
		}
	}

	var projected []*rd.Envelope
	for _, env := range s.global {
		if !s.deleted[env.StreamID] && match(env) {
			projected = append(projected, env)
		}
	}
	return projected
}
