package fixtures

import (
	"context"
	"sync"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

// StoreSpy is a configurable mock EventStore for testing. It tracks calls and
// allows injecting custom behavior or failures.
type StoreSpy struct {
	mu sync.Mutex

	// Function overrides for custom behavior
	LoadStreamFn     func(ctx context.Context, streamID string) (*rd.Iterator[*rd.Envelope], error)
	LoadStreamFromFn func(ctx context.Context, streamID string, version uint64) (*rd.Iterator[*rd.Envelope], error)
	LoadFromAllFn    func(ctx context.Context, position uint64) (*rd.Iterator[*rd.Envelope], error)
	SaveFn           func(ctx context.Context, events []rd.Envelope, revision rd.StreamState) (rd.AppendResult, error)
	DeleteStreamFn   func(ctx context.Context, streamID string, hard bool) error
	CloseFn          func() error

	// Call tracking
	LoadStreamCalls     int
	LoadStreamFromCalls int
	LoadFromAllCalls    int
	SaveCalls           int
	DeleteStreamCalls   int
	CloseCalls          int

	// Captured arguments from last call
	LastSaveEvents   []rd.Envelope
	LastSaveRevision rd.StreamState
	LastLoadStreamID string

	// Pre-configured data
	events map[string][]*rd.Envelope // streamID -> envelopes

	// Error injection
	loadErr error
	saveErr error
}

var _ rd.EventStore = (*StoreSpy)(nil)

// NewStoreSpy creates a new StoreSpy with default behavior.
func NewStoreSpy() *StoreSpy {
	return &StoreSpy{
		events: make(map[string][]*rd.Envelope),
	}
}

// WithEvents pre-populates the store with events for a stream.
func (s *StoreSpy) WithEvents(streamID string, events ...*rd.Envelope) *StoreSpy {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[streamID] = events
	return s
}

// WithEventsFromSlice pre-populates the store with events from an Event slice.
func (s *StoreSpy) WithEventsFromSlice(streamID string, events ...rd.Event) *StoreSpy {
	envelopes := EnvelopesFromEvents(events...)
	for _, env := range envelopes {
		env.StreamID = streamID
	}
	return s.WithEvents(streamID, envelopes...)
}

// FailOnLoad configures the store to return an error on load operations.
func (s *StoreSpy) FailOnLoad(err error) *StoreSpy {
	s.loadErr = err
	return s
}

// FailOnSave configures the store to return an error on save operations.
func (s *StoreSpy) FailOnSave(err error) *StoreSpy {
	s.saveErr = err
	return s
}

// LoadStream implements EventStore.LoadStream.
func (s *StoreSpy) LoadStream(ctx context.Context, streamID string) (*rd.Iterator[*rd.Envelope], error) {
	s.mu.Lock()
	s.LoadStreamCalls++
	s.LastLoadStreamID = streamID
	s.mu.Unlock()

	if s.LoadStreamFn != nil {
		return s.LoadStreamFn(ctx, streamID)
	}

	if s.loadErr != nil {
		return nil, s.loadErr
	}

	s.mu.Lock()
	events := s.events[streamID]
	s.mu.Unlock()

	return SliceIterator(events), nil
}

// LoadStreamFrom implements EventStore.LoadStreamFrom.
func (s *StoreSpy) LoadStreamFrom(ctx context.Context, streamID string, version uint64) (*rd.Iterator[*rd.Envelope], error) {
	s.mu.Lock()
	s.LoadStreamFromCalls++
	s.LastLoadStreamID = streamID
	s.mu.Unlock()

	if s.LoadStreamFromFn != nil {
		return s.LoadStreamFromFn(ctx, streamID, version)
	}

	if s.loadErr != nil {
		return nil, s.loadErr
	}

	s.mu.Lock()
	events := s.events[streamID]
	s.mu.Unlock()

	var filtered []*rd.Envelope
	for _, e := range events {
		if e.Version > version {
			filtered = append(filtered, e)
		}
	}

	return SliceIterator(filtered), nil
}

// LoadFromAll implements EventStore.LoadFromAll.
func (s *StoreSpy) LoadFromAll(ctx context.Context, position uint64) (*rd.Iterator[*rd.Envelope], error) {
	s.mu.Lock()
	s.LoadFromAllCalls++
	s.mu.Unlock()

	if s.LoadFromAllFn != nil {
		return s.LoadFromAllFn(ctx, position)
	}

	if s.loadErr != nil {
		return nil, s.loadErr
	}

	s.mu.Lock()
	var all []*rd.Envelope
	for _, events := range s.events {
		all = append(all, events...)
	}
	s.mu.Unlock()

	if position < uint64(len(all)) {
		all = all[position:]
	} else {
		all = nil
	}

	return SliceIterator(all), nil
}

// Save implements EventStore.Save.
func (s *StoreSpy) Save(ctx context.Context, events []rd.Envelope, revision rd.StreamState) (rd.AppendResult, error) {
	s.mu.Lock()
	s.SaveCalls++
	s.LastSaveEvents = events
	s.LastSaveRevision = revision
	s.mu.Unlock()

	if s.SaveFn != nil {
		return s.SaveFn(ctx, events, revision)
	}

	if s.saveErr != nil {
		return rd.AppendResult{}, s.saveErr
	}

	if len(events) == 0 {
		return rd.AppendResult{Successful: true}, nil
	}

	streamID := events[0].StreamID

	s.mu.Lock()
	for i := range events {
		env := events[i]
		s.events[streamID] = append(s.events[streamID], &env)
	}
	nextVersion := uint64(len(s.events[streamID]))
	s.mu.Unlock()

	return rd.AppendResult{
		Successful:          true,
		NextExpectedVersion: nextVersion,
	}, nil
}

// DeleteStream implements EventStore.DeleteStream.
func (s *StoreSpy) DeleteStream(ctx context.Context, streamID string, hard bool) error {
	s.mu.Lock()
	s.DeleteStreamCalls++
	s.mu.Unlock()

	if s.DeleteStreamFn != nil {
		return s.DeleteStreamFn(ctx, streamID, hard)
	}

	s.mu.Lock()
	delete(s.events, streamID)
	s.mu.Unlock()
	return nil
}

// Close implements EventStore.Close.
func (s *StoreSpy) Close() error {
	s.mu.Lock()
	s.CloseCalls++
	s.mu.Unlock()

	if s.CloseFn != nil {
		return s.CloseFn()
	}
	return nil
}

// Reset clears all call counts and stored data.
func (s *StoreSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LoadStreamCalls = 0
	s.LoadStreamFromCalls = 0
	s.LoadFromAllCalls = 0
	s.SaveCalls = 0
	s.DeleteStreamCalls = 0
	s.CloseCalls = 0
	s.LastSaveEvents = nil
	s.LastSaveRevision = nil
	s.LastLoadStreamID = ""
	s.events = make(map[string][]*rd.Envelope)
	s.loadErr = nil
	s.saveErr = nil
}

// Pre-built store scenarios.

// EmptyStore returns a StoreSpy with no events.
func EmptyStore() *StoreSpy {
	return NewStoreSpy()
}

// FailingStore returns a StoreSpy that fails on all operations.
func FailingStore(err error) *StoreSpy {
	return NewStoreSpy().FailOnLoad(err).FailOnSave(err)
}

// ConcurrencyConflictStore returns a StoreSpy that returns a concurrency
// conflict on save.
func ConcurrencyConflictStore(streamID string, expected rd.StreamState, actual rd.Revision) *StoreSpy {
	store := NewStoreSpy()
	store.SaveFn = func(ctx context.Context, events []rd.Envelope, revision rd.StreamState) (rd.AppendResult, error) {
		return rd.AppendResult{}, &rd.StreamRevisionConflictError{
			Stream:   streamID,
			Expected: expected,
			Actual:   actual,
		}
	}
	return store
}

// StreamNotFoundStore returns a StoreSpy that returns ErrStreamNotFound on
// load.
func StreamNotFoundStore() *StoreSpy {
	store := NewStoreSpy()
	store.LoadStreamFn = func(ctx context.Context, streamID string) (*rd.Iterator[*rd.Envelope], error) {
		return nil, rd.ErrStreamNotFound
	}
	store.LoadStreamFromFn = func(ctx context.Context, streamID string, version uint64) (*rd.Iterator[*rd.Envelope], error) {
		return nil, rd.ErrStreamNotFound
	}
	return store
}
