package reactivedomain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// ---------------------- Test helpers / stubs ----------------------

type stubEvent struct {
	Agg string `json:"agg"`
	Typ string `json:"typ"`
	Val string `json:"val"`
}

func (e stubEvent) AggregateID() string { return e.Agg }
func (e stubEvent) EventType() string   { return e.Typ }

type plainCommand struct {
	Target string
}

func (c plainCommand) AggregateID() string { return c.Target }

type correlatedStubCommand struct {
	CorrelatedCommand
	Target string
}

func (c correlatedStubCommand) AggregateID() string { return c.Target }

type testStore struct {
	loadFn func(ctx context.Context, stream string, from uint64) (*Iterator[*Envelope], error)
	saveFn func(ctx context.Context, events []Envelope, revision StreamState) (AppendResult, error)

	loadCalled int
	saveCalled int
}

func (s *testStore) Save(ctx context.Context, events []Envelope, revision StreamState) (AppendResult, error) {
	s.saveCalled++
	return s.saveFn(ctx, events, revision)
}

func (s *testStore) LoadStream(ctx context.Context, id string) (*Iterator[*Envelope], error) {
	return s.LoadStreamFrom(ctx, id, 0)
}

func (s *testStore) LoadStreamFrom(ctx context.Context, id string, version uint64) (*Iterator[*Envelope], error) {
	s.loadCalled++
	return s.loadFn(ctx, id, version)
}

func (s *testStore) LoadFromAll(ctx context.Context, position uint64) (*Iterator[*Envelope], error) {
	return NewSliceIterator([]*Envelope(nil)), nil
}

func (s *testStore) DeleteStream(ctx context.Context, streamID string, hard bool) error {
	return nil
}

func (s *testStore) Close() error { return nil }

func priorEnvelopes(stream string, n int) []*Envelope {
	envs := make([]*Envelope, n)
	for i := range envs {
		envs[i] = &Envelope{
			EventID:    uuid.New(),
			StreamID:   stream,
			Event:      stubEvent{Agg: stream, Typ: "old"},
			Version:    uint64(i + 1),
			OccurredAt: time.Now(),
		}
	}
	return envs
}

// ---------------------- Tests ----------------------

func TestNewCommandHandler_LoadError(t *testing.T) {
	store := &testStore{}
	store.loadFn = func(ctx context.Context, stream string, from uint64) (*Iterator[*Envelope], error) {
		return nil, errors.New("db read failure")
	}
	store.saveFn = func(ctx context.Context, events []Envelope, revision StreamState) (AppendResult, error) {
		t.Fatalf("Save should not be called when load fails")
		return AppendResult{}, nil
	}

	handler := NewCommandHandler(
		store,
		0,
		func(s int, e *Envelope) int { return s },
		func(s int, c plainCommand) ([]Event, error) { return nil, nil },
	)

	_, err := handler(t.Context(), plainCommand{Target: "a"})
	if err == nil {
		t.Fatalf("expected error when LoadStream fails")
	}
	if store.loadCalled != 1 {
		t.Fatalf("expected load called once, got %d", store.loadCalled)
	}
}

func TestNewCommandHandler_MissingStreamIsEmptyState(t *testing.T) {
	store := &testStore{}
	store.loadFn = func(ctx context.Context, stream string, from uint64) (*Iterator[*Envelope], error) {
		return nil, ErrStreamNotFound
	}
	store.saveFn = func(ctx context.Context, events []Envelope, revision StreamState) (AppendResult, error) {
		if _, ok := revision.(NoStream); !ok {
			t.Fatalf("fresh stream should append under NoStream, got %T", revision)
		}
		return AppendResult{Successful: true, NextExpectedVersion: uint64(len(events))}, nil
	}

	handler := NewCommandHandler(
		store,
		0,
		func(s int, e *Envelope) int { return s + 1 },
		func(s int, c plainCommand) ([]Event, error) {
			if s != 0 {
				t.Fatalf("state = %d, want 0 for a missing stream", s)
			}
			return []Event{stubEvent{Agg: c.Target, Typ: "created"}}, nil
		},
	)

	res, err := handler(t.Context(), plainCommand{Target: "a"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.Successful || res.NextExpectedVersion != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestNewCommandHandler_IteratorErr(t *testing.T) {
	store := &testStore{}
	store.loadFn = func(ctx context.Context, stream string, from uint64) (*Iterator[*Envelope], error) {
		return NewIterator(func(ctx context.Context) (*Envelope, error) {
			return nil, errors.New("iterator fail")
		}), nil
	}

	handler := NewCommandHandler(
		store,
		0,
		func(s int, e *Envelope) int { return s },
		func(s int, c plainCommand) ([]Event, error) { return nil, nil },
	)

	_, err := handler(t.Context(), plainCommand{Target: "a"})
	if err == nil || err.Error() == "" {
		t.Fatalf("expected iterator error to be returned")
	}
}

func TestNewCommandHandler_NoEvents_NoSave(t *testing.T) {
	store := &testStore{}
	store.loadFn = func(ctx context.Context, stream string, from uint64) (*Iterator[*Envelope], error) {
		return NewSliceIterator(priorEnvelopes(stream, 2)), nil
	}
	store.saveFn = func(ctx context.Context, events []Envelope, revision StreamState) (AppendResult, error) {
		t.Fatalf("Save should not be called when decide returns no events")
		return AppendResult{}, nil
	}

	handler := NewCommandHandler(
		store,
		0,
		func(s int, e *Envelope) int { return s + 1 },
		func(s int, c plainCommand) ([]Event, error) { return nil, nil },
	)

	res, err := handler(t.Context(), plainCommand{Target: "a"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.Successful {
		t.Fatalf("expected Successful true when no events produced")
	}
	if res.NextExpectedVersion != 2 {
		t.Fatalf("expected NextExpectedVersion 2, got %d", res.NextExpectedVersion)
	}
}

func TestNewCommandHandler_SaveSuccess_Versioning_Metadata_StreamName(t *testing.T) {
	store := &testStore{}
	store.loadFn = func(ctx context.Context, stream string, from uint64) (*Iterator[*Envelope], error) {
		return NewSliceIterator(priorEnvelopes(stream, 1)), nil
	}
	store.saveFn = func(ctx context.Context, events []Envelope, revision StreamState) (AppendResult, error) {
		if len(events) != 2 {
			t.Fatalf("expected 2 envelopes, got %d", len(events))
		}
		if events[0].Version != 2 || events[1].Version != 3 {
			t.Fatalf("expected versions [2,3], got [%d,%d]", events[0].Version, events[1].Version)
		}
		if events[0].Metadata["m"] != "x" {
			t.Fatalf("expected metadata m=x, got %v", events[0].Metadata)
		}
		if events[0].StreamID != "stream-a" {
			t.Fatalf("unexpected stream name: %s", events[0].StreamID)
		}
		if rev, ok := revision.(Revision); !ok || rev != 1 {
			t.Fatalf("expected Revision(1), got %v", revision)
		}
		return AppendResult{Successful: true, NextExpectedVersion: events[len(events)-1].Version}, nil
	}

	handler := NewCommandHandler(
		store,
		0,
		func(s int, e *Envelope) int { return s + 1 },
		func(s int, c plainCommand) ([]Event, error) {
			return []Event{
				stubEvent{Agg: c.Target, Typ: "e1"},
				stubEvent{Agg: c.Target, Typ: "e2"},
			}, nil
		},
		WithMetadataExtractor(func(ctx context.Context) map[string]any {
			return map[string]any{"m": "x"}
		}),
		WithStreamNamer(func(ctx context.Context, cmd Command) string {
			return "stream-" + cmd.AggregateID()
		}),
	)

	res, err := handler(t.Context(), plainCommand{Target: "a"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.NextExpectedVersion != 3 {
		t.Fatalf("NextExpectedVersion = %d, want 3", res.NextExpectedVersion)
	}
}

func TestNewCommandHandler_DecideErrorIsPermanent(t *testing.T) {
	businessErr := errors.New("limit exceeded")

	store := &testStore{}
	store.loadFn = func(ctx context.Context, stream string, from uint64) (*Iterator[*Envelope], error) {
		return NewSliceIterator([]*Envelope(nil)), nil
	}
	store.saveFn = func(ctx context.Context, events []Envelope, revision StreamState) (AppendResult, error) {
		t.Fatalf("Save should not be called when decide fails")
		return AppendResult{}, nil
	}

	handler := NewCommandHandler(
		store,
		0,
		func(s int, e *Envelope) int { return s },
		func(s int, c plainCommand) ([]Event, error) { return nil, businessErr },
		WithRetryStrategy(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 5)),
	)

	_, err := handler(t.Context(), plainCommand{Target: "a"})
	if !errors.Is(err, businessErr) {
		t.Fatalf("expected business error, got %v", err)
	}
	if store.loadCalled != 1 {
		t.Fatalf("business rule failures must not retry, load called %d times", store.loadCalled)
	}
}

func TestNewCommandHandler_RetriesOnRevisionConflict(t *testing.T) {
	store := &testStore{}
	store.loadFn = func(ctx context.Context, stream string, from uint64) (*Iterator[*Envelope], error) {
		return NewSliceIterator([]*Envelope(nil)), nil
	}
	store.saveFn = func(ctx context.Context, events []Envelope, revision StreamState) (AppendResult, error) {
		if store.saveCalled == 1 {
			return AppendResult{}, &StreamRevisionConflictError{
				Stream: events[0].StreamID, Expected: revision, Actual: Revision(1)}
		}
		return AppendResult{Successful: true, NextExpectedVersion: events[len(events)-1].Version}, nil
	}

	handler := NewCommandHandler(
		store,
		0,
		func(s int, e *Envelope) int { return s + 1 },
		func(s int, c plainCommand) ([]Event, error) {
			return []Event{stubEvent{Agg: c.Target, Typ: "e1"}}, nil
		},
		WithRetryStrategy(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)),
	)

	res, err := handler(t.Context(), plainCommand{Target: "a"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.Successful {
		t.Fatalf("expected success after retry")
	}
	if store.saveCalled != 2 {
		t.Fatalf("save called %d times, want 2", store.saveCalled)
	}
	if store.loadCalled != 2 {
		t.Fatalf("retry must reload state, load called %d times", store.loadCalled)
	}
}

func TestNewCommandHandler_ConflictSurfacesWithoutRetryStrategy(t *testing.T) {
	store := &testStore{}
	store.loadFn = func(ctx context.Context, stream string, from uint64) (*Iterator[*Envelope], error) {
		return NewSliceIterator([]*Envelope(nil)), nil
	}
	store.saveFn = func(ctx context.Context, events []Envelope, revision StreamState) (AppendResult, error) {
		return AppendResult{}, &StreamRevisionConflictError{
			Stream: events[0].StreamID, Expected: revision, Actual: Revision(7)}
	}

	handler := NewCommandHandler(
		store,
		0,
		func(s int, e *Envelope) int { return s },
		func(s int, c plainCommand) ([]Event, error) {
			return []Event{stubEvent{Agg: c.Target, Typ: "e1"}}, nil
		},
	)

	_, err := handler(t.Context(), plainCommand{Target: "a"})
	var conflict *StreamRevisionConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected StreamRevisionConflictError, got %v", err)
	}
	if store.saveCalled != 1 {
		t.Fatalf("default strategy must not retry, save called %d times", store.saveCalled)
	}
}

func TestNewCommandHandler_CorrelatedCommandChains(t *testing.T) {
	cmd := correlatedStubCommand{
		CorrelatedCommand: NewCorrelatedCommand(),
		Target:            "a",
	}

	store := &testStore{}
	store.loadFn = func(ctx context.Context, stream string, from uint64) (*Iterator[*Envelope], error) {
		return NewSliceIterator([]*Envelope(nil)), nil
	}
	store.saveFn = func(ctx context.Context, events []Envelope, revision StreamState) (AppendResult, error) {
		for _, env := range events {
			if env.CorrelationID != cmd.CorrelationID() {
				t.Fatalf("correlation = %s, want %s", env.CorrelationID, cmd.CorrelationID())
			}
			if env.CausationID != cmd.MsgID() {
				t.Fatalf("causation = %s, want %s", env.CausationID, cmd.MsgID())
			}
		}
		return AppendResult{Successful: true, NextExpectedVersion: 1}, nil
	}

	handler := NewCommandHandler(
		store,
		0,
		func(s int, e *Envelope) int { return s },
		func(s int, c correlatedStubCommand) ([]Event, error) {
			return []Event{stubEvent{Agg: c.Target, Typ: "e1"}}, nil
		},
	)

	if _, err := handler(t.Context(), cmd); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestNewCommandHandler_PlainCommandRootsChainPerEvent(t *testing.T) {
	store := &testStore{}
	store.loadFn = func(ctx context.Context, stream string, from uint64) (*Iterator[*Envelope], error) {
		return NewSliceIterator([]*Envelope(nil)), nil
	}
	store.saveFn = func(ctx context.Context, events []Envelope, revision StreamState) (AppendResult, error) {
		env := events[0]
		if env.CorrelationID != env.EventID || env.CausationID != env.EventID {
			t.Fatalf("uncorrelated command should root the chain at the event: %+v", env)
		}
		return AppendResult{Successful: true, NextExpectedVersion: 1}, nil
	}

	handler := NewCommandHandler(
		store,
		0,
		func(s int, e *Envelope) int { return s },
		func(s int, c plainCommand) ([]Event, error) {
			return []Event{stubEvent{Agg: c.Target, Typ: "e1"}}, nil
		},
	)

	if _, err := handler(t.Context(), plainCommand{Target: "a"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}
