package reactivedomain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyAggregateID is returned when an aggregate is constructed with an
	// empty or whitespace identifier.
	ErrEmptyAggregateID = errors.New("aggregate id is empty")

	// ErrNilApplier is returned when an aggregate is constructed without an
	// apply dispatch table.
	ErrNilApplier = errors.New("applier is nil")

	// ErrNilEvents is returned by RestoreFromEvents and UpdateWithEvents when
	// the event slice is nil.
	ErrNilEvents = errors.New("event slice is nil")

	// ErrNilSource is returned by the correlated repository when no source
	// message is supplied.
	ErrNilSource = errors.New("source message is nil")

	// ErrAggregateNotFound is returned when no stream exists for an aggregate.
	ErrAggregateNotFound = errors.New("aggregate not found")

	// ErrStreamNotFound is returned by a store when the named stream does not exist.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrStreamDeleted is returned when the named stream once existed and was
	// deleted. Distinct from not-found: consumers may treat re-creation of a
	// deleted entity differently from creation of a new one.
	ErrStreamDeleted = errors.New("stream deleted")

	// ErrSnapshotNotFound is returned by a snapshot store when no usable
	// snapshot exists for a stream.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrEmptyStreamPrefix is returned when a stream name builder is given an
	// explicit but empty prefix. Use the no-prefix constructor instead.
	ErrEmptyStreamPrefix = errors.New("stream prefix is empty")

	// ErrInvalidRevision is returned when a store receives a revision type it
	// does not support.
	ErrInvalidRevision = errors.New("invalid stream revision")

	// ErrInvalidEventBatch is returned when a save batch mixes streams.
	ErrInvalidEventBatch = errors.New("invalid event batch")

	// ErrDuplicateHandler is returned when two handlers are registered for the
	// same event type.
	ErrDuplicateHandler = errors.New("duplicate handler")
)

// StreamRevisionConflictError is the optimistic-concurrency failure: the store
// rejected an append because the expected revision did not match the stream's
// current revision. It is surfaced to the caller untouched; retry policy is an
// application-level decision.
type StreamRevisionConflictError struct {
	Stream   string
	Expected StreamState
	Actual   Revision
}

func (e *StreamRevisionConflictError) Error() string {
	return fmt.Sprintf("stream %q revision conflict: expected %v, actual %d", e.Stream, e.Expected, uint64(e.Actual))
}

// VersionConflictError is returned by UpdateWithEvents when the supplied
// expected version does not match the aggregate's current version: the
// instance has drifted since the batch was produced.
type VersionConflictError struct {
	Expected uint64
	Actual   uint64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("aggregate version conflict: expected %d, actual %d", e.Expected, e.Actual)
}

// VersionMismatchError is returned when a load targeting a specific version
// cannot reach it: the stream holds fewer events than requested.
type VersionMismatchError struct {
	Stream    string
	Requested uint64
	Actual    uint64
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("stream %q at version %d, requested %d", e.Stream, e.Actual, e.Requested)
}

// UnregisteredEventError is returned when replay encounters an event type with
// no registered apply handler. It is a schema-evolution defect, fatal for the
// load, never a transient condition.
type UnregisteredEventError struct {
	EventName string
}

func (e *UnregisteredEventError) Error() string {
	return fmt.Sprintf("no apply handler registered for event %s", e.EventName)
}

// ErrSkippedEvent is returned when a handler cannot handle the event type.
type ErrSkippedEvent struct {
	Event Event
}

func (e *ErrSkippedEvent) Error() string {
	return fmt.Sprintf("skipped event of type %T", e.Event)
}

// EventStoreError wraps transient store communication failures (timeouts,
// connection loss) so callers can layer retry policy without conflating them
// with concurrency conflicts.
type EventStoreError struct {
	Err error
}

func (e *EventStoreError) Error() string {
	return fmt.Sprintf("eventstore error: %v", e.Err)
}

func (e *EventStoreError) Unwrap() error {
	return e.Err
}

// WrapEventStoreError wraps err as an EventStoreError, passing nil through.
func WrapEventStoreError(err error) error {
	if err == nil {
		return nil
	}
	return &EventStoreError{Err: err}
}
