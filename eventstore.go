package reactivedomain

import "context"

// EventStore is the contract the aggregate/repository core requires from a
// backing stream store. A store keeps one ordered, append-only stream per
// aggregate instance, addressed by stream name.
//
// Implementations must guarantee:
//   - Events within a stream are stored and yielded in order (oldest first).
//   - Append is accepted only when the supplied StreamState matches the
//     stream's current revision; a mismatch is a StreamRevisionConflictError,
//     never a silent merge.
//   - Load iterators are deterministic and consumed immediately; no
//     assumptions about reuse or thread-safety after iteration completes.
//
// Stores derived from an instance-stream convention may additionally resolve
// category ($ce-) and by-event-type ($et-) projection streams on load.
type EventStore interface {
	// Save appends events to the stream named by the envelopes' StreamID,
	// under the given concurrency requirement. All envelopes in one batch
	// must target the same stream.
	Save(ctx context.Context, events []Envelope, revision StreamState) (AppendResult, error)

	// LoadStream loads all events of the named stream, oldest first.
	// Returns ErrStreamNotFound if the stream does not exist and
	// ErrStreamDeleted if it was deleted.
	LoadStream(ctx context.Context, streamID string) (*Iterator[*Envelope], error)

	// LoadStreamFrom loads the events of the named stream with version
	// strictly greater than version. Used for snapshot tails and listener
	// checkpoints.
	LoadStreamFrom(ctx context.Context, streamID string, version uint64) (*Iterator[*Envelope], error)

	// LoadFromAll loads events across all streams starting at the given
	// global sequence position. Ordering across streams is the store's
	// chronological order.
	LoadFromAll(ctx context.Context, position uint64) (*Iterator[*Envelope], error)

	// DeleteStream removes the named stream. A soft delete tombstones the
	// stream: subsequent loads fail with ErrStreamDeleted while the events
	// remain in the backing storage for audit. A hard delete is irreversible.
	DeleteStream(ctx context.Context, streamID string, hard bool) error

	// Close releases store resources. Implementations make Close idempotent.
	Close() error
}

// AppendResult describes the outcome of an append operation.
type AppendResult struct {
	Successful          bool
	NextExpectedVersion uint64
}
