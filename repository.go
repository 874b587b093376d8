package reactivedomain

import (
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/metric"
)

// Repository mediates between in-memory aggregates and the event store: it
// derives stream names, replays history into aggregates on load, and appends
// drained events under an optimistic-concurrency check on save.
//
// A Repository is reentrant: it holds no per-operation state and may be shared
// across goroutines. The aggregates it loads are not; confine each instance to
// one logical unit of work.
type Repository struct {
	store     EventStore
	names     *StreamNameBuilder
	log       *logrus.Entry
	snapshots SnapshotStore
	snapEvery uint64
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithStreamNameBuilder overrides the default (unprefixed) stream name builder.
func WithStreamNameBuilder(names *StreamNameBuilder) RepositoryOption {
	return func(r *Repository) { r.names = names }
}

// WithLogger sets the logger used for repository diagnostics.
func WithLogger(log *logrus.Entry) RepositoryOption {
	return func(r *Repository) { r.log = log }
}

// WithSnapshots enables snapshot-assisted loading against the given store and
// snapshotting every `every` events on save, for aggregates implementing
// SnapshotSource. An `every` of zero disables taking snapshots while still
// consulting existing ones on load.
func WithSnapshots(store SnapshotStore, every uint64) RepositoryOption {
	return func(r *Repository) {
		r.snapshots = store
		r.snapEvery = every
	}
}

// NewRepository creates a repository over the given event store.
func NewRepository(store EventStore, opts ...RepositoryOption) (*Repository, error) {
	if store == nil {
		return nil, errors.New("event store is nil")
	}

	names, err := NewStreamNameBuilder()
	if err != nil {
		return nil, err
	}

	r := &Repository{
		store: store,
		names: names,
		log:   logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// StreamFor returns the stream name the repository uses for the aggregate.
func (r *Repository) StreamFor(agg Aggregate) string {
	return r.names.ForAggregate(TypeName(agg), agg.EntityID())
}

// Load hydrates agg from its stream. If a snapshot store is configured and the
// aggregate implements SnapshotSource, the latest snapshot is restored first
// and only the event tail after it is replayed.
//
// Returns ErrAggregateNotFound when the stream does not exist and
// ErrStreamDeleted when it was deleted.
func (r *Repository) Load(ctx context.Context, agg Aggregate) error {
	return r.load(ctx, agg, 0)
}

// LoadVersion hydrates agg up to exactly the given version. It fails with a
// VersionMismatchError if the stream holds fewer events, distinguishing a
// partially available read from a fully available one.
func (r *Repository) LoadVersion(ctx context.Context, agg Aggregate, version uint64) error {
	return r.load(ctx, agg, version)
}

// TryLoad is Load with not-found converted into a boolean false result, for
// callers to whom absence is an expected, non-exceptional outcome.
func (r *Repository) TryLoad(ctx context.Context, agg Aggregate) (bool, error) {
	err := r.Load(ctx, agg)
	if errors.Is(err, ErrAggregateNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) load(ctx context.Context, agg Aggregate, targetVersion uint64) error {
	stream := r.StreamFor(agg)
	log := r.log.WithField("stream", stream)

	restoredFromSnapshot := false
	if source, ok := agg.(SnapshotSource); ok && r.snapshots != nil {
		snap, err := r.snapshots.LoadLatest(ctx, stream, targetVersion)
		switch {
		case errors.Is(err, ErrSnapshotNotFound):
			// full replay
		case err != nil:
			return err
		default:
			if err := source.RestoreFromSnapshot(snap); err != nil {
				return err
			}
			restoredFromSnapshot = true
			log.WithField("version", snap.Version).Debug("restored from snapshot")
		}
	}

	iter, err := r.store.LoadStreamFrom(ctx, stream, agg.AggregateVersion())
	if err != nil {
		if errors.Is(err, ErrStreamNotFound) && !restoredFromSnapshot {
			return ErrAggregateNotFound
		}
		return err
	}

	history := make([]*Envelope, 0)
	for iter.Next(ctx) {
		env := iter.Value()
		if targetVersion > 0 && env.Version > targetVersion {
			break
		}
		history = append(history, env)
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if err := agg.RestoreFromEvents(history); err != nil {
		return err
	}

	if agg.AggregateVersion() == 0 {
		return ErrAggregateNotFound
	}
	if targetVersion > 0 && agg.AggregateVersion() != targetVersion {
		return &VersionMismatchError{
			Stream:    stream,
			Requested: targetVersion,
			Actual:    agg.AggregateVersion(),
		}
	}

	log.WithFields(logrus.Fields{
		"version": agg.AggregateVersion(),
		"applied": len(history),
	}).Debug("aggregate loaded")

	return nil
}

// Save drains the aggregate's uncommitted events and appends them to its
// stream, using the version the aggregate held before those events as the
// concurrency token. Saving a clean aggregate is a no-op.
//
// A StreamRevisionConflictError from the store is surfaced untouched; the
// repository never retries, since retry policy (reload-and-reapply or fail) is
// an application-level decision.
func (r *Repository) Save(ctx context.Context, agg Aggregate) (AppendResult, error) {
	events := agg.DrainUncommittedEvents()
	if len(events) == 0 {
		return AppendResult{Successful: true, NextExpectedVersion: agg.AggregateVersion()}, nil
	}

	stream := r.StreamFor(agg)
	for i := range events {
		events[i].StreamID = stream
	}

	priorVersion := agg.AggregateVersion() - uint64(len(events))
	var revision StreamState = Revision(priorVersion)
	if priorVersion == 0 {
		revision = NoStream{}
	}

	result, err := r.store.Save(ctx, events, revision)
	if err != nil {
		var conflict *StreamRevisionConflictError
		if errors.As(err, &conflict) {
			concurrencyConflicts.Add(ctx, 1, metric.WithAttributes(attrStream.String(stream)))
			return result, err
		}
		r.log.WithField("stream", stream).WithError(err).Error("append failed")
		return result, err
	}

	streamVersions.Record(ctx, int64(agg.AggregateVersion()),
		metric.WithAttributes(attrStream.String(stream)))

	r.maybeSnapshot(ctx, agg, stream, priorVersion)

	return result, nil
}

// maybeSnapshot takes a snapshot after a successful append when the aggregate
// version crossed a cadence boundary. Snapshot failures are logged, not
// returned: the append has already committed and a snapshot is only a replay
// shortcut.
func (r *Repository) maybeSnapshot(ctx context.Context, agg Aggregate, stream string, priorVersion uint64) {
	if r.snapshots == nil || r.snapEvery == 0 {
		return
	}
	source, ok := agg.(SnapshotSource)
	if !ok {
		return
	}
	if agg.AggregateVersion()/r.snapEvery == priorVersion/r.snapEvery {
		return
	}

	snap, err := source.TakeSnapshot()
	if err != nil {
		r.log.WithField("stream", stream).WithError(err).Warn("take snapshot failed")
		return
	}
	snap.StreamID = stream
	if snap.TakenAt.IsZero() {
		snap.TakenAt = now()
	}
	if err := r.snapshots.Save(ctx, snap); err != nil {
		r.log.WithField("stream", stream).WithError(err).Warn("save snapshot failed")
		return
	}
	snapshotsTaken.Add(ctx, 1, metric.WithAttributes(attrStream.String(stream)))
}

// Delete soft-deletes the aggregate's stream: subsequent loads fail with
// ErrStreamDeleted while history stays in the backing storage for audit.
func (r *Repository) Delete(ctx context.Context, agg Aggregate) error {
	return r.store.DeleteStream(ctx, r.StreamFor(agg), false)
}

// HardDelete permanently removes the aggregate's stream. Irreversible; an
// administrative operation, not part of normal business flow.
func (r *Repository) HardDelete(ctx context.Context, agg Aggregate) error {
	return r.store.DeleteStream(ctx, r.StreamFor(agg), true)
}

// ReplayStream reads a stream in full and hands every envelope to fn, oldest
// first. Intended for rebuilding read models and admin tooling; unlike Load it
// does not interpret the events.
func (r *Repository) ReplayStream(ctx context.Context, streamID string, fn func(env *Envelope) error) error {
	iter, err := r.store.LoadStream(ctx, streamID)
	if err != nil {
		return err
	}
	for iter.Next(ctx) {
		if err := fn(iter.Value()); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
	return iter.Err()
}
