package reactivedomain

import (
	"strings"

	"github.com/google/uuid"
)

// Aggregate is the interface that all event-sourced aggregates must implement.
// State exists only as a left-fold of the event history: restoring an instance
// from the same ordered sequence always reproduces identical state.
type Aggregate interface {

	// EntityID returns the unique identifier of the aggregate.
	EntityID() string

	// AggregateVersion returns the count of events applied to this instance.
	// Zero means no events have been applied yet.
	AggregateVersion() uint64

	// SetAggregateVersion sets the version. Infrastructure use only, e.g.
	// snapshot restore.
	SetAggregateVersion(version uint64)

	// RestoreFromEvents folds historical events into state, in order. For
	// from-scratch loads only; it performs no expected-version check.
	RestoreFromEvents(events []*Envelope) error

	// UpdateWithEvents folds a batch of events into state after verifying the
	// instance has not drifted past expectedVersion.
	UpdateWithEvents(events []*Envelope, expectedVersion uint64) error

	// DrainUncommittedEvents returns and clears the buffered uncommitted
	// events. A second call before any new Raise returns nil.
	DrainUncommittedEvents() []Envelope

	// SeedCorrelation sets the causal chain stamped on subsequently raised
	// events: the source's correlation id is copied, its message id becomes
	// the causation id.
	SeedCorrelation(source Message)
}

// AggregateBase carries the mechanics every aggregate shares: identity,
// version tracking, the apply dispatch table and the uncommitted-event
// recorder. Concrete aggregates embed it and raise events through Raise from
// their business methods.
//
// An AggregateBase is confined to one logical unit of work; it is not safe for
// concurrent mutation.
type AggregateBase struct {
	id       string
	v        uint64
	apply    Applier
	recorder EventRecorder
	corr     Correlation
}

// NewAggregateBase creates the base for an aggregate with the given identity
// and apply dispatch table.
func NewAggregateBase(id string, apply Applier) (*AggregateBase, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrEmptyAggregateID
	}
	if apply == nil {
		return nil, ErrNilApplier
	}
	return &AggregateBase{id: id, apply: apply}, nil
}

// EntityID implements the EntityID method of the Aggregate interface.
func (a *AggregateBase) EntityID() string {
	return a.id
}

// AggregateVersion implements the AggregateVersion method of the Aggregate interface.
func (a *AggregateBase) AggregateVersion() uint64 {
	return a.v
}

// SetAggregateVersion implements the SetAggregateVersion method of the Aggregate interface.
func (a *AggregateBase) SetAggregateVersion(v uint64) {
	a.v = v
}

// RestoreFromEvents hydrates the aggregate from history. Each event is folded
// through the registered apply handler and increments the version by one.
// An event type with no handler aborts the restore.
func (a *AggregateBase) RestoreFromEvents(events []*Envelope) error {
	if events == nil {
		return ErrNilEvents
	}
	for _, env := range events {
		if err := a.apply(env.Event); err != nil {
			return err
		}
		a.v++
	}
	return nil
}

// UpdateWithEvents applies a batch of events produced against a known version.
// It fails with a VersionConflictError if the instance has drifted, guarding
// against applying "new" events on top of state they were not decided from.
func (a *AggregateBase) UpdateWithEvents(events []*Envelope, expectedVersion uint64) error {
	if events == nil {
		return ErrNilEvents
	}
	if expectedVersion != a.v {
		return &VersionConflictError{Expected: expectedVersion, Actual: a.v}
	}
	return a.RestoreFromEvents(events)
}

// DrainUncommittedEvents returns and clears the recorded uncommitted events.
func (a *AggregateBase) DrainUncommittedEvents() []Envelope {
	return a.recorder.DrainAndReset()
}

// SeedCorrelation implements the SeedCorrelation method of the Aggregate interface.
func (a *AggregateBase) SeedCorrelation(source Message) {
	a.corr = CorrelationFrom(source)
}

// Raise applies a new event to in-memory state through the same dispatch table
// used by restore, increments the version, and records the event for later
// persistence. Events raised without a seeded correlation root their own chain.
func (a *AggregateBase) Raise(event Event, opts ...EventOption) error {
	if err := a.apply(event); err != nil {
		return err
	}
	a.v++

	env := Envelope{
		EventID:       uuid.New(),
		CorrelationID: a.corr.correlation,
		CausationID:   a.corr.causation,
		Metadata:      make(map[string]any),
		Event:         event,
		Version:       a.v,
		OccurredAt:    now(),
	}
	if a.corr.IsZero() {
		env.CorrelationID = env.EventID
		env.CausationID = env.EventID
	}

	for _, opt := range opts {
		opt(&env)
	}

	a.recorder.Record(env)
	return nil
}
