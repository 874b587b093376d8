package reactivedomain

import "context"

// CorrelatedRepository decorates a Repository so that every event an aggregate
// raises after loading carries the causal chain of the originating message:
// the source's correlation id is copied, its message id becomes the causation
// id. Stamping happens at raise time, inside the aggregate; save behavior is
// unchanged.
//
// Within one causal chain the correlation id is identical on every message,
// even across multiple aggregates touched by one command.
type CorrelatedRepository struct {
	inner *Repository
}

// NewCorrelatedRepository wraps an existing repository.
func NewCorrelatedRepository(inner *Repository) *CorrelatedRepository {
	return &CorrelatedRepository{inner: inner}
}

// Load hydrates agg and seeds its correlation from source.
func (r *CorrelatedRepository) Load(ctx context.Context, agg Aggregate, source Message) error {
	if source == nil {
		return ErrNilSource
	}
	if err := r.inner.Load(ctx, agg); err != nil {
		return err
	}
	agg.SeedCorrelation(source)
	return nil
}

// LoadVersion hydrates agg up to exactly version and seeds its correlation.
func (r *CorrelatedRepository) LoadVersion(ctx context.Context, agg Aggregate, version uint64, source Message) error {
	if source == nil {
		return ErrNilSource
	}
	if err := r.inner.LoadVersion(ctx, agg, version); err != nil {
		return err
	}
	agg.SeedCorrelation(source)
	return nil
}

// TryLoad is Load with not-found converted into a boolean false result. The
// correlation is seeded either way: an aggregate that turns out to be new
// still emits events belonging to the source's chain.
func (r *CorrelatedRepository) TryLoad(ctx context.Context, agg Aggregate, source Message) (bool, error) {
	if source == nil {
		return false, ErrNilSource
	}
	found, err := r.inner.TryLoad(ctx, agg)
	if err != nil {
		return false, err
	}
	agg.SeedCorrelation(source)
	return found, nil
}

// Save appends the aggregate's drained events. Identical to Repository.Save;
// correlation stamping already happened when the events were raised.
func (r *CorrelatedRepository) Save(ctx context.Context, agg Aggregate) (AppendResult, error) {
	return r.inner.Save(ctx, agg)
}

// Delete soft-deletes the aggregate's stream.
func (r *CorrelatedRepository) Delete(ctx context.Context, agg Aggregate) error {
	return r.inner.Delete(ctx, agg)
}

// HardDelete permanently removes the aggregate's stream.
func (r *CorrelatedRepository) HardDelete(ctx context.Context, agg Aggregate) error {
	return r.inner.HardDelete(ctx, agg)
}
