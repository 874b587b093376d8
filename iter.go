package reactivedomain

import (
	"context"
	"io"
)

// Iterator is a lazy, ordered cursor over store records. Exhaustion is
// signaled by the next function returning io.EOF; Err reports any other
// failure encountered during iteration.
type Iterator[T any] struct {
	nextFunc func(ctx context.Context) (T, error)
	current  T
	err      error
	done     bool
}

// NewIterator creates an Iterator from a function producing the next item.
// The function must return io.EOF when the sequence is exhausted.
func NewIterator[T any](nextFunc func(ctx context.Context) (T, error)) *Iterator[T] {
	return &Iterator[T]{nextFunc: nextFunc}
}

// NewSliceIterator creates an Iterator over a fixed slice.
func NewSliceIterator[T any](items []T) *Iterator[T] {
	i := 0
	return NewIterator(func(ctx context.Context) (T, error) {
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if i >= len(items) {
			return zero, io.EOF
		}
		item := items[i]
		i++
		return item, nil
	})
}

// Next advances the iterator. It returns false once the sequence is exhausted
// or an error occurred.
func (it *Iterator[T]) Next(ctx context.Context) bool {
	if it.done || it.err != nil {
		return false
	}
	item, err := it.nextFunc(ctx)
	if err == io.EOF {
		it.done = true
		return false
	}
	if err != nil {
		it.err = err
		return false
	}
	it.current = item
	return true
}

// Value returns the current item.
func (it *Iterator[T]) Value() T {
	return it.current
}

// Err returns the first error encountered during iteration, excluding
// exhaustion.
func (it *Iterator[T]) Err() error {
	return it.err
}

// All consumes the iterator and returns the remaining items.
func (it *Iterator[T]) All(ctx context.Context) ([]T, error) {
	var results []T
	for it.Next(ctx) {
		results = append(results, it.Value())
	}
	return results, it.Err()
}
