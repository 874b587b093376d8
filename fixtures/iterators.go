package fixtures

import (
	"context"
	"io"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

// EmptyIterator returns an iterator that yields no items.
func EmptyIterator() *rd.Iterator[*rd.Envelope] {
	return rd.NewIterator(func(ctx context.Context) (*rd.Envelope, error) {
		return nil, io.EOF
	})
}

// FailingIterator returns an iterator that fails with the given error.
func FailingIterator(err error) *rd.Iterator[*rd.Envelope] {
	return rd.NewIterator(func(ctx context.Context) (*rd.Envelope, error) {
		return nil, err
	})
}

// SliceIterator creates an iterator from a slice of envelope pointers.
func SliceIterator(envelopes []*rd.Envelope) *rd.Iterator[*rd.Envelope] {
	return rd.NewSliceIterator(envelopes)
}

// EnvelopeIteratorFromEvents creates an iterator from events.
func EnvelopeIteratorFromEvents(events ...rd.Event) *rd.Iterator[*rd.Envelope] {
	return SliceIterator(EnvelopesFromEvents(events...))
}

// FailAfterNIterator returns an iterator that yields n items, then fails.
func FailAfterNIterator(envelopes []*rd.Envelope, n int, err error) *rd.Iterator[*rd.Envelope] {
	idx := 0
	return rd.NewIterator(func(ctx context.Context) (*rd.Envelope, error) {
		if idx >= n {
			return nil, err
		}
		if idx >= len(envelopes) {
			return nil, io.EOF
		}
		env := envelopes[idx]
		idx++
		return env, nil
	})
}

// DelayedIterator wraps a slice with a callback before each Next. Useful for
// testing timing-sensitive scenarios.
func DelayedIterator(envelopes []*rd.Envelope, beforeNext func()) *rd.Iterator[*rd.Envelope] {
	idx := 0
	return rd.NewIterator(func(ctx context.Context) (*rd.Envelope, error) {
		if beforeNext != nil {
			beforeNext()
		}

		if idx >= len(envelopes) {
			return nil, io.EOF
		}
		env := envelopes[idx]
		idx++
		return env, nil
	})
}
