// Package memory provides an in-process SnapshotStore. Snapshots are kept
// per stream, newest last; lookups scan backwards for the freshest snapshot
// under the version bound.
package memory

import (
	"context"
	"sync"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

type Store struct {
	mu        sync.RWMutex
	snapshots map[string][]rd.Snapshot
	keep      int
}

var _ rd.SnapshotStore = (*Store)(nil)

// Option configures the store.
type Option func(*Store)

// WithRetention bounds how many snapshots are kept per stream; older ones
// are discarded on save. Zero keeps everything.
func WithRetention(keep int) Option {
	return func(s *Store) { s.keep = keep }
}

func NewStore(opts ...Option) *Store {
	s := &Store{snapshots: make(map[string][]rd.Snapshot)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Save(_ context.Context, snap rd.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.snapshots[snap.StreamID], snap)
	if s.keep > 0 && len(history) > s.keep {
		history = history[len(history)-s.keep:]
	}
	s.snapshots[snap.StreamID] = history
	return nil
}

func (s *Store) LoadLatest(_ context.Context, streamID string, maxVersion uint64) (rd.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.snapshots[streamID]
	for i := len(history) - 1; i >= 0; i-- {
		if maxVersion == 0 || history[i].Version <= maxVersion {
			return history[i], nil
		}
	}
	return rd.Snapshot{}, rd.ErrSnapshotNotFound
}
