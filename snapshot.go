package reactivedomain

import (
	"context"
	"encoding/json"
	"time"
)

// Snapshot is an opaque, versioned serialization of an aggregate's derived
// state. It is a replay shortcut, never authoritative on its own: events
// recorded after the snapshot's version are always replayed on top.
type Snapshot struct {
	StreamID string          `json:"stream_id"`
	Version  uint64          `json:"version"`
	TakenAt  time.Time       `json:"taken_at"`
	Data     json.RawMessage `json:"data"`
}

// SnapshotSource is the optional capability an aggregate implements to
// participate in snapshot-assisted loading. Both methods are called by
// infrastructure, never by business code.
type SnapshotSource interface {
	// TakeSnapshot serializes current derived state at the current version.
	TakeSnapshot() (Snapshot, error)

	// RestoreFromSnapshot sets in-memory state and the aggregate version
	// directly from the snapshot, bypassing replay up to that version.
	RestoreFromSnapshot(snap Snapshot) error
}

// SnapshotStore persists and retrieves snapshots by stream.
type SnapshotStore interface {
	// Save persists a snapshot.
	Save(ctx context.Context, snap Snapshot) error

	// LoadLatest returns the most recent snapshot for the stream with
	// Version <= maxVersion. maxVersion zero means unbounded. Returns
	// ErrSnapshotNotFound when no usable snapshot exists.
	LoadLatest(ctx context.Context, streamID string, maxVersion uint64) (Snapshot, error)
}
