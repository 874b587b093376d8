// Package disk provides a file-backed event store: one JSON record per event,
// one directory per stream, and a global directory of hard links preserving
// append order across streams. Intended for local development and durable
// tests, not for contended production use.
package disk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

const (
	allDir           = "all"
	tombstoneMarker  = ".deleted"
	recordNameFormat = "%010d-%s.json"
)

var _ rd.EventStore = (*Store)(nil)

// Store is a file-backed EventStore. All operations take an exclusive lock;
// a single process owns the directory.
type Store struct {
	baseDir    string
	serializer rd.Serializer
	mu         sync.Mutex
	globalSeq  uint64
}

// NewStore opens (or creates) a store rooted at dir. Events are encoded via
// the given serializer, defaulting to JSONSerializer.
func NewStore(dir string, serializer rd.Serializer) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, allDir), 0o755); err != nil {
		return nil, err
	}
	if serializer == nil {
		serializer = rd.JSONSerializer{}
	}

	s := &Store{baseDir: dir, serializer: serializer}

	// Hard deletes leave gaps in the global sequence, so resume from the
	// highest name rather than the entry count.
	entries, err := os.ReadDir(filepath.Join(dir, allDir))
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		seqPart, _, ok := strings.Cut(e.Name(), "-")
		if !ok {
			continue
		}
		if seq, err := strconv.ParseUint(seqPart, 10, 64); err == nil && seq > s.globalSeq {
			s.globalSeq = seq
		}
	}

	return s, nil
}

func (s *Store) streamDir(streamID string) string {
	return filepath.Join(s.baseDir, streamID)
}

// Save appends the batch under the given revision requirement.
func (s *Store) Save(ctx context.Context, events []rd.Envelope, revision rd.StreamState) (rd.AppendResult, error) {
	if len(events) == 0 {
		return rd.AppendResult{Successful: true}, nil
	}

	streamID := events[0].StreamID
	for i, env := range events {
		if env.StreamID != streamID {
			return rd.AppendResult{}, fmt.Errorf(
				"save to stream %q: %w: event %d targets stream %q",
				streamID, rd.ErrInvalidEventBatch, i, env.StreamID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sdir := s.streamDir(streamID)
	if s.isDeleted(streamID) {
		return rd.AppendResult{}, fmt.Errorf("stream %q: %w", streamID, rd.ErrStreamDeleted)
	}
	if err := os.MkdirAll(sdir, 0o755); err != nil {
		return rd.AppendResult{}, rd.WrapEventStoreError(err)
	}

	currentRevision, err := s.streamRevision(sdir)
	if err != nil {
		return rd.AppendResult{}, rd.WrapEventStoreError(err)
	}

	switch rev := revision.(type) {
	case rd.Any:
	case rd.NoStream:
		if currentRevision != 0 {
			return rd.AppendResult{}, &rd.StreamRevisionConflictError{
				Stream: streamID, Expected: rd.NoStream{}, Actual: rd.Revision(currentRevision)}
		}
	case rd.StreamExists:
		if currentRevision == 0 {
			return rd.AppendResult{}, fmt.Errorf("stream %q: %w", streamID, rd.ErrStreamNotFound)
		}
	case rd.Revision:
		if currentRevision != uint64(rev) {
			return rd.AppendResult{}, &rd.StreamRevisionConflictError{
				Stream: streamID, Expected: rev, Actual: rd.Revision(currentRevision)}
		}
	default:
		return rd.AppendResult{}, fmt.Errorf("stream %q: %w", streamID, rd.ErrInvalidRevision)
	}

	for i := range events {
		if err := ctx.Err(); err != nil {
			return rd.AppendResult{}, err
		}

		rec, err := s.serializer.Serialize(events[i])
		if err != nil {
			return rd.AppendResult{}, err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return rd.AppendResult{}, rd.WrapEventStoreError(err)
		}

		name := fmt.Sprintf(recordNameFormat, events[i].Version, rec.EventType)
		path := filepath.Join(sdir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return rd.AppendResult{}, rd.WrapEventStoreError(err)
		}

		s.globalSeq++
		global := filepath.Join(s.baseDir, allDir, fmt.Sprintf(recordNameFormat, s.globalSeq, rec.EventType))
		if err := os.Link(path, global); err != nil {
			return rd.AppendResult{}, rd.WrapEventStoreError(err)
		}
	}

	return rd.AppendResult{
		Successful:          true,
		NextExpectedVersion: currentRevision + uint64(len(events)),
	}, nil
}

// LoadStream loads all events of the named stream.
func (s *Store) LoadStream(ctx context.Context, streamID string) (*rd.Iterator[*rd.Envelope], error) {
	return s.LoadStreamFrom(ctx, streamID, 0)
}

// LoadStreamFrom loads events of the named stream with version strictly
// greater than version.
func (s *Store) LoadStreamFrom(ctx context.Context, streamID string, version uint64) (*rd.Iterator[*rd.Envelope], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isDeleted(streamID) {
		return nil, fmt.Errorf("stream %q: %w", streamID, rd.ErrStreamDeleted)
	}
	if _, err := os.Stat(s.streamDir(streamID)); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stream %q: %w", streamID, rd.ErrStreamNotFound)
	}

	return s.loadFromDir(s.streamDir(streamID), version)
}

// LoadFromAll loads events across all streams in append order, starting after
// the given global position.
func (s *Store) LoadFromAll(ctx context.Context, position uint64) (*rd.Iterator[*rd.Envelope], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFromDir(filepath.Join(s.baseDir, allDir), position)
}

// DeleteStream tombstones the named stream. Soft deletion leaves the event
// files and their global links in place for audit; hard deletion removes the
// stream directory and the stream's records from the global sequence. The
// tombstone marker blocks loads and appends either way.
func (s *Store) DeleteStream(ctx context.Context, streamID string, hard bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sdir := s.streamDir(streamID)
	if s.isDeleted(streamID) {
		return fmt.Errorf("stream %q: %w", streamID, rd.ErrStreamDeleted)
	}
	if _, err := os.Stat(sdir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stream %q: %w", streamID, rd.ErrStreamNotFound)
	}

	if hard {
		if err := s.purgeGlobal(streamID); err != nil {
			return rd.WrapEventStoreError(err)
		}
		if err := os.RemoveAll(sdir); err != nil {
			return rd.WrapEventStoreError(err)
		}
		if err := os.MkdirAll(sdir, 0o755); err != nil {
			return rd.WrapEventStoreError(err)
		}
	}

	marker := filepath.Join(sdir, tombstoneMarker)
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		return rd.WrapEventStoreError(err)
	}
	return nil
}

// Close is a no-op; files are written synchronously. Idempotent.
func (s *Store) Close() error {
	return nil
}

// purgeGlobal unlinks the stream's records from the global sequence. The
// stream directory holds the other link to each inode, so removing it
// afterwards releases the records entirely.
func (s *Store) purgeGlobal(streamID string) error {
	gdir := filepath.Join(s.baseDir, allDir)
	entries, err := os.ReadDir(gdir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(gdir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var rec rd.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("corrupt record %s: %w", e.Name(), err)
		}
		if rec.StreamID != streamID {
			continue
		}
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) isDeleted(streamID string) bool {
	_, err := os.Stat(filepath.Join(s.streamDir(streamID), tombstoneMarker))
	return err == nil
}

func (s *Store) streamRevision(sdir string) (uint64, error) {
	entries, err := os.ReadDir(sdir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	var n uint64
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			n++
		}
	}
	return n, nil
}

// loadFromDir returns a lazy iterator over the record files in dir, skipping
// sequence numbers at or below from. Directory entries sort lexically, which
// the zero-padded name format makes identical to sequence order.
func (s *Store) loadFromDir(dir string, from uint64) (*rd.Iterator[*rd.Envelope], error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return rd.NewSliceIterator([]*rd.Envelope(nil)), nil
		}
		return nil, rd.WrapEventStoreError(err)
	}

	idx := 0
	return rd.NewIterator(func(ctx context.Context) (*rd.Envelope, error) {
		for idx < len(files) {
			fi := files[idx]
			idx++
			if fi.IsDir() || !strings.HasSuffix(fi.Name(), ".json") {
				continue
			}

			seqPart, _, ok := strings.Cut(fi.Name(), "-")
			if !ok {
				continue
			}
			seq, err := strconv.ParseUint(seqPart, 10, 64)
			if err != nil || seq <= from {
				continue
			}

			data, err := os.ReadFile(filepath.Join(dir, fi.Name()))
			if err != nil {
				return nil, rd.WrapEventStoreError(err)
			}

			var rec rd.Record
			if err := json.Unmarshal(data, &rec); err != nil {
				return nil, rd.WrapEventStoreError(fmt.Errorf("corrupt record %s: %w", fi.Name(), err))
			}

			env, err := s.serializer.Deserialize(rec)
			if err != nil {
				return nil, err
			}
			return env, nil
		}
		return nil, io.EOF
	}), nil
}
