// Package kurrentdb adapts a KurrentDB connection to the EventStore contract.
// KurrentDB maintains the $ce- and $et- projection streams server-side, so
// category and by-event-type loads work through the same read path.
package kurrentdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"
	"github.com/kurrent-io/KurrentDB-Client-Go/kurrentdb"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

var _ rd.EventStore = (*Store)(nil)

// Store is a KurrentDB-backed EventStore.
type Store struct {
	client *kurrentdb.Client
}

// NewStore creates a store over an existing client connection. The connection
// is shared and thread-safe; many repositories and listeners may use it
// concurrently.
func NewStore(client *kurrentdb.Client) *Store {
	return &Store{client: client}
}

// Save appends the batch to its stream under the mapped revision requirement.
func (s *Store) Save(ctx context.Context, events []rd.Envelope, revision rd.StreamState) (rd.AppendResult, error) {
	if len(events) == 0 {
		return rd.AppendResult{Successful: true}, nil
	}

	streamID := events[0].StreamID
	data := make([]kurrentdb.EventData, len(events))
	for i, env := range events {
		if env.StreamID != streamID {
			return rd.AppendResult{}, fmt.Errorf(
				"save to stream %q: %w: event %d targets stream %q",
				streamID, rd.ErrInvalidEventBatch, i, env.StreamID)
		}

		payload, err := json.Marshal(env.Event)
		if err != nil {
			return rd.AppendResult{}, err
		}
		metadata, err := json.Marshal(wireMetadata{
			CorrelationID: env.CorrelationID.String(),
			CausationID:   env.CausationID.String(),
			Custom:        env.Metadata,
		})
		if err != nil {
			return rd.AppendResult{}, err
		}

		data[i] = kurrentdb.EventData{
			EventID:     env.EventID,
			EventType:   env.Event.EventType(),
			ContentType: kurrentdb.ContentTypeJson,
			Data:        payload,
			Metadata:    metadata,
		}
	}

	result, err := s.client.AppendToStream(ctx, streamID, kurrentdb.AppendToStreamOptions{
		StreamState: mapRevision(revision),
	}, data...)
	if err != nil {
		return rd.AppendResult{}, mapError(streamID, revision, err)
	}

	return rd.AppendResult{
		Successful:          true,
		NextExpectedVersion: result.NextExpectedVersion + 1,
	}, nil
}

// LoadStream loads all events of the named stream.
func (s *Store) LoadStream(ctx context.Context, streamID string) (*rd.Iterator[*rd.Envelope], error) {
	return s.LoadStreamFrom(ctx, streamID, 0)
}

// LoadStreamFrom loads events with version strictly greater than version,
// which maps directly onto KurrentDB's zero-based stream revisions.
func (s *Store) LoadStreamFrom(ctx context.Context, streamID string, version uint64) (*rd.Iterator[*rd.Envelope], error) {
	streamer, err := s.client.ReadStream(ctx, streamID, kurrentdb.ReadStreamOptions{
		Direction:      kurrentdb.Forwards,
		From:           kurrentdb.StreamRevision{Value: version},
		ResolveLinkTos: true,
	}, math.MaxUint64)
	if err != nil {
		return nil, mapError(streamID, nil, err)
	}

	return rd.NewIterator(func(ctx context.Context) (*rd.Envelope, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resolved, err := streamer.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, mapError(streamID, nil, err)
		}
		return toEnvelope(resolved)
	}), nil
}

// LoadFromAll reads the $all stream forward from the given commit position.
func (s *Store) LoadFromAll(ctx context.Context, position uint64) (*rd.Iterator[*rd.Envelope], error) {
	streamer, err := s.client.ReadAll(ctx, kurrentdb.ReadAllOptions{
		Direction:      kurrentdb.Forwards,
		From:           kurrentdb.Position{Commit: position},
		ResolveLinkTos: true,
	}, math.MaxUint64)
	if err != nil {
		return nil, rd.WrapEventStoreError(err)
	}

	return rd.NewIterator(func(ctx context.Context) (*rd.Envelope, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resolved, err := streamer.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, rd.WrapEventStoreError(err)
		}
		return toEnvelope(resolved)
	}), nil
}

// DeleteStream soft-deletes (delete) or tombstones (hard) the named stream.
func (s *Store) DeleteStream(ctx context.Context, streamID string, hard bool) error {
	var err error
	if hard {
		_, err = s.client.TombstoneStream(ctx, streamID, kurrentdb.TombstoneStreamOptions{})
	} else {
		_, err = s.client.DeleteStream(ctx, streamID, kurrentdb.DeleteStreamOptions{})
	}
	if err != nil {
		return mapError(streamID, nil, err)
	}
	return nil
}

// Close closes the underlying client connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// wireMetadata is the user-metadata document stored alongside each event,
// carrying the causal chain plus any application metadata.
type wireMetadata struct {
	CorrelationID string         `json:"$correlationId"`
	CausationID   string         `json:"$causationId"`
	Custom        map[string]any `json:"custom,omitempty"`
}

func toEnvelope(resolved *kurrentdb.ResolvedEvent) (*rd.Envelope, error) {
	recorded := resolved.Event
	if recorded == nil {
		// link without a resolvable target (e.g. deleted source stream)
		return nil, rd.WrapEventStoreError(fmt.Errorf("unresolvable link event"))
	}

	event, err := rd.NewEventByName(recorded.EventType)
	if err != nil {
		return nil, rd.WrapEventStoreError(fmt.Errorf("cannot create event %q: %w", recorded.EventType, err))
	}
	if err := json.Unmarshal(recorded.Data, event); err != nil {
		return nil, rd.WrapEventStoreError(fmt.Errorf("cannot unmarshal event %q: %w", recorded.EventType, err))
	}

	env := &rd.Envelope{
		EventID:    recorded.EventID,
		StreamID:   recorded.StreamID,
		Event:      event,
		Version:    recorded.EventNumber + 1,
		OccurredAt: recorded.CreatedDate,
	}

	var meta wireMetadata
	if len(recorded.UserMetadata) > 0 && json.Unmarshal(recorded.UserMetadata, &meta) == nil {
		env.CorrelationID = parseUUID(meta.CorrelationID)
		env.CausationID = parseUUID(meta.CausationID)
		env.Metadata = meta.Custom
	}

	return env, nil
}

func parseUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func mapRevision(revision rd.StreamState) kurrentdb.StreamState {
	switch rev := revision.(type) {
	case rd.NoStream:
		return kurrentdb.NoStream{}
	case rd.StreamExists:
		return kurrentdb.StreamExists{}
	case rd.Revision:
		// Revision counts events; KurrentDB revisions are zero-based.
		// Revision(0) means "no events yet", which KurrentDB expresses as
		// NoStream rather than an underflowed revision.
		if rev == 0 {
			return kurrentdb.NoStream{}
		}
		return kurrentdb.StreamRevision{Value: uint64(rev) - 1}
	default:
		return kurrentdb.Any{}
	}
}

func mapError(streamID string, revision rd.StreamState, err error) error {
	var kerr *kurrentdb.Error
	if errors.As(err, &kerr) {
		switch kerr.Code() {
		case kurrentdb.ErrorCodeWrongExpectedVersion:
			expected := revision
			if expected == nil {
				expected = rd.Any{}
			}
			return &rd.StreamRevisionConflictError{Stream: streamID, Expected: expected}
		case kurrentdb.ErrorCodeResourceNotFound:
			return fmt.Errorf("stream %q: %w", streamID, rd.ErrStreamNotFound)
		case kurrentdb.ErrorCodeStreamDeleted:
			return fmt.Errorf("stream %q: %w", streamID, rd.ErrStreamDeleted)
		}
	}
	return rd.WrapEventStoreError(err)
}
