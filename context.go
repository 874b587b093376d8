package reactivedomain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ctxKey string

const (
	streamIDKey      ctxKey = "streamID"
	aggregateIDKey   ctxKey = "aggregateID"
	eventIDKey       ctxKey = "eventID"
	correlationIDKey ctxKey = "correlationID"
	causationIDKey   ctxKey = "causationID"
	versionKey       ctxKey = "version"
	occurredAtKey    ctxKey = "occurredAt"
	metadataKey      ctxKey = "metadata"
)

// WithEnvelope threads the envelope's metadata through the context so event
// handlers receive the bare domain event while still being able to read stream
// position and the causal chain.
func WithEnvelope(ctx context.Context, env *Envelope) context.Context {
	ctx = context.WithValue(ctx, streamIDKey, env.StreamID)
	ctx = context.WithValue(ctx, aggregateIDKey, env.Event.AggregateID())
	ctx = context.WithValue(ctx, eventIDKey, env.EventID)
	ctx = context.WithValue(ctx, correlationIDKey, env.CorrelationID)
	ctx = context.WithValue(ctx, causationIDKey, env.CausationID)
	ctx = context.WithValue(ctx, versionKey, env.Version)
	ctx = context.WithValue(ctx, occurredAtKey, env.OccurredAt)
	ctx = context.WithValue(ctx, metadataKey, env.Metadata)
	return ctx
}

// StreamIDFromContext returns the stream id or "" if not present.
func StreamIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, streamIDKey)
}

// AggregateIDFromContext returns the aggregate id or "" if not present.
func AggregateIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, aggregateIDKey)
}

// EventIDFromContext returns the event id or uuid.Nil if not present.
func EventIDFromContext(ctx context.Context) uuid.UUID {
	return uuidFromContext(ctx, eventIDKey)
}

// CorrelationIDFromContext returns the correlation id or uuid.Nil if not present.
func CorrelationIDFromContext(ctx context.Context) uuid.UUID {
	return uuidFromContext(ctx, correlationIDKey)
}

// CausationIDFromContext returns the causation id or uuid.Nil if not present.
func CausationIDFromContext(ctx context.Context) uuid.UUID {
	return uuidFromContext(ctx, causationIDKey)
}

// VersionFromContext returns the stream version or 0 if not present.
func VersionFromContext(ctx context.Context) uint64 {
	if v, ok := ctx.Value(versionKey).(uint64); ok {
		return v
	}
	return 0
}

// OccurredAtFromContext returns the occurrence time or the zero time if not present.
func OccurredAtFromContext(ctx context.Context) time.Time {
	if t, ok := ctx.Value(occurredAtKey).(time.Time); ok {
		return t
	}
	return time.Time{}
}

// MetadataFromContext returns the envelope metadata or nil if not present.
func MetadataFromContext(ctx context.Context) map[string]any {
	if md, ok := ctx.Value(metadataKey).(map[string]any); ok {
		return md
	}
	return nil
}

func stringFromContext(ctx context.Context, key ctxKey) string {
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

func uuidFromContext(ctx context.Context, key ctxKey) uuid.UUID {
	if id, ok := ctx.Value(key).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
