package otel

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

var _ rd.EventStore = (*TelemetryStore)(nil)

// TelemetryStore wraps an EventStore with operation spans and metrics. Load
// operations return lazy iterators, so their span opens on the first Next
// call and closes when the iterator is exhausted or fails.
type TelemetryStore struct {
	next rd.EventStore
}

// WithEventStoreTelemetry decorates a store.
func WithEventStoreTelemetry(next rd.EventStore) rd.EventStore {
	return TelemetryStore{next: next}
}

func (t TelemetryStore) Save(ctx context.Context, events []rd.Envelope, revision rd.StreamState) (rd.AppendResult, error) {
	var streamID string
	if len(events) > 0 {
		streamID = events[0].StreamID
	}

	ctx, span := tracer.Start(ctx, "EventStore.Save",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrOperation.String("save"),
			AttrStreamID.String(streamID),
			AttrEventCount.Int64(int64(len(events))),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := t.next.Save(ctx, events, revision)

	EventStoreDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(AttrOperation.String("save")),
	)
	EventStoreSaves.Add(ctx, 1)
	EventsAppended.Add(ctx, int64(len(events)))

	if err != nil {
		EventStoreErrors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	span.SetAttributes(AttrStreamVersion.Int64(int64(result.NextExpectedVersion)))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (t TelemetryStore) LoadStream(ctx context.Context, streamID string) (*rd.Iterator[*rd.Envelope], error) {
	iter, err := t.next.LoadStream(ctx, streamID)
	if err != nil {
		EventStoreErrors.Add(ctx, 1)
		return iter, err
	}
	return t.instrumentIterator("EventStore.LoadStream", streamID, iter), nil
}

func (t TelemetryStore) LoadStreamFrom(ctx context.Context, streamID string, version uint64) (*rd.Iterator[*rd.Envelope], error) {
	iter, err := t.next.LoadStreamFrom(ctx, streamID, version)
	if err != nil {
		EventStoreErrors.Add(ctx, 1)
		return iter, err
	}
	return t.instrumentIterator("EventStore.LoadStreamFrom", streamID, iter), nil
}

func (t TelemetryStore) LoadFromAll(ctx context.Context, position uint64) (*rd.Iterator[*rd.Envelope], error) {
	iter, err := t.next.LoadFromAll(ctx, position)
	if err != nil {
		EventStoreErrors.Add(ctx, 1)
		return iter, err
	}
	return t.instrumentIterator("EventStore.LoadFromAll", "$all", iter), nil
}

func (t TelemetryStore) DeleteStream(ctx context.Context, streamID string, hard bool) error {
	ctx, span := tracer.Start(ctx, "EventStore.DeleteStream",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrOperation.String("delete"),
			AttrStreamID.String(streamID),
		),
	)
	defer span.End()

	err := t.next.DeleteStream(ctx, streamID, hard)
	if err != nil {
		EventStoreErrors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (t TelemetryStore) Close() error {
	return t.next.Close()
}

// instrumentIterator lazily opens a span around a read. The span starts on
// the first pull and ends when the source reports io.EOF or an error.
func (t TelemetryStore) instrumentIterator(operation, streamID string, iter *rd.Iterator[*rd.Envelope]) *rd.Iterator[*rd.Envelope] {
	started := false
	var startedAt time.Time
	var span trace.Span
	var eventCount int64

	return rd.NewIterator(func(ctx context.Context) (*rd.Envelope, error) {
		if !started {
			started = true
			startedAt = time.Now()
			ctx, span = tracer.Start(ctx, operation,
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(AttrStreamID.String(streamID)),
			)
		}

		if !iter.Next(ctx) {
			span.SetAttributes(AttrEventCount.Int64(eventCount))

			err := iter.Err()
			if err == nil {
				EventStoreDuration.Record(ctx, float64(time.Since(startedAt).Milliseconds()),
					metric.WithAttributes(AttrOperation.String("load")))
				span.SetStatus(codes.Ok, "")
				span.End()
				return nil, io.EOF
			}

			EventStoreErrors.Add(ctx, 1)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return nil, err
		}

		eventCount++
		EventsLoaded.Add(ctx, 1)
		return iter.Value(), nil
	})
}
