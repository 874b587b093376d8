package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

// WithEventTelemetry wraps an EventHandler with a per-event span and
// handling metrics. Envelope fields are read from the context.
func WithEventTelemetry(next rd.EventHandler) rd.EventHandler {
	return rd.NewEventHandlerFunc(func(ctx context.Context, event rd.Event) error {
		attr := []attribute.KeyValue{
			AttrEventType.String(event.EventType()),
			AttrEventID.String(rd.EventIDFromContext(ctx).String()),
			AttrEventStreamPos.Int64(int64(rd.VersionFromContext(ctx))),
			AttrStreamID.String(rd.StreamIDFromContext(ctx)),
			AttrCorrelationID.String(rd.CorrelationIDFromContext(ctx).String()),
		}

		ctx, span := tracer.Start(ctx, fmt.Sprintf("events.handle %s", event.EventType()),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attr...),
		)
		defer span.End()

		EventBusHandled.Add(ctx, 1, metric.WithAttributes(AttrEventType.String(event.EventType())))

		startTime := time.Now()
		err := next.Handle(ctx, event)
		EventBusDuration.Record(ctx,
			float64(time.Since(startTime).Milliseconds()),
			metric.WithAttributes(AttrEventType.String(event.EventType())),
		)

		if err != nil {
			var skipped *rd.ErrSkippedEvent
			if errors.As(err, &skipped) {
				span.SetStatus(codes.Ok, "event skipped")
			} else {
				EventBusErrors.Add(ctx, 1, metric.WithAttributes(AttrEventType.String(event.EventType())))
				span.SetStatus(codes.Error, err.Error())
				span.RecordError(err)
			}
			return err
		}
		span.SetStatus(codes.Ok, "")
		return nil
	})
}
