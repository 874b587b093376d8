package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

var _ rd.EventBus = (*TelemetryEventBus)(nil)

// TelemetryEventBus wraps an EventBus with OpenTelemetry tracing and metrics.
//
// Publish opens a producer span and injects the current trace context into
// each envelope's metadata. Subscriptions are wrapped in a consumer span that
// extracts the producer's trace context back out of the metadata and links to
// it, so a command's trace connects to every projection it eventually drives.
type TelemetryEventBus struct {
	next rd.EventBus
	cfg  *config
}

// WithEventBusTelemetry decorates a bus. The returned bus is a drop-in
// replacement for the original.
func WithEventBusTelemetry(next rd.EventBus, options ...Option) *TelemetryEventBus {
	cfg := &config{}
	for _, o := range options {
		o.apply(cfg)
	}

	return &TelemetryEventBus{
		next: next,
		cfg:  cfg,
	}
}

// Publish opens a producer span per batch and stamps each envelope's metadata
// with the trace context before forwarding.
func (t *TelemetryEventBus) Publish(ctx context.Context, envelopes ...*rd.Envelope) error {
	ctx, span := tracer.Start(ctx, "eventbus.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(AttrEventCount.Int64(int64(len(envelopes)))),
	)
	defer span.End()

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for _, env := range envelopes {
		if len(carrier) == 0 {
			break
		}
		if env.Metadata == nil {
			env.Metadata = make(map[string]any, len(carrier))
		}
		for key, value := range carrier {
			env.Metadata[key] = value
		}
	}

	err := t.next.Publish(ctx, envelopes...)

	EventBusPublished.Add(ctx, int64(len(envelopes)))

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Subscribe registers the handler wrapped with telemetry instrumentation.
func (t *TelemetryEventBus) Subscribe(ctx context.Context, name string, next rd.EventHandler, options ...rd.SubscriberOption) error {
	return t.next.Subscribe(ctx, name, rd.NewEventHandlerFunc(func(ctx context.Context, event rd.Event) error {
		// Recover the producer's trace context from envelope metadata
		carrier := make(propagation.MapCarrier)
		if metadata := rd.MetadataFromContext(ctx); len(metadata) > 0 {
			for k, v := range metadata {
				if stringV, ok := v.(string); ok && len(stringV) > 0 {
					carrier[k] = stringV
				}
			}
		}

		attr := []attribute.KeyValue{
			AttrEventType.String(event.EventType()),
			AttrEventID.String(rd.EventIDFromContext(ctx).String()),
			AttrEventStreamPos.Int64(int64(rd.VersionFromContext(ctx))),
			AttrStreamID.String(rd.StreamIDFromContext(ctx)),
			AttrSubscriberName.String(name),
		}

		attr = append(attr, t.cfg.Attributes...)
		if t.cfg.GetAttributes != nil {
			attr = append(attr, t.cfg.GetAttributes(ctx)...)
		}

		originalCtx := otel.GetTextMapPropagator().Extract(context.Background(), carrier)
		originalSpanContext := trace.SpanContextFromContext(originalCtx)

		ctx, span := tracer.Start(ctx, fmt.Sprintf("subscription.receive %s", name),
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithLinks(trace.Link{
				SpanContext: originalSpanContext,
				Attributes: []attribute.KeyValue{
					attribute.String("link.reason", "event.consumed.from.stream"),
				},
			}),
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
				span.SetStatus(codes.Ok, "")
			} else {
				EventBusErrors.Add(ctx, 1, metric.WithAttributes(AttrEventType.String(event.EventType())))
				span.SetStatus(codes.Error, err.Error())
				span.RecordError(err)
			}
			return err
		}
		span.SetStatus(codes.Ok, "")
		return nil
	}), options...)
}

// Unsubscribe delegates to the wrapped bus.
func (t *TelemetryEventBus) Unsubscribe(name string) error {
	return t.next.Unsubscribe(name)
}

// Errors returns the error channel from the underlying event bus. Errors are
// already tracked at the handler level.
func (t *TelemetryEventBus) Errors() <-chan error {
	return t.next.Errors()
}

// Close closes the underlying event bus and waits for all handlers to finish.
func (t *TelemetryEventBus) Close() error {
	return t.next.Close()
}
