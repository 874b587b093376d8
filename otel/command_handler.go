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

// WithCommandTelemetry wraps a CommandHandler with OpenTelemetry tracing and
// metrics.
//
// Each execution opens an internal span named after the command type and
// records the handler's outcome:
//   - CommandsInFlight tracks concurrent executions.
//   - CommandsDuration records handling time in milliseconds.
//   - CommandsHandled and CommandsFailed count outcomes.
//   - ConcurrencyConflicts counts StreamRevisionConflictError occurrences;
//     a conflict also shows as a span event, since the operation itself ran.
func WithCommandTelemetry[C rd.Command](next rd.CommandHandler[C]) rd.CommandHandler[C] {
	var zero C
	commandType := fmt.Sprintf("%T", zero)

	baseAttributes := []attribute.KeyValue{
		AttrCommandType.String(commandType),
	}

	return func(ctx context.Context, cmd C) (rd.AppendResult, error) {
		attr := append(baseAttributes, AttrAggregateID.String(cmd.AggregateID()))

		ctx, span := tracer.Start(ctx, fmt.Sprintf("command.handle %s", commandType),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attr...),
		)
		defer span.End()

		CommandsInFlight.Add(ctx, 1, metric.WithAttributes(AttrCommandType.String(commandType)))
		defer CommandsInFlight.Add(ctx, -1, metric.WithAttributes(AttrCommandType.String(commandType)))

		startTime := time.Now()
		result, err := next(ctx, cmd)

		CommandsDuration.Record(ctx, float64(time.Since(startTime).Milliseconds()),
			metric.WithAttributes(AttrCommandType.String(commandType)))

		span.SetAttributes(AttrStreamVersion.Int64(int64(result.NextExpectedVersion)))

		if err != nil {
			var conflict *rd.StreamRevisionConflictError
			if errors.As(err, &conflict) {
				ConcurrencyConflicts.Add(ctx, 1, metric.WithAttributes(AttrCommandType.String(commandType)))
				span.AddEvent("concurrency_conflict", trace.WithAttributes(
					AttrStreamID.String(conflict.Stream),
				))
			}

			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
			CommandsFailed.Add(ctx, 1, metric.WithAttributes(AttrCommandType.String(commandType)))
			return result, err
		}

		span.SetStatus(codes.Ok, "")
		CommandsHandled.Add(ctx, 1, metric.WithAttributes(AttrCommandType.String(commandType)))

		return result, nil
	}
}
