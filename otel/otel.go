// Package otel provides OpenTelemetry decorators for command handlers, query
// handlers, event stores and event buses. Decorators are additive: wrap a
// component and use it in place of the original.
package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
)

const (
	instrumentationName = "github.com/ReactiveDomain/reactive-domain-sub009"
)

// Semantic attribute keys following OpenTelemetry conventions
const (
	// Command attributes
	AttrCommandType = attribute.Key("reactivedomain.command.type")
	AttrAggregateID = attribute.Key("reactivedomain.aggregate.id")

	// Stream attributes
	AttrStreamID      = attribute.Key("reactivedomain.stream.id")
	AttrStreamVersion = attribute.Key("reactivedomain.stream.version")

	// Event attributes
	AttrEventType      = attribute.Key("reactivedomain.event.type")
	AttrEventID        = attribute.Key("reactivedomain.event.id")
	AttrEventCount     = attribute.Key("reactivedomain.events.count")
	AttrEventStreamPos = attribute.Key("reactivedomain.event.stream_position")
	AttrCorrelationID  = attribute.Key("reactivedomain.correlation.id")
	AttrCausationID    = attribute.Key("reactivedomain.causation.id")

	// Query attributes
	AttrQueryType = attribute.Key("reactivedomain.query.type")
	AttrQueryID   = attribute.Key("reactivedomain.query.id")

	// EventBus attributes
	AttrSubscriberName = attribute.Key("reactivedomain.subscriber.name")

	// Operation attributes
	AttrOperation = attribute.Key("reactivedomain.operation")
)

var (
	meter  = otel.Meter(instrumentationName, metric.WithInstrumentationVersion(rd.InstrumentationVersion))
	tracer = otel.Tracer(instrumentationName, trace.WithInstrumentationVersion(rd.InstrumentationVersion))

	// Command metrics
	CommandsHandled, _ = meter.Int64Counter(
		"reactivedomain.commands.handled",
		metric.WithDescription("Total number of commands handled"),
		metric.WithUnit("{command}"),
	)

	CommandsDuration, _ = meter.Float64Histogram(
		"reactivedomain.commands.duration",
		metric.WithDescription("Command handling duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
	)

	CommandsInFlight, _ = meter.Int64UpDownCounter(
		"reactivedomain.commands.in_flight",
		metric.WithDescription("Number of commands currently being processed"),
		metric.WithUnit("{command}"),
	)

	CommandsFailed, _ = meter.Int64Counter(
		"reactivedomain.commands.failed",
		metric.WithDescription("Number of failed commands"),
		metric.WithUnit("{command}"),
	)

	// Event metrics
	EventsAppended, _ = meter.Int64Counter(
		"reactivedomain.events.appended",
		metric.WithDescription("Number of events appended to streams"),
		metric.WithUnit("{event}"),
	)

	EventsLoaded, _ = meter.Int64Counter(
		"reactivedomain.events.loaded",
		metric.WithDescription("Number of events loaded from streams"),
		metric.WithUnit("{event}"),
	)

	// EventBus metrics
	EventBusPublished, _ = meter.Int64Counter(
		"reactivedomain.eventbus.published",
		metric.WithDescription("Number of events published to the event bus"),
		metric.WithUnit("{event}"),
	)

	EventBusHandled, _ = meter.Int64Counter(
		"reactivedomain.eventbus.handled",
		metric.WithDescription("Number of events handled by subscribers"),
		metric.WithUnit("{event}"),
	)

	EventBusErrors, _ = meter.Int64Counter(
		"reactivedomain.eventbus.errors",
		metric.WithDescription("Number of event bus handler errors"),
		metric.WithUnit("{error}"),
	)

	EventBusDuration, _ = meter.Float64Histogram(
		"reactivedomain.eventbus.duration",
		metric.WithDescription("Event bus handler duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)

	// Query metrics
	QueriesHandled, _ = meter.Int64Counter(
		"reactivedomain.queries.handled",
		metric.WithDescription("Total number of queries handled"),
		metric.WithUnit("{query}"),
	)

	QueriesDuration, _ = meter.Float64Histogram(
		"reactivedomain.queries.duration",
		metric.WithDescription("Query handling duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)

	QueriesInFlight, _ = meter.Int64UpDownCounter(
		"reactivedomain.queries.in_flight",
		metric.WithDescription("Number of queries currently being processed"),
		metric.WithUnit("{query}"),
	)

	QueriesFailed, _ = meter.Int64Counter(
		"reactivedomain.queries.failed",
		metric.WithDescription("Number of failed queries"),
		metric.WithUnit("{query}"),
	)

	// EventStore metrics
	EventStoreSaves, _ = meter.Int64Counter(
		"reactivedomain.eventstore.saves",
		metric.WithDescription("Number of save operations"),
		metric.WithUnit("{operation}"),
	)

	EventStoreDuration, _ = meter.Float64Histogram(
		"reactivedomain.eventstore.duration",
		metric.WithDescription("Event store operation duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)

	EventStoreErrors, _ = meter.Int64Counter(
		"reactivedomain.eventstore.errors",
		metric.WithDescription("Number of event store errors"),
		metric.WithUnit("{error}"),
	)

	// System metrics
	ConcurrencyConflicts, _ = meter.Int64Counter(
		"reactivedomain.concurrency.conflicts",
		metric.WithDescription("Number of concurrency conflicts"),
		metric.WithUnit("{conflict}"),
	)
)
