package reactivedomain

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/ReactiveDomain/reactive-domain-sub009"

// Repository-level instruments. They bind to the global meter provider, so
// they are inert noops until the embedding process installs one. Richer
// per-component telemetry lives in the otel subpackage decorators.
var (
	repoMeter = otel.Meter(instrumentationName,
		metric.WithInstrumentationVersion(InstrumentationVersion))

	attrStream = attribute.Key("reactivedomain.stream.id")

	concurrencyConflicts, _ = repoMeter.Int64Counter(
		"reactivedomain.repository.conflicts",
		metric.WithDescription("Number of optimistic-concurrency conflicts surfaced on save"),
		metric.WithUnit("{conflict}"),
	)

	snapshotsTaken, _ = repoMeter.Int64Counter(
		"reactivedomain.repository.snapshots",
		metric.WithDescription("Number of snapshots taken"),
		metric.WithUnit("{snapshot}"),
	)

	streamVersions, _ = repoMeter.Int64Gauge(
		"reactivedomain.stream.version",
		metric.WithDescription("Stream version after the latest successful save"),
		metric.WithUnit("{version}"),
	)
)
