package reactivedomain

// InstrumentationVersion is reported to OpenTelemetry by the otel decorator
// package and the metric bootstrap below.
const InstrumentationVersion = "0.1.0"
