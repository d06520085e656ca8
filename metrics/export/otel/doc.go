// Package otel binds authdb counters and histograms to OpenTelemetry
// observable instruments.
//
// [NewOTelExporter] registers an Int64ObservableCounter per counter. Each
// latency histogram becomes a <name>_bucket gauge with one point per "le"
// attribute and a <name>_count counter. One callback reads
// [authdb.DB.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate DB state.
package otel
