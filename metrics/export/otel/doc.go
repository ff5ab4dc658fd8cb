// Package otel binds engine counters and latency histograms to
// OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine
// counter. Each latency histogram becomes cumulative bucket counters
// (name_bucket_le_<bound>), a name_count counter and a name_sum counter in
// seconds. A single callback reads MetricsSnapshot on each collection;
// histograms missing from the snapshot report nothing. Callers own the
// MeterProvider.
package otel
