// Package prometheus renders engine counters and latency histograms in
// Prometheus text exposition format.
//
// Counter names are prefixed usersvc_ and end in _total. Histograms are
// usersvc_login_latency_seconds and usersvc_resolve_latency_seconds and are
// present only when latency histograms are enabled. Nothing is registered
// globally: callers mount [PrometheusExporter.Handler].
package prometheus
