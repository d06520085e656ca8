// Package prometheus exposes authdb metrics through
// github.com/prometheus/client_golang.
//
// [NewPrometheusExporter] accepts an [authdb.DB] and returns a collector that
// can be registered on any registry or served directly through Handler.
// Counter names are prefixed authdb_*_total; the two latency histograms are
// authdb_session_validate_latency_seconds and
// authdb_permission_check_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate DB state.
package prometheus
