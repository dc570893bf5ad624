// Package prometheus provides Prometheus collectors for goRecover metrics.
//
// [NewPrometheusExporter] accepts a [goRecover.Engine] and exposes an [http.Handler]
// that renders all goRecover counters and histograms in Prometheus text exposition format.
// Counter names are prefixed gorecover_*_total; the single histogram is
// gorecover_penalty_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
