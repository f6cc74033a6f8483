// Package prometheus renders engine metrics in the Prometheus text exposition
// format.
//
// Counters are named twofactor_*_total; the single histogram is
// twofactor_gate_latency_seconds. Nothing is registered globally: callers
// mount [PrometheusExporter.Handler] where they want it.
package prometheus
