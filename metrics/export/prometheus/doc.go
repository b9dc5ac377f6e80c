// Package prometheus renders engine counters in the Prometheus text
// exposition format. Counters are named gotoken_*_total and the single
// histogram is gotoken_validate_latency_seconds.
//
// Callers mount [Exporter.Handler]; nothing is registered globally.
package prometheus
