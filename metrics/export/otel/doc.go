// Package otel publishes engine counters through an OpenTelemetry Meter.
//
// Each counter becomes an Int64ObservableCounter and each latency bucket an
// Int64ObservableGauge; a single callback reads the engine snapshot on every
// collection. The caller owns the MeterProvider.
package otel
