// Package otel publishes portalauth engine metrics through an OpenTelemetry
// Meter.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter and
// one Int64ObservableGauge per cumulative latency bucket. A single callback
// reads [portalauth.Engine.MetricsSnapshot] on each collection. The caller
// owns the MeterProvider.
package otel
