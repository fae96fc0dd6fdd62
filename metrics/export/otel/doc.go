// Package otel publishes engine metrics through an OpenTelemetry meter.
//
// Every engine counter becomes an Int64ObservableCounter. The validation latency
// histogram is flattened Prometheus style into _bucket (one point per le attribute),
// _count and _sum instruments. A single callback reads teamauth.Engine.MetricsSnapshot
// per collection. Callers own the MeterProvider.
package otel
