// Package otel provides OpenTelemetry metric exporter bindings for
// oidcsession lifecycle counters.
//
// [NewOTelExporter] registers an Int64ObservableCounter instrument for each
// counter. A single callback reads [oidcsession.Manager.MetricsSnapshot] on
// each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate manager state.
package otel
