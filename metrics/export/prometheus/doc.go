// Package prometheus provides Prometheus collectors for oidcsession metrics.
//
// [NewPrometheusExporter] accepts an [oidcsession.Manager] and exposes an
// [http.Handler] that renders all lifecycle counters in Prometheus text
// exposition format. Counter names are prefixed oidcsession_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the
//     Handler.
//   - Mutate manager state.
package prometheus
