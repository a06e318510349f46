// Package flows contains the pure session lifecycle flows (validation,
// refresh rotation) expressed against dependency structs, so the root
// package can map classified failures onto metrics, audit events, and its
// public error surface without import cycles.
//
// # What this package must NOT do
//
//   - Import the root package or provider.
//   - Perform Redis or HTTP I/O directly; everything arrives through Deps.
package flows
