// Package middleware exposes HTTP middleware adapters for cookie-based
// session enforcement built on top of oidcsession.Manager validation.
//
// # Guards
//
//   - [RequireSession] — rejects requests without a valid session.
//   - [OptionalSession] — resolves the session when present, passes through
//     otherwise.
//
// Each guard reads the session cookie, calls Manager.Validate, rotates the
// cookie when the refresh flow issued a new session id, clears it when the
// session turned out invalid, and injects the (user, session) pair into the
// request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Manager calls. It does NOT
// implement lifecycle logic itself — all decisions are delegated to
// Manager.Validate.
//
// # What this package must NOT do
//
//   - Read or write the session store (Manager handles I/O).
//   - Inspect token material; only the opaque session id crosses this layer.
//   - Make session decisions beyond pass/reject from Manager.Validate.
package middleware
