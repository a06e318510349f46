// Package oidcsession implements an OpenID-Connect session lifecycle engine
// with encrypted Redis-backed persistence, proactive access-token refresh
// with session-id rotation, and a degraded-session protocol for rejected
// refresh tokens.
//
// The package is designed for concurrent server workloads: Manager methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// oidcsession is the public surface. It exposes [Manager], [Builder],
// [Config], and value types (SessionState, MetricsSnapshot, AuditEvent).
// Flow orchestration lives under internal/flows and is never exported;
// storage under session/ and provider transport under provider/ are
// importable but carry no lifecycle policy of their own.
//
// # What this package must NOT do
//
//   - Expose Redis clients, encryption internals, or raw store blobs in its
//     public API.
//   - Log token material or decrypted session contents at any level.
//   - Perform I/O during construction; Build is allocation-only and Redis
//     connects lazily on first store access unless a client was injected.
//
// # Validation contract
//
// Validate is the hot path. Its result is null-pair-or-value: an unusable
// session yields (nil, nil, nil), never an error, so callers branch on
// presence rather than error identity. Transport failures toward the
// identity provider degrade to the null pair instead of surfacing.
package oidcsession
