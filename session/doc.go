// Package session provides encrypted Redis-backed session persistence and the
// session/user data model for the lifecycle engine.
//
// # Encryption
//
// Records are serialized to JSON and sealed with AES-256-CBC under a fresh
// random IV per write ("hex(iv):hex(ciphertext)"). Without a configured key
// the [Codec] stores plain JSON — an explicit insecure-by-configuration mode
// for development environments.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations), the [Codec], and the
// [Session] and [User] models. It does NOT talk to the identity provider,
// decide token staleness, or enforce refresh policy — those responsibilities
// belong to the Manager.
//
// # What this package must NOT do
//
//   - Import the root package or provider (no upward imports).
//   - Log token material or decrypted session contents.
//   - Sweep expired sessions; Redis TTL is the only garbage collector.
package session
