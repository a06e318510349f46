// Package monitor implements the client-resident session state machine that
// keeps a browser context in sync with the server-side session lifecycle.
//
// The machine moves through Unknown → Valid → ExpiringSoon → Refreshing →
// Valid|LoggedOut, with an orthogonal probing sub-state while a silent SSO
// probe is in flight. Three independent triggers — mount, visibility change,
// and the proactive timer — feed one idempotent Revalidate entry point
// guarded by a single-flight group, so simultaneous triggers collapse into
// one in-flight call.
//
// # Architecture boundaries
//
// monitor never talks to Redis or the identity provider directly. Everything
// environment-shaped (server fetch, logout call, page reload, hidden probe
// frame, flag storage) arrives through [Deps]; the package owns policy only.
//
// # What this package must NOT do
//
//   - Hold or inspect token material; the server exposes only [SessionState].
//   - Retry beyond the single probe attempt; probe failure means logged out.
//   - Reconcile a user-id desync; that path is a full reload, nothing else.
package monitor
