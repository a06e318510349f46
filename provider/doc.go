// Package provider implements the identity-provider capability: building
// authorization URLs (with PKCE and prompt=none), redeeming authorization
// codes, executing the refresh-token grant, fetching userinfo, and composing
// the provider-side logout deep-link.
//
// # Error taxonomy
//
// [ErrRejected] marks a protocol-level rejection (RFC 6749 error response);
// the engine records it as a degraded session. [ErrUnavailable] marks a
// transport failure; the engine logs it and reports no session. Callers
// distinguish the two with errors.Is and never retry here.
//
// # Architecture boundaries
//
// This package owns nothing session-shaped: it returns normalized [Tokens]
// and [UserInfo] values and leaves persistence and rotation to the Manager.
package provider
