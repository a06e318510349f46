// Package webflow provides the HTTP glue around the session lifecycle
// engine: the authorization-code login redirect, the callback exchange, the
// logout deep-link, and the two small pages the silent SSO probe relies on.
//
// # Handlers
//
//   - [Handlers.Login] — issues state/PKCE/referer cookies and redirects to
//     the provider's authorization endpoint.
//   - [Handlers.Callback] — verifies state, exchanges the code, sets the
//     session cookie, and redirects back to the recorded referer.
//   - [Handlers.Logout] — invalidates the session, clears the cookie, and
//     redirects to the provider logout deep-link when one is configured.
//   - [Handlers.SSOChecked] — probe target page; posts the sso-check message
//     to the embedding parent frame.
//   - [Handlers.ErrorPage] — generic failure page; reports SSO failure to an
//     embedding parent frame if present.
//
// # What this package must NOT do
//
//   - Touch the session store or the identity provider directly; everything
//     goes through Manager.
//   - Redirect to origins other than the configured application origin.
package webflow
