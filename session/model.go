package session

import "time"

// RefreshAccessTokenError is the error marker recorded on a session whose
// refresh-token exchange was rejected by the identity provider. A session
// carrying it is degraded: present for diagnostics, never authoritative.
const RefreshAccessTokenError = "RefreshAccessTokenError"

// Session defines a public type used by the session lifecycle engine.
//
// Session instances are created by the Manager and the Store and treated as
// immutable snapshots by callers; mutation happens only through Store writes.
type Session struct {
	// ID is the only value that may ever reach a client-visible cookie.
	// It is cryptographically random and rotates on every refresh.
	ID     string `json:"id"`
	UserID string `json:"userId"`

	// AccessToken is empty once AccessTokenExpiresAt has passed; expired
	// tokens are scrubbed on read, never served.
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	IDToken      string `json:"idToken"`

	// AccessTokenExpiresAt is authoritative, in Unix milliseconds.
	AccessTokenExpiresAt int64 `json:"accessTokenExpiresAt"`

	// Error is RefreshAccessTokenError when the provider rejected the last
	// refresh attempt. RefreshToken is always cleared alongside it.
	Error string `json:"error,omitempty"`

	// ExpiresAt is the session-level absolute expiry in Unix milliseconds.
	// Garbage collection itself is store-side TTL; this mirrors it in the
	// record so expiry updates survive re-encryption.
	ExpiresAt int64 `json:"expiresAt,omitempty"`

	// CreatedFresh marks a session whose ID has not yet been written to the
	// client cookie; callers must rotate the cookie when it is set.
	CreatedFresh bool `json:"-"`
}

// Degraded reports whether the session is retained for diagnostics only.
func (s *Session) Degraded() bool {
	return s != nil && s.Error != ""
}

// AccessTokenExpired reports whether the stored access-token expiry has passed.
func (s *Session) AccessTokenExpired(now time.Time) bool {
	return s != nil && now.UnixMilli() > s.AccessTokenExpiresAt
}

// User defines a public type used by the session lifecycle engine.
//
// User is an immutable profile snapshot refreshed on each successful token
// exchange and stored separately from sessions.
type User struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	TrackingID string `json:"trackingId"`
	Name       string `json:"name"`
	Nickname   string `json:"nickname"`
	FullName   string `json:"fullName,omitempty"`
	Email      string `json:"email,omitempty"`
}
