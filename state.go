package oidcsession

// SessionState is the client-visible projection of a session. It never
// carries token material; only the expiry instant and the sticky error
// marker cross the trust boundary.
type SessionState struct {
	UserID               string `json:"userId,omitempty"`
	AccessTokenExpiresAt int64  `json:"accessTokenExpiresAt,omitempty"`
	Error                string `json:"error,omitempty"`
}
