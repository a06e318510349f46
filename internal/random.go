package internal

import (
	"crypto/rand"
	"encoding/base64"
)

// SessionID is a 128-bit cryptographically random session identifier.
// Its string form is compact base64url and is the only session-derived
// value that may appear in a client cookie.
type SessionID [16]byte

func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// NewRandomToken returns 256 bits of base64url-encoded randomness, used for
// OAuth2 state values and PKCE code verifiers.
func NewRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
