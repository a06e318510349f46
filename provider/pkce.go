package provider

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/webauthkit/oidcsession/internal"
)

// GenerateState returns a 256-bit random OAuth2 state value.
func GenerateState() (string, error) {
	return internal.NewRandomToken()
}

// GenerateCodeVerifier returns a PKCE code verifier.
func GenerateCodeVerifier() (string, error) {
	return internal.NewRandomToken()
}

// CodeChallengeS256 derives the S256 code challenge for a verifier.
func CodeChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
