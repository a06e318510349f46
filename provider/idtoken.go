package provider

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// IDTokenClaims is the subset of id_token claims the engine reads.
type IDTokenClaims struct {
	Subject   string
	ExpiresAt int64 // Unix milliseconds, 0 when absent
}

// ParseIDTokenClaims extracts claims from a raw id_token without verifying
// its signature. The token was obtained over the provider's own TLS channel
// during the grant; the claims are used only to cross-check the userinfo
// subject and to build logout hints, never as an authentication decision.
func ParseIDTokenClaims(raw string) (*IDTokenClaims, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil, fmt.Errorf("id_token parse: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("id_token missing sub claim")
	}

	out := &IDTokenClaims{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.UnixMilli()
	}
	return out, nil
}
