package oidcsession

import (
	"errors"
	"net/http"
	"time"

	"github.com/webauthkit/oidcsession/provider"
)

// Config defines a public type used by the session lifecycle engine.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable; Build clones them.
type Config struct {
	App        AppConfig
	Session    SessionConfig
	Encryption EncryptionConfig
	Refresh    RefreshConfig
	Cookies    CookieConfig
	Provider   provider.Config
	Audit      AuditConfig
	Metrics    MetricsConfig
}

// AppConfig identifies the embedding application.
type AppConfig struct {
	// URL is the application origin. It bounds post-login redirects and is
	// the only origin the cross-frame sso-check protocol accepts.
	URL string
}

// SessionConfig defines a public type used by the session lifecycle engine.
type SessionConfig struct {
	// RedisPrefix namespaces every store key, e.g. "app:session:".
	RedisPrefix string
	// TTL is the fixed session slot lifetime; the user profile slot lives 2×.
	TTL time.Duration
	// CookieName is the client-visible session cookie name.
	CookieName string
}

// EncryptionConfig defines a public type used by the session lifecycle engine.
type EncryptionConfig struct {
	// HexKey is a hex-encoded 256-bit key for at-rest session encryption.
	// Empty selects plain serialization: no confidentiality. That mode is
	// insecure by configuration and intended for development only.
	HexKey string
}

// RefreshConfig defines a public type used by the session lifecycle engine.
type RefreshConfig struct {
	// Lead is the window before access-token expiry at which proactive
	// refresh is triggered.
	Lead time.Duration
}

// CookieConfig defines a public type used by the session lifecycle engine.
type CookieConfig struct {
	Secure   bool
	SameSite http.SameSite
	// PreAuthTTL bounds the oauth_state / oauth_code_verifier /
	// oauth_referer cookies.
	PreAuthTTL time.Duration
}

// AuditConfig defines a public type used by the session lifecycle engine.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by the session lifecycle engine.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the configuration the engine ships with.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix: "app:session:",
			TTL:         24 * time.Hour,
			CookieName:  "app_session",
		},
		Refresh: RefreshConfig{
			Lead: 2 * time.Minute,
		},
		Cookies: CookieConfig{
			Secure:     true,
			SameSite:   http.SameSiteLaxMode,
			PreAuthTTL: 10 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Session.TTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if c.Session.CookieName == "" {
		return errors.New("session cookie name required")
	}
	if c.Refresh.Lead < 0 {
		return errors.New("refresh lead must not be negative")
	}
	if c.Refresh.Lead >= c.Session.TTL {
		return errors.New("refresh lead must be shorter than the session TTL")
	}
	if c.Cookies.PreAuthTTL <= 0 {
		return errors.New("pre-auth cookie TTL must be positive")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	clone := cfg
	clone.Provider.Scopes = append([]string(nil), cfg.Provider.Scopes...)
	return clone
}
