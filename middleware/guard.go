package middleware

import (
	"context"
	"net/http"

	oidcsession "github.com/webauthkit/oidcsession"
	"github.com/webauthkit/oidcsession/session"
)

type sessionContextKey struct{}

// SessionPair is the validated (user, session) pair a guard injects into
// the request context.
type SessionPair struct {
	User    *session.User
	Session *session.Session
}

// FromContext returns the pair a guard stored, if any.
func FromContext(ctx context.Context) (*SessionPair, bool) {
	pair, ok := ctx.Value(sessionContextKey{}).(*SessionPair)
	return pair, ok
}

// RequireSession rejects requests that do not resolve to a valid session.
// Degraded sessions (sticky error marker set) are rejected as well: they
// are diagnostic records, not credentials.
func RequireSession(manager *oidcsession.Manager) func(http.Handler) http.Handler {
	return guard(manager, true)
}

// OptionalSession resolves the session when the cookie is present and valid
// and passes the request through either way.
func OptionalSession(manager *oidcsession.Manager) func(http.Handler) http.Handler {
	return guard(manager, false)
}

func guard(manager *oidcsession.Manager, require bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			cfg := manager.Config()
			sessionID := cookieSessionID(r, cfg.Session.CookieName)

			ctx := oidcsession.WithClientIP(r.Context(), r.RemoteAddr)
			user, sess, err := manager.Validate(ctx, sessionID)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if sess == nil || sess.Degraded() {
				if sessionID != "" {
					clearSessionCookie(w, cfg)
				}
				if require {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			// The refresh flow rotates session ids; the cookie must follow.
			if sess.ID != sessionID {
				setSessionCookie(w, cfg, sess.ID)
			}

			ctx = context.WithValue(ctx, sessionContextKey{}, &SessionPair{User: user, Session: sess})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func cookieSessionID(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// setSessionCookie issues the session cookie without an explicit expiry;
// semantic expiry is store-side TTL.
func setSessionCookie(w http.ResponseWriter, cfg oidcsession.Config, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Session.CookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.Cookies.Secure,
		SameSite: cfg.Cookies.SameSite,
	})
}

func clearSessionCookie(w http.ResponseWriter, cfg oidcsession.Config) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Cookies.Secure,
		SameSite: cfg.Cookies.SameSite,
	})
}
