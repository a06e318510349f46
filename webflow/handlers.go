package webflow

import (
	"log"
	"net/http"
	"strings"

	oidcsession "github.com/webauthkit/oidcsession"
	"github.com/webauthkit/oidcsession/provider"
)

// Pre-auth cookie names. Short-lived, bound by Config.Cookies.PreAuthTTL.
const (
	cookieState        = "oauth_state"
	cookieCodeVerifier = "oauth_code_verifier"
	cookieReferer      = "oauth_referer"
)

// Handlers bundles the HTTP endpoints of the login/logout flow around one
// Manager.
type Handlers struct {
	manager *oidcsession.Manager
	cfg     oidcsession.Config
}

// NewHandlers wires the flow handlers to a built Manager.
func NewHandlers(manager *oidcsession.Manager) *Handlers {
	return &Handlers{manager: manager, cfg: manager.Config()}
}

// Login issues the pre-auth cookies and redirects to the provider's
// authorization endpoint. A "silent" query parameter selects prompt=none;
// the silent SSO probe uses that variant as its frame source.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := provider.GenerateState()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	verifier, err := provider.GenerateCodeVerifier()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.setPreAuthCookie(w, cookieState, state)
	h.setPreAuthCookie(w, cookieCodeVerifier, verifier)
	if ref := r.Referer(); h.sameOrigin(ref) {
		h.setPreAuthCookie(w, cookieReferer, ref)
	}

	silent := r.URL.Query().Get("silent") == "1"
	url := h.manager.AuthCodeURL(state, verifier, provider.AuthCodeURLOptions{PromptNone: silent})
	http.Redirect(w, r, url, http.StatusFound)
}

// Callback finishes the authorization-code flow: state check, code
// exchange, session cookie issuance, pre-auth cleanup, and the redirect
// back to the recorded referer. Provider-reported errors (including
// login_required from a silent attempt) land on the error page.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		h.clearPreAuthCookies(w)
		log.Print("oidcsession: authorization callback carried a provider error")
		h.redirectError(w, r)
		return
	}

	state := q.Get("state")
	if state == "" || state != h.preAuthCookie(r, cookieState) {
		h.clearPreAuthCookies(w)
		h.redirectError(w, r)
		return
	}

	code := q.Get("code")
	verifier := h.preAuthCookie(r, cookieCodeVerifier)
	referer := h.preAuthCookie(r, cookieReferer)
	h.clearPreAuthCookies(w)

	ctx := oidcsession.WithClientIP(r.Context(), r.RemoteAddr)
	_, sess, err := h.manager.CreateFromAuthorizationCode(ctx, code, verifier)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.setSessionCookie(w, sess.ID)

	target := h.cfg.App.URL
	if h.sameOrigin(referer) {
		target = referer
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Logout invalidates the presented session, clears the session cookie, and
// redirects to the provider logout deep-link parameterized with the
// session's id_token, falling back to the application origin.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionCookie(r)

	ctx := oidcsession.WithClientIP(r.Context(), r.RemoteAddr)
	_, sess, err := h.manager.Validate(ctx, sessionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if sess != nil {
		if err := h.manager.Invalidate(ctx, sess.ID); err != nil {
			log.Print("oidcsession: logout invalidation failed")
		}
	} else if sessionID != "" {
		// Unresolvable cookie: best-effort delete of the raw id.
		_ = h.manager.Invalidate(ctx, sessionID)
	}

	h.clearSessionCookie(w)
	http.Redirect(w, r, h.manager.LogoutURL(sess, ""), http.StatusFound)
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	log.Print("oidcsession: web flow failed: " + err.Error())
	h.redirectError(w, r)
}

func (h *Handlers) redirectError(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/auth/error", http.StatusFound)
}

func (h *Handlers) sameOrigin(rawURL string) bool {
	return rawURL != "" && h.cfg.App.URL != "" && strings.HasPrefix(rawURL, h.cfg.App.URL)
}

func (h *Handlers) setPreAuthCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(h.cfg.Cookies.PreAuthTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.Cookies.Secure,
		SameSite: h.cfg.Cookies.SameSite,
	})
}

func (h *Handlers) preAuthCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *Handlers) clearPreAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{cookieState, cookieCodeVerifier, cookieReferer} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.cfg.Cookies.Secure,
			SameSite: h.cfg.Cookies.SameSite,
		})
	}
}

func (h *Handlers) sessionCookie(r *http.Request) string {
	c, err := r.Cookie(h.cfg.Session.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// setSessionCookie deliberately sets no expiry: semantic expiry is the
// store-side TTL, not the cookie lifetime.
func (h *Handlers) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.Session.CookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.Cookies.Secure,
		SameSite: h.cfg.Cookies.SameSite,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.Cookies.Secure,
		SameSite: h.cfg.Cookies.SameSite,
	})
}
