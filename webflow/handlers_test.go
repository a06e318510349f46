package webflow

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	oidcsession "github.com/webauthkit/oidcsession"
	"github.com/webauthkit/oidcsession/provider"
)

const testHexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func testIDToken(t *testing.T, sub string) string {
	t.Helper()

	seg := func(v any) string {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal claims: %v", err)
		}
		return base64.RawURLEncoding.EncodeToString(data)
	}
	header := seg(map[string]string{"alg": "none", "typ": "JWT"})
	claims := seg(map[string]any{"sub": sub, "exp": time.Now().Add(time.Hour).Unix()})
	return header + "." + claims + "."
}

type flowIdentityProvider struct {
	t            *testing.T
	lastExchange struct{ code, verifier string }
	logoutURL    string
}

func (f *flowIdentityProvider) AuthCodeURL(state, verifier string, opts provider.AuthCodeURLOptions) string {
	u := "https://idp.example/authorize?state=" + url.QueryEscape(state) +
		"&code_challenge=" + url.QueryEscape(provider.CodeChallengeS256(verifier))
	if opts.PromptNone {
		u += "&prompt=none"
	}
	return u
}

func (f *flowIdentityProvider) Exchange(_ context.Context, code, verifier string) (*provider.Tokens, error) {
	f.lastExchange.code = code
	f.lastExchange.verifier = verifier
	return &provider.Tokens{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		IDToken:      testIDToken(f.t, "u1"),
		ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
	}, nil
}

func (f *flowIdentityProvider) Refresh(context.Context, string) (*provider.Tokens, error) {
	return &provider.Tokens{
		AccessToken:  "at-2",
		RefreshToken: "rt-2",
		IDToken:      testIDToken(f.t, "u1"),
		ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
	}, nil
}

func (f *flowIdentityProvider) Userinfo(context.Context, string) (*provider.UserInfo, error) {
	return &provider.UserInfo{Sub: "u1", GivenName: "Alice", FamilyName: "Example"}, nil
}

func (f *flowIdentityProvider) LogoutURL(idTokenHint, _ string) string {
	if f.logoutURL == "" {
		return ""
	}
	return f.logoutURL + "?id_token_hint=" + url.QueryEscape(idTokenHint)
}

func newFlowTest(t *testing.T) (*Handlers, *flowIdentityProvider, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := oidcsession.DefaultConfig()
	cfg.App.URL = "https://app.example"
	cfg.Encryption.HexKey = testHexKey

	idp := &flowIdentityProvider{t: t}
	manager, err := oidcsession.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithProvider(idp).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	return NewHandlers(manager), idp, func() {
		_ = manager.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginSetsPreAuthCookiesAndRedirects(t *testing.T) {
	h, _, done := newFlowTest(t)
	defer done()

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req.Header.Set("Referer", "https://app.example/dashboard")
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}

	stateCookie := responseCookie(rec, "oauth_state")
	verifierCookie := responseCookie(rec, "oauth_code_verifier")
	refererCookie := responseCookie(rec, "oauth_referer")
	if stateCookie == nil || stateCookie.Value == "" {
		t.Fatal("oauth_state cookie missing")
	}
	if verifierCookie == nil || verifierCookie.Value == "" {
		t.Fatal("oauth_code_verifier cookie missing")
	}
	if refererCookie == nil || refererCookie.Value != "https://app.example/dashboard" {
		t.Fatalf("oauth_referer cookie missing or wrong: %+v", refererCookie)
	}
	if stateCookie.MaxAge != int((10 * time.Minute).Seconds()) {
		t.Fatalf("pre-auth cookie lifetime wrong: %d", stateCookie.MaxAge)
	}

	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	q := loc.Query()
	if q.Get("state") != stateCookie.Value {
		t.Fatal("redirect state does not match the cookie")
	}
	if q.Get("code_challenge") != provider.CodeChallengeS256(verifierCookie.Value) {
		t.Fatal("redirect challenge does not match the verifier cookie")
	}
	if q.Has("prompt") {
		t.Fatal("interactive login must not request prompt=none")
	}
}

func TestLoginSilentVariantRequestsPromptNone(t *testing.T) {
	h, _, done := newFlowTest(t)
	defer done()

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodGet, "/auth/login?silent=1", nil))

	if !strings.Contains(rec.Header().Get("Location"), "prompt=none") {
		t.Fatalf("silent login must request prompt=none: %q", rec.Header().Get("Location"))
	}
}

func TestLoginIgnoresForeignReferer(t *testing.T) {
	h, _, done := newFlowTest(t)
	defer done()

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	req.Header.Set("Referer", "https://evil.example/")
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if responseCookie(rec, "oauth_referer") != nil {
		t.Fatal("foreign referer must not be recorded")
	}
}

func TestCallbackCreatesSessionAndRedirectsToReferer(t *testing.T) {
	h, idp, done := newFlowTest(t)
	defer done()

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=code-1&state=state-1", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "state-1"})
	req.AddCookie(&http.Cookie{Name: "oauth_code_verifier", Value: "verifier-1"})
	req.AddCookie(&http.Cookie{Name: "oauth_referer", Value: "https://app.example/reports"})
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "https://app.example/reports" {
		t.Fatalf("expected referer redirect, got %q", got)
	}
	if idp.lastExchange.code != "code-1" || idp.lastExchange.verifier != "verifier-1" {
		t.Fatalf("exchange saw wrong inputs: %+v", idp.lastExchange)
	}

	sessCookie := responseCookie(rec, "app_session")
	if sessCookie == nil || sessCookie.Value == "" {
		t.Fatal("session cookie missing after callback")
	}
	if !sessCookie.HttpOnly {
		t.Fatal("session cookie must be httpOnly")
	}
	for _, name := range []string{"oauth_state", "oauth_code_verifier", "oauth_referer"} {
		c := responseCookie(rec, name)
		if c == nil || c.MaxAge != -1 {
			t.Fatalf("pre-auth cookie %s not cleared", name)
		}
	}
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	h, idp, done := newFlowTest(t)
	defer done()

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=code-1&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "state-1"})
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/auth/error" {
		t.Fatalf("expected error redirect, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if idp.lastExchange.code != "" {
		t.Fatal("code must not be exchanged on state mismatch")
	}
	if responseCookie(rec, "app_session") != nil {
		t.Fatal("no session cookie on a failed callback")
	}
}

func TestCallbackRoutesProviderErrorToErrorPage(t *testing.T) {
	h, idp, done := newFlowTest(t)
	defer done()

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?error=login_required", nil)
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/auth/error" {
		t.Fatalf("expected error redirect, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if idp.lastExchange.code != "" {
		t.Fatal("code must not be exchanged on a provider error")
	}
}

func TestCallbackIgnoresForeignRefererCookie(t *testing.T) {
	h, _, done := newFlowTest(t)
	defer done()

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=code-1&state=state-1", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "state-1"})
	req.AddCookie(&http.Cookie{Name: "oauth_code_verifier", Value: "verifier-1"})
	req.AddCookie(&http.Cookie{Name: "oauth_referer", Value: "https://evil.example/phish"})
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if got := rec.Header().Get("Location"); got != "https://app.example" {
		t.Fatalf("foreign referer must fall back to the app origin, got %q", got)
	}
}

func TestLogoutClearsCookieAndRedirectsToProvider(t *testing.T) {
	h, idp, done := newFlowTest(t)
	defer done()
	idp.logoutURL = "https://idp.example/logout"

	// Establish a session through the callback first.
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=code-1&state=state-1", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "state-1"})
	req.AddCookie(&http.Cookie{Name: "oauth_code_verifier", Value: "verifier-1"})
	rec := httptest.NewRecorder()
	h.Callback(rec, req)
	sessCookie := responseCookie(rec, "app_session")
	if sessCookie == nil {
		t.Fatal("callback did not issue a session cookie")
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "app_session", Value: sessCookie.Value})
	rec = httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Location"), "https://idp.example/logout") {
		t.Fatalf("expected provider logout redirect, got %q", rec.Header().Get("Location"))
	}
	cleared := responseCookie(rec, "app_session")
	if cleared == nil || cleared.Value != "" || cleared.MaxAge != -1 {
		t.Fatalf("session cookie not cleared: %+v", cleared)
	}

	// The session is gone server-side too.
	req = httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: "app_session", Value: sessCookie.Value})
	rec = httptest.NewRecorder()
	h.SessionState(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestLogoutWithoutSessionFallsBackToAppOrigin(t *testing.T) {
	h, _, done := newFlowTest(t)
	defer done()

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodGet, "/auth/logout", nil))

	if got := rec.Header().Get("Location"); got != "https://app.example" {
		t.Fatalf("expected app-origin fallback, got %q", got)
	}
}

func TestSessionStateServesProjection(t *testing.T) {
	h, _, done := newFlowTest(t)
	defer done()

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=code-1&state=state-1", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "state-1"})
	req.AddCookie(&http.Cookie{Name: "oauth_code_verifier", Value: "verifier-1"})
	rec := httptest.NewRecorder()
	h.Callback(rec, req)
	sessCookie := responseCookie(rec, "app_session")
	if sessCookie == nil {
		t.Fatal("callback did not issue a session cookie")
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: "app_session", Value: sessCookie.Value})
	rec = httptest.NewRecorder()
	h.SessionState(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var state oidcsession.SessionState
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.UserID != "u1" {
		t.Fatalf("expected userId u1, got %q", state.UserID)
	}
	if state.AccessTokenExpiresAt <= time.Now().UnixMilli() {
		t.Fatal("expected a future access-token expiry")
	}
	if state.Error != "" {
		t.Fatalf("unexpected error marker %q", state.Error)
	}
}

func TestSessionStateRejectsUnknownCookie(t *testing.T) {
	h, _, done := newFlowTest(t)
	defer done()

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: "app_session", Value: "ghost"})
	rec := httptest.NewRecorder()
	h.SessionState(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	cleared := responseCookie(rec, "app_session")
	if cleared == nil || cleared.MaxAge != -1 {
		t.Fatalf("expected a cleared cookie, got %+v", cleared)
	}
}
