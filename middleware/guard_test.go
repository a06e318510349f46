package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	oidcsession "github.com/webauthkit/oidcsession"
	"github.com/webauthkit/oidcsession/provider"
	"github.com/webauthkit/oidcsession/session"
)

const testHexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

type staticIdentityProvider struct {
	tokens   provider.Tokens
	userinfo provider.UserInfo
}

func (s *staticIdentityProvider) AuthCodeURL(state, _ string, _ provider.AuthCodeURLOptions) string {
	return "https://idp.example/authorize?state=" + state
}

func (s *staticIdentityProvider) Exchange(context.Context, string, string) (*provider.Tokens, error) {
	cp := s.tokens
	return &cp, nil
}

func (s *staticIdentityProvider) Refresh(context.Context, string) (*provider.Tokens, error) {
	cp := s.tokens
	return &cp, nil
}

func (s *staticIdentityProvider) Userinfo(context.Context, string) (*provider.UserInfo, error) {
	cp := s.userinfo
	return &cp, nil
}

func (s *staticIdentityProvider) LogoutURL(string, string) string { return "" }

func newGuardTest(t *testing.T) (*oidcsession.Manager, *session.Store, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := oidcsession.DefaultConfig()
	cfg.App.URL = "https://app.example"
	cfg.Encryption.HexKey = testHexKey

	idp := &staticIdentityProvider{
		tokens: provider.Tokens{
			AccessToken:  "at-2",
			RefreshToken: "rt-2",
			IDToken:      "idt",
			ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
		},
		userinfo: provider.UserInfo{Sub: "u1", Name: "alice"},
	}

	manager, err := oidcsession.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithProvider(idp).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	codec, err := session.NewCodec(testHexKey)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	store := session.NewStore(rdb, codec, "app:session:", 24*time.Hour)

	return manager, store, func() {
		_ = manager.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func seedSession(t *testing.T, store *session.Store, sess *session.Session) {
	t.Helper()
	ctx := context.Background()

	err := store.PutUserSnapshot(ctx, &session.User{ID: sess.UserID, Identifier: sess.UserID, TrackingID: "t1"})
	if err != nil {
		t.Fatalf("PutUserSnapshot failed: %v", err)
	}
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
}

func okHandler(t *testing.T, sawPair *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pair, ok := FromContext(r.Context())
		if ok && pair.User != nil && pair.Session != nil {
			*sawPair = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireSessionRejectsMissingCookie(t *testing.T) {
	manager, _, done := newGuardTest(t)
	defer done()

	saw := false
	h := RequireSession(manager)(okHandler(t, &saw))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if saw {
		t.Fatal("handler ran without a session")
	}
}

func TestRequireSessionAcceptsValidCookie(t *testing.T) {
	manager, store, done := newGuardTest(t)
	defer done()

	seedSession(t, store, &session.Session{
		ID:                   "s1",
		UserID:               "u1",
		AccessToken:          "at-1",
		RefreshToken:         "rt-1",
		AccessTokenExpiresAt: time.Now().Add(time.Hour).UnixMilli(),
	})

	saw := false
	h := RequireSession(manager)(okHandler(t, &saw))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "app_session", Value: "s1"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !saw {
		t.Fatal("handler did not receive the session pair")
	}
	// No rotation happened, so no cookie is re-issued.
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("unexpected cookies: %v", rec.Result().Cookies())
	}
}

func TestRequireSessionRotatesCookieOnRefresh(t *testing.T) {
	manager, store, done := newGuardTest(t)
	defer done()

	seedSession(t, store, &session.Session{
		ID:                   "stale",
		UserID:               "u1",
		AccessToken:          "at-1",
		RefreshToken:         "rt-1",
		AccessTokenExpiresAt: time.Now().Add(-time.Second).UnixMilli(),
	})

	saw := false
	h := RequireSession(manager)(okHandler(t, &saw))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "app_session", Value: "stale"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var rotated *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "app_session" {
			rotated = c
		}
	}
	if rotated == nil {
		t.Fatal("expected a rotated session cookie")
	}
	if rotated.Value == "stale" || rotated.Value == "" {
		t.Fatalf("cookie was not rotated: %q", rotated.Value)
	}
	if !rotated.HttpOnly {
		t.Fatal("session cookie must be httpOnly")
	}
}

func TestRequireSessionClearsCookieOnInvalidSession(t *testing.T) {
	manager, _, done := newGuardTest(t)
	defer done()

	h := RequireSession(manager)(okHandler(t, new(bool)))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "app_session", Value: "ghost"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "app_session" {
			cleared = c
		}
	}
	if cleared == nil || cleared.Value != "" || cleared.MaxAge != -1 {
		t.Fatalf("expected a cleared session cookie, got %+v", cleared)
	}
}

func TestOptionalSessionPassesThroughWithoutSession(t *testing.T) {
	manager, _, done := newGuardTest(t)
	defer done()

	saw := false
	h := OptionalSession(manager)(okHandler(t, &saw))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if saw {
		t.Fatal("pair must be absent without a session")
	}
}
