package oidcsession

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/webauthkit/oidcsession/internal"
	"github.com/webauthkit/oidcsession/internal/flows"
	"github.com/webauthkit/oidcsession/provider"
	"github.com/webauthkit/oidcsession/session"
)

// IdentityProvider is the OpenID-Connect surface the Manager consumes.
// *provider.Provider implements it; tests substitute fakes.
type IdentityProvider interface {
	AuthCodeURL(state, codeVerifier string, opts provider.AuthCodeURLOptions) string
	Exchange(ctx context.Context, code, codeVerifier string) (*provider.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*provider.Tokens, error)
	Userinfo(ctx context.Context, accessToken string) (*provider.UserInfo, error)
	LogoutURL(idTokenHint, postLogoutRedirectURI string) string
}

// Manager defines a public type used by the session lifecycle engine.
//
// Manager is the engine facade: it owns the encrypted Redis store, the
// identity-provider binding, and the validate/create/invalidate lifecycle.
// A Manager is safe for concurrent use and must be constructed through the
// [Builder].
type Manager struct {
	config  Config
	idp     IdentityProvider
	audit   *auditDispatcher
	metrics *Metrics
	now     func() time.Time

	// Exactly one of conn (lazy) or an injected client (eager) backs the
	// store. The lazy path defers Redis I/O to the first operation.
	conn    *session.Conn
	storeMu sync.Mutex
	st      *session.Store
	codec   *session.Codec
}

func (m *Manager) store(ctx context.Context) *session.Store {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	if m.st == nil {
		m.st = session.NewStore(m.conn.Acquire(ctx), m.codec, m.config.Session.RedisPrefix, m.config.Session.TTL)
	}
	return m.st
}

// Validate resolves a session id to its (user, session) pair.
//
// The contract is null-pair-or-value: any unusable session, including one
// whose refresh token was rejected, yields (nil, nil, nil) rather than an
// error. The returned session may carry a sticky Error marker; callers
// decide whether a degraded session is acceptable for their purpose. When
// the returned session's id differs from the presented one, the refresh
// flow rotated it and the caller must re-issue the client cookie.
func (m *Manager) Validate(ctx context.Context, sessionID string) (*session.User, *session.Session, error) {
	if m == nil {
		return nil, nil, ErrManagerNotReady
	}
	if sessionID == "" {
		return nil, nil, nil
	}

	res := flows.RunValidate(ctx, sessionID, flows.ValidateDeps{
		Now:          m.now,
		RefreshLead:  m.config.Refresh.Lead,
		Refresh:      m.refresh,
		Warn:         warn,
		SessionStore: m.store(ctx),
	})

	if res.Scrubbed {
		m.metrics.Inc(MetricAccessTokenScrubbed)
	}

	switch res.Failure {
	case flows.ValidateFailureNone:
		m.metrics.Inc(MetricValidateSuccess)
		if res.Rotated {
			m.metrics.Inc(MetricRefreshSuccess)
			m.emitAudit(ctx, auditEventSessionRefreshed, res.Session.UserID, res.Session.ID, true, nil)
		}
		return res.User, res.Session, nil

	case flows.ValidateFailureRefreshRejected:
		m.metrics.Inc(MetricRefreshRejected)
		m.metrics.Inc(MetricSessionDegraded)
		m.emitAudit(ctx, auditEventSessionDegraded, "", sessionID, false, res.Err)
		return nil, nil, nil

	case flows.ValidateFailureRefreshTransport:
		m.metrics.Inc(MetricRefreshTransportError)
		m.emitAudit(ctx, auditEventRefreshFailed, "", sessionID, false, res.Err)
		warn("oidcsession: token refresh failed on transport, treating session as invalid")
		return nil, nil, nil

	default:
		m.metrics.Inc(MetricValidateFailure)
		return nil, nil, nil
	}
}

func (m *Manager) refresh(ctx context.Context, sess *session.Session) flows.RefreshResult {
	return flows.RunRefresh(ctx, sess, flows.RefreshDeps{
		NewSessionID: newSessionID,
		RefreshTokens: func(ctx context.Context, refreshToken string) (string, string, string, int64, error) {
			tok, err := m.idp.Refresh(ctx, refreshToken)
			if err != nil {
				return "", "", "", 0, err
			}
			return tok.AccessToken, tok.RefreshToken, tok.IDToken, tok.ExpiresAt, nil
		},
		IsRejected: func(err error) bool {
			return errors.Is(err, provider.ErrRejected)
		},
		Now:          m.now,
		SessionTTL:   m.config.Session.TTL,
		Warn:         warn,
		SessionStore: m.store(ctx),
	})
}

// CreateFromAuthorizationCode redeems an authorization code, fetches the
// userinfo profile, persists the profile snapshot, and creates a fresh
// session. The id_token subject is cross-checked against the userinfo
// subject; a disagreement aborts with [ErrIDTokenSubjectMismatch].
func (m *Manager) CreateFromAuthorizationCode(ctx context.Context, code, codeVerifier string) (*session.User, *session.Session, error) {
	if m == nil {
		return nil, nil, ErrManagerNotReady
	}

	tokens, err := m.idp.Exchange(ctx, code, codeVerifier)
	if err != nil {
		m.emitAudit(ctx, auditEventSessionCreated, "", "", false, err)
		return nil, nil, err
	}

	claims, err := provider.ParseIDTokenClaims(tokens.IDToken)
	if err != nil {
		// Claims are advisory here; the userinfo response remains the
		// profile source of truth.
		warn("oidcsession: id_token claims unreadable, skipping subject cross-check")
		claims = nil
	}

	info, err := m.idp.Userinfo(ctx, tokens.AccessToken)
	if err != nil {
		m.emitAudit(ctx, auditEventSessionCreated, "", "", false, err)
		return nil, nil, err
	}
	if claims != nil && claims.Subject != info.Sub {
		m.emitAudit(ctx, auditEventSessionCreated, info.Sub, "", false, ErrIDTokenSubjectMismatch)
		return nil, nil, ErrIDTokenSubjectMismatch
	}

	user := &session.User{
		ID:         info.Sub,
		Identifier: info.Sub,
		TrackingID: info.TrackingID,
		Name:       info.Name,
		Nickname:   info.Nickname,
		FullName:   info.FullName(),
		Email:      info.Email,
	}
	if user.TrackingID == "" {
		user.TrackingID = uuid.NewString()
	}

	st := m.store(ctx)
	if err := st.PutUserSnapshot(ctx, user); err != nil {
		return nil, nil, err
	}

	sid, err := newSessionID()
	if err != nil {
		return nil, nil, err
	}
	sess := &session.Session{
		ID:                   sid,
		UserID:               user.ID,
		AccessToken:          tokens.AccessToken,
		RefreshToken:         tokens.RefreshToken,
		IDToken:              tokens.IDToken,
		AccessTokenExpiresAt: tokens.ExpiresAt,
		ExpiresAt:            m.now().Add(m.config.Session.TTL).UnixMilli(),
		CreatedFresh:         true,
	}
	if err := st.Put(ctx, sess); err != nil {
		return nil, nil, err
	}

	m.metrics.Inc(MetricSessionCreated)
	m.emitAudit(ctx, auditEventSessionCreated, user.ID, sess.ID, true, nil)

	return user, sess, nil
}

// Invalidate removes one session. Absent sessions invalidate without error.
func (m *Manager) Invalidate(ctx context.Context, sessionID string) error {
	if m == nil {
		return ErrManagerNotReady
	}
	if sessionID == "" {
		return nil
	}

	if err := m.store(ctx).Delete(ctx, sessionID); err != nil {
		return err
	}

	m.metrics.Inc(MetricSessionInvalidated)
	m.emitAudit(ctx, auditEventSessionInvalidated, "", sessionID, true, nil)
	return nil
}

// InvalidateAllForUser removes every session listed in the user's index.
func (m *Manager) InvalidateAllForUser(ctx context.Context, userID string) error {
	if m == nil {
		return ErrManagerNotReady
	}

	if err := m.store(ctx).DeleteAllForUser(ctx, userID); err != nil {
		return err
	}

	m.metrics.Inc(MetricLogoutAll)
	m.emitAudit(ctx, auditEventLogoutAll, userID, "", true, nil)
	return nil
}

// State projects a session into the client-visible wire shape. It returns
// [ErrUnauthorized] when no valid session backs the id. Degraded records
// resolve to [ErrUnauthorized] as well: they are diagnostic, not
// credentials, so the Error marker never travels to the client.
func (m *Manager) State(ctx context.Context, sessionID string) (*SessionState, error) {
	if m == nil {
		return nil, ErrManagerNotReady
	}

	user, sess, err := m.Validate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrUnauthorized
	}

	state := &SessionState{
		AccessTokenExpiresAt: sess.AccessTokenExpiresAt,
		Error:                sess.Error,
	}
	if user != nil {
		state.UserID = user.ID
	}
	return state, nil
}

// LogoutURL builds the provider-side logout deep-link for a session, falling
// back to the application origin when the provider exposes no logout
// endpoint or the session carries no id_token.
func (m *Manager) LogoutURL(sess *session.Session, postLogoutRedirectURI string) string {
	if postLogoutRedirectURI == "" {
		postLogoutRedirectURI = m.config.App.URL
	}
	if sess == nil || sess.IDToken == "" {
		return m.config.App.URL
	}
	if u := m.idp.LogoutURL(sess.IDToken, postLogoutRedirectURI); u != "" {
		return u
	}
	return m.config.App.URL
}

// AuthCodeURL builds the provider authorization URL through the bound
// identity provider.
func (m *Manager) AuthCodeURL(state, codeVerifier string, opts provider.AuthCodeURLOptions) string {
	return m.idp.AuthCodeURL(state, codeVerifier, opts)
}

// Ping reports store reachability and round-trip latency.
func (m *Manager) Ping(ctx context.Context) (time.Duration, error) {
	if m == nil {
		return 0, ErrManagerNotReady
	}
	return m.store(ctx).Ping(ctx)
}

// Config returns a copy of the effective configuration.
func (m *Manager) Config() Config {
	return cloneConfig(m.config)
}

// MetricsSnapshot returns a point-in-time copy of the lifecycle counters.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	return m.metrics.Snapshot()
}

// AuditDropped reports how many audit events the dispatcher discarded.
func (m *Manager) AuditDropped() uint64 {
	return m.audit.Dropped()
}

// Close drains the audit dispatcher and, when the Manager owns its Redis
// connection, closes it. Injected clients are left to their owner.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.audit.Close()
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}

func (m *Manager) emitAudit(ctx context.Context, eventType, userID, sessionID string, success bool, cause error) {
	if m.audit == nil {
		return
	}
	m.audit.Emit(ctx, newAuditEvent(eventType, userID, sessionID, clientIPFromContext(ctx), success, cause))
}

func newSessionID() (string, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return "", err
	}
	return sid.String(), nil
}

func warn(msg string, _ ...any) {
	log.Print(msg)
}
