package flows

import (
	"context"
	"time"

	"github.com/webauthkit/oidcsession/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureNoRefreshToken
	RefreshFailureSessionID
	RefreshFailureRejected
	RefreshFailureTransport
	RefreshFailurePersist
)

// RefreshResult carries either the rotated session or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	// Session is the rotated record on success, or the persisted degraded
	// record when the provider rejected the refresh token.
	Session *session.Session
}

type RefreshSessionStore interface {
	Put(ctx context.Context, sess *session.Session) error
	Delete(ctx context.Context, sessionID string) error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	NewSessionID  func() (string, error)
	RefreshTokens func(ctx context.Context, refreshToken string) (access, refresh, idToken string, expiresAt int64, err error)
	IsRejected    func(error) bool
	Now           func() time.Time
	SessionTTL    time.Duration
	Warn          func(string, ...any)
	SessionStore  RefreshSessionStore
}

// RunRefresh executes the refresh-token exchange and session rotation
// without root package dependencies.
//
// Rotation semantics: the refreshed (or degraded) record is persisted under
// a fresh session id and the old id is deleted immediately after. From the
// caller's point of view the swap is atomic for writes; a brief read overlap
// of both ids is tolerated.
func RunRefresh(ctx context.Context, sess *session.Session, deps RefreshDeps) RefreshResult {
	if sess.RefreshToken == "" {
		return RefreshResult{Failure: RefreshFailureNoRefreshToken}
	}

	rotatedID, err := deps.NewSessionID()
	if err != nil {
		return RefreshResult{Failure: RefreshFailureSessionID, Err: err}
	}

	now := deps.Now()
	access, refresh, idToken, expiresAt, err := deps.RefreshTokens(ctx, sess.RefreshToken)
	if err != nil {
		if !deps.IsRejected(err) {
			return RefreshResult{Failure: RefreshFailureTransport, Err: err}
		}

		// Protocol rejection: record the failure as a degraded session so
		// the client-visible state is queryable instead of silently gone.
		degraded := &session.Session{
			ID:                   rotatedID,
			UserID:               sess.UserID,
			AccessToken:          sess.AccessToken,
			IDToken:              sess.IDToken,
			AccessTokenExpiresAt: sess.AccessTokenExpiresAt,
			Error:                session.RefreshAccessTokenError,
			ExpiresAt:            now.Add(deps.SessionTTL).UnixMilli(),
			CreatedFresh:         true,
		}
		if putErr := deps.SessionStore.Put(ctx, degraded); putErr != nil {
			deps.Warn("oidcsession: persisting degraded session failed")
			return RefreshResult{Failure: RefreshFailurePersist, Err: putErr}
		}
		if delErr := deps.SessionStore.Delete(ctx, sess.ID); delErr != nil {
			deps.Warn("oidcsession: deleting pre-rotation session failed")
		}
		return RefreshResult{Failure: RefreshFailureRejected, Err: err, Session: degraded}
	}

	if refresh == "" {
		refresh = sess.RefreshToken
	}
	if idToken == "" {
		idToken = sess.IDToken
	}

	rotated := &session.Session{
		ID:                   rotatedID,
		UserID:               sess.UserID,
		AccessToken:          access,
		RefreshToken:         refresh,
		IDToken:              idToken,
		AccessTokenExpiresAt: expiresAt,
		ExpiresAt:            now.Add(deps.SessionTTL).UnixMilli(),
		CreatedFresh:         true,
	}

	if err := deps.SessionStore.Put(ctx, rotated); err != nil {
		return RefreshResult{Failure: RefreshFailurePersist, Err: err}
	}
	if err := deps.SessionStore.Delete(ctx, sess.ID); err != nil {
		deps.Warn("oidcsession: deleting pre-rotation session failed")
	}

	return RefreshResult{Session: rotated}
}

// NeedsRefresh is the staleness predicate: the session has no access token,
// or now is within lead of the access-token expiry. Whether a refresh can
// actually run additionally requires a refresh token.
func NeedsRefresh(sess *session.Session, now time.Time, lead time.Duration) bool {
	if sess.AccessToken == "" {
		return true
	}
	return now.UnixMilli() > sess.AccessTokenExpiresAt-lead.Milliseconds()
}
