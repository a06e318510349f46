package flows

import (
	"context"
	"time"

	"github.com/webauthkit/oidcsession/session"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureNotFound
	ValidateFailureProfileMissing
	ValidateFailureUnrecoverable
	ValidateFailureRefreshRejected
	ValidateFailureRefreshTransport
	ValidateFailureRefreshInternal
)

// ValidateResult returns the (user, session) pair or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	User    *session.User
	Session *session.Session
	// Rotated reports that the session id changed and the caller must
	// propagate the new id to the client cookie.
	Rotated bool
	// Scrubbed reports that an expired access token was cleared on read.
	Scrubbed bool
}

type ValidateSessionStore interface {
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	GetUserSnapshot(ctx context.Context, userID string) (*session.User, error)
	Update(ctx context.Context, sess *session.Session) error
}

// ValidateDeps captures validation flow dependencies.
type ValidateDeps struct {
	Now          func() time.Time
	RefreshLead  time.Duration
	Refresh      func(ctx context.Context, sess *session.Session) RefreshResult
	Warn         func(string, ...any)
	SessionStore ValidateSessionStore
}

// RunValidate resolves a session id to its (user, session) pair, applies the
// scrub-on-expired-read invariant, and refreshes through the rotation flow
// when the staleness predicate holds.
func RunValidate(ctx context.Context, sessionID string, deps ValidateDeps) ValidateResult {
	sess, err := deps.SessionStore.Get(ctx, sessionID)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureNotFound, Err: err}
	}

	user, err := deps.SessionStore.GetUserSnapshot(ctx, sess.UserID)
	if err != nil {
		// A session without its profile snapshot is fully invalid even
		// though the record exists.
		return ValidateResult{Failure: ValidateFailureProfileMissing, Err: err}
	}

	now := deps.Now()

	// Never serve a stale but present access token: scrub it and persist
	// the scrub before the session leaves the store layer.
	scrubbed := false
	if sess.AccessToken != "" && sess.AccessTokenExpired(now) {
		sess.AccessToken = ""
		scrubbed = true
		if err := deps.SessionStore.Update(ctx, sess); err != nil {
			deps.Warn("oidcsession: persisting access-token scrub failed")
		}
	}

	if NeedsRefresh(sess, now, deps.RefreshLead) {
		if sess.RefreshToken == "" {
			return ValidateResult{Failure: ValidateFailureUnrecoverable}
		}

		res := deps.Refresh(ctx, sess)
		switch res.Failure {
		case RefreshFailureNone:
			return ValidateResult{User: user, Session: res.Session, Rotated: true, Scrubbed: scrubbed}
		case RefreshFailureRejected:
			return ValidateResult{Failure: ValidateFailureRefreshRejected, Err: res.Err, Scrubbed: scrubbed}
		case RefreshFailureTransport:
			return ValidateResult{Failure: ValidateFailureRefreshTransport, Err: res.Err, Scrubbed: scrubbed}
		default:
			return ValidateResult{Failure: ValidateFailureRefreshInternal, Err: res.Err, Scrubbed: scrubbed}
		}
	}

	return ValidateResult{User: user, Session: sess, Scrubbed: scrubbed}
}
