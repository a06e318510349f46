package webflow

import (
	"encoding/json"
	"net/http"

	oidcsession "github.com/webauthkit/oidcsession"
)

// SessionState serves the client-visible session projection the monitor
// polls. Cookie rotation applies here too: a refresh mid-fetch re-issues
// the session cookie in the same response.
func (h *Handlers) SessionState(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionCookie(r)

	ctx := oidcsession.WithClientIP(r.Context(), r.RemoteAddr)
	user, sess, err := h.manager.Validate(ctx, sessionID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if sess == nil {
		if sessionID != "" {
			h.clearSessionCookie(w)
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if sess.ID != sessionID {
		h.setSessionCookie(w, sess.ID)
	}

	state := oidcsession.SessionState{
		AccessTokenExpiresAt: sess.AccessTokenExpiresAt,
		Error:                sess.Error,
	}
	if user != nil {
		state.UserID = user.ID
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(state)
}
