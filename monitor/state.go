package monitor

import "time"

// State defines a public type used by the session lifecycle engine.
//
// State is the monitor's primary lifecycle position. Probing is orthogonal
// and reported separately by [Monitor.Probing].
type State int

const (
	// StateUnknown is an exported constant or variable used by the session lifecycle engine.
	StateUnknown State = iota
	// StateValid is an exported constant or variable used by the session lifecycle engine.
	StateValid
	// StateExpiringSoon is an exported constant or variable used by the session lifecycle engine.
	StateExpiringSoon
	// StateRefreshing is an exported constant or variable used by the session lifecycle engine.
	StateRefreshing
	// StateLoggedOut is an exported constant or variable used by the session lifecycle engine.
	StateLoggedOut
)

var stateNames = map[State]string{
	StateUnknown:      "unknown",
	StateValid:        "valid",
	StateExpiringSoon: "expiring_soon",
	StateRefreshing:   "refreshing",
	StateLoggedOut:    "logged_out",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// SessionState is the server-reported session projection the monitor
// consumes. It mirrors the engine's wire shape without importing it.
type SessionState struct {
	UserID               string `json:"userId,omitempty"`
	AccessTokenExpiresAt int64  `json:"accessTokenExpiresAt,omitempty"`
	Error                string `json:"error,omitempty"`
}

// Invalid reports whether the state is unusable for authenticated calls:
// absent, carrying a sticky error, missing its user, or already expired.
func (s *SessionState) Invalid(now time.Time) bool {
	if s == nil || s.UserID == "" || s.Error != "" {
		return true
	}
	return s.AccessTokenExpiresAt != 0 && now.UnixMilli() > s.AccessTokenExpiresAt
}

// UserState is the locally cached user profile.
type UserState struct {
	ID       string
	Name     string
	Nickname string
	FullName string
	Email    string
}

// ReduceUser produces the next cached user from the current one and a
// partial update. A nil update is an explicit clear, not a merge; otherwise
// non-empty update fields override field-wise.
func ReduceUser(current, update *UserState) *UserState {
	if update == nil {
		return nil
	}
	next := UserState{}
	if current != nil {
		next = *current
	}
	if update.ID != "" {
		next.ID = update.ID
	}
	if update.Name != "" {
		next.Name = update.Name
	}
	if update.Nickname != "" {
		next.Nickname = update.Nickname
	}
	if update.FullName != "" {
		next.FullName = update.FullName
	}
	if update.Email != "" {
		next.Email = update.Email
	}
	return &next
}
