package monitor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrDesync is returned by Revalidate when the server-reported user id
// differs from the locally held one. The monitor has already requested a
// full reload by the time the caller sees it; there is no recovery path.
var ErrDesync = errors.New("client/server session identity desync")

// DefaultProbeTimeout bounds the silent SSO probe race.
const DefaultProbeTimeout = 5 * time.Second

// DefaultTimerLead is how long before access-token expiry the proactive
// timer fires.
const DefaultTimerLead = time.Minute

// Config tunes one monitor instance.
type Config struct {
	// Origin is the application origin; sso-check messages from any other
	// origin are dropped.
	Origin string
	// ProbeTimeout defaults to [DefaultProbeTimeout] when zero.
	ProbeTimeout time.Duration
	// TimerLead defaults to [DefaultTimerLead] when zero.
	TimerLead time.Duration
}

// Deps captures the environment the monitor runs in.
type Deps struct {
	// Fetch re-fetches the session projection from the server.
	Fetch func(ctx context.Context) (*SessionState, error)
	// Logout performs the server-side logout call.
	Logout func(ctx context.Context) error
	// Reload forces a full page reload. Desync recovery only.
	Reload func()
	// DataReload refetches application data after a successful probe.
	DataReload func()
	// AuthURL returns the prompt=none authorization URL the probe loads.
	AuthURL func() string
	// Probe launches the hidden frame.
	Probe ProbeLauncher
	// Flags backs the cross-context exclusion flags.
	Flags KV
	// Now is the time source; nil selects time.Now.
	Now func() time.Time
}

// Monitor defines a public type used by the session lifecycle engine.
//
// Monitor is the per-browser-context session state machine. All triggers
// funnel into [Monitor.Revalidate]; concurrent triggers collapse into one
// in-flight call through a single-flight group.
type Monitor struct {
	cfg  Config
	deps Deps

	sf singleflight.Group

	mu              sync.Mutex
	state           State
	probing         bool
	user            *UserState
	scheduledExpiry int64
	timer           *time.Timer
}

// NewMonitor wires a [Monitor]. Fetch is required; everything else defaults
// to inert implementations.
func NewMonitor(cfg Config, deps Deps) (*Monitor, error) {
	if deps.Fetch == nil {
		return nil, errors.New("monitor: Fetch is required")
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.TimerLead <= 0 {
		cfg.TimerLead = DefaultTimerLead
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Flags == nil {
		deps.Flags = NewMemoryKV()
	}

	return &Monitor{cfg: cfg, deps: deps, state: StateUnknown}, nil
}

// Start is the mount trigger.
func (m *Monitor) Start(ctx context.Context) (State, error) {
	return m.Revalidate(ctx)
}

// OnVisible is the visibility-change-to-visible trigger.
func (m *Monitor) OnVisible(ctx context.Context) (State, error) {
	return m.Revalidate(ctx)
}

// Revalidate is the single entry point behind every trigger. Concurrent
// callers join the in-flight run and share its result.
func (m *Monitor) Revalidate(ctx context.Context) (State, error) {
	v, err, _ := m.sf.Do("revalidate", func() (interface{}, error) {
		return m.revalidate(ctx)
	})
	return v.(State), err
}

// State returns the current lifecycle position.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Probing reports the orthogonal SSO-probe sub-state.
func (m *Monitor) Probing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probing
}

// User returns the locally cached user profile; nil once cleared.
func (m *Monitor) User() *UserState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// SetUser applies a partial profile update through [ReduceUser]. A nil
// update clears the cached user.
func (m *Monitor) SetUser(update *UserState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = ReduceUser(m.user, update)
}

// Close cancels the proactive timer. The monitor stays usable; the next
// adopted expiry re-arms it.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
	m.scheduledExpiry = 0
}

func (m *Monitor) revalidate(ctx context.Context) (State, error) {
	m.mu.Lock()
	if m.state == StateValid || m.state == StateExpiringSoon {
		m.state = StateRefreshing
	}
	m.mu.Unlock()

	st, err := m.deps.Fetch(ctx)
	if err != nil {
		st = nil
	}
	if desync, res, rerr := m.checkDesync(st); desync {
		return res, rerr
	}
	if st != nil && !st.Invalid(m.deps.Now()) {
		return m.adopt(st), nil
	}

	// Forced re-fetch: one more read-through before concluding the session
	// is gone. No further retries.
	st, err = m.deps.Fetch(ctx)
	if err != nil {
		st = nil
	}
	if desync, res, rerr := m.checkDesync(st); desync {
		return res, rerr
	}
	if st != nil && !st.Invalid(m.deps.Now()) {
		return m.adopt(st), nil
	}

	return m.probeAndResolve(ctx)
}

// checkDesync compares the server-reported user id with the local one. A
// mismatch is fatal: the page reloads instead of reconciling.
func (m *Monitor) checkDesync(st *SessionState) (bool, State, error) {
	if st == nil || st.UserID == "" {
		return false, StateUnknown, nil
	}

	m.mu.Lock()
	local := ""
	if m.user != nil {
		local = m.user.ID
	}
	state := m.state
	m.mu.Unlock()

	if local == "" || local == st.UserID {
		return false, StateUnknown, nil
	}
	if m.deps.Reload != nil {
		m.deps.Reload()
	}
	return true, state, ErrDesync
}

func (m *Monitor) adopt(st *SessionState) State {
	now := m.deps.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.user = ReduceUser(m.user, &UserState{ID: st.UserID})

	next := StateValid
	if st.AccessTokenExpiresAt != 0 && now.UnixMilli() > st.AccessTokenExpiresAt-m.cfg.TimerLead.Milliseconds() {
		next = StateExpiringSoon
	}
	m.state = next
	m.armTimerLocked(st.AccessTokenExpiresAt, now)
	return next
}

// armTimerLocked schedules the proactive re-validation one TimerLead before
// expiry. A new expiry is adopted only when it exceeds the currently
// scheduled one; rearming cancels the previous timer so at most one is
// outstanding.
func (m *Monitor) armTimerLocked(expiresAt int64, now time.Time) {
	if expiresAt == 0 || expiresAt <= m.scheduledExpiry {
		return
	}

	// Already inside the lead window: there is nothing proactive left to
	// schedule; the next natural trigger revalidates anyway.
	fireIn := time.UnixMilli(expiresAt).Add(-m.cfg.TimerLead).Sub(now)
	if fireIn <= 0 {
		return
	}

	m.stopTimerLocked()
	m.scheduledExpiry = expiresAt
	m.timer = time.AfterFunc(fireIn, func() {
		m.mu.Lock()
		m.scheduledExpiry = 0
		m.mu.Unlock()
		if _, err := m.Revalidate(context.Background()); err != nil {
			log.Print("oidcsession: timer-triggered revalidation failed")
		}
	})
}

func (m *Monitor) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// ScheduledExpiry reports the expiry instant the proactive timer is armed
// for, in Unix milliseconds; zero when no timer is outstanding.
func (m *Monitor) ScheduledExpiry() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scheduledExpiry
}

// probeAndResolve runs the silent SSO probe: race the sso-check message
// against the probe timeout, first resolution wins. A caller that loses the
// token-refresh flag treats the in-flight probe as authoritative and
// returns immediately.
func (m *Monitor) probeAndResolve(ctx context.Context) (State, error) {
	release, ok := namedMutex{kv: m.deps.Flags, name: FlagTokenRefresh}.tryAcquire()
	if !ok {
		return m.State(), nil
	}
	defer release()

	if m.deps.Probe == nil || m.deps.AuthURL == nil {
		return m.logout(ctx)
	}

	m.mu.Lock()
	m.probing = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.probing = false
		m.mu.Unlock()
	}()

	msgs, stop, err := m.deps.Probe.Launch(ctx, m.deps.AuthURL())
	if err != nil {
		log.Print("oidcsession: sso probe launch failed")
		return m.logout(ctx)
	}
	defer stop()

	timeout := time.NewTimer(m.cfg.ProbeTimeout)
	defer timeout.Stop()

	for {
		select {
		case msg, open := <-msgs:
			if !open {
				return m.logout(ctx)
			}
			// Foreign frames can post anything; only same-origin sso-check
			// messages decide the race.
			if msg.Origin != m.cfg.Origin || msg.Type != MessageTypeSSOCheck {
				continue
			}
			if msg.SSO {
				if m.deps.DataReload != nil {
					m.deps.DataReload()
				}
				m.mu.Lock()
				m.state = StateValid
				m.mu.Unlock()
				return StateValid, nil
			}
			return m.logout(ctx)

		case <-timeout.C:
			return m.logout(ctx)

		case <-ctx.Done():
			return m.State(), ctx.Err()
		}
	}
}

// logout runs the logout sequence under its own exclusion flag and clears
// the cached user. A losing caller still reports LoggedOut; the in-flight
// holder performs the actual server call.
func (m *Monitor) logout(ctx context.Context) (State, error) {
	release, ok := namedMutex{kv: m.deps.Flags, name: FlagLogout}.tryAcquire()
	if ok {
		defer release()
		if m.deps.Logout != nil {
			if err := m.deps.Logout(ctx); err != nil {
				log.Print("oidcsession: server logout call failed")
			}
		}
	}

	m.mu.Lock()
	m.user = ReduceUser(m.user, nil)
	m.state = StateLoggedOut
	m.stopTimerLocked()
	m.scheduledExpiry = 0
	m.mu.Unlock()

	return StateLoggedOut, nil
}
