package oidcsession

import "sync/atomic"

// MetricID defines a public type used by the session lifecycle engine.
//
// MetricID values index the engine's lock-free counters; the set is fixed
// at compile time.
type MetricID uint16

const (
	// MetricValidateSuccess is an exported constant or variable used by the session lifecycle engine.
	MetricValidateSuccess MetricID = iota
	// MetricValidateFailure is an exported constant or variable used by the session lifecycle engine.
	MetricValidateFailure
	// MetricRefreshSuccess is an exported constant or variable used by the session lifecycle engine.
	MetricRefreshSuccess
	// MetricRefreshRejected is an exported constant or variable used by the session lifecycle engine.
	MetricRefreshRejected
	// MetricRefreshTransportError is an exported constant or variable used by the session lifecycle engine.
	MetricRefreshTransportError
	// MetricAccessTokenScrubbed is an exported constant or variable used by the session lifecycle engine.
	MetricAccessTokenScrubbed
	// MetricSessionCreated is an exported constant or variable used by the session lifecycle engine.
	MetricSessionCreated
	// MetricSessionDegraded is an exported constant or variable used by the session lifecycle engine.
	MetricSessionDegraded
	// MetricSessionInvalidated is an exported constant or variable used by the session lifecycle engine.
	MetricSessionInvalidated
	// MetricLogoutAll is an exported constant or variable used by the session lifecycle engine.
	MetricLogoutAll

	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricValidateSuccess:       "validate_success",
	MetricValidateFailure:       "validate_failure",
	MetricRefreshSuccess:        "refresh_success",
	MetricRefreshRejected:       "refresh_rejected",
	MetricRefreshTransportError: "refresh_transport_error",
	MetricAccessTokenScrubbed:   "access_token_scrubbed",
	MetricSessionCreated:        "session_created",
	MetricSessionDegraded:       "session_degraded",
	MetricSessionInvalidated:    "session_invalidated",
	MetricLogoutAll:             "logout_all",
}

// Name returns the stable exposition name for a metric id.
func (id MetricID) Name() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// MetricIDs returns every defined metric id, in exposition order.
func MetricIDs() []MetricID {
	ids := make([]MetricID, 0, metricIDCount)
	for id := MetricID(0); id < metricIDCount; id++ {
		ids = append(ids, id)
	}
	return ids
}

type paddedCounter struct {
	value uint64
	_     [7]uint64 // avoid false sharing between hot counters
}

// Metrics holds the engine's lock-free lifecycle counters.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a [Metrics] registry honoring cfg.Enabled.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments a counter. Disabled registries and unknown ids are no-ops.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Snapshot copies every counter for exporters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
