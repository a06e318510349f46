package internaldefs

import (
	oidcsession "github.com/webauthkit/oidcsession"
)

// CounterDef defines a public type used by the session lifecycle engine.
//
// CounterDef instances are intended to be configured during initialization
// and then treated as immutable.
type CounterDef struct {
	ID   oidcsession.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the session lifecycle engine.
var CounterDefs = []CounterDef{
	{ID: oidcsession.MetricValidateSuccess, Name: "oidcsession_validate_success_total", Help: "Successful session validations."},
	{ID: oidcsession.MetricValidateFailure, Name: "oidcsession_validate_failure_total", Help: "Session validations resolving to the null pair."},
	{ID: oidcsession.MetricRefreshSuccess, Name: "oidcsession_refresh_success_total", Help: "Successful token refreshes with session rotation."},
	{ID: oidcsession.MetricRefreshRejected, Name: "oidcsession_refresh_rejected_total", Help: "Refresh tokens rejected by the identity provider."},
	{ID: oidcsession.MetricRefreshTransportError, Name: "oidcsession_refresh_transport_error_total", Help: "Refresh attempts failing on transport toward the provider."},
	{ID: oidcsession.MetricAccessTokenScrubbed, Name: "oidcsession_access_token_scrubbed_total", Help: "Expired access tokens scrubbed on read."},
	{ID: oidcsession.MetricSessionCreated, Name: "oidcsession_session_created_total", Help: "Created sessions."},
	{ID: oidcsession.MetricSessionDegraded, Name: "oidcsession_session_degraded_total", Help: "Sessions degraded after a rejected refresh."},
	{ID: oidcsession.MetricSessionInvalidated, Name: "oidcsession_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: oidcsession.MetricLogoutAll, Name: "oidcsession_logout_all_total", Help: "Bulk per-user invalidations."},
}
