package claudecli

import "time"

// Reason says why the CLI is unavailable. Empty means available (or unknown).
type Reason string

const (
	ReasonDailyLimit   Reason = "daily_limit"
	ReasonHourlyLimit  Reason = "hourly_limit"
	ReasonRequestLimit Reason = "request_limit"
	ReasonAuthError    Reason = "auth_error"
	ReasonNetworkError Reason = "network_error"
	ReasonError        Reason = "error"
)

// IsLimit reports whether the reason is one of the rate-limit kinds
// (as opposed to auth/network/generic errors).
func (r Reason) IsLimit() bool {
	switch r {
	case ReasonDailyLimit, ReasonHourlyLimit, ReasonRequestLimit:
		return true
	}
	return false
}

// StateLabel derives the human-readable state name used in transition logs.
//
//	available            -> "available"
//	limit reasons        -> "limited_<reason>"
//	auth/network errors  -> "error_<reason>"
//	generic error        -> "unavailable"
func StateLabel(available bool, reason Reason) string {
	if available {
		return "available"
	}
	switch {
	case reason.IsLimit():
		return "limited_" + string(reason)
	case reason == ReasonAuthError || reason == ReasonNetworkError:
		return "error_" + string(reason)
	}
	return "unavailable"
}

// ProbeResult is the raw outcome of one CLI health probe.
type ProbeResult struct {
	Available bool
	Output    string // combined stdout+stderr, trimmed
	Err       error  // spawn/timeout/exit error, nil when Available
	Took      time.Duration
}

// Classification is the interpreted outcome of a failed probe.
type Classification struct {
	Reason   Reason
	ResetAt  time.Time // UTC; zero when HasReset is false
	HasReset bool
}
