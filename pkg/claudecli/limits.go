package claudecli

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// resetRe matches "resets <time>" where <time> is H, H:MM, HAM/PM or H:MMAM/PM
// (optional space before am/pm). Case-insensitive.
var resetRe = regexp.MustCompile(`(?i)resets\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)

// ParseResetTime extracts a "resets <time>" token from probe output and
// resolves it to an absolute UTC instant.
//
// The wall-clock time is interpreted in loc ("today" in that zone). When the
// resolved instant is at or before now, it rolls forward exactly one day (the
// reset is assumed to be tomorrow). Without an am/pm suffix the hour is read
// as 24-hour. Returns false on no match or an out-of-range time.
func ParseResetTime(output string, now time.Time, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	m := resetRe.FindStringSubmatch(output)
	if m == nil {
		return time.Time{}, false
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return time.Time{}, false
		}
	}

	switch strings.ToLower(m[3]) {
	case "pm":
		if hour < 1 || hour > 12 {
			return time.Time{}, false
		}
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour < 1 || hour > 12 {
			return time.Time{}, false
		}
		if hour == 12 {
			hour = 0
		}
	default:
		if hour > 23 {
			return time.Time{}, false
		}
	}

	local := now.In(loc)
	at := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !at.After(local) {
		at = at.AddDate(0, 0, 1)
	}
	return at.UTC(), true
}

// Classify interprets a failed probe's output.
//
// With a reset time present the ordering is: explicit keyword first
// (daily/day, then hourly/hour, then request), falling back to a
// time-distance heuristic (>12h daily, >1h hourly, else request). A keyword
// match always beats the heuristic, even when they disagree.
//
// Without a reset time the output is classified as auth_error
// (authentication/login), network_error (network/connection), or generic
// error.
func Classify(output string, now time.Time, reset time.Time, hasReset bool) Reason {
	lower := strings.ToLower(output)

	if hasReset {
		switch {
		case strings.Contains(lower, "daily") || strings.Contains(lower, "day"):
			return ReasonDailyLimit
		case strings.Contains(lower, "hourly") || strings.Contains(lower, "hour"):
			return ReasonHourlyLimit
		case strings.Contains(lower, "per request") || strings.Contains(lower, "request"):
			return ReasonRequestLimit
		}
		until := reset.Sub(now)
		switch {
		case until > 12*time.Hour:
			return ReasonDailyLimit
		case until > time.Hour:
			return ReasonHourlyLimit
		default:
			return ReasonRequestLimit
		}
	}

	switch {
	case strings.Contains(lower, "authentication") || strings.Contains(lower, "login"):
		return ReasonAuthError
	case strings.Contains(lower, "network") || strings.Contains(lower, "connection"):
		return ReasonNetworkError
	}
	return ReasonError
}

// Evaluate combines ParseResetTime and Classify for one failed probe output.
func Evaluate(output string, now time.Time, loc *time.Location) Classification {
	reset, ok := ParseResetTime(output, now, loc)
	return Classification{
		Reason:   Classify(output, now, reset, ok),
		ResetAt:  reset,
		HasReset: ok,
	}
}
