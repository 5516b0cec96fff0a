package claudecli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestParseResetTimeVariants(t *testing.T) {
	loc := time.UTC
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, loc)

	cases := []struct {
		name string
		in   string
		want time.Time
		ok   bool
	}{
		{"hour only pm", "5-hour limit reached ∙ resets 2pm", time.Date(2025, 3, 10, 14, 0, 0, 0, loc), true},
		{"hour minute", "usage limit, resets 17:30", time.Date(2025, 3, 10, 17, 30, 0, 0, loc), true},
		{"with space before ampm", "resets 11 am", time.Date(2025, 3, 10, 11, 0, 0, 0, loc), true},
		{"minute and pm", "Resets 4:45PM today", time.Date(2025, 3, 10, 16, 45, 0, 0, loc), true},
		{"24h bare hour", "resets 23", time.Date(2025, 3, 10, 23, 0, 0, 0, loc), true},
		{"midnight 12am rolls", "resets 12am", time.Date(2025, 3, 11, 0, 0, 0, 0, loc), true},
		{"noon 12pm", "resets 12pm", time.Date(2025, 3, 10, 12, 0, 0, 0, loc), true},
		{"no token", "authentication failed", time.Time{}, false},
		{"hour out of range", "resets 25", time.Time{}, false},
		{"minute out of range", "resets 10:75", time.Time{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseResetTime(tc.in, now, loc)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.Equal(t, tc.want.UTC(), got)
			}
		})
	}
}

func TestParseResetTimeRollsForwardADay(t *testing.T) {
	loc := time.UTC

	before := time.Date(2025, 3, 10, 9, 0, 0, 0, loc)
	got, ok := ParseResetTime("resets 2pm", before, loc)
	require.True(t, ok)
	require.Equal(t, time.Date(2025, 3, 10, 14, 0, 0, 0, loc), got)

	after := time.Date(2025, 3, 10, 15, 0, 0, 0, loc)
	got, ok = ParseResetTime("resets 2pm", after, loc)
	require.True(t, ok)
	require.Equal(t, time.Date(2025, 3, 11, 14, 0, 0, 0, loc), got)

	// exactly at the reset time also rolls forward
	at := time.Date(2025, 3, 10, 14, 0, 0, 0, loc)
	got, ok = ParseResetTime("resets 2pm", at, loc)
	require.True(t, ok)
	require.Equal(t, time.Date(2025, 3, 11, 14, 0, 0, 0, loc), got)
}

func TestParseResetTimeNonUTCZone(t *testing.T) {
	loc := mustLoc(t, "Asia/Jakarta") // UTC+7, no DST
	now := time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC) // 08:00 local

	got, ok := ParseResetTime("resets 2pm", now, loc)
	require.True(t, ok)
	// 14:00 Jakarta == 07:00 UTC
	require.Equal(t, time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC), got)
}

func TestClassifyKeywordBeatsHeuristic(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	// reset 30 minutes away would classify as request_limit by distance,
	// but the explicit "daily" keyword wins.
	reset := now.Add(30 * time.Minute)
	got := Classify("daily limit reached ∙ resets 9:30am", now, reset, true)
	require.Equal(t, ReasonDailyLimit, got)
}

func TestClassifyKeywordOrder(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	reset := now.Add(10 * time.Minute)

	require.Equal(t, ReasonDailyLimit, Classify("day quota exhausted, resets 10am", now, reset, true))
	require.Equal(t, ReasonHourlyLimit, Classify("hourly cap hit, resets 10am", now, reset, true))
	require.Equal(t, ReasonRequestLimit, Classify("per request limit, resets 10am", now, reset, true))
}

func TestClassifyDistanceHeuristic(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		until time.Duration
		want  Reason
	}{
		{13 * time.Hour, ReasonDailyLimit},
		{12*time.Hour + time.Minute, ReasonDailyLimit},
		{12 * time.Hour, ReasonHourlyLimit},
		{2 * time.Hour, ReasonHourlyLimit},
		{time.Hour, ReasonRequestLimit},
		{5 * time.Minute, ReasonRequestLimit},
	}
	for _, tc := range cases {
		got := Classify("limit reached, resets soon", now, now.Add(tc.until), true)
		require.Equal(t, tc.want, got, "until=%s", tc.until)
	}
}

func TestClassifyWithoutResetTime(t *testing.T) {
	now := time.Now().UTC()

	require.Equal(t, ReasonAuthError, Classify("Authentication failed, please run login", now, time.Time{}, false))
	require.Equal(t, ReasonAuthError, Classify("please login again", now, time.Time{}, false))
	require.Equal(t, ReasonNetworkError, Classify("network unreachable", now, time.Time{}, false))
	require.Equal(t, ReasonNetworkError, Classify("connection refused", now, time.Time{}, false))
	require.Equal(t, ReasonError, Classify("segmentation fault", now, time.Time{}, false))
	require.Equal(t, ReasonError, Classify("", now, time.Time{}, false))
}

func TestEvaluate(t *testing.T) {
	loc := time.UTC
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, loc)

	c := Evaluate("5-hour limit reached ∙ resets 2pm", now, loc)
	require.True(t, c.HasReset)
	require.Equal(t, time.Date(2025, 3, 10, 14, 0, 0, 0, loc), c.ResetAt)
	require.Equal(t, ReasonHourlyLimit, c.Reason)

	c = Evaluate("could not reach api: connection reset", now, loc)
	require.False(t, c.HasReset)
	require.Equal(t, ReasonNetworkError, c.Reason)
}

func TestStateLabel(t *testing.T) {
	require.Equal(t, "available", StateLabel(true, ""))
	require.Equal(t, "available", StateLabel(true, ReasonDailyLimit))
	require.Equal(t, "limited_daily_limit", StateLabel(false, ReasonDailyLimit))
	require.Equal(t, "limited_hourly_limit", StateLabel(false, ReasonHourlyLimit))
	require.Equal(t, "limited_request_limit", StateLabel(false, ReasonRequestLimit))
	require.Equal(t, "error_auth_error", StateLabel(false, ReasonAuthError))
	require.Equal(t, "error_network_error", StateLabel(false, ReasonNetworkError))
	require.Equal(t, "unavailable", StateLabel(false, ReasonError))
	require.Equal(t, "unavailable", StateLabel(false, ""))
}
