package claudemon

import (
	"fmt"
	"strings"
	"time"

	"claudebot/pkg/claudecli"
)

func reasonText(r claudecli.Reason) string {
	switch r {
	case claudecli.ReasonDailyLimit:
		return "daily usage limit"
	case claudecli.ReasonHourlyLimit:
		return "hourly usage limit"
	case claudecli.ReasonRequestLimit:
		return "request rate limit"
	case claudecli.ReasonAuthError:
		return "authentication error"
	case claudecli.ReasonNetworkError:
		return "network error"
	default:
		return "error"
	}
}

func limitMessage(r claudecli.Reason, reset *time.Time, now time.Time, loc *time.Location, frequent bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⛔ Claude CLI hit the %s.", reasonText(r))
	if reset != nil {
		local := reset.In(loc)
		fmt.Fprintf(&b, "\nExpected reset: %s (in %s).",
			local.Format("15:04 MST"), fmtDur(reset.Sub(now)))
	}
	switch r {
	case claudecli.ReasonDailyLimit:
		b.WriteString("\nRequests will fail until the daily quota resets.")
	case claudecli.ReasonHourlyLimit:
		b.WriteString("\nRequests will fail until the hourly quota resets.")
	case claudecli.ReasonRequestLimit:
		b.WriteString("\nSlow down a little; the per-request limit clears quickly.")
	}
	if frequent {
		b.WriteString("\n\n⚠️ Limits were hit several times in a row. Consider reviewing your plan or usage pattern.")
	}
	return b.String()
}

func outageMessage(r claudecli.Reason) string {
	switch r {
	case claudecli.ReasonAuthError:
		return "🔐 Claude CLI is unavailable: authentication error. Re-login may be required."
	case claudecli.ReasonNetworkError:
		return "🌐 Claude CLI is unavailable: network error. Will keep checking."
	default:
		return "⚠️ Claude CLI is unavailable. Will keep checking."
	}
}

func recoveryMessage(down time.Duration) string {
	if down <= 0 {
		return "✅ Claude CLI is available again."
	}
	return fmt.Sprintf("✅ Claude CLI is available again. Downtime: %s.", fmtDur(down))
}

func warnMessage(r claudecli.Reason, until time.Duration) string {
	return fmt.Sprintf("⏳ Claude CLI %s resets in about %s.", reasonText(r), fmtDur(until))
}

// fmtDur renders a duration as "2h13m" / "45m" / "30s".
func fmtDur(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh%dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
