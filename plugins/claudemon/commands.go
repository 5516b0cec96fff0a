package claudemon

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	core "claudebot/internal/plugin"
)

func (p *Plugin) Commands() []core.Command {
	return []core.Command{
		{
			Route:       "claude status",
			Aliases:     []string{"status"},
			Description: "show Claude CLI availability",
			Usage:       "/claude status",
			Access:      core.AccessEveryone,
			Handle:      p.cmdStatus,
		},
		{
			Route:       "claude check",
			Description: "probe the Claude CLI right now",
			Usage:       "/claude check",
			Access:      core.AccessOwnerOnly,
			Timeout:     3 * time.Minute,
			Handle:      p.cmdCheck,
		},
		{
			Route:       "claude history",
			Description: "recent availability transitions",
			Usage:       "/claude history [n]",
			Access:      core.AccessOwnerOnly,
			Handle:      p.cmdHistory,
		},
	}
}

func (p *Plugin) cmdStatus(ctx context.Context, req *core.Request) error {
	mon, set := p.monSnapshot()
	if mon == nil {
		_, err := req.Adapter.SendText(ctx, req.Chat, "monitor is not running", nil)
		return err
	}
	snap := mon.Cached()

	var b strings.Builder
	if snap.Available {
		b.WriteString("✅ Claude CLI: available")
	} else if snap.Reason != "" {
		fmt.Fprintf(&b, "⛔ Claude CLI: %s (%s)", snap.Label(), reasonText(snap.Reason))
	} else {
		b.WriteString("❓ Claude CLI: no check recorded yet")
	}
	if snap.ResetExpected != nil {
		local := snap.ResetExpected.In(set.loc)
		fmt.Fprintf(&b, "\nExpected reset: %s (in %s)",
			local.Format("15:04 MST"), fmtDur(time.Until(*snap.ResetExpected)))
	}
	if !snap.LastCheck.IsZero() {
		fmt.Fprintf(&b, "\nLast check: %s ago", fmtDur(time.Since(snap.LastCheck)))
	}
	_, err := req.Adapter.SendText(ctx, req.Chat, b.String(), nil)
	return err
}

func (p *Plugin) cmdCheck(ctx context.Context, req *core.Request) error {
	mon, _ := p.monSnapshot()
	if mon == nil {
		_, err := req.Adapter.SendText(ctx, req.Chat, "monitor is not running", nil)
		return err
	}
	if err := mon.Tick(ctx); err != nil {
		_, serr := req.Adapter.SendText(ctx, req.Chat,
			"check done, but notification delivery failed: "+err.Error(), nil)
		return serr
	}
	return p.cmdStatus(ctx, req)
}

func (p *Plugin) cmdHistory(ctx context.Context, req *core.Request) error {
	mon, set := p.monSnapshot()
	if mon == nil {
		_, err := req.Adapter.SendText(ctx, req.Chat, "monitor is not running", nil)
		return err
	}
	limit := 10
	if len(req.Args) > 0 {
		if n, err := strconv.Atoi(req.Args[0]); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}
	recs := mon.store.RecentTransitions(limit)
	if len(recs) == 0 {
		_, err := req.Adapter.SendText(ctx, req.Chat, "no transitions recorded", nil)
		return err
	}

	var b strings.Builder
	b.WriteString("📜 Availability transitions\n")
	for _, r := range recs {
		fmt.Fprintf(&b, "\n%s  %s → %s",
			r.Timestamp.In(set.loc).Format("02 Jan 15:04"), r.From, r.To)
		if r.DurationUnavailable != nil {
			fmt.Fprintf(&b, " (down %s)",
				fmtDur(time.Duration(*r.DurationUnavailable*float64(time.Second))))
		}
	}
	_, err := req.Adapter.SendText(ctx, req.Chat, b.String(), nil)
	return err
}
