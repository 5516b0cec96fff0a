package claudechat

import (
	"context"
	"fmt"
	"strings"
	"time"

	core "claudebot/internal/plugin"
	"claudebot/internal/storage"
	"claudebot/pkg/claudecli"
	logx "claudebot/pkg/logx"
)

func (p *Plugin) Commands() []core.Command {
	return []core.Command{
		{
			Route:       "ask",
			Aliases:     []string{"c"},
			Description: "ask Claude a question",
			Usage:       "/ask <prompt>",
			Access:      core.AccessEveryone,
			Timeout:     3 * time.Minute,
			Handle:      p.cmdAsk,
		},
		{
			Route:       "reset",
			Description: "clear the chat context for this chat",
			Usage:       "/reset",
			Access:      core.AccessEveryone,
			Handle:      p.cmdReset,
		},
	}
}

func (p *Plugin) snapshot() (settings, func(ctx context.Context, prompt string) (string, error), *sessionStore, *userLimiters) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.set, p.run, p.sessions, p.limiters
}

// allowedUser checks the chat access list. Owners always pass; with an empty
// allow list the proxy stays owner-only.
func allowedUser(set settings, owners []int64, userID int64) bool {
	for _, id := range owners {
		if id == userID {
			return true
		}
	}
	_, ok := set.allowed[userID]
	return ok
}

func (p *Plugin) cmdAsk(ctx context.Context, req *core.Request) error {
	set, run, sessions, limiters := p.snapshot()
	if run == nil || sessions == nil {
		_, err := req.Adapter.SendText(ctx, req.Chat, "chat proxy is not running", nil)
		return err
	}

	prompt := strings.TrimSpace(strings.Join(req.Args, " "))
	if prompt == "" {
		_, err := req.Adapter.SendText(ctx, req.Chat, "usage: /ask <prompt>", nil)
		return err
	}
	if !allowedUser(set, req.OwnerUserID, req.FromID) {
		_, err := req.Adapter.SendText(ctx, req.Chat, "you are not allowed to use the chat proxy", nil)
		return err
	}
	if !limiters.Allow(req.FromID) {
		msg := "rate limit reached, try again shortly"
		if d := limiters.RetryAfter(req.FromID); d > time.Second {
			msg = fmt.Sprintf("rate limit reached, try again in %s", d.Round(time.Second))
		}
		_, err := req.Adapter.SendText(ctx, req.Chat, msg, nil)
		return err
	}

	// Known-down CLI: answer from the monitor's cache instead of spawning a
	// doomed subprocess.
	if st := p.cache.Get(); st.Known() && !st.Available {
		p.audit(ctx, req, prompt, 0, false, "cli unavailable: "+string(st.Reason), 0)
		_, err := req.Adapter.SendText(ctx, req.Chat, unavailableText(st), nil)
		return err
	}

	full := prompt
	if history := sessions.Context(req.Chat.ChatID); history != "" {
		full = history + "User: " + prompt
	}

	start := time.Now()
	reply, err := run(ctx, full)
	took := time.Since(start)
	if err != nil {
		p.audit(ctx, req, prompt, 0, false, err.Error(), took)
		p.Log.Warn("cli request failed",
			logx.Int64("user_id", req.FromID),
			logx.Duration("took", took),
			logx.Err(err),
		)
		p.notifyOwnersFailure(req, err)
		_, serr := req.Adapter.SendText(ctx, req.Chat, "request failed: "+err.Error(), nil)
		return serr
	}
	if strings.TrimSpace(reply) == "" {
		reply = "(empty reply)"
	}

	sessions.Append(req.Chat.ChatID, prompt, reply, time.Now())
	p.audit(ctx, req, prompt, len(reply), true, "", took)

	_, serr := req.Adapter.SendText(ctx, req.Chat, reply, nil)
	return serr
}

func (p *Plugin) cmdReset(ctx context.Context, req *core.Request) error {
	_, _, sessions, _ := p.snapshot()
	if sessions == nil {
		_, err := req.Adapter.SendText(ctx, req.Chat, "chat proxy is not running", nil)
		return err
	}
	msg := "no chat context to clear"
	if sessions.Reset(req.Chat.ChatID) {
		msg = "chat context cleared"
	}
	_, err := req.Adapter.SendText(ctx, req.Chat, msg, nil)
	return err
}

// notifyOwnersFailure routes a failed CLI run to the owners through the
// async notifier as an ops notice. The requester already got a direct
// reply; owners who asked themselves are skipped.
func (p *Plugin) notifyOwnersFailure(req *core.Request, err error) {
	for _, id := range req.OwnerUserID {
		if id == req.FromID {
			continue
		}
		if nerr := p.Info(id, "claudechat: CLI request failed: "+err.Error()); nerr != nil {
			p.Log.Debug("owner notice failed", logx.Int64("chat_id", id), logx.Err(nerr))
		}
	}
}

func (p *Plugin) audit(ctx context.Context, req *core.Request, prompt string, replyLen int, ok bool, errText string, took time.Duration) {
	e := storage.AuditEntry{
		At:        time.Now(),
		UserID:    req.FromID,
		ChatID:    req.Chat.ChatID,
		Plugin:    p.Name(),
		Action:    "ask",
		PromptLen: len(prompt),
		ReplyLen:  replyLen,
		OK:        ok,
		Error:     errText,
		TookMS:    took.Milliseconds(),
	}
	if req.Update.Message != nil {
		e.Username = req.Update.Message.FromUsername
	}
	if err := p.AppendAudit(ctx, e); err != nil {
		p.Log.Debug("audit append skipped", logx.Err(err))
	}
}

func unavailableText(st claudecli.Status) string {
	var b strings.Builder
	b.WriteString("⛔ Claude CLI is currently unavailable")
	switch st.Reason {
	case claudecli.ReasonDailyLimit:
		b.WriteString(" (daily usage limit)")
	case claudecli.ReasonHourlyLimit:
		b.WriteString(" (hourly usage limit)")
	case claudecli.ReasonRequestLimit:
		b.WriteString(" (request rate limit)")
	case claudecli.ReasonAuthError:
		b.WriteString(" (authentication error)")
	case claudecli.ReasonNetworkError:
		b.WriteString(" (network error)")
	}
	b.WriteString(".")
	if !st.ResetAt.IsZero() {
		until := time.Until(st.ResetAt)
		if until > 0 {
			fmt.Fprintf(&b, " Expected back in %s.", until.Round(time.Minute))
		}
	}
	return b.String()
}
