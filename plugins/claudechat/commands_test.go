package claudechat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	core "claudebot/internal/plugin"
	kit "claudebot/internal/transport"
	"claudebot/pkg/claudecli"
	logx "claudebot/pkg/logx"
)

type fakeAdapter struct {
	kit.Adapter

	texts []string
}

func (a *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	a.texts = append(a.texts, text)
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

type fixture struct {
	p       *Plugin
	adapter *fakeAdapter
	cache   *claudecli.StatusCache
	prompts []string
}

func newFixture(t *testing.T, reply string, runErr error) *fixture {
	t.Helper()

	fx := &fixture{cache: claudecli.NewStatusCache(), adapter: &fakeAdapter{}}
	p := New(fx.cache)
	p.InitBase(core.PluginDeps{}, p.Name())

	set, err := Config{RatePerMin: 600, RateBurst: 10}.compile()
	require.NoError(t, err)

	sessions, err := newSessionStore(t.TempDir(), set.turns, logx.Nop())
	require.NoError(t, err)

	p.set = set
	p.sessions = sessions
	p.limiters = newUserLimiters(set.ratePerMin, set.burst)
	p.run = func(ctx context.Context, prompt string) (string, error) {
		fx.prompts = append(fx.prompts, prompt)
		return reply, runErr
	}
	fx.p = p
	return fx
}

func (fx *fixture) request(fromID int64, args ...string) *core.Request {
	return &core.Request{
		Chat:        kit.ChatTarget{ChatID: 100},
		FromID:      fromID,
		Args:        args,
		Adapter:     fx.adapter,
		OwnerUserID: []int64{1},
	}
}

func TestAskProxiesPromptAndRecordsSession(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "4", nil)
	require.NoError(t, fx.p.cmdAsk(context.Background(), fx.request(1, "2+2?")))

	require.Equal(t, []string{"2+2?"}, fx.prompts)
	require.Equal(t, []string{"4"}, fx.adapter.texts)
	require.Contains(t, fx.p.sessions.Context(100), "User: 2+2?")
}

func TestAskPrependsSessionContext(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "blue", nil)
	fx.p.sessions.Append(100, "favorite color?", "red", time.Now())

	require.NoError(t, fx.p.cmdAsk(context.Background(), fx.request(1, "and", "yours?")))
	require.Len(t, fx.prompts, 1)
	require.Contains(t, fx.prompts[0], "User: favorite color?")
	require.Contains(t, fx.prompts[0], "Assistant: red")
	require.Contains(t, fx.prompts[0], "User: and yours?")
}

func TestAskDeniesUnknownUser(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "nope", nil)
	require.NoError(t, fx.p.cmdAsk(context.Background(), fx.request(99, "hi")))

	require.Empty(t, fx.prompts, "the CLI must not be invoked")
	require.Len(t, fx.adapter.texts, 1)
	require.Contains(t, fx.adapter.texts[0], "not allowed")
}

func TestAskAllowsListedUser(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "ok", nil)
	fx.p.set.allowed[42] = struct{}{}

	require.NoError(t, fx.p.cmdAsk(context.Background(), fx.request(42, "hi")))
	require.Len(t, fx.prompts, 1)
}

func TestAskShortCircuitsWhenCLIDown(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "unused", nil)
	fx.cache.Set(claudecli.Status{
		Available: false,
		Reason:    claudecli.ReasonDailyLimit,
		ResetAt:   time.Now().Add(2 * time.Hour),
		CheckedAt: time.Now(),
	})

	require.NoError(t, fx.p.cmdAsk(context.Background(), fx.request(1, "hi")))
	require.Empty(t, fx.prompts, "no subprocess while the CLI is known-down")
	require.Len(t, fx.adapter.texts, 1)
	require.Contains(t, fx.adapter.texts[0], "unavailable")
	require.Contains(t, fx.adapter.texts[0], "daily usage limit")
}

func TestAskRateLimitsPerUser(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "ok", nil)
	fx.p.limiters = newUserLimiters(1, 1)

	require.NoError(t, fx.p.cmdAsk(context.Background(), fx.request(1, "first")))
	require.NoError(t, fx.p.cmdAsk(context.Background(), fx.request(1, "second")))

	require.Len(t, fx.prompts, 1, "second request must be rate limited")
	require.Contains(t, fx.adapter.texts[1], "rate limit")
}

func TestAskReportsCLIFailure(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "", errors.New("cli timeout after 2m0s"))
	require.NoError(t, fx.p.cmdAsk(context.Background(), fx.request(1, "hi")))

	require.Len(t, fx.adapter.texts, 1)
	require.Contains(t, fx.adapter.texts[0], "request failed")
	require.Empty(t, fx.p.sessions.Context(100), "failed exchanges are not remembered")
}

func TestResetCommand(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "ok", nil)
	fx.p.sessions.Append(100, "q", "a", time.Now())

	require.NoError(t, fx.p.cmdReset(context.Background(), fx.request(1)))
	require.Contains(t, fx.adapter.texts[0], "cleared")
	require.Empty(t, fx.p.sessions.Context(100))

	require.NoError(t, fx.p.cmdReset(context.Background(), fx.request(1)))
	require.Contains(t, fx.adapter.texts[1], "no chat context")
}

func TestConfigCompile(t *testing.T) {
	t.Parallel()

	set, err := Config{}.compile()
	require.NoError(t, err)
	require.Equal(t, 6, set.turns)
	require.Equal(t, 24*time.Hour, set.ttl)
	require.Equal(t, "@hourly", set.pruneCron)
	require.Equal(t, "./data", set.dataDir)

	_, err = Config{RunTimeout: "soon"}.compile()
	require.Error(t, err)
	_, err = Config{SessionTTL: "-1h"}.compile()
	require.Error(t, err)
}

type fakeNotifier struct{ notes []kit.Notification }

func (f *fakeNotifier) Notify(ctx context.Context, n kit.Notification) error {
	f.notes = append(f.notes, n)
	return nil
}

func TestAskFailureNotifiesOwners(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "", errors.New("exit status 1"))
	fx.p.set.allowed = map[int64]struct{}{7: {}}
	notif := &fakeNotifier{}
	fx.p.Deps.Services = &core.Services{Notifier: notif}

	require.NoError(t, fx.p.cmdAsk(context.Background(), fx.request(7, "hi")))

	// The requester gets the direct reply, owner 1 gets the ops notice.
	require.Len(t, fx.adapter.texts, 1)
	require.Contains(t, fx.adapter.texts[0], "request failed")
	require.Len(t, notif.notes, 1)
	require.Equal(t, int64(1), notif.notes[0].Target.ChatID)
	require.Contains(t, notif.notes[0].Text, "exit status 1")
}

func TestAskFailureByOwnerSkipsSelfNotice(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, "", errors.New("exit status 1"))
	notif := &fakeNotifier{}
	fx.p.Deps.Services = &core.Services{Notifier: notif}

	require.NoError(t, fx.p.cmdAsk(context.Background(), fx.request(1, "hi")))
	require.Empty(t, notif.notes)
}
