package claudechat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	core "claudebot/internal/plugin"
	"claudebot/pkg/claudecli"
	logx "claudebot/pkg/logx"
)

const pruneTask = "prune"

// Config is the claudechat plugin config block.
type Config struct {
	Binary         string   `json:"binary"`
	Args           []string `json:"args"`
	RunTimeout     string   `json:"run_timeout"`
	AllowedUserIDs []int64  `json:"allowed_user_ids"`
	RatePerMin     float64  `json:"rate_per_min"`
	RateBurst      int      `json:"rate_burst"`
	DataDir        string   `json:"data_dir"`
	SessionTurns   int      `json:"session_turns"`
	SessionTTL     string   `json:"session_ttl"`
	PruneCron      string   `json:"prune_cron"`
}

type settings struct {
	cli        claudecli.Config
	allowed    map[int64]struct{}
	ratePerMin float64
	burst      int
	dataDir    string
	turns      int
	ttl        time.Duration
	pruneCron  string
}

func (c Config) compile() (settings, error) {
	var s settings

	s.cli.Binary = strings.TrimSpace(c.Binary)
	s.cli.RunArgs = append([]string(nil), c.Args...)
	if raw := c.RunTimeout; raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return s, fmt.Errorf("run_timeout: bad duration %q", raw)
		}
		s.cli.RunTimeout = d
	}

	s.allowed = make(map[int64]struct{}, len(c.AllowedUserIDs))
	for _, id := range c.AllowedUserIDs {
		s.allowed[id] = struct{}{}
	}
	s.ratePerMin = c.RatePerMin
	s.burst = c.RateBurst
	s.dataDir = c.DataDir
	if s.dataDir == "" {
		s.dataDir = "./data"
	}
	s.turns = c.SessionTurns
	if s.turns < 1 {
		s.turns = 6
	}
	s.ttl = 24 * time.Hour
	if raw := c.SessionTTL; raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return s, fmt.Errorf("session_ttl: bad duration %q", raw)
		}
		s.ttl = d
	}
	s.pruneCron = c.PruneCron
	if s.pruneCron == "" {
		s.pruneCron = "@hourly"
	}
	return s, nil
}

// Plugin proxies user prompts to the local Claude CLI.
type Plugin struct {
	core.PluginBase

	cache *claudecli.StatusCache

	mu       sync.RWMutex
	set      settings
	run      func(ctx context.Context, prompt string) (string, error)
	sessions *sessionStore
	limiters *userLimiters
}

// New creates the chat plugin. The cache is the monitor's shared availability
// view, used to short-circuit prompts while the CLI is known-unavailable.
func New(cache *claudecli.StatusCache) *Plugin {
	if cache == nil {
		cache = claudecli.NewStatusCache()
	}
	return &Plugin{cache: cache}
}

func (p *Plugin) Name() string { return "claudechat" }

func (p *Plugin) Init(ctx context.Context, deps core.PluginDeps) error {
	p.InitBase(deps, p.Name())
	return nil
}

func (p *Plugin) ValidateConfig(ctx context.Context, raw json.RawMessage) error {
	cfg, err := core.DecodePluginConfig[Config](raw)
	if err != nil {
		return err
	}
	_, err = cfg.compile()
	return err
}

func (p *Plugin) OnConfigChange(ctx context.Context, raw json.RawMessage) error {
	cfg, err := core.DecodePluginConfig[Config](raw)
	if err != nil {
		return err
	}
	set, err := cfg.compile()
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.set = set
	p.mu.Unlock()

	if p.Context() != nil {
		return p.rebuild(set)
	}
	return nil
}

func (p *Plugin) Start(ctx context.Context) error {
	p.StartBase(ctx)
	p.mu.RLock()
	set := p.set
	p.mu.RUnlock()
	return p.rebuild(set)
}

func (p *Plugin) Stop(ctx context.Context) error {
	p.RemoveTask(pruneTask)
	p.mu.RLock()
	sessions := p.sessions
	p.mu.RUnlock()
	if sessions != nil {
		sessions.Flush()
	}
	return p.StopBase(ctx)
}

func (p *Plugin) rebuild(set settings) error {
	sessions, err := newSessionStore(set.dataDir, set.turns, p.Log)
	if err != nil {
		return err
	}
	cli := claudecli.New(set.cli)

	p.mu.Lock()
	p.run = cli.Run
	p.sessions = sessions
	p.limiters = newUserLimiters(set.ratePerMin, set.burst)
	p.mu.Unlock()

	p.RemoveTask(pruneTask)
	opt := core.TaskOptions{Timeout: 30 * time.Second, Retry: 0, SkipIfRunning: true}
	if err := p.Cron(pruneTask, set.pruneCron, opt, func(ctx context.Context) error {
		if n := sessions.Prune(set.ttl, time.Now()); n > 0 {
			p.Log.Info("pruned idle chat sessions", logx.Int("count", n))
		}
		return nil
	}); err != nil {
		return fmt.Errorf("schedule session pruning: %w", err)
	}

	p.Log.Info("chat proxy ready",
		logx.Int("allowed_users", len(set.allowed)),
		logx.Int("session_turns", set.turns),
		logx.Duration("session_ttl", set.ttl),
	)
	return nil
}
