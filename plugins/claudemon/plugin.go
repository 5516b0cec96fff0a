package claudemon

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

const tickTask = "tick"

// Config is the claudemon plugin config block. Durations are Go duration
// strings, DND bounds are "HH:MM" wall-clock in the configured timezone.
type Config struct {
	Binary          string  `json:"binary"`
	VersionArg      string  `json:"version_arg"`
	CheckInterval   string  `json:"check_interval"`
	ProbeTimeout    string  `json:"probe_timeout"`
	DebounceOKCount int     `json:"debounce_ok_count"`
	DNDStart        string  `json:"dnd_start"`
	DNDEnd          string  `json:"dnd_end"`
	NotifyChatIDs   []int64 `json:"notify_chat_ids"`
	DataDir         string  `json:"data_dir"`
	Timezone        string  `json:"timezone"`
	WarnLeadDaily   string  `json:"warn_lead_daily"`
	WarnLeadHourly  string  `json:"warn_lead_hourly"`
	WarnLeadRequest string  `json:"warn_lead_request"`
}

// settings is the validated, parsed form of Config.
type settings struct {
	cli      claudecli.Config
	interval time.Duration
	debounce int
	quiet    quietWindow
	chats    []int64
	dataDir  string
	loc      *time.Location
	leads    map[claudecli.Reason]time.Duration
}

func (c Config) compile() (settings, error) {
	var s settings
	var err error

	s.cli.Binary = strings.TrimSpace(c.Binary)
	s.cli.VersionArg = strings.TrimSpace(c.VersionArg)

	if s.interval, err = durOr(c.CheckInterval, 60*time.Second); err != nil {
		return s, fmt.Errorf("check_interval: %w", err)
	}
	if s.cli.ProbeTimeout, err = durOr(c.ProbeTimeout, 10*time.Second); err != nil {
		return s, fmt.Errorf("probe_timeout: %w", err)
	}
	s.debounce = c.DebounceOKCount
	if s.debounce < 1 {
		s.debounce = 3
	}
	if s.quiet, err = parseQuietWindow(c.DNDStart, c.DNDEnd); err != nil {
		return s, err
	}
	s.chats = append([]int64(nil), c.NotifyChatIDs...)
	s.dataDir = c.DataDir
	if s.dataDir == "" {
		s.dataDir = "./data"
	}
	s.loc = time.Local
	if tz := strings.TrimSpace(c.Timezone); tz != "" {
		if s.loc, err = time.LoadLocation(tz); err != nil {
			return s, fmt.Errorf("timezone: %w", err)
		}
	}

	s.leads = map[claudecli.Reason]time.Duration{}
	for r, def := range defaultWarnLeads {
		s.leads[r] = def
	}
	overrides := map[claudecli.Reason]string{
		claudecli.ReasonDailyLimit:   c.WarnLeadDaily,
		claudecli.ReasonHourlyLimit:  c.WarnLeadHourly,
		claudecli.ReasonRequestLimit: c.WarnLeadRequest,
	}
	for r, raw := range overrides {
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return s, fmt.Errorf("warn lead for %s: bad duration %q", r, raw)
		}
		s.leads[r] = d
	}
	return s, nil
}

func durOr(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %q", raw)
	}
	return d, nil
}

// Plugin is the Claude CLI availability monitor.
type Plugin struct {
	core.PluginBase

	cache *claudecli.StatusCache

	mu  sync.RWMutex
	set settings
	mon *Monitor
}

// New creates the monitor plugin. The status cache is shared with the chat
// plugin so prompt handlers can short-circuit while the CLI is down.
func New(cache *claudecli.StatusCache) *Plugin {
	if cache == nil {
		cache = claudecli.NewStatusCache()
	}
	return &Plugin{cache: cache}
}

func (p *Plugin) Name() string { return "claudemon" }

// Cache exposes the shared availability cache.
func (p *Plugin) Cache() *claudecli.StatusCache { return p.cache }

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
	p.RemoveTask(tickTask)
	err := p.StopBase(ctx)
	p.mu.Lock()
	p.mon = nil
	p.mu.Unlock()
	return err
}

// rebuild constructs the monitor pipeline from the current settings and
// (re)registers the periodic tick.
func (p *Plugin) rebuild(set settings) error {
	store, err := NewStore(set.dataDir, p.Log)
	if err != nil {
		return err
	}
	cli := claudecli.New(set.cli)
	snd := newSender(p.Deps.Adapter, set.chats, p.Log)
	mon := newMonitor(monitorOpts{
		probe:    cli.Probe,
		store:    store,
		send:     snd.Send,
		cache:    p.cache,
		debounce: set.debounce,
		quiet:    set.quiet,
		loc:      set.loc,
		leads:    set.leads,
		log:      p.Log,
	})

	p.mu.Lock()
	p.mon = mon
	p.mu.Unlock()

	p.RemoveTask(tickTask)
	tickTimeout := 2 * time.Minute
	if set.interval > tickTimeout {
		tickTimeout = set.interval
	}
	opt := core.TaskOptions{Timeout: tickTimeout, Retry: 0, SkipIfRunning: true}
	if err := p.Every(tickTask, set.interval, opt, mon.Tick); err != nil {
		return fmt.Errorf("schedule monitor tick: %w", err)
	}

	// First probe right away so the cache is warm before the first interval.
	if sup := p.Supervisor(); sup != nil {
		sup.Go0("tick.initial", func(ctx context.Context) {
			if err := mon.Tick(ctx); err != nil {
				p.Log.Warn("initial availability check failed", logx.Err(err))
			}
		})
	}

	p.Log.Info("availability monitor scheduled",
		logx.Duration("interval", set.interval),
		logx.Int("debounce", set.debounce),
		logx.Int("notify_chats", len(set.chats)),
		logx.String("data_dir", set.dataDir),
	)
	return nil
}

func (p *Plugin) monSnapshot() (*Monitor, settings) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mon, p.set
}

// Health reports the CLI availability label. The plugin itself is healthy
// even while the CLI is down; the error stays nil so the health loop does
// not quarantine on an upstream outage.
func (p *Plugin) Health(ctx context.Context) (string, error) {
	st := p.cache.Get()
	if !st.Known() {
		return "unknown", nil
	}
	return claudecli.StateLabel(st.Available, st.Reason), nil
}

func (p *Plugin) HealthLoopEnabled() bool { return true }
