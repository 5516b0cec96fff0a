package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	rtsup "claudebot/internal/runtime/supervisor"
	"claudebot/pkg/logx"
)

type taskDef struct {
	name string
	spec string // normalized cron spec, including "@every ..."
	opt  TaskOptions
	job  func(ctx context.Context) error

	entryID cron.EntryID
}

type queued struct {
	def *taskDef
}

// Service triggers named tasks from cron/interval specs and executes them on
// a bounded worker pool with per-attempt timeouts and retry backoff.
// Registration is upsert-by-name so config reloads can re-register tasks.
type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron
	defs   map[string]*taskDef

	queue chan queued
	sup   *rtsup.Supervisor

	// running tracks in-flight task names for SkipIfRunning.
	rmu     sync.Mutex
	running map[string]bool

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:     log.Named("scheduler"),
		cfg:     cfg,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		defs:    map[string]*taskDef{},
		running: map[string]bool{},
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg

	if s.c == nil {
		return
	}
	if oldTZ != strings.TrimSpace(cfg.Timezone) {
		s.restartCronLocked()
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	s.queue = make(chan queued, 256)
	s.loc = s.loadLocationLocked()
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))

	for _, d := range s.defs {
		s.registerLocked(d)
	}

	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))
	q := s.queue
	for i := 0; i < workers; i++ {
		s.sup.GoRestart(fmt.Sprintf("worker.%d", i), func(c context.Context) error {
			s.workerLoop(c, q)
			return nil
		})
	}

	s.c.Start()
	s.log.Info("scheduler started", logx.Int("workers", workers), logx.String("tz", s.loc.String()))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	sup := s.sup
	s.c = nil
	s.sup = nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	if sup != nil {
		_ = sup.Stop(ctx)
	}
	s.log.Info("scheduler stopped")
}

// AddSchedule registers a task from a schedule string (see ParseSchedule).
func (s *Service) AddSchedule(name, raw string, opt TaskOptions, job func(ctx context.Context) error) error {
	ps, err := ParseSchedule(raw)
	if err != nil {
		return err
	}
	if ps.Kind == SpecInterval {
		return s.AddInterval(name, ps.Every, opt, job)
	}
	return s.AddCron(name, ps.Cron, opt, job)
}

// AddCron registers (or replaces) a task with a cron spec.
func (s *Service) AddCron(name, spec string, opt TaskOptions, job func(ctx context.Context) error) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("task name required")
	}
	if job == nil {
		return errors.New("task job required")
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	d := &taskDef{name: name, spec: spec, opt: opt, job: job}
	s.defs[name] = d
	if s.c != nil {
		return s.registerLocked(d)
	}
	return nil
}

// AddInterval registers (or replaces) a fixed-interval task.
func (s *Service) AddInterval(name string, every time.Duration, opt TaskOptions, job func(ctx context.Context) error) error {
	if every <= 0 {
		return errors.New("interval must be > 0")
	}
	return s.AddCron(name, "@every "+every.String(), opt, job)
}

// AddDaily registers a task at HH:MM in the scheduler timezone.
func (s *Service) AddDaily(name, atHHMM string, opt TaskOptions, job func(ctx context.Context) error) error {
	h, m, err := parseHHMMClock(atHHMM)
	if err != nil {
		return err
	}
	return s.AddCron(name, fmt.Sprintf("%d %d * * *", m, h), opt, job)
}

func (s *Service) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
}

func (s *Service) removeLocked(name string) {
	d, ok := s.defs[name]
	if !ok {
		return
	}
	if s.c != nil && d.entryID != 0 {
		s.c.Remove(d.entryID)
	}
	delete(s.defs, name)
}

func (s *Service) registerLocked(d *taskDef) error {
	id, err := s.c.AddFunc(d.spec, func() { s.trigger(d) })
	if err != nil {
		return fmt.Errorf("register %q: %w", d.name, err)
	}
	d.entryID = id
	return nil
}

func (s *Service) restartCronLocked() {
	if s.c != nil {
		<-s.c.Stop().Done()
	}
	s.loc = s.loadLocationLocked()
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	for _, d := range s.defs {
		_ = s.registerLocked(d)
	}
	s.c.Start()
	s.log.Info("scheduler restarted", logx.String("tz", s.loc.String()))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) trigger(d *taskDef) {
	if d.opt.SkipIfRunning {
		s.rmu.Lock()
		busy := s.running[d.name]
		s.rmu.Unlock()
		if busy {
			s.log.Debug("task still running, skipping trigger", logx.String("task", d.name))
			return
		}
	}
	select {
	case s.queue <- queued{def: d}:
	default:
		s.log.Warn("scheduler queue full, dropping task", logx.String("task", d.name))
	}
}

func (s *Service) workerLoop(ctx context.Context, q <-chan queued) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-q:
			if !ok {
				return
			}
			s.execOne(ctx, t.def)
		}
	}
}

func (s *Service) execOne(ctx context.Context, d *taskDef) {
	s.rmu.Lock()
	if d.opt.SkipIfRunning && s.running[d.name] {
		s.rmu.Unlock()
		return
	}
	s.running[d.name] = true
	s.rmu.Unlock()
	defer func() {
		s.rmu.Lock()
		delete(s.running, d.name)
		s.rmu.Unlock()
	}()

	s.mu.Lock()
	timeout := d.opt.Timeout
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	retries := d.opt.Retry
	if retries < 0 {
		retries = s.cfg.RetryMax
	}
	histSize := s.cfg.HistorySize
	s.mu.Unlock()

	start := time.Now()
	attempts := 0
	var err error
	for attempts <= retries {
		attempts++
		runCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		err = d.job(runCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil || ctx.Err() != nil || attempts > retries {
			break
		}
		// Linear backoff between attempts keeps a flapping task from
		// hammering its target.
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(attempts) * 500 * time.Millisecond):
		}
		if ctx.Err() != nil {
			break
		}
	}

	item := HistoryItem{
		Name:     d.name,
		Started:  start,
		Duration: time.Since(start),
		Attempts: attempts,
	}
	if err != nil {
		item.Error = err.Error()
		s.log.Warn("task failed", logx.String("task", d.name), logx.Int("attempts", attempts), logx.Err(err))
	} else {
		s.log.Debug("task ok", logx.String("task", d.name), logx.Duration("took", item.Duration))
	}

	s.hmu.Lock()
	s.history = append(s.history, item)
	if histSize <= 0 {
		histSize = 200
	}
	if len(s.history) > histSize {
		s.history = s.history[len(s.history)-histSize:]
	}
	s.hmu.Unlock()
}

// Snapshot reports registered entries and recent run history.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{Enabled: s.cfg.Enabled}
	if s.loc != nil {
		snap.Timezone = s.loc.String()
	}
	for name, d := range s.defs {
		e := EntrySnapshot{Name: name, Spec: d.spec}
		if s.c != nil && d.entryID != 0 {
			e.Next = s.c.Entry(d.entryID).Next
		}
		snap.Entries = append(snap.Entries, e)
	}
	s.mu.Unlock()

	s.hmu.Lock()
	snap.History = append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return snap
}
