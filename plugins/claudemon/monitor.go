package claudemon

import (
	"context"
	"runtime"
	"sync"
	"time"

	"claudebot/pkg/claudecli"
	logx "claudebot/pkg/logx"
)

// warnBand is the width of the window in which a proactive pre-reset warning
// may fire, starting at reset-lead.
const warnBand = 120 * time.Second

var defaultWarnLeads = map[claudecli.Reason]time.Duration{
	claudecli.ReasonDailyLimit:   30 * time.Minute,
	claudecli.ReasonHourlyLimit:  10 * time.Minute,
	claudecli.ReasonRequestLimit: 2 * time.Minute,
}

// Monitor orchestrates one availability check per tick: probe, classify,
// debounce, detect transition, persist, notify. All collaborators are
// injected; time comes from the now func so tests can drive the clock.
type Monitor struct {
	log   logx.Logger
	probe func(ctx context.Context) claudecli.ProbeResult
	store *Store
	send  func(ctx context.Context, text string) error
	cache *claudecli.StatusCache

	deb   *debouncer
	quiet quietWindow
	loc   *time.Location
	leads map[claudecli.Reason]time.Duration
	now   func() time.Time

	// mu serializes ticks: the scheduler skips overlapping runs, but the
	// on-demand check command can race the scheduled tick.
	mu        sync.Mutex
	pending   *pendingNote
	limitHits int
	lastWarn  time.Time
	platform  string
}

type monitorOpts struct {
	probe    func(ctx context.Context) claudecli.ProbeResult
	store    *Store
	send     func(ctx context.Context, text string) error
	cache    *claudecli.StatusCache
	debounce int
	quiet    quietWindow
	loc      *time.Location
	leads    map[claudecli.Reason]time.Duration
	now      func() time.Time
	log      logx.Logger
}

func newMonitor(o monitorOpts) *Monitor {
	if o.loc == nil {
		o.loc = time.Local
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.leads == nil {
		o.leads = defaultWarnLeads
	}
	if o.log.IsZero() {
		o.log = logx.Nop()
	}
	m := &Monitor{
		log:      o.log,
		probe:    o.probe,
		store:    o.store,
		send:     o.send,
		cache:    o.cache,
		deb:      newDebouncer(o.debounce),
		quiet:    o.quiet,
		loc:      o.loc,
		leads:    o.leads,
		now:      o.now,
		platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
	if m.store.Load().Available {
		m.deb.Prime()
	}
	return m
}

// Tick runs one monitor pass. Probe, parse, and store-read failures are
// swallowed into safe defaults; only exhausted notification retries surface
// as the returned error, so the scheduler logs them and keeps the cadence.
func (m *Monitor) Tick(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	res := m.probe(ctx)
	var reason claudecli.Reason
	var reset *time.Time
	if !res.Available {
		cls := claudecli.Evaluate(res.Output, now, m.loc)
		reason = cls.Reason
		if cls.HasReset {
			r := cls.ResetAt
			reset = &r
		}
	}

	confirmed := m.deb.Observe(res.Available)
	prev := m.store.Load()

	// While a recovery is still accumulating debounce ticks, the outage keeps
	// its previous classification; otherwise the OK probes would read as a
	// reason change and log a bogus transition.
	if res.Available && !confirmed {
		reason = prev.Reason
		reset = prev.ResetExpected
	}

	cur := HealthSnapshot{
		Available: confirmed,
		LastCheck: now.UTC(),
	}
	if !confirmed {
		cur.Reason = reason
		if reason.IsLimit() {
			cur.ResetExpected = reset
		}
	}

	var sendErr error
	changed := confirmed != prev.Available || cur.Reason != prev.Reason
	if changed {
		m.log.Info("availability state changed",
			logx.String("from", prev.Label()),
			logx.String("to", cur.Label()),
			logx.Bool("probe_ok", res.Available),
		)
		rec := TransitionRecord{
			Timestamp:     now,
			From:          prev.Label(),
			To:            cur.Label(),
			Platform:      m.platform,
			ResetExpected: prev.ResetExpected,
			ResetActual:   reset,
		}
		if confirmed && !prev.Available && !prev.LastCheck.IsZero() {
			sec := now.Sub(prev.LastCheck).Seconds()
			rec.DurationUnavailable = &sec
		}
		if err := m.store.AppendTransition(rec); err != nil {
			m.log.Warn("transition append failed", logx.Err(err))
		}
		// Persist before any notification goes out.
		if err := m.store.Save(cur); err != nil {
			m.log.Warn("snapshot save failed", logx.Err(err))
		}
		sendErr = m.notifyTransition(ctx, prev, cur, rec, now)
	}
	if confirmed {
		m.limitHits = 0
	}

	if err := m.proactiveWarn(ctx, cur, now); err != nil && sendErr == nil {
		sendErr = err
	}

	if err := m.flushPending(ctx, now); err != nil && sendErr == nil {
		sendErr = err
	}

	if err := m.store.Save(cur); err != nil {
		m.log.Warn("snapshot save failed", logx.Err(err))
	}
	m.updateCache(cur)
	return sendErr
}

func (m *Monitor) notifyTransition(ctx context.Context, prev, cur HealthSnapshot, rec TransitionRecord, now time.Time) error {
	switch {
	case cur.Available && !prev.Available:
		// Each outage gets its own pre-reset warning budget.
		m.lastWarn = time.Time{}
		var down time.Duration
		if rec.DurationUnavailable != nil {
			down = time.Duration(*rec.DurationUnavailable * float64(time.Second))
		}
		return m.deliver(ctx, recoveryMessage(down), false, now)

	case !cur.Available && cur.Reason.IsLimit():
		m.limitHits++
		msg := limitMessage(cur.Reason, cur.ResetExpected, now, m.loc, m.limitHits >= 3)
		// Limit notifications are time-sensitive and never deferred.
		return m.deliver(ctx, msg, true, now)

	case !cur.Available:
		return m.deliver(ctx, outageMessage(cur.Reason), false, now)
	}
	return nil
}

// deliver sends urgent messages immediately; non-urgent ones are parked as
// the single pending notification while the quiet window is active.
func (m *Monitor) deliver(ctx context.Context, text string, urgent bool, now time.Time) error {
	if !urgent && m.quiet.Contains(now.In(m.loc)) {
		m.pending = &pendingNote{Text: text, CreatedAt: now}
		m.log.Debug("notification deferred by quiet window")
		return nil
	}
	err := m.send(ctx, text)
	if err == nil {
		// A freshly delivered message supersedes whatever was parked.
		m.pending = nil
	}
	return err
}

func (m *Monitor) flushPending(ctx context.Context, now time.Time) error {
	if m.pending == nil || m.quiet.Contains(now.In(m.loc)) {
		return nil
	}
	err := m.send(ctx, m.pending.Text)
	if err == nil {
		// Keep the note parked on delivery failure so a later tick retries it.
		m.pending = nil
	}
	return err
}

// proactiveWarn fires a single "reset approaching" message when now enters
// the [reset-lead, reset-lead+band) window for a limit reason. During the
// quiet window the warning is skipped for the tick, not queued.
func (m *Monitor) proactiveWarn(ctx context.Context, cur HealthSnapshot, now time.Time) error {
	if cur.Available || !cur.Reason.IsLimit() || cur.ResetExpected == nil {
		return nil
	}
	lead, ok := m.leads[cur.Reason]
	if !ok || lead <= 0 {
		return nil
	}
	until := cur.ResetExpected.Sub(now)
	if until > lead+warnBand/2 || until <= lead-warnBand/2 {
		return nil
	}
	if !m.lastWarn.IsZero() && now.Sub(m.lastWarn) < lead {
		return nil
	}
	if m.quiet.Contains(now.In(m.loc)) {
		return nil
	}
	m.lastWarn = now
	return m.send(ctx, warnMessage(cur.Reason, until))
}

func (m *Monitor) updateCache(cur HealthSnapshot) {
	if m.cache == nil {
		return
	}
	s := claudecli.Status{
		Available: cur.Available,
		Reason:    cur.Reason,
		CheckedAt: cur.LastCheck,
	}
	if cur.ResetExpected != nil {
		s.ResetAt = *cur.ResetExpected
	}
	m.cache.Set(s)
}

// Cached returns the last confirmed snapshot without probing.
func (m *Monitor) Cached() HealthSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Load()
}
