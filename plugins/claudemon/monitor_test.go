package claudemon

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"claudebot/pkg/claudecli"
	logx "claudebot/pkg/logx"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type probeScript struct {
	res []claudecli.ProbeResult
	i   int
}

// next replays the script and sticks on the last result.
func (s *probeScript) next(ctx context.Context) claudecli.ProbeResult {
	r := s.res[s.i]
	if s.i < len(s.res)-1 {
		s.i++
	}
	return r
}

func okResult() claudecli.ProbeResult {
	return claudecli.ProbeResult{Available: true, Output: "1.0.0"}
}

func failResult(out string) claudecli.ProbeResult {
	return claudecli.ProbeResult{Available: false, Output: out}
}

type msgSink struct {
	msgs []string
	// fail makes the next N sends error out.
	fail int
}

func (s *msgSink) send(ctx context.Context, text string) error {
	if s.fail > 0 {
		s.fail--
		return errors.New("send failed")
	}
	s.msgs = append(s.msgs, text)
	return nil
}

type monFixture struct {
	mon   *Monitor
	store *Store
	clock *fakeClock
	sink  *msgSink
}

func newFixture(t *testing.T, probe func(ctx context.Context) claudecli.ProbeResult, debounce int, quiet quietWindow, seed *HealthSnapshot) *monFixture {
	t.Helper()

	store, err := NewStore(t.TempDir(), logx.Nop())
	require.NoError(t, err)
	if seed != nil {
		require.NoError(t, store.Save(*seed))
	}

	clock := &fakeClock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	sink := &msgSink{}
	mon := newMonitor(monitorOpts{
		probe:    probe,
		store:    store,
		send:     sink.send,
		debounce: debounce,
		quiet:    quiet,
		loc:      time.UTC,
		now:      clock.Now,
	})
	return &monFixture{mon: mon, store: store, clock: clock, sink: sink}
}

func availableAt(t time.Time) *HealthSnapshot {
	return &HealthSnapshot{Available: true, LastCheck: t}
}

func TestTickNoChangeIsIdempotent(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 2, 9, 59, 0, 0, time.UTC)
	script := &probeScript{res: []claudecli.ProbeResult{okResult()}}
	fx := newFixture(t, script.next, 1, quietWindow{}, availableAt(start))

	require.NoError(t, fx.mon.Tick(context.Background()))
	first := fx.store.Load()

	fx.clock.Advance(time.Minute)
	require.NoError(t, fx.mon.Tick(context.Background()))
	second := fx.store.Load()

	require.Empty(t, fx.sink.msgs)
	require.Empty(t, fx.store.RecentTransitions(10))
	require.True(t, second.LastCheck.After(first.LastCheck))
}

func TestDebounceSequence(t *testing.T) {
	t.Parallel()

	d := newDebouncer(3)
	seq := []bool{true, true, false, true, true, true}
	want := []bool{false, false, false, false, false, true}
	for i, ok := range seq {
		require.Equal(t, want[i], d.Observe(ok), "step %d", i)
	}
}

func TestMonitorDebouncesRecovery(t *testing.T) {
	t.Parallel()

	script := &probeScript{res: []claudecli.ProbeResult{
		okResult(), okResult(), failResult("network error"),
		okResult(), okResult(), okResult(),
	}}
	seed := &HealthSnapshot{
		Available: false,
		Reason:    claudecli.ReasonNetworkError,
		LastCheck: time.Date(2026, 3, 2, 9, 59, 0, 0, time.UTC),
	}
	fx := newFixture(t, script.next, 3, quietWindow{}, seed)

	for i := 0; i < 5; i++ {
		_ = fx.mon.Tick(context.Background())
		require.False(t, fx.store.Load().Available, "tick %d", i)
		fx.clock.Advance(time.Minute)
	}
	require.NoError(t, fx.mon.Tick(context.Background()))
	require.True(t, fx.store.Load().Available)
}

func TestQuietWindowWrapAround(t *testing.T) {
	t.Parallel()

	w, err := parseQuietWindow("23:00", "08:00")
	require.NoError(t, err)

	at := func(h, m int) time.Time {
		return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
	}
	require.True(t, w.Contains(at(23, 30)))
	require.True(t, w.Contains(at(7, 59)))
	require.False(t, w.Contains(at(8, 0)))
	require.False(t, w.Contains(at(12, 0)))

	// start == end disables the window entirely.
	off, err := parseQuietWindow("09:00", "09:00")
	require.NoError(t, err)
	require.False(t, off.Contains(at(9, 0)))
	require.False(t, off.Contains(at(21, 0)))
}

func TestRecoveryDeferredThenFlushed(t *testing.T) {
	t.Parallel()

	quiet, err := parseQuietWindow("23:00", "11:00")
	require.NoError(t, err)
	script := &probeScript{res: []claudecli.ProbeResult{okResult()}}
	seed := &HealthSnapshot{
		Available: false,
		Reason:    claudecli.ReasonError,
		LastCheck: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	fx := newFixture(t, script.next, 1, quiet, seed)

	// 10:00 is inside the quiet window: recovery is recorded but not sent.
	require.NoError(t, fx.mon.Tick(context.Background()))
	require.Empty(t, fx.sink.msgs)
	require.Len(t, fx.store.RecentTransitions(10), 1)
	require.True(t, fx.store.Load().Available)

	// Still quiet: nothing flushes.
	fx.clock.Advance(30 * time.Minute)
	require.NoError(t, fx.mon.Tick(context.Background()))
	require.Empty(t, fx.sink.msgs)

	// 11:30 is outside the window: exactly one send, then the slot is clear.
	fx.clock.Advance(time.Hour)
	require.NoError(t, fx.mon.Tick(context.Background()))
	require.Len(t, fx.sink.msgs, 1)
	require.Contains(t, fx.sink.msgs[0], "available again")

	fx.clock.Advance(time.Minute)
	require.NoError(t, fx.mon.Tick(context.Background()))
	require.Len(t, fx.sink.msgs, 1)
}

func TestDeferredNoteRetriedAfterFailedFlush(t *testing.T) {
	t.Parallel()

	quiet, err := parseQuietWindow("23:00", "11:00")
	require.NoError(t, err)
	script := &probeScript{res: []claudecli.ProbeResult{okResult()}}
	seed := &HealthSnapshot{
		Available: false,
		Reason:    claudecli.ReasonError,
		LastCheck: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	fx := newFixture(t, script.next, 1, quiet, seed)

	// 10:00 is inside the quiet window: recovery is parked.
	require.NoError(t, fx.mon.Tick(context.Background()))
	require.Empty(t, fx.sink.msgs)

	// 11:30: the flush attempt fails; the note must stay parked.
	fx.clock.Advance(90 * time.Minute)
	fx.sink.fail = 1
	require.Error(t, fx.mon.Tick(context.Background()))
	require.Empty(t, fx.sink.msgs)

	// Next tick delivers it exactly once.
	fx.clock.Advance(time.Minute)
	require.NoError(t, fx.mon.Tick(context.Background()))
	require.Len(t, fx.sink.msgs, 1)
	require.Contains(t, fx.sink.msgs[0], "available again")

	fx.clock.Advance(time.Minute)
	require.NoError(t, fx.mon.Tick(context.Background()))
	require.Len(t, fx.sink.msgs, 1)
}

func TestLimitNotificationBypassesQuietWindow(t *testing.T) {
	t.Parallel()

	quiet, err := parseQuietWindow("23:00", "11:00")
	require.NoError(t, err)
	script := &probeScript{res: []claudecli.ProbeResult{
		failResult("Daily limit reached ∙ resets 2pm"),
	}}
	start := time.Date(2026, 3, 2, 9, 59, 0, 0, time.UTC)
	fx := newFixture(t, script.next, 3, quiet, availableAt(start))

	require.NoError(t, fx.mon.Tick(context.Background()))
	require.Len(t, fx.sink.msgs, 1)
	require.Contains(t, fx.sink.msgs[0], "daily usage limit")

	snap := fx.store.Load()
	require.False(t, snap.Available)
	require.Equal(t, claudecli.ReasonDailyLimit, snap.Reason)
	require.NotNil(t, snap.ResetExpected)
}

func TestEndToEndLimitedThenRecovered(t *testing.T) {
	t.Parallel()

	script := &probeScript{res: []claudecli.ProbeResult{
		failResult("Daily limit reached ∙ resets 2pm"),
		okResult(), okResult(), okResult(),
	}}
	start := time.Date(2026, 3, 2, 9, 59, 0, 0, time.UTC)
	fx := newFixture(t, script.next, 3, quietWindow{}, availableAt(start))

	// Tick 1 at 10:00: limited, reset expected today 14:00 UTC.
	require.NoError(t, fx.mon.Tick(context.Background()))
	recs := fx.store.RecentTransitions(10)
	require.Len(t, recs, 1)
	require.Equal(t, "available", recs[0].From)
	require.Equal(t, "limited_daily_limit", recs[0].To)
	require.NotNil(t, recs[0].ResetActual)
	require.Equal(t, time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC), recs[0].ResetActual.UTC())

	// Ticks 2-3 accumulate the debounce counter; still limited.
	for i := 0; i < 2; i++ {
		fx.clock.Advance(time.Minute)
		require.NoError(t, fx.mon.Tick(context.Background()))
		require.False(t, fx.store.Load().Available)
	}
	require.Len(t, fx.store.RecentTransitions(10), 1)

	// Tick 4 confirms recovery.
	fx.clock.Advance(time.Minute)
	require.NoError(t, fx.mon.Tick(context.Background()))

	recs = fx.store.RecentTransitions(10)
	require.Len(t, recs, 2)
	require.Equal(t, "limited_daily_limit", recs[1].From)
	require.Equal(t, "available", recs[1].To)
	require.NotNil(t, recs[1].DurationUnavailable)
	// Duration counts from the previous snapshot's last_check one tick ago.
	require.InDelta(t, 60.0, *recs[1].DurationUnavailable, 1.0)

	require.Len(t, fx.sink.msgs, 2)
	require.Contains(t, fx.sink.msgs[0], "daily usage limit")
	require.Contains(t, fx.sink.msgs[1], "available again")
	require.Contains(t, fx.sink.msgs[1], "1m")
}

func TestFrequentLimitAdvisory(t *testing.T) {
	t.Parallel()

	// Three limit-type transitions in a row with no confirmed recovery
	// between them.
	script := &probeScript{res: []claudecli.ProbeResult{
		failResult("Daily limit reached ∙ resets 2pm"),
		failResult("hourly limit reached ∙ resets 11am"),
		failResult("request limit reached ∙ resets 10:15"),
	}}
	start := time.Date(2026, 3, 2, 9, 59, 0, 0, time.UTC)
	fx := newFixture(t, script.next, 1, quietWindow{}, availableAt(start))

	for i := 0; i < 3; i++ {
		require.NoError(t, fx.mon.Tick(context.Background()))
		fx.clock.Advance(time.Minute)
	}

	var limits []string
	for _, m := range fx.sink.msgs {
		if strings.Contains(m, "usage limit") || strings.Contains(m, "rate limit") {
			limits = append(limits, m)
		}
	}
	require.Len(t, limits, 3)
	require.NotContains(t, limits[0], "several times in a row")
	require.NotContains(t, limits[1], "several times in a row")
	require.Contains(t, limits[2], "several times in a row")
}

func TestProactiveWarningBandAndThrottle(t *testing.T) {
	t.Parallel()

	reset := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	script := &probeScript{res: []claudecli.ProbeResult{
		failResult("Daily limit reached ∙ resets 10:30"),
	}}
	seed := &HealthSnapshot{
		Available:     false,
		Reason:        claudecli.ReasonDailyLimit,
		ResetExpected: &reset,
		LastCheck:     time.Date(2026, 3, 2, 9, 59, 0, 0, time.UTC),
	}
	// Clock starts at 10:00, so the reset is 30m away: exactly the daily lead.
	fx := newFixture(t, script.next, 3, quietWindow{}, seed)

	require.NoError(t, fx.mon.Tick(context.Background()))
	require.Len(t, fx.sink.msgs, 1)
	require.Contains(t, fx.sink.msgs[0], "resets in about")

	// 30s later: still in the band, but throttled by the lead interval.
	fx.clock.Advance(30 * time.Second)
	require.NoError(t, fx.mon.Tick(context.Background()))
	require.Len(t, fx.sink.msgs, 1)

	// Far outside the band: no warning either.
	fx.clock.Advance(25 * time.Minute)
	require.NoError(t, fx.mon.Tick(context.Background()))
	require.Len(t, fx.sink.msgs, 1)
}

func TestProactiveWarningThrottleResetsAfterRecovery(t *testing.T) {
	t.Parallel()

	script := &probeScript{res: []claudecli.ProbeResult{
		failResult("Daily limit reached ∙ resets 10:30"),
		okResult(),
		failResult("Daily limit reached ∙ resets 10:40"),
	}}
	start := time.Date(2026, 3, 2, 9, 59, 0, 0, time.UTC)
	fx := newFixture(t, script.next, 1, quietWindow{}, availableAt(start))

	warns := func() int {
		n := 0
		for _, m := range fx.sink.msgs {
			if strings.Contains(m, "resets in about") {
				n++
			}
		}
		return n
	}

	// 10:00: limit hit with the reset 30m out, so the warning fires together
	// with the limit notification.
	require.NoError(t, fx.mon.Tick(context.Background()))
	require.Equal(t, 1, warns())

	// 10:05: recovery.
	fx.clock.Advance(5 * time.Minute)
	require.NoError(t, fx.mon.Tick(context.Background()))

	// 10:10: a fresh outage whose reset is again 30m out. The new outage
	// must get its own warning even though the previous one fired within
	// the lead interval.
	fx.clock.Advance(5 * time.Minute)
	require.NoError(t, fx.mon.Tick(context.Background()))
	require.Equal(t, 2, warns())
}

func TestProactiveWarningSkippedDuringQuietWindow(t *testing.T) {
	t.Parallel()

	quiet, err := parseQuietWindow("09:00", "11:00")
	require.NoError(t, err)
	reset := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	script := &probeScript{res: []claudecli.ProbeResult{
		failResult("Daily limit reached ∙ resets 10:30"),
	}}
	seed := &HealthSnapshot{
		Available:     false,
		Reason:        claudecli.ReasonDailyLimit,
		ResetExpected: &reset,
		LastCheck:     time.Date(2026, 3, 2, 9, 59, 0, 0, time.UTC),
	}
	fx := newFixture(t, script.next, 3, quiet, seed)

	require.NoError(t, fx.mon.Tick(context.Background()))
	require.Empty(t, fx.sink.msgs)
}

func TestCacheTracksConfirmedState(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir(), logx.Nop())
	require.NoError(t, err)
	cache := claudecli.NewStatusCache()
	clock := &fakeClock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	script := &probeScript{res: []claudecli.ProbeResult{
		failResult("Daily limit reached ∙ resets 2pm"),
		okResult(),
	}}
	sink := &msgSink{}
	mon := newMonitor(monitorOpts{
		probe:    script.next,
		store:    store,
		send:     sink.send,
		cache:    cache,
		debounce: 1,
		loc:      time.UTC,
		now:      clock.Now,
	})

	require.True(t, cache.Get().Available, "cache fails open before the first probe")

	require.NoError(t, mon.Tick(context.Background()))
	st := cache.Get()
	require.True(t, st.Known())
	require.False(t, st.Available)
	require.Equal(t, claudecli.ReasonDailyLimit, st.Reason)
	require.False(t, st.ResetAt.IsZero())

	clock.Advance(time.Minute)
	require.NoError(t, mon.Tick(context.Background()))
	require.True(t, cache.Get().Available)
}
