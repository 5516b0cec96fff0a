package claudemon

// debouncer confirms a recovery only after N consecutive OK probes. A single
// failed probe resets the counter, so one flaky success cannot trigger a
// recovered/limited notification pair. Degradation is never debounced.
type debouncer struct {
	threshold int
	okCount   int
}

func newDebouncer(threshold int) *debouncer {
	if threshold < 1 {
		threshold = 1
	}
	return &debouncer{threshold: threshold}
}

// Observe feeds one probe result and reports whether availability is
// confirmed.
func (d *debouncer) Observe(ok bool) bool {
	if !ok {
		d.okCount = 0
		return false
	}
	d.okCount++
	return d.okCount >= d.threshold
}

// Prime pre-fills the counter so an already-available state loaded from disk
// does not read as a fresh outage on the first tick after restart.
func (d *debouncer) Prime() {
	d.okCount = d.threshold
}
