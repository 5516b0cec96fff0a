package claudemon

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// quietWindow is a daily do-not-disturb window in wall-clock minutes.
// A window that wraps midnight (start > end) covers "now >= start OR
// now < end". start == end disables the window.
type quietWindow struct {
	startMin int
	endMin   int
}

func parseQuietWindow(start, end string) (quietWindow, error) {
	if start == "" && end == "" {
		return quietWindow{}, nil
	}
	s, err := parseClockMinutes(start)
	if err != nil {
		return quietWindow{}, fmt.Errorf("dnd_start: %w", err)
	}
	e, err := parseClockMinutes(end)
	if err != nil {
		return quietWindow{}, fmt.Errorf("dnd_end: %w", err)
	}
	return quietWindow{startMin: s, endMin: e}, nil
}

// Contains reports whether the local wall-clock time of t falls inside the
// window.
func (w quietWindow) Contains(t time.Time) bool {
	if w.startMin == w.endMin {
		return false
	}
	now := t.Hour()*60 + t.Minute()
	if w.startMin > w.endMin {
		return now >= w.startMin || now < w.endMin
	}
	return now >= w.startMin && now < w.endMin
}

func parseClockMinutes(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return hh*60 + mm, nil
}
