package claudecli

import (
	"sync"
	"time"
)

// Status is the cached availability view shared between the monitor (writer)
// and request handlers (readers).
type Status struct {
	Available bool
	Reason    Reason
	ResetAt   time.Time // UTC; zero when unknown
	CheckedAt time.Time // UTC; zero until the first probe completes
}

// Known reports whether at least one probe has completed.
func (s Status) Known() bool { return !s.CheckedAt.IsZero() }

// StatusCache is a small concurrency-safe holder for the latest Status.
//
// Request-handling middleware consults it to short-circuit user prompts while
// the CLI is known-unavailable, without running a probe of its own.
type StatusCache struct {
	mu sync.RWMutex
	s  Status
}

func NewStatusCache() *StatusCache {
	return &StatusCache{}
}

// Set replaces the cached status.
func (c *StatusCache) Set(s Status) {
	c.mu.Lock()
	c.s = s
	c.mu.Unlock()
}

// Get returns the cached status. Before the first probe it reports
// available=true with a zero CheckedAt, so handlers fail open.
func (c *StatusCache) Get() Status {
	c.mu.RLock()
	s := c.s
	c.mu.RUnlock()
	if !s.Known() {
		return Status{Available: true}
	}
	return s
}
