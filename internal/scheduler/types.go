package scheduler

import "time"

// Config controls the scheduler service.
type Config struct {
	Enabled        bool
	Workers        int
	DefaultTimeout time.Duration // 0 disables the global default
	HistorySize    int
	RetryMax       int
	Timezone       string // IANA name, e.g. "Europe/Kyiv"
}

// TaskOptions tune a single registered task.
type TaskOptions struct {
	// Timeout bounds one attempt. 0 falls back to Config.DefaultTimeout.
	Timeout time.Duration
	// Retry overrides Config.RetryMax when >= 0; -1 uses the config value.
	Retry int
	// SkipIfRunning drops a trigger while a previous run of the same task
	// is still executing.
	SkipIfRunning bool
}

// DefaultTaskOptions returns options that defer to the service config.
func DefaultTaskOptions() TaskOptions {
	return TaskOptions{Retry: -1}
}

type HistoryItem struct {
	Name     string        `json:"name"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Attempts int           `json:"attempts"`
	Error    string        `json:"error,omitempty"`
}

type EntrySnapshot struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next,omitempty"`
}

type Snapshot struct {
	Enabled  bool            `json:"enabled"`
	Timezone string          `json:"timezone"`
	Entries  []EntrySnapshot `json:"entries"`
	History  []HistoryItem   `json:"history"`
}
