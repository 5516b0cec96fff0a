package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": jsonl journal + snapshot files
//   - "sqlite": SQLite database file
//
// Empty or "none" disables storage.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records one proxied CLI request or operator action.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At        time.Time
	UserID    int64
	Username  string
	ChatID    int64
	Plugin    string
	Action    string
	PromptLen int
	ReplyLen  int
	OK        bool
	Error     string
	TookMS    int64
}
