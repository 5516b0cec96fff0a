package claudemon

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	logx "claudebot/pkg/logx"
)

const (
	snapshotFile    = "claude_health.json"
	transitionsFile = "claude_transitions.jsonl"
)

// Store persists the health snapshot and the transition log under a data
// directory. Single writer: only the monitor tick mutates these files.
type Store struct {
	snapshotPath    string
	transitionsPath string
	log             logx.Logger
}

func NewStore(dataDir string, log logx.Logger) (*Store, error) {
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{
		snapshotPath:    filepath.Join(dataDir, snapshotFile),
		transitionsPath: filepath.Join(dataDir, transitionsFile),
		log:             log,
	}, nil
}

// Load reads the persisted snapshot. Missing or corrupt files yield a default
// "previously unavailable, never checked" snapshot; errors are logged, never
// returned.
func (s *Store) Load() HealthSnapshot {
	b, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("health snapshot read failed", logx.Err(err))
		}
		return HealthSnapshot{}
	}
	var snap HealthSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		s.log.Warn("health snapshot corrupt, using default", logx.Err(err))
		return HealthSnapshot{}
	}
	return snap
}

// Save atomically overwrites the snapshot file (tmp write + rename).
func (s *Store) Save(snap HealthSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	tmp := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// AppendTransition appends one JSON line to the transition log.
func (s *Store) AppendTransition(rec TransitionRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(s.transitionsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open transition log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("append transition: %w", err)
	}
	return nil
}

// RecentTransitions returns up to limit most recent records, oldest first.
// Corrupt lines are skipped.
func (s *Store) RecentTransitions(limit int) []TransitionRecord {
	if limit <= 0 {
		limit = 10
	}
	f, err := os.Open(s.transitionsPath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("transition log read failed", logx.Err(err))
		}
		return nil
	}
	defer f.Close()

	var out []TransitionRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec TransitionRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			s.log.Debug("skipping corrupt transition line", logx.Err(err))
			continue
		}
		out = append(out, rec)
		if len(out) > limit {
			out = out[1:]
		}
	}
	if err := sc.Err(); err != nil {
		s.log.Warn("transition log scan failed", logx.Err(err))
	}
	return out
}
