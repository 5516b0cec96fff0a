package claudechat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "claudebot/pkg/logx"
)

const sessionsFile = "claude_sessions.json"

// Turn is one question/answer exchange kept as rolling context.
type Turn struct {
	Prompt string    `json:"prompt"`
	Reply  string    `json:"reply"`
	At     time.Time `json:"at"`
}

type session struct {
	Turns    []Turn    `json:"turns"`
	LastUsed time.Time `json:"last_used"`
}

// sessionStore keeps per-chat rolling context, persisted as a single JSON
// file under the plugin data dir. Writes are atomic (tmp + rename).
type sessionStore struct {
	path     string
	maxTurns int
	log      logx.Logger

	mu    sync.Mutex
	chats map[int64]*session
}

func newSessionStore(dataDir string, maxTurns int, log logx.Logger) (*sessionStore, error) {
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if maxTurns < 1 {
		maxTurns = 6
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &sessionStore{
		path:     filepath.Join(dataDir, sessionsFile),
		maxTurns: maxTurns,
		log:      log,
		chats:    map[int64]*session{},
	}
	s.load()
	return s, nil
}

// load reads the persisted sessions; corrupt files start fresh.
func (s *sessionStore) load() {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("session file read failed", logx.Err(err))
		}
		return
	}
	var chats map[int64]*session
	if err := json.Unmarshal(b, &chats); err != nil {
		s.log.Warn("session file corrupt, starting fresh", logx.Err(err))
		return
	}
	s.mu.Lock()
	s.chats = chats
	s.mu.Unlock()
}

func (s *sessionStore) saveLocked() {
	b, err := json.Marshal(s.chats)
	if err != nil {
		s.log.Warn("session marshal failed", logx.Err(err))
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		s.log.Warn("session write failed", logx.Err(err))
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.log.Warn("session replace failed", logx.Err(err))
	}
}

// Context renders the remembered exchanges for a chat as prompt prefix text.
// Empty when the chat has no history.
func (s *sessionStore) Context(chatID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.chats[chatID]
	if sess == nil || len(sess.Turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range sess.Turns {
		b.WriteString("User: ")
		b.WriteString(t.Prompt)
		b.WriteString("\nAssistant: ")
		b.WriteString(t.Reply)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Append records one exchange and trims the history to the configured size.
func (s *sessionStore) Append(chatID int64, prompt, reply string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.chats[chatID]
	if sess == nil {
		sess = &session{}
		s.chats[chatID] = sess
	}
	sess.Turns = append(sess.Turns, Turn{Prompt: prompt, Reply: reply, At: now})
	if len(sess.Turns) > s.maxTurns {
		sess.Turns = sess.Turns[len(sess.Turns)-s.maxTurns:]
	}
	sess.LastUsed = now
	s.saveLocked()
}

// Reset drops the history for one chat. Reports whether there was any.
func (s *sessionStore) Reset(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[chatID]; !ok {
		return false
	}
	delete(s.chats, chatID)
	s.saveLocked()
	return true
}

// Prune removes sessions idle longer than ttl. Returns the number removed.
func (s *sessionStore) Prune(ttl time.Duration, now time.Time) int {
	if ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.chats {
		if now.Sub(sess.LastUsed) > ttl {
			delete(s.chats, id)
			removed++
		}
	}
	if removed > 0 {
		s.saveLocked()
	}
	return removed
}

// Flush persists the current state, used on plugin stop.
func (s *sessionStore) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked()
}
