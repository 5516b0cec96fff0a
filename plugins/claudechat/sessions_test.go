package claudechat

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "claudebot/pkg/logx"
)

func TestSessionAppendTrimsAndPersists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := newSessionStore(dir, 2, logx.Nop())
	require.NoError(t, err)

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s.Append(7, "one", "a", now)
	s.Append(7, "two", "b", now.Add(time.Minute))
	s.Append(7, "three", "c", now.Add(2*time.Minute))

	ctx := s.Context(7)
	require.NotContains(t, ctx, "one", "oldest turn must be trimmed")
	require.Contains(t, ctx, "User: two")
	require.Contains(t, ctx, "Assistant: c")

	// A fresh store instance must see the persisted state.
	s2, err := newSessionStore(dir, 2, logx.Nop())
	require.NoError(t, err)
	require.Equal(t, ctx, s2.Context(7))
	require.Empty(t, s2.Context(8))
}

func TestSessionReset(t *testing.T) {
	t.Parallel()

	s, err := newSessionStore(t.TempDir(), 4, logx.Nop())
	require.NoError(t, err)

	require.False(t, s.Reset(1))
	s.Append(1, "q", "a", time.Now())
	require.True(t, s.Reset(1))
	require.Empty(t, s.Context(1))
}

func TestSessionPrune(t *testing.T) {
	t.Parallel()

	s, err := newSessionStore(t.TempDir(), 4, logx.Nop())
	require.NoError(t, err)

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s.Append(1, "old", "a", now.Add(-48*time.Hour))
	s.Append(2, "fresh", "b", now.Add(-time.Hour))

	require.Equal(t, 1, s.Prune(24*time.Hour, now))
	require.Empty(t, s.Context(1))
	require.NotEmpty(t, s.Context(2))
	require.Equal(t, 0, s.Prune(24*time.Hour, now))
}

func TestSessionCorruptFileStartsFresh(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, sessionsFile), []byte("{broken"), 0o600))

	s, err := newSessionStore(dir, 4, logx.Nop())
	require.NoError(t, err)
	require.Empty(t, s.Context(1))
}
