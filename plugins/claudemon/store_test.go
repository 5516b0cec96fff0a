package claudemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"claudebot/pkg/claudecli"
	logx "claudebot/pkg/logx"
)

func TestStoreLoadDefaultOnMissing(t *testing.T) {
	t.Parallel()

	st, err := NewStore(t.TempDir(), logx.Nop())
	require.NoError(t, err)

	snap := st.Load()
	require.False(t, snap.Available)
	require.Empty(t, snap.Reason)
	require.True(t, snap.LastCheck.IsZero())
	require.Nil(t, snap.ResetExpected)
}

func TestStoreLoadDefaultOnCorrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := NewStore(dir, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotFile), []byte("{not json"), 0o644))

	snap := st.Load()
	require.False(t, snap.Available)
	require.Empty(t, snap.Reason)
}

func TestStoreSaveRoundTrip(t *testing.T) {
	t.Parallel()

	st, err := NewStore(t.TempDir(), logx.Nop())
	require.NoError(t, err)

	reset := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	in := HealthSnapshot{
		Available:     false,
		LastCheck:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Reason:        claudecli.ReasonDailyLimit,
		ResetExpected: &reset,
	}
	require.NoError(t, st.Save(in))

	out := st.Load()
	require.Equal(t, in.Available, out.Available)
	require.Equal(t, in.Reason, out.Reason)
	require.True(t, in.LastCheck.Equal(out.LastCheck))
	require.NotNil(t, out.ResetExpected)
	require.True(t, reset.Equal(*out.ResetExpected))

	// Overwrite with an available snapshot; reason and reset must clear.
	require.NoError(t, st.Save(HealthSnapshot{Available: true, LastCheck: time.Now()}))
	out = st.Load()
	require.True(t, out.Available)
	require.Empty(t, out.Reason)
	require.Nil(t, out.ResetExpected)
}

func TestStoreAppendAndRecentTransitions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := NewStore(dir, logx.Nop())
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		dur := float64(60 * i)
		require.NoError(t, st.AppendTransition(TransitionRecord{
			Timestamp:           base.Add(time.Duration(i) * time.Minute),
			From:                "available",
			To:                  "unavailable",
			DurationUnavailable: &dur,
			Platform:            "linux/amd64",
		}))
	}

	// A corrupt line in the middle must be skipped, not fail the read.
	f, err := os.OpenFile(filepath.Join(dir, transitionsFile), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("garbage line\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, st.AppendTransition(TransitionRecord{
		Timestamp: base.Add(10 * time.Minute),
		From:      "unavailable",
		To:        "available",
		Platform:  "linux/amd64",
	}))

	recs := st.RecentTransitions(3)
	require.Len(t, recs, 3)
	require.Equal(t, "available", recs[2].To)
	require.True(t, recs[0].Timestamp.Before(recs[1].Timestamp))
}
