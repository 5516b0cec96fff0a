package claudemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"claudebot/pkg/claudecli"
)

func TestConfigCompileDefaults(t *testing.T) {
	t.Parallel()

	set, err := Config{}.compile()
	require.NoError(t, err)
	require.Equal(t, 60*time.Second, set.interval)
	require.Equal(t, 3, set.debounce)
	require.Equal(t, "./data", set.dataDir)
	require.Equal(t, 30*time.Minute, set.leads[claudecli.ReasonDailyLimit])
	require.Equal(t, 10*time.Minute, set.leads[claudecli.ReasonHourlyLimit])
	require.Equal(t, 2*time.Minute, set.leads[claudecli.ReasonRequestLimit])
}

func TestConfigCompileOverrides(t *testing.T) {
	t.Parallel()

	set, err := Config{
		Binary:          "claude",
		CheckInterval:   "30s",
		ProbeTimeout:    "5s",
		DebounceOKCount: 5,
		DNDStart:        "23:00",
		DNDEnd:          "08:00",
		Timezone:        "Asia/Jakarta",
		WarnLeadDaily:   "45m",
	}.compile()
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, set.interval)
	require.Equal(t, 5*time.Second, set.cli.ProbeTimeout)
	require.Equal(t, 5, set.debounce)
	require.Equal(t, "Asia/Jakarta", set.loc.String())
	require.Equal(t, 45*time.Minute, set.leads[claudecli.ReasonDailyLimit])
	require.True(t, set.quiet.Contains(time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)))
}

func TestConfigCompileRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
	}{
		{"bad interval", Config{CheckInterval: "soon"}},
		{"negative interval", Config{CheckInterval: "-10s"}},
		{"bad dnd start", Config{DNDStart: "25:00", DNDEnd: "08:00"}},
		{"bad dnd end", Config{DNDStart: "23:00", DNDEnd: "8am"}},
		{"bad timezone", Config{Timezone: "Mars/Olympus"}},
		{"bad warn lead", Config{WarnLeadHourly: "ten minutes"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := tc.cfg.compile()
			require.Error(t, err)
		})
	}
}
