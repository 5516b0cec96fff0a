package claudecli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProbeMissingBinary(t *testing.T) {
	c := New(Config{Binary: "definitely-not-a-real-binary-3941"})
	res := c.Probe(context.Background())
	require.False(t, res.Available)
	require.Error(t, res.Err)
}

func TestProbeSuccess(t *testing.T) {
	// "echo --version" exits 0; good enough to exercise the success path.
	c := New(Config{Binary: "echo"})
	res := c.Probe(context.Background())
	require.True(t, res.Available)
	require.NoError(t, res.Err)
	require.Equal(t, "--version", res.Output)
}

func TestRunEmptyPrompt(t *testing.T) {
	c := New(Config{Binary: "echo"})
	_, err := c.Run(context.Background(), "   ")
	require.Error(t, err)
}

func TestRunCapturesStdout(t *testing.T) {
	c := New(Config{Binary: "echo", RunArgs: []string{"-n"}})
	out, err := c.Run(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, "hello", out)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	require.Equal(t, "claude", cfg.Binary)
	require.Equal(t, "--version", cfg.VersionArg)
	require.Equal(t, 10*time.Second, cfg.ProbeTimeout)
	require.Equal(t, []string{"--print"}, cfg.RunArgs)
	require.Equal(t, 120*time.Second, cfg.RunTimeout)
}
