package claudecli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatusCacheFailsOpenBeforeFirstProbe(t *testing.T) {
	c := NewStatusCache()
	s := c.Get()
	require.True(t, s.Available)
	require.False(t, s.Known())
}

func TestStatusCacheSetGet(t *testing.T) {
	c := NewStatusCache()
	at := time.Now().UTC()
	c.Set(Status{
		Available: false,
		Reason:    ReasonHourlyLimit,
		ResetAt:   at.Add(time.Hour),
		CheckedAt: at,
	})

	s := c.Get()
	require.False(t, s.Available)
	require.Equal(t, ReasonHourlyLimit, s.Reason)
	require.True(t, s.Known())

	c.Set(Status{Available: true, CheckedAt: at.Add(time.Minute)})
	s = c.Get()
	require.True(t, s.Available)
	require.Equal(t, Reason(""), s.Reason)
}
