package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	kit "claudebot/internal/transport"
	logx "claudebot/pkg/logx"
)

type fakeNotifierPort struct{ notes []kit.Notification }

func (f *fakeNotifierPort) Notify(ctx context.Context, n kit.Notification) error {
	f.notes = append(f.notes, n)
	return nil
}

func TestQuarantineAlertsOwners(t *testing.T) {
	t.Parallel()

	fake := &fakeNotifierPort{}
	pm := NewPluginManager(logx.Nop(), nil, PluginDeps{
		Services:    &Services{Notifier: fake},
		OwnerUserID: []int64{1, 2},
	}, nil)

	pm.setQuarantine("demo", 7, errors.New("boom"), "start")

	require.Len(t, fake.notes, 2)
	require.Equal(t, int64(1), fake.notes[0].Target.ChatID)
	require.Equal(t, int64(2), fake.notes[1].Target.ChatID)
	require.Contains(t, fake.notes[0].Text, "demo")
	require.Contains(t, fake.notes[0].Text, "boom")

	// Repeats of the same broken config bump the counter silently.
	pm.setQuarantine("demo", 7, errors.New("boom"), "start")
	require.Len(t, fake.notes, 2)
}

func TestQuarantineAlertWithoutNotifierIsNoop(t *testing.T) {
	t.Parallel()

	pm := NewPluginManager(logx.Nop(), nil, PluginDeps{OwnerUserID: []int64{1}}, nil)
	pm.setQuarantine("demo", 7, errors.New("boom"), "init")
	require.True(t, pm.isQuarantined("demo", 7))
}
