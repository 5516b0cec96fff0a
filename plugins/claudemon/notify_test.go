package claudemon

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	kit "claudebot/internal/transport"
	logx "claudebot/pkg/logx"
)

type fakeAdapter struct {
	kit.Adapter

	sent []int64
	fail map[int64][]error // errors popped per chat, nil entry = success
}

func (a *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	a.sent = append(a.sent, to.ChatID)
	if q := a.fail[to.ChatID]; len(q) > 0 {
		err := q[0]
		a.fail[to.ChatID] = q[1:]
		if err != nil {
			return kit.MessageRef{}, err
		}
	}
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func newTestSender(a *fakeAdapter, chats ...int64) *sender {
	s := newSender(a, chats, logx.Nop())
	s.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return s
}

func countChat(sent []int64, chat int64) int {
	n := 0
	for _, id := range sent {
		if id == chat {
			n++
		}
	}
	return n
}

func TestSenderRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	a := &fakeAdapter{fail: map[int64][]error{
		1: {errors.New("timeout"), errors.New("timeout"), nil},
	}}
	s := newTestSender(a, 1)

	require.NoError(t, s.Send(context.Background(), "hi"))
	require.Equal(t, 3, countChat(a.sent, 1))
}

func TestSenderStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	blocked := fmt.Errorf("bot was blocked: %w", kit.ErrPermanent)
	a := &fakeAdapter{fail: map[int64][]error{
		1: {blocked, blocked, blocked},
	}}
	s := newTestSender(a, 1)

	err := s.Send(context.Background(), "hi")
	require.Error(t, err)
	require.ErrorIs(t, err, kit.ErrPermanent)
	require.Equal(t, 1, countChat(a.sent, 1), "permanent errors must not be retried")
}

func TestSenderFailureDoesNotBlockOtherChats(t *testing.T) {
	t.Parallel()

	always := errors.New("timeout")
	a := &fakeAdapter{fail: map[int64][]error{
		1: {always, always, always},
	}}
	s := newTestSender(a, 1, 2, 3)

	err := s.Send(context.Background(), "hi")
	require.Error(t, err, "aggregate error surfaces after all chats were attempted")
	require.Equal(t, 3, countChat(a.sent, 1))
	require.Equal(t, 1, countChat(a.sent, 2))
	require.Equal(t, 1, countChat(a.sent, 3))
}

func TestSenderNoChatsIsNoop(t *testing.T) {
	t.Parallel()

	a := &fakeAdapter{}
	s := newTestSender(a)
	require.NoError(t, s.Send(context.Background(), "hi"))
	require.Empty(t, a.sent)
}
