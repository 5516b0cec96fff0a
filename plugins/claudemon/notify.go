package claudemon

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	kit "claudebot/internal/transport"
	logx "claudebot/pkg/logx"
)

const (
	sendAttempts   = 3
	sendBackoff    = 2 * time.Second
	sendBackoffCap = 10 * time.Second
)

// sender fans a message out to every configured chat with bounded retry.
// Transient delivery failures are retried with exponential backoff; permanent
// ones (blocked, chat gone) are not. One failing chat never blocks the others;
// the aggregate error is returned after all chats were attempted.
type sender struct {
	adapter kit.Adapter
	chats   []int64
	log     logx.Logger

	// sleep is swapped in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

func newSender(adapter kit.Adapter, chats []int64, log logx.Logger) *sender {
	return &sender{adapter: adapter, chats: chats, log: log, sleep: sleepCtx}
}

func (s *sender) Send(ctx context.Context, text string) error {
	if s.adapter == nil || len(s.chats) == 0 {
		return nil
	}
	var errs []error
	for _, chat := range s.chats {
		if err := s.sendOne(ctx, chat, text); err != nil {
			s.log.Warn("monitor notification failed",
				logx.Int64("chat_id", chat),
				logx.Err(err),
			)
			errs = append(errs, fmt.Errorf("chat %d: %w", chat, err))
		}
	}
	return errors.Join(errs...)
}

func (s *sender) sendOne(ctx context.Context, chat int64, text string) error {
	to := kit.ChatTarget{ChatID: chat}
	var last error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		_, err := s.adapter.SendText(ctx, to, text, nil)
		if err == nil {
			return nil
		}
		last = err
		if errors.Is(err, kit.ErrPermanent) {
			return err
		}
		if attempt == sendAttempts {
			break
		}
		d := sendBackoff << (attempt - 1)
		if d > sendBackoffCap {
			d = sendBackoffCap
		}
		// jitter 0.7..1.3
		d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
		s.log.Debug("retrying monitor notification",
			logx.Int64("chat_id", chat),
			logx.Int("attempt", attempt),
			logx.Duration("backoff", d),
			logx.Err(err),
		)
		if err := s.sleep(ctx, d); err != nil {
			return err
		}
	}
	return last
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
