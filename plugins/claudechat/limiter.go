package claudechat

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// userLimiters hands out one token-bucket limiter per user id.
type userLimiters struct {
	mu    sync.Mutex
	limit rate.Limit
	burst int
	users map[int64]*rate.Limiter
}

func newUserLimiters(perMin float64, burst int) *userLimiters {
	if perMin <= 0 {
		perMin = 5
	}
	if burst < 1 {
		burst = 2
	}
	return &userLimiters{
		limit: rate.Limit(perMin / 60.0),
		burst: burst,
		users: map[int64]*rate.Limiter{},
	}
}

// Allow reports whether the user may issue a request right now.
func (l *userLimiters) Allow(userID int64) bool {
	l.mu.Lock()
	lim, ok := l.users[userID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.users[userID] = lim
	}
	// Cap the map so a wide user base cannot grow it unboundedly.
	if len(l.users) > 4096 {
		l.users = map[int64]*rate.Limiter{userID: lim}
	}
	l.mu.Unlock()
	return lim.Allow()
}

// RetryAfter estimates how long until the user's next token.
func (l *userLimiters) RetryAfter(userID int64) time.Duration {
	l.mu.Lock()
	lim := l.users[userID]
	l.mu.Unlock()
	if lim == nil {
		return 0
	}
	r := lim.Reserve()
	d := r.Delay()
	r.Cancel()
	return d
}
