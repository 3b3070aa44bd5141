package app

import (
	"time"

	"github.com/jamroom/server/internal/core"
)

// rateLimiter is a sliding-window counter keyed by connection id, used to
// keep one connection from flooding the registry with room creations.
// It is owned by the dispatcher loop, so it needs no locking.
type rateLimiter struct {
	history  map[core.ConnID][]time.Time
	limit    int
	interval time.Duration
}

func newRateLimiter(limit int, interval time.Duration) *rateLimiter {
	return &rateLimiter{
		history:  make(map[core.ConnID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *rateLimiter) allow(id core.ConnID) bool {
	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[id]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[id] = fresh
		return false
	}
	rl.history[id] = append(fresh, now)
	return true
}

func (rl *rateLimiter) forget(id core.ConnID) {
	delete(rl.history, id)
}
