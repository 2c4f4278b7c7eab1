// Package memory provides in-process stand-ins for the Redis-backed cache
// components, used when the service runs as a single replica.
package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

// idleEvict is how long an unused key keeps its limiter.
const idleEvict = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements domain.RateLimiter with one token bucket per key.
// A limit of n per window becomes a bucket refilling n/window per second with
// burst n.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	now     func() time.Time
}

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		entries: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

// Allow reports whether one more request for key fits the limit.
func (rl *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	now := rl.now()
	every := rate.Every(window / time.Duration(limit))

	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.entries[key]
	if !ok || e.limiter.Burst() != limit || e.limiter.Limit() != every {
		e = &limiterEntry{limiter: rate.NewLimiter(every, limit)}
		rl.entries[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	for k, other := range rl.entries {
		if now.Sub(other.lastSeen) > idleEvict {
			delete(rl.entries, k)
		}
	}
	return allowed, nil
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
