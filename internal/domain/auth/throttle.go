package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxThrottleEntries bounds the limiter map; idle limiters are evicted once
// it is exceeded.
const maxThrottleEntries = 10_000

// Throttle limits login attempts per username with a token bucket.
type Throttle struct {
	every time.Duration
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewThrottle allows burst attempts per username, refilled one every every.
// A zero burst disables throttling.
func NewThrottle(every time.Duration, burst int) *Throttle {
	return &Throttle{
		every:    every,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow consumes one attempt for key and reports whether it was available.
func (t *Throttle) Allow(key string) bool {
	if t == nil || t.burst <= 0 {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	lim, ok := t.limiters[key]
	if !ok {
		if len(t.limiters) >= maxThrottleEntries {
			t.evictIdle()
		}
		lim = rate.NewLimiter(rate.Every(t.every), t.burst)
		t.limiters[key] = lim
	}
	return lim.Allow()
}

// evictIdle drops limiters whose bucket has refilled completely. Caller holds t.mu.
func (t *Throttle) evictIdle() {
	for key, lim := range t.limiters {
		if lim.Tokens() >= float64(t.burst) {
			delete(t.limiters, key)
		}
	}
}
