package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the maximum number of requests allowed per window.
	Max int
	// Window is the duration of each sliding window.
	Window time.Duration
	// KeyFunc extracts the rate limit key from a request.
	// If nil, the client IP address is used.
	KeyFunc func(*http.Request) string
	// Match selects the requests subject to this limiter. Others pass
	// through untouched and without rate limit headers. Nil matches all.
	Match func(*http.Request) bool
}

// window counts requests in the current and the previous fixed window.
type window struct {
	prevCount float64
	currCount float64
	currStart time.Time
}

type slidingWindow struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	windows map[string]*window
}

func newSlidingWindow(cfg RateLimitConfig) *slidingWindow {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Match == nil {
		cfg.Match = func(*http.Request) bool { return true }
	}
	return &slidingWindow{
		cfg:     cfg,
		windows: make(map[string]*window),
	}
}

// take records a request for key at now unless the limit is reached. It
// reports the remaining budget and when the current window ends.
func (sw *slidingWindow) take(key string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	w, found := sw.windows[key]
	if !found {
		w = &window{currStart: now.Truncate(sw.cfg.Window)}
		sw.windows[key] = w
	}

	if elapsed := now.Sub(w.currStart); elapsed >= sw.cfg.Window {
		// The previous window only counts if it is the one right before now.
		if elapsed < 2*sw.cfg.Window {
			w.prevCount = w.currCount
		} else {
			w.prevCount = 0
		}
		w.currCount = 0
		w.currStart = now.Truncate(sw.cfg.Window)
	}

	weight := 1 - now.Sub(w.currStart).Seconds()/sw.cfg.Window.Seconds()
	if weight < 0 {
		weight = 0
	}
	used := w.prevCount*weight + w.currCount
	resetAt = w.currStart.Add(sw.cfg.Window)

	if used >= float64(sw.cfg.Max) {
		return 0, resetAt, false
	}
	w.currCount++

	remaining = int(float64(sw.cfg.Max) - used - 1)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, resetAt, true
}

// evict drops keys that have been idle for two windows.
func (sw *slidingWindow) evict(now time.Time) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	for key, w := range sw.windows {
		if now.Sub(w.currStart) >= 2*sw.cfg.Window {
			delete(sw.windows, key)
		}
	}
}

func (sw *slidingWindow) runEviction(ctx context.Context) {
	ticker := time.NewTicker(2 * sw.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sw.evict(now)
		}
	}
}

// RateLimit returns a middleware that enforces a per-key sliding window rate
// limit. Limited requests get 429 with the storefront's JSON message body.
// Matched responses carry X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset headers.
//
// Stale keys are never evicted; use RateLimitWithCleanup for long-running
// servers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newSlidingWindow(cfg).middleware
}

// RateLimitWithCleanup is like RateLimit but evicts idle keys every two
// windows until ctx is cancelled.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	sw := newSlidingWindow(cfg)
	go sw.runEviction(ctx)
	return sw.middleware
}

func (sw *slidingWindow) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sw.cfg.Match(r) {
			next.ServeHTTP(w, r)
			return
		}

		remaining, resetAt, ok := sw.take(sw.cfg.KeyFunc(r), time.Now())

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(sw.cfg.Max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !ok {
			retryAfter := max(time.Until(resetAt), 0)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			WriteMessage(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the client address from X-Forwarded-For (first hop),
// X-Real-IP or RemoteAddr, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// MatchRoute returns a Match function selecting requests by method and exact path.
func MatchRoute(method, path string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		return r.Method == method && r.URL.Path == path
	}
}
