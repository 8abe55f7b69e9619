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

// RateLimitConfig configures the per-key sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window.
	Max int
	// Window is the sliding window length.
	Window time.Duration
	// KeyFunc derives the limiter key from a request. Nil means the
	// client IP (X-Forwarded-For aware).
	KeyFunc func(*http.Request) string
}

// bucket is one fixed window worth of counted requests.
type bucket struct {
	count float64
	start time.Time
}

// client keeps the two adjacent buckets the sliding window interpolates over.
type client struct {
	prev bucket
	curr bucket
}

type limiter struct {
	max    float64
	period time.Duration
	keyFor func(*http.Request) string

	mu      sync.Mutex
	clients map[string]*client
}

func newLimiter(cfg RateLimitConfig) *limiter {
	keyFor := cfg.KeyFunc
	if keyFor == nil {
		keyFor = clientIP
	}
	return &limiter{
		max:     float64(cfg.Max),
		period:  cfg.Window,
		keyFor:  keyFor,
		clients: make(map[string]*client),
	}
}

// take registers one request for key at time now. It reports how many
// requests remain in the window, when the window resets, and whether this
// request is admitted. Denied requests are not counted.
func (l *limiter) take(key string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.clients[key]
	if c == nil {
		c = &client{curr: bucket{start: now}}
		l.clients[key] = c
	}

	if now.Sub(c.curr.start) >= l.period {
		c.prev = c.curr
		c.curr = bucket{start: now.Truncate(l.period)}
		if now.Sub(c.prev.start) >= 2*l.period {
			c.prev.count = 0
		}
	}

	// The previous bucket contributes proportionally to how much of it the
	// sliding window ending at now still covers.
	weight := 1 - now.Sub(c.curr.start).Seconds()/l.period.Seconds()
	if weight < 0 {
		weight = 0
	}
	used := c.prev.count*weight + c.curr.count
	resetAt = c.curr.start.Add(l.period)

	if used >= l.max {
		return 0, resetAt, false
	}

	c.curr.count++
	if left := l.max - used - 1; left > 0 {
		remaining = int(left)
	}
	return remaining, resetAt, true
}

// sweep drops clients whose buckets no longer overlap any sliding window.
func (l *limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, c := range l.clients {
		if now.Sub(c.curr.start) >= 2*l.period {
			delete(l.clients, key)
		}
	}
}

func (l *limiter) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * l.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

// RateLimit returns a sliding window rate limiting middleware. Rejected
// requests get 429 with a JSON body; every response carries
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset.
//
// Stale per-client state is never evicted by this variant; use
// RateLimitWithCleanup in long-running servers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return limitMiddleware(newLimiter(cfg))
}

// RateLimitWithCleanup is RateLimit plus a background goroutine that evicts
// expired client state. The goroutine exits when ctx is cancelled.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go l.sweepLoop(ctx)
	return limitMiddleware(l)
}

func limitMiddleware(l *limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, resetAt, ok := l.take(l.keyFor(r), time.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(int(l.max)))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !ok {
				retryAfter := math.Ceil(math.Max(time.Until(resetAt).Seconds(), 0))
				h.Set("Retry-After", strconv.Itoa(int(retryAfter)))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"code":429,"message":"rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the originating client address: first hop of
// X-Forwarded-For, then X-Real-IP, then the connection's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
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
