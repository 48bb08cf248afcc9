package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// defaultMaxBuckets caps tracked callers; new callers are rejected beyond it.
const defaultMaxBuckets = 100_000

// KeyFunc returns the bucket a request is charged to.
type KeyFunc func(r *http.Request) string

// ViewerOrIP charges a request to the caller's wallet key when one is sent
// and to the remote IP otherwise. Posters sharing a NAT therefore do not
// drain each other's budget.
func ViewerOrIP(r *http.Request) string {
	if v := ViewerFromContext(r.Context()); v != "" {
		return "viewer:" + v
	}
	if v := strings.TrimSpace(r.Header.Get(HeaderViewerKey)); v != "" {
		return "viewer:" + v
	}
	return "ip:" + remoteIP(r)
}

// RateLimiter is token bucket middleware. Each key from its KeyFunc gets
// burst tokens refilled at rate per second.
type RateLimiter struct {
	name       string
	rate       float64
	burst      int
	key        KeyFunc
	maxBuckets int
	now        func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens  float64
	updated time.Time
}

// verdict is the outcome of charging one request.
type verdict struct {
	allowed    bool
	remaining  int
	retryAfter time.Duration
}

// NewRateLimiter creates a limiter. name appears in the 429 body and logs
// so clients can tell the general budget from the matching budget. A nil
// key defaults to ViewerOrIP.
func NewRateLimiter(name string, rate float64, burst int, key KeyFunc) *RateLimiter {
	if key == nil {
		key = ViewerOrIP
	}
	return &RateLimiter{
		name:       name,
		rate:       rate,
		burst:      burst,
		key:        key,
		maxBuckets: defaultMaxBuckets,
		now:        time.Now,
		buckets:    make(map[string]*bucket),
	}
}

// Handler returns the middleware.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.key(r)
		v := rl.take(key)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(v.remaining))
		if !v.allowed {
			secs := max(1, int(math.Ceil(v.retryAfter.Seconds())))
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			slog.Debug("rate limited", "limiter", rl.name, "key", key, "retry_after_s", secs)
			writeMiddlewareError(w, http.StatusTooManyRequests, rl.name+" rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// take charges one token to key.
func (rl *RateLimiter) take(key string) verdict {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		if len(rl.buckets) >= rl.maxBuckets {
			return verdict{retryAfter: rl.perToken()}
		}
		b = &bucket{tokens: float64(rl.burst), updated: now}
		rl.buckets[key] = b
	} else {
		b.tokens = min(float64(rl.burst), b.tokens+now.Sub(b.updated).Seconds()*rl.rate)
		b.updated = now
	}

	if b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) / rl.rate * float64(time.Second))
		return verdict{retryAfter: wait}
	}
	b.tokens--
	return verdict{allowed: true, remaining: int(b.tokens)}
}

func (rl *RateLimiter) perToken() time.Duration {
	return time.Duration(float64(time.Second) / rl.rate)
}

// RunCleanup drops buckets idle for longer than maxIdle every interval
// until ctx is done.
func (rl *RateLimiter) RunCleanup(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.cleanup(maxIdle); n > 0 {
				slog.Debug("rate limit buckets dropped", "limiter", rl.name, "count", n)
			}
		}
	}
}

// cleanup removes idle buckets and returns how many were dropped.
func (rl *RateLimiter) cleanup(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-maxIdle)
	n := 0
	for key, b := range rl.buckets {
		if b.updated.Before(cutoff) {
			delete(rl.buckets, key)
			n++
		}
	}
	return n
}

// Len returns the number of tracked buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// remoteIP returns the host part of RemoteAddr. Forwarding headers are
// not trusted.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
