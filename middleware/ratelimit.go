package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/p-arndt/statiker/clientip"
)

// ErrInvalidRateLimit is returned when RateLimitConfig.RequestsPerMin is not
// greater than zero.
var ErrInvalidRateLimit = errors.New("rate limit: requests per minute must be greater than zero")

// RateLimitConfig configures the fixed-window rate limiter.
type RateLimitConfig struct {
	// RequestsPerMin is the number of requests allowed per client IP per
	// window. Must be greater than zero.
	RequestsPerMin int

	// Window is the fixed counting window. Defaults to one minute.
	// Fixed windows permit bursts at window boundaries; that is an accepted
	// trade-off for O(1) state per IP.
	Window time.Duration

	// SweepInterval is how often idle buckets are evicted.
	// Defaults to Window.
	SweepInterval time.Duration

	// Rejections is an optional counter incremented for each rejected
	// request.
	Rejections prometheus.Counter
}

// rateBucket is the per-IP window state. Buckets are created lazily on the
// first request from an IP and reset wholesale when the window expires.
type rateBucket struct {
	windowStart time.Time
	count       int
}

// rateLimiter owns all bucket state. Buckets live for the process lifetime
// unless evicted by the sweeper after two idle windows.
type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*rateBucket
}

// allow records a request for ip and reports whether it is within the limit.
func (l *rateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	b, ok := l.buckets[ip]
	if !ok {
		b = &rateBucket{windowStart: now}
		l.buckets[ip] = b
	}

	if now.Sub(b.windowStart) >= l.window {
		b.windowStart = now
		b.count = 0
	}

	b.count++

	return b.count <= l.limit
}

// sweep evicts buckets idle for at least two windows, bounding memory under
// many distinct client IPs.
func (l *rateLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-2 * l.window)
	for ip, b := range l.buckets {
		if b.windowStart.Before(cutoff) {
			delete(l.buckets, ip)
		}
	}
}

// RateLimitMiddleware returns a middleware that rejects requests over the
// per-IP limit with 429 before they reach the dispatcher, so a rate-limited
// request never touches the filesystem or a backend. The bucket sweeper
// goroutine runs until ctx is cancelled.
//
// It returns ErrInvalidRateLimit if RequestsPerMin is not greater than zero.
func RateLimitMiddleware(ctx context.Context, cfg RateLimitConfig) (Middleware, error) {
	if cfg.RequestsPerMin <= 0 {
		return nil, ErrInvalidRateLimit
	}

	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}

	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = window
	}

	l := &rateLimiter{
		limit:   cfg.RequestsPerMin,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*rateBucket),
	}

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()

	rejections := cfg.Rejections

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientip.FromRequest(r)

			if !l.allow(ip) {
				// Expected under load, not exceptional.
				slog.Debug("rate limit exceeded", "ip", ip, "path", r.URL.Path)

				if rejections != nil {
					rejections.Inc()
				}

				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				io.WriteString(w, "rate limit")

				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}
