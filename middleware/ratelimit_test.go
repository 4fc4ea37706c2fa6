package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("invalid limit", func(t *testing.T) {
		_, err := RateLimitMiddleware(context.Background(), RateLimitConfig{RequestsPerMin: 0})
		assert.ErrorIs(t, err, ErrInvalidRateLimit)
	})

	t.Run("rejects over the limit per ip", func(t *testing.T) {
		mw, err := RateLimitMiddleware(context.Background(), RateLimitConfig{RequestsPerMin: 3})
		require.NoError(t, err)

		h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		send := func(ip string) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = ip + ":1234"
			h.ServeHTTP(rec, req)

			return rec
		}

		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusOK, send("192.0.2.1").Code)
		}

		rec := send("192.0.2.1")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "rate limit", rec.Body.String())
		assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

		// A different client is unaffected.
		assert.Equal(t, http.StatusOK, send("192.0.2.2").Code)
	})

	t.Run("cancelled context stops the sweeper without breaking the limiter", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		mw, err := RateLimitMiddleware(ctx, RateLimitConfig{RequestsPerMin: 1})
		require.NoError(t, err)

		h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		send := func() *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.0.2.1:1234"
			h.ServeHTTP(rec, req)

			return rec
		}

		assert.Equal(t, http.StatusOK, send().Code)
		assert.Equal(t, http.StatusTooManyRequests, send().Code)
	})
}

func TestRateLimiter(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	l := &rateLimiter{
		limit:   2,
		window:  time.Minute,
		now:     func() time.Time { return clock },
		buckets: make(map[string]*rateBucket),
	}

	t.Run("window rollover resets the count", func(t *testing.T) {
		assert.True(t, l.allow("a"))
		assert.True(t, l.allow("a"))
		assert.False(t, l.allow("a"))

		clock = clock.Add(time.Minute)

		assert.True(t, l.allow("a"))
		assert.True(t, l.allow("a"))
		assert.False(t, l.allow("a"))
	})

	t.Run("sweep evicts idle buckets only", func(t *testing.T) {
		assert.True(t, l.allow("fresh"))

		clock = clock.Add(90 * time.Second)
		assert.True(t, l.allow("active"))

		clock = clock.Add(45 * time.Second)
		l.sweep()

		// "a" and "fresh" are over two windows idle; "active" is not.
		assert.NotContains(t, l.buckets, "a")
		assert.NotContains(t, l.buckets, "fresh")
		assert.Contains(t, l.buckets, "active")
	})
}
