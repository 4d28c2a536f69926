package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/chatstream/errors"
)

const rateWindow = time.Minute

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests per key per minute.
	RequestsPerMinute int
	// KeyFunc extracts the rate limit key from a request. Defaults to client IP.
	KeyFunc func(*gin.Context) string
}

// RateLimit applies per-key sliding-window rate limiting to a route group.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	rl := newRateLimiter(cfg.RequestsPerMinute, time.Now)

	return func(c *gin.Context) {
		if wait, ok := rl.allow(cfg.KeyFunc(c)); !ok {
			c.Header("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
			appErr := apperrors.RateLimited()
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}
		c.Next()
	}
}

type rateLimiter struct {
	mu        sync.Mutex
	requests  map[string][]time.Time
	limit     int
	now       func() time.Time
	lastSweep time.Time
}

func newRateLimiter(limit int, now func() time.Time) *rateLimiter {
	return &rateLimiter{
		requests:  make(map[string][]time.Time),
		limit:     limit,
		now:       now,
		lastSweep: now(),
	}
}

// allow records a request for key. When the limit is reached it returns how
// long until the oldest request leaves the window.
func (rl *rateLimiter) allow(key string) (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rateWindow)
	if now.Sub(rl.lastSweep) > rateWindow {
		rl.sweep(cutoff)
		rl.lastSweep = now
	}

	valid := filterByTime(rl.requests[key], cutoff)
	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return valid[0].Sub(cutoff), false
	}
	rl.requests[key] = append(valid, now)
	return 0, true
}

func (rl *rateLimiter) sweep(cutoff time.Time) {
	for key, times := range rl.requests {
		if valid := filterByTime(times, cutoff); len(valid) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = valid
		}
	}
}

func filterByTime(times []time.Time, cutoff time.Time) []time.Time {
	var result []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			result = append(result, t)
		}
	}
	return result
}
