package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	apperrors "github.com/kbukum/chatstream/errors"
)

// RetryConfig configures Retry.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts including the first.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// BackoffFactor multiplies the delay after each attempt.
	BackoffFactor float64
	// Jitter randomizes each delay by up to this fraction (0.0 to 1.0).
	Jitter float64
	// RetryIf reports whether err is worth another attempt. Defaults to
	// Retryable.
	RetryIf func(error) bool
	// OnRetry is called before each backoff.
	OnRetry func(attempt int, err error, backoff time.Duration)
}

// Retryable reports whether err is a transient failure: an AppError marked
// retryable, such as throttling or a provider 5xx. Context errors and plain
// errors are final.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.Retryable
	}
	return false
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx ends. The last error is returned.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 2
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = Retryable
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt == cfg.MaxAttempts || !cfg.RetryIf(err) {
			break
		}

		backoff := calculateBackoff(attempt, cfg)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, backoff)
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func calculateBackoff(attempt int, cfg RetryConfig) time.Duration {
	d := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffFactor, float64(attempt-1))
	if cfg.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * cfg.Jitter
	}
	if cfg.MaxBackoff > 0 && d > float64(cfg.MaxBackoff) {
		d = float64(cfg.MaxBackoff)
	}
	if d < 0 {
		d = float64(cfg.InitialBackoff)
	}
	return time.Duration(d)
}
