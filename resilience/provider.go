package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kbukum/chatstream/frame"
	"github.com/kbukum/chatstream/llm"
	"github.com/kbukum/chatstream/logger"
)

// Provider wraps an llm.Provider with retry, circuit breaking and a stream
// cap. It keeps the inner provider's name and extractors.
type Provider struct {
	inner    llm.Provider
	retry    RetryConfig
	breaker  *CircuitBreaker
	bulkhead *Bulkhead
	log      *logger.Logger
}

var (
	_ llm.Provider    = (*Provider)(nil)
	_ llm.FrameShaper = (*Provider)(nil)
)

// Guard wraps p. cfg is defaulted and is expected to be valid.
func Guard(p llm.Provider, cfg Config, log *logger.Logger) *Provider {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Get("resilience")
	}
	log = log.WithFields(logger.Fields(logger.FieldProvider, p.Name()))

	g := &Provider{
		inner: p,
		retry: RetryConfig{
			MaxAttempts:    cfg.MaxAttempts,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
			BackoffFactor:  2,
			Jitter:         0.1,
			RetryIf: func(err error) bool {
				return !errors.Is(err, ErrCircuitOpen) && Retryable(err)
			},
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				log.Warn("retrying provider", logger.MergeWithError(logger.Fields(
					"attempt", attempt, "backoff", backoff.String()), err))
			},
		},
		breaker: NewCircuitBreaker(BreakerConfig{
			Name:        p.Name(),
			MaxFailures: cfg.BreakerFailures,
			Timeout:     cfg.BreakerTimeout,
			OnStateChange: func(name string, from, to State) {
				log.Warn("circuit breaker state changed", logger.Fields("from", from.String(), logger.FieldState, to.String()))
			},
		}),
		log: log,
	}
	if cfg.MaxConcurrent > 0 {
		g.bulkhead = NewBulkhead(BulkheadConfig{Name: p.Name(), MaxConcurrent: cfg.MaxConcurrent, MaxWait: cfg.MaxWait})
	}
	return g
}

func (g *Provider) Name() string { return g.inner.Name() }

// Extractors returns the inner provider's extra extractors.
func (g *Provider) Extractors() []frame.Extractor {
	if s, ok := g.inner.(llm.FrameShaper); ok {
		return s.Extractors()
	}
	return nil
}

// State reports the circuit breaker state.
func (g *Provider) State() State { return g.breaker.State() }

// Stream opens a stream on the inner provider. A stream slot is held until
// the returned Source is closed.
func (g *Provider) Stream(ctx context.Context, req llm.CompletionRequest) (frame.Source, error) {
	release := func() {}
	if g.bulkhead != nil {
		r, err := g.bulkhead.Acquire(ctx)
		if err != nil {
			g.log.Warn("stream capacity reached", logger.Fields("max_concurrent", g.bulkhead.MaxConcurrent()))
			return nil, err
		}
		release = r
	}

	src, err := Retry(ctx, g.retry, func(ctx context.Context) (frame.Source, error) {
		var src frame.Source
		err := g.breaker.Execute(func() error {
			var err error
			src, err = g.inner.Stream(ctx, req)
			return err
		})
		return src, err
	})
	if err != nil {
		release()
		return nil, err
	}
	return &slotSource{Source: src, release: release}, nil
}

// slotSource releases its bulkhead slot on Close.
type slotSource struct {
	frame.Source
	release func()
	once    sync.Once
}

func (s *slotSource) Close() error {
	err := s.Source.Close()
	s.once.Do(s.release)
	return err
}
