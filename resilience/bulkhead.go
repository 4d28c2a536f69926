package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/kbukum/chatstream/errors"
)

// ErrBulkheadFull is the cause of the errors a full bulkhead returns.
var ErrBulkheadFull = errors.New("bulkhead is full")

// BulkheadConfig configures a Bulkhead.
type BulkheadConfig struct {
	Name string
	// MaxConcurrent is the number of slots.
	MaxConcurrent int
	// MaxWait is how long Acquire waits for a slot. 0 fails immediately.
	MaxWait time.Duration
}

// Bulkhead caps concurrent holders. A slot is held across calls: Acquire
// returns the release function, which is safe to call more than once.
type Bulkhead struct {
	cfg BulkheadConfig
	sem chan struct{}
}

// NewBulkhead creates a bulkhead.
func NewBulkhead(cfg BulkheadConfig) *Bulkhead {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	return &Bulkhead{cfg: cfg, sem: make(chan struct{}, cfg.MaxConcurrent)}
}

// Acquire takes a slot, waiting up to MaxWait. When none frees up it returns
// a 503 AppError caused by ErrBulkheadFull.
func (b *Bulkhead) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case b.sem <- struct{}{}:
		return b.releaser(), nil
	default:
	}
	if b.cfg.MaxWait <= 0 {
		return nil, b.full()
	}

	timer := time.NewTimer(b.cfg.MaxWait)
	defer timer.Stop()
	select {
	case b.sem <- struct{}{}:
		return b.releaser(), nil
	case <-timer.C:
		return nil, b.full()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Bulkhead) releaser() func() {
	var once sync.Once
	return func() { once.Do(func() { <-b.sem }) }
}

func (b *Bulkhead) full() error {
	return apperrors.ServiceUnavailable(b.cfg.Name).WithCause(ErrBulkheadFull)
}

// InUse returns the number of held slots.
func (b *Bulkhead) InUse() int { return len(b.sem) }

// MaxConcurrent returns the number of slots.
func (b *Bulkhead) MaxConcurrent() int { return b.cfg.MaxConcurrent }
