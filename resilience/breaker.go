package resilience

import (
	"errors"
	"sync"
	"time"

	apperrors "github.com/kbukum/chatstream/errors"
)

// State is a circuit breaker state.
type State int

const (
	// StateClosed lets calls through.
	StateClosed State = iota
	// StateOpen rejects calls until the timeout passes.
	StateOpen
	// StateHalfOpen lets one probe call through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is the cause of the errors a tripped breaker returns.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig configures a CircuitBreaker.
type BreakerConfig struct {
	// Name is reported in rejection errors and state-change callbacks.
	Name string
	// MaxFailures consecutive failures open the circuit.
	MaxFailures int
	// Timeout is how long the circuit stays open before a probe.
	Timeout time.Duration
	// IsFailure decides which errors count. Defaults to Retryable, so
	// client mistakes never trip the breaker.
	IsFailure func(error) bool
	// OnStateChange is called with the lock held; it must not call back.
	OnStateChange func(name string, from, to State)
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// CircuitBreaker fails fast while an upstream keeps failing.
type CircuitBreaker struct {
	cfg BreakerConfig

	mu         sync.Mutex
	state      State
	failures   int
	openedAt   time.Time
	probeInUse bool
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = Retryable
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg}
}

// Execute runs fn unless the circuit is open, in which case it returns a
// 503 AppError caused by ErrCircuitOpen.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return apperrors.ServiceUnavailable(cb.cfg.Name).WithCause(ErrCircuitOpen)
	}
	err := fn()
	cb.record(err)
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.current()
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.current() {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.probeInUse {
			return false
		}
		cb.probeInUse = true
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil && cb.cfg.IsFailure(err)
	switch cb.current() {
	case StateHalfOpen:
		cb.probeInUse = false
		if failed {
			cb.open()
		} else {
			cb.to(StateClosed)
		}
	case StateClosed:
		if !failed {
			cb.failures = 0
			return
		}
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures {
			cb.open()
		}
	}
}

// current moves an expired open circuit to half-open.
func (cb *CircuitBreaker) current() State {
	if cb.state == StateOpen && cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.Timeout {
		cb.to(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) open() {
	cb.openedAt = cb.cfg.Now()
	cb.to(StateOpen)
}

func (cb *CircuitBreaker) to(s State) {
	if cb.state == s {
		return
	}
	from := cb.state
	cb.state = s
	cb.failures = 0
	cb.probeInUse = false
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, s)
	}
}
