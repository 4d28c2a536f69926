package resilience

import (
	"fmt"
	"time"
)

// Config configures the guard around one provider.
type Config struct {
	// MaxAttempts counts the first try. 1 disables retries.
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`

	// BreakerFailures consecutive failed opens trip the breaker for
	// BreakerTimeout.
	BreakerFailures int           `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout" mapstructure:"breaker_timeout"`

	// MaxConcurrent caps streams open at once. 0 means unlimited.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	// MaxWait is how long a request waits for a free slot.
	MaxWait time.Duration `yaml:"max_wait" mapstructure:"max_wait"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 2 * time.Second
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerTimeout == 0 {
		c.BreakerTimeout = 30 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("resilience.max_attempts must be at least 1 (got: %d)", c.MaxAttempts)
	}
	if c.InitialBackoff < 0 || c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("resilience: backoff must satisfy 0 <= initial_backoff <= max_backoff")
	}
	if c.BreakerFailures < 1 {
		return fmt.Errorf("resilience.breaker_failures must be at least 1 (got: %d)", c.BreakerFailures)
	}
	if c.MaxConcurrent < 0 || c.MaxWait < 0 {
		return fmt.Errorf("resilience: max_concurrent and max_wait must not be negative")
	}
	return nil
}
