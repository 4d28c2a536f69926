package flush

import (
	"fmt"
	"time"
)

const (
	DefaultMinChunkSize  = 5
	DefaultFlushInterval = 100 * time.Millisecond
)

// Config holds the hybrid flush policy.
type Config struct {
	// MinChunkSize is the buffered unit count that forces a flush.
	MinChunkSize int `yaml:"min_chunk_size" mapstructure:"min_chunk_size"`
	// FlushInterval is the longest buffered text waits after the last flush.
	FlushInterval time.Duration `yaml:"flush_interval" mapstructure:"flush_interval"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.MinChunkSize == 0 {
		c.MinChunkSize = DefaultMinChunkSize
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = DefaultFlushInterval
	}
}

// Validate checks the policy is usable.
func (c *Config) Validate() error {
	if c.MinChunkSize < 1 {
		return fmt.Errorf("flush.min_chunk_size must be at least 1 (got: %d)", c.MinChunkSize)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush.flush_interval must be positive (got: %s)", c.FlushInterval)
	}
	return nil
}
