package observability

import (
	"fmt"
	"time"
)

// Config configures metric and trace export. Export is off unless Enabled;
// instruments then record to the global no-op providers.
type Config struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool          `yaml:"insecure" mapstructure:"insecure"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval"`
	SampleRate float64       `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.Interval == 0 {
		c.Interval = 15 * time.Second
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
}

// Validate checks the export settings.
func (c *Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("observability.sample_rate must be within [0, 1] (got: %v)", c.SampleRate)
	}
	if c.Interval < 0 {
		return fmt.Errorf("observability.interval must not be negative (got: %s)", c.Interval)
	}
	return nil
}

// MeterConfig returns the meter settings for a service.
func (c *Config) MeterConfig(service, version, environment string) MeterConfig {
	return MeterConfig{
		ServiceName:    service,
		ServiceVersion: version,
		Environment:    environment,
		Endpoint:       c.Endpoint,
		Insecure:       c.Insecure,
		Interval:       c.Interval,
	}
}

// TracerConfig returns the tracer settings for a service.
func (c *Config) TracerConfig(service, version, environment string) TracerConfig {
	return TracerConfig{
		ServiceName:    service,
		ServiceVersion: version,
		Environment:    environment,
		Endpoint:       c.Endpoint,
		Insecure:       c.Insecure,
		SampleRate:     c.SampleRate,
	}
}
