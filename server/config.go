package server

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/kbukum/chatstream/server/middleware"
)

// Config holds HTTP server configuration.
type Config struct {
	Host         string `yaml:"host" mapstructure:"host"`
	Port         int    `yaml:"port" mapstructure:"port"`
	ReadTimeout  int    `yaml:"read_timeout" mapstructure:"read_timeout"`   // seconds
	WriteTimeout int    `yaml:"write_timeout" mapstructure:"write_timeout"` // seconds; streaming writers lift it per response
	IdleTimeout  int    `yaml:"idle_timeout" mapstructure:"idle_timeout"`   // seconds
	StopTimeout  int    `yaml:"stop_timeout" mapstructure:"stop_timeout"`   // seconds
	MaxBodySize  string `yaml:"max_body_size" mapstructure:"max_body_size"` // e.g. "1MB"

	// RateLimit is the number of API requests allowed per client per minute.
	// Zero disables limiting.
	RateLimit int `yaml:"rate_limit" mapstructure:"rate_limit"`

	CORS middleware.CORSConfig `yaml:"cors" mapstructure:"cors"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 15
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = 5
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "1MB"
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = []string{"Origin", "Content-Type", "Accept", "X-Request-Id"}
	}
	if len(c.CORS.ExposedHeaders) == 0 {
		c.CORS.ExposedHeaders = []string{"X-Session-Id", "X-Request-Id", "X-Stream-Status", "X-Stream-Error"}
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535 (got: %d)", c.Port)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("server.read_timeout must be non-negative (got: %d)", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("server.write_timeout must be non-negative (got: %d)", c.WriteTimeout)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("server.idle_timeout must be non-negative (got: %d)", c.IdleTimeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must be non-negative (got: %d)", c.RateLimit)
	}
	if c.MaxBodySize != "" {
		if _, err := humanize.ParseBytes(c.MaxBodySize); err != nil {
			return fmt.Errorf("server.max_body_size: %w", err)
		}
	}
	return nil
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
