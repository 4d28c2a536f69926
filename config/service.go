package config

import (
	"fmt"
	"slices"

	"github.com/kbukum/chatstream/logger"
)

// Config is implemented by every loadable service configuration.
type Config interface {
	ApplyDefaults()
	Validate() error
}

var validEnvironments = []string{"development", "staging", "production"}

// ServiceConfig contains the fields every chatstream binary needs. Binaries
// embed it in their own config structs:
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Flush flush.Config   `yaml:"flush" mapstructure:"flush"`
//	}
type ServiceConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
}

// GetServiceConfig returns the embedded ServiceConfig.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig {
	return c
}

// ApplyDefaults applies default values. Embedding structs call it first from
// their own ApplyDefaults.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.Logging.Service == "" {
		c.Logging.Service = c.Name
	}
	if c.Debug && c.Logging.Level == "" {
		c.Logging.Level = "debug"
	}
	c.Logging.ApplyDefaults()
}

// Validate validates the base fields.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config.name is required")
	}
	if !slices.Contains(validEnvironments, c.Environment) {
		return fmt.Errorf("config.environment must be one of %v (got: %s)", validEnvironments, c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}
