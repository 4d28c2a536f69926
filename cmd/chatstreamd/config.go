package main

import (
	"fmt"
	"time"

	"github.com/kbukum/chatstream/bedrock"
	"github.com/kbukum/chatstream/config"
	"github.com/kbukum/chatstream/flush"
	"github.com/kbukum/chatstream/llm"
	"github.com/kbukum/chatstream/llm/ollama"
	"github.com/kbukum/chatstream/observability"
	"github.com/kbukum/chatstream/resilience"
	"github.com/kbukum/chatstream/server"
	"github.com/kbukum/chatstream/version"
)

const serviceName = "chatstreamd"

// Config is the daemon configuration, loaded from config.yml, .env files and
// the environment (SERVER_PORT, LLM_PROVIDER, BEDROCK_KNOWLEDGE_BASE_ID, ...).
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	LLM           llm.Config           `yaml:"llm" mapstructure:"llm"`
	Bedrock       bedrock.Config       `yaml:"bedrock" mapstructure:"bedrock"`
	Ollama        ollama.Config        `yaml:"ollama" mapstructure:"ollama"`
	Flush         flush.Config         `yaml:"flush" mapstructure:"flush"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
	Resilience    resilience.Config    `yaml:"resilience" mapstructure:"resilience"`

	// RetrievalTimeout bounds knowledge-base lookups; on expiry the question
	// is sent without context.
	RetrievalTimeout time.Duration `yaml:"retrieval_timeout" mapstructure:"retrieval_timeout"`

	// ShutdownTimeout bounds session draining plus component shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	if c.Version == "" {
		c.Version = version.Get().Short()
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.LLM.ApplyDefaults()
	c.Bedrock.ApplyDefaults()
	c.Flush.ApplyDefaults()
	c.Observability.ApplyDefaults()
	c.Resilience.ApplyDefaults()
	if c.RetrievalTimeout == 0 {
		c.RetrievalTimeout = 5 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
}

func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if c.LLM.Provider == llm.ProviderBedrock {
		if err := c.Bedrock.Validate(); err != nil {
			return err
		}
	}
	if err := c.Flush.Validate(); err != nil {
		return err
	}
	if err := c.Observability.Validate(); err != nil {
		return err
	}
	if err := c.Resilience.Validate(); err != nil {
		return err
	}
	if c.RetrievalTimeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("config: timeouts must not be negative")
	}
	return nil
}
