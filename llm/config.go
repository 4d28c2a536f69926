package llm

import (
	"fmt"
	"slices"
	"time"
)

// DefaultSystemPrompt is the system instruction used when none is configured.
const DefaultSystemPrompt = "Vous êtes un assistant IA utile et intelligent. Suivez attentivement les instructions de l'utilisateur. Répondez en utilisant le format Markdown pour une meilleure lisibilité."

const (
	ProviderBedrock = "bedrock"
	ProviderOllama  = "ollama"
	ProviderEcho    = "echo"
)

// Config holds the generation defaults and the provider selection.
type Config struct {
	// Provider selects the backend: "bedrock", "ollama" or "echo".
	Provider string `yaml:"provider" mapstructure:"provider"`

	// Model is the default model ID.
	Model string `yaml:"model" mapstructure:"model"`

	// SystemPrompt is the default system instruction.
	SystemPrompt string `yaml:"system_prompt" mapstructure:"system_prompt"`

	// Temperature is the default sampling temperature.
	Temperature *float64 `yaml:"temperature" mapstructure:"temperature"`

	// MaxTokens is the default response length limit.
	MaxTokens int `yaml:"max_tokens" mapstructure:"max_tokens"`

	// Timeout bounds non-streaming provider calls such as retrieval.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// BaseURL is the endpoint of HTTP providers that are not region-addressed.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// EchoDelay paces the echo provider's frames.
	EchoDelay time.Duration `yaml:"echo_delay" mapstructure:"echo_delay"`

	// Models is the catalogue offered to display clients.
	Models []Model `yaml:"models" mapstructure:"models"`
}

// DefaultModels is the catalogue used when none is configured.
func DefaultModels() []Model {
	return []Model{
		{ID: "amazon.nova-pro-v1:0", Name: "Amazon Nova Pro", MaxLength: 12000, TokenLimit: 4000},
		{ID: "anthropic.claude-3-5-sonnet-20241022-v2:0", Name: "Claude 3.5 Sonnet", MaxLength: 12000, TokenLimit: 4000},
		{ID: "anthropic.claude-3-5-haiku-20241022-v1:0", Name: "Claude 3.5 Haiku", MaxLength: 12000, TokenLimit: 4000},
	}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderBedrock
	}
	if c.Model == "" {
		c.Model = "amazon.nova-pro-v1:0"
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.Temperature == nil {
		c.Temperature = Float(1)
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1000
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.EchoDelay == 0 {
		c.EchoDelay = 40 * time.Millisecond
	}
	if len(c.Models) == 0 {
		c.Models = DefaultModels()
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !slices.Contains([]string{ProviderBedrock, ProviderOllama, ProviderEcho}, c.Provider) {
		return fmt.Errorf("llm: unknown provider %q", c.Provider)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 1) {
		return fmt.Errorf("llm: temperature must be within [0, 1], got %v", *c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("llm: max_tokens must not be negative")
	}
	return nil
}

// Apply fills the unset fields of req from the defaults.
func (c Config) Apply(req CompletionRequest) CompletionRequest {
	if req.Model == "" {
		req.Model = c.Model
	}
	if req.SystemPrompt == "" {
		req.SystemPrompt = c.SystemPrompt
	}
	if req.Temperature == nil && c.Temperature != nil {
		req.Temperature = Float(*c.Temperature)
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.MaxTokens
	}
	return req
}
