package bedrock

import (
	"fmt"
	"time"
)

const (
	defaultRegion          = "us-east-1"
	defaultNumberOfResults = 3
	defaultTimeout         = 30 * time.Second
)

// Config configures the Bedrock runtime and knowledge-base clients.
type Config struct {
	// Region is the AWS region hosting the model and knowledge base.
	Region string `yaml:"region" mapstructure:"region"`

	// AccessKeyID, SecretAccessKey and SessionToken set static credentials.
	// When empty the SDK's default chain is used.
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	SessionToken    string `yaml:"session_token" mapstructure:"session_token"`

	// KnowledgeBaseID is the default knowledge base for retrieval. Empty
	// disables retrieval unless a request names one.
	KnowledgeBaseID string `yaml:"knowledge_base_id" mapstructure:"knowledge_base_id"`

	// NumberOfResults is how many passages Retrieve asks for.
	NumberOfResults int `yaml:"number_of_results" mapstructure:"number_of_results"`

	// RuntimeEndpoint and AgentEndpoint override the regional endpoints.
	RuntimeEndpoint string `yaml:"runtime_endpoint" mapstructure:"runtime_endpoint"`
	AgentEndpoint   string `yaml:"agent_endpoint" mapstructure:"agent_endpoint"`

	// Timeout bounds retrieval calls.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Region == "" {
		c.Region = defaultRegion
	}
	if c.NumberOfResults == 0 {
		c.NumberOfResults = defaultNumberOfResults
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.RuntimeEndpoint == "" {
		c.RuntimeEndpoint = fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", c.Region)
	}
	if c.AgentEndpoint == "" {
		c.AgentEndpoint = fmt.Sprintf("https://bedrock-agent-runtime.%s.amazonaws.com", c.Region)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("bedrock: region is required")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("bedrock: access_key_id and secret_access_key must be set together")
	}
	if c.NumberOfResults < 1 || c.NumberOfResults > 100 {
		return fmt.Errorf("bedrock: number_of_results must be within [1, 100], got %d", c.NumberOfResults)
	}
	return nil
}

// StaticCredentials reports whether keys are configured.
func (c *Config) StaticCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}
