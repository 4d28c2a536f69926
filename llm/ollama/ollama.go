// Package ollama streams completions from a local Ollama server.
//
// Ollama answers /api/chat with newline-delimited JSON whose text sits at
// .message.content; the provider contributes that extractor to the frame
// decoder.
package ollama

import (
	"time"

	"github.com/kbukum/chatstream/frame"
	"github.com/kbukum/chatstream/httpclient"
	"github.com/kbukum/chatstream/llm"
)

const (
	// ProviderName is the registered name for the Ollama provider.
	ProviderName = llm.ProviderOllama

	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3"
	defaultTimeout     = 120 * time.Second
	chatPath           = "/api/chat"
)

// PathMessageContent is where Ollama chat frames carry their text.
const PathMessageContent = ".message.content"

func init() {
	llm.RegisterDialect(ProviderName, Dialect{})
}

// Config holds configuration for the Ollama provider.
type Config struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Model   string        `yaml:"model" mapstructure:"model"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultOllamaURL
	}
	if c.Model == "" {
		c.Model = defaultOllamaModel
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

// NewProvider creates an Ollama provider. defaults supplies the system
// prompt and sampling settings; its Model is replaced by cfg.Model.
func NewProvider(cfg Config, defaults llm.Config) (*llm.Adapter, error) {
	cfg.applyDefaults()
	client, err := httpclient.New(httpclient.Config{
		Name:    ProviderName,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	defaults.Model = cfg.Model
	return llm.NewAdapter(ProviderName, client,
		llm.WithDialect(Dialect{}),
		llm.WithPath(func(string) string { return chatPath }),
		llm.WithStreamFormat(llm.StreamNDJSON),
		llm.WithDefaults(defaults),
		llm.WithFrameExtractors(frame.MustPathExtractor(PathMessageContent)),
	), nil
}

// Dialect builds Ollama chat bodies.
type Dialect struct{}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

func (Dialect) Name() string { return ProviderName }

// Matches claims no Bedrock model; the provider pins this dialect.
func (Dialect) Matches(string) bool { return false }

func (Dialect) BuildRequest(req llm.CompletionRequest) (any, error) {
	msgs := make([]chatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: llm.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, chatMessage{Role: m.Role, Content: m.Content})
	}
	return chatRequest{
		Model:    req.Model,
		Messages: msgs,
		Stream:   true,
		Options:  chatOptions{Temperature: req.TemperatureOr(0), NumPredict: req.MaxTokens},
	}, nil
}
