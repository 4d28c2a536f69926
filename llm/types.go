package llm

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role" yaml:"role" binding:"required,oneof=system user assistant"`
	Content string `json:"content" yaml:"content"`
}

// Model identifies the model a display client selected.
type Model struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name,omitempty" yaml:"name"`
	MaxLength  int    `json:"maxLength,omitempty" yaml:"max_length"`
	TokenLimit int    `json:"tokenLimit,omitempty" yaml:"token_limit"`
}

// CompletionRequest is the universal input for all providers.
type CompletionRequest struct {
	// Model is the provider model ID. Empty means the adapter default.
	Model string `json:"model,omitempty" yaml:"model"`
	// Messages is the conversation history, oldest first.
	Messages []Message `json:"messages" yaml:"messages"`
	// SystemPrompt is sent as the system instruction.
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt"`
	// Temperature controls randomness. Nil means the adapter default.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature"`
	// MaxTokens limits the response length. 0 means the adapter default.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens"`
}

// LastUserMessage returns the most recent user message.
func (r CompletionRequest) LastUserMessage() (Message, bool) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i], true
		}
	}
	return Message{}, false
}

// WithLastUserContent returns a copy of r whose most recent user message
// carries content instead.
func (r CompletionRequest) WithLastUserContent(content string) CompletionRequest {
	msgs := make([]Message, len(r.Messages))
	copy(msgs, r.Messages)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			msgs[i].Content = content
			break
		}
	}
	r.Messages = msgs
	return r
}

// TemperatureOr returns the request temperature or def when unset.
func (r CompletionRequest) TemperatureOr(def float64) float64 {
	if r.Temperature != nil {
		return *r.Temperature
	}
	return def
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
