package llm

import (
	"strings"
)

func init() {
	RegisterDialect("nova", NovaDialect{})
	RegisterDialect("anthropic", AnthropicDialect{})
	RegisterDialect("titan", TitanDialect{})
}

// ModelID reduces a model ARN to the model ID after its last slash.
func ModelID(model string) string {
	if i := strings.LastIndexByte(model, '/'); i >= 0 {
		return model[i+1:]
	}
	return model
}

// hasFamily matches "amazon.nova-pro-v1:0" and region-prefixed inference
// profiles such as "eu.amazon.nova-pro-v1:0".
func hasFamily(modelID, family string) bool {
	return strings.HasPrefix(modelID, family) || strings.Contains(modelID, "."+family)
}

type textBlock struct {
	Text string `json:"text"`
}

// splitSystem separates system messages from the turn list.
func splitSystem(req CompletionRequest) (system []string, turns []Message) {
	if req.SystemPrompt != "" {
		system = append(system, req.SystemPrompt)
	}
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return system, turns
}

// NovaDialect builds Amazon Nova messages bodies.
type NovaDialect struct{}

type novaMessage struct {
	Role    string      `json:"role"`
	Content []textBlock `json:"content"`
}

type novaInference struct {
	MaxNewTokens int     `json:"max_new_tokens,omitempty"`
	Temperature  float64 `json:"temperature"`
}

type novaRequest struct {
	Messages        []novaMessage `json:"messages"`
	System          []textBlock   `json:"system,omitempty"`
	InferenceConfig novaInference `json:"inferenceConfig"`
}

func (NovaDialect) Name() string { return "nova" }

func (NovaDialect) Matches(modelID string) bool { return hasFamily(modelID, "amazon.nova") }

func (NovaDialect) BuildRequest(req CompletionRequest) (any, error) {
	system, turns := splitSystem(req)
	body := novaRequest{
		InferenceConfig: novaInference{MaxNewTokens: req.MaxTokens, Temperature: req.TemperatureOr(0)},
	}
	for _, s := range system {
		body.System = append(body.System, textBlock{Text: s})
	}
	for _, m := range turns {
		body.Messages = append(body.Messages, novaMessage{Role: m.Role, Content: []textBlock{{Text: m.Content}}})
	}
	return body, nil
}

// AnthropicDialect builds Claude messages bodies for Bedrock.
type AnthropicDialect struct{}

const anthropicVersion = "bedrock-2023-05-31"

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	Temperature      float64            `json:"temperature"`
}

func (AnthropicDialect) Name() string { return "anthropic" }

func (AnthropicDialect) Matches(modelID string) bool { return hasFamily(modelID, "anthropic.") }

func (AnthropicDialect) BuildRequest(req CompletionRequest) (any, error) {
	system, turns := splitSystem(req)
	body := anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        req.MaxTokens,
		System:           strings.Join(system, "\n\n"),
		Temperature:      req.TemperatureOr(0),
	}
	for _, m := range turns {
		body.Messages = append(body.Messages, anthropicMessage{
			Role:    m.Role,
			Content: []anthropicContent{{Type: "text", Text: m.Content}},
		})
	}
	return body, nil
}

// TitanDialect builds Amazon Titan Text bodies. Titan takes a single prompt,
// so the conversation is rendered as a transcript.
type TitanDialect struct{}

type titanConfig struct {
	MaxTokenCount int     `json:"maxTokenCount,omitempty"`
	Temperature   float64 `json:"temperature"`
}

type titanRequest struct {
	InputText            string      `json:"inputText"`
	TextGenerationConfig titanConfig `json:"textGenerationConfig"`
}

func (TitanDialect) Name() string { return "titan" }

func (TitanDialect) Matches(modelID string) bool { return hasFamily(modelID, "amazon.titan") }

func (TitanDialect) BuildRequest(req CompletionRequest) (any, error) {
	system, turns := splitSystem(req)
	var b strings.Builder
	for _, s := range system {
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	for _, m := range turns {
		if m.Role == RoleAssistant {
			b.WriteString("Bot: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("Bot:")
	return titanRequest{
		InputText:            b.String(),
		TextGenerationConfig: titanConfig{MaxTokenCount: req.MaxTokens, Temperature: req.TemperatureOr(0)},
	}, nil
}
