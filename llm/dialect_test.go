package llm

import (
	"encoding/json"
	"slices"
	"testing"

	apperrors "github.com/kbukum/chatstream/errors"
)

func TestForModel(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"amazon.nova-pro-v1:0", "nova"},
		{"amazon.nova-lite-v1:0", "nova"},
		{"eu.amazon.nova-pro-v1:0", "nova"},
		{"arn:aws:bedrock:us-east-1::foundation-model/amazon.nova-pro-v1:0", "nova"},
		{"anthropic.claude-3-5-sonnet-20241022-v2:0", "anthropic"},
		{"us.anthropic.claude-3-5-haiku-20241022-v1:0", "anthropic"},
		{"amazon.titan-text-express-v1", "titan"},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			d, err := ForModel(tt.model)
			if err != nil {
				t.Fatalf("ForModel() error = %v", err)
			}
			if d.Name() != tt.want {
				t.Errorf("dialect = %s, want %s", d.Name(), tt.want)
			}
		})
	}

	if _, err := ForModel("meta.llama3-70b"); !apperrors.HasCode(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("unknown model error = %v", err)
	}
}

func TestRegisterDialect_KeepsOrder(t *testing.T) {
	dialectsMu.Lock()
	savedDialects, savedOrder := dialects, order
	dialects, order = map[string]Dialect{}, nil
	dialectsMu.Unlock()
	defer func() {
		dialectsMu.Lock()
		dialects, order = savedDialects, savedOrder
		dialectsMu.Unlock()
	}()

	RegisterDialect("b", NovaDialect{})
	RegisterDialect("a", AnthropicDialect{})
	RegisterDialect("b", TitanDialect{})

	if got := Dialects(); !slices.Equal(got, []string{"b", "a"}) {
		t.Errorf("Dialects() = %v", got)
	}
	d, err := GetDialect("b")
	if err != nil || d.Name() != "titan" {
		t.Errorf("GetDialect(b) = %v, %v", d, err)
	}
	if _, err := GetDialect("missing"); err == nil {
		t.Error("expected error for unknown dialect")
	}
}

func buildJSON(t *testing.T, d Dialect, req CompletionRequest) string {
	t.Helper()
	body, err := d.BuildRequest(req)
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestDialectBodies(t *testing.T) {
	req := CompletionRequest{
		Model:        "m",
		SystemPrompt: "Be brief.",
		Messages: []Message{
			{Role: RoleUser, Content: "Hi"},
			{Role: RoleAssistant, Content: "Hello"},
			{Role: RoleUser, Content: "Bye"},
		},
		Temperature: Float(0.5),
		MaxTokens:   1000,
	}
	tests := []struct {
		name    string
		dialect Dialect
		want    string
	}{
		{
			name:    "nova",
			dialect: NovaDialect{},
			want: `{"messages":[{"role":"user","content":[{"text":"Hi"}]},{"role":"assistant","content":[{"text":"Hello"}]},{"role":"user","content":[{"text":"Bye"}]}],` +
				`"system":[{"text":"Be brief."}],"inferenceConfig":{"max_new_tokens":1000,"temperature":0.5}}`,
		},
		{
			name:    "anthropic",
			dialect: AnthropicDialect{},
			want: `{"anthropic_version":"bedrock-2023-05-31","max_tokens":1000,"system":"Be brief.",` +
				`"messages":[{"role":"user","content":[{"type":"text","text":"Hi"}]},{"role":"assistant","content":[{"type":"text","text":"Hello"}]},{"role":"user","content":[{"type":"text","text":"Bye"}]}],"temperature":0.5}`,
		},
		{
			name:    "titan",
			dialect: TitanDialect{},
			want:    `{"inputText":"Be brief.\n\nUser: Hi\nBot: Hello\nUser: Bye\nBot:","textGenerationConfig":{"maxTokenCount":1000,"temperature":0.5}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildJSON(t, tt.dialect, req); got != tt.want {
				t.Errorf("body =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestNova_SystemMessagesJoinSystemBlock(t *testing.T) {
	req := CompletionRequest{
		Messages: []Message{{Role: RoleSystem, Content: "ctx"}, {Role: RoleUser, Content: "q"}},
	}
	want := `{"messages":[{"role":"user","content":[{"text":"q"}]}],"system":[{"text":"ctx"}],"inferenceConfig":{"temperature":0}}`
	if got := buildJSON(t, NovaDialect{}, req); got != want {
		t.Errorf("body = %s", got)
	}
}
