package bedrock

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/kbukum/chatstream/component"
	apperrors "github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/llm"
	"github.com/kbukum/chatstream/logger"
)

func testSigner() *Signer {
	s := NewSigner(credentials.NewStaticCredentialsProvider("AKID", "SECRET", "TOKEN"), "us-east-1")
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func chunkEvent(t *testing.T, inner string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"bytes": base64.StdEncoding.EncodeToString([]byte(inner))})
	if err != nil {
		t.Fatal(err)
	}
	return encodeEvent(t, eventstream.Message{
		Headers: eventstream.Headers{
			{Name: ":message-type", Value: eventstream.StringValue("event")},
			{Name: ":event-type", Value: eventstream.StringValue("chunk")},
		},
		Payload: payload,
	})
}

func encodeEvent(t *testing.T, msg eventstream.Message) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := eventstream.NewEncoder().Encode(&buf, msg); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"static keys", Config{AccessKeyID: "a", SecretAccessKey: "b"}, false},
		{"key without secret", Config{AccessKeyID: "a"}, true},
		{"too many results", Config{NumberOfResults: 101}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Region != "us-east-1" || cfg.NumberOfResults != 3 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.RuntimeEndpoint != "https://bedrock-runtime.us-east-1.amazonaws.com" {
		t.Errorf("runtime endpoint = %q", cfg.RuntimeEndpoint)
	}
	if cfg.AgentEndpoint != "https://bedrock-agent-runtime.us-east-1.amazonaws.com" {
		t.Errorf("agent endpoint = %q", cfg.AgentEndpoint)
	}
}

func TestInvokePath(t *testing.T) {
	tests := []struct {
		model, want string
	}{
		{"amazon.nova-pro-v1:0", "/model/amazon.nova-pro-v1%3A0/invoke-with-response-stream"},
		{"anthropic.claude-3-5-haiku-20241022-v1:0", "/model/anthropic.claude-3-5-haiku-20241022-v1%3A0/invoke-with-response-stream"},
		{"plain", "/model/plain/invoke-with-response-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := InvokePath(tt.model); got != tt.want {
				t.Errorf("InvokePath = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSigner_Sign(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "https://bedrock-runtime.us-east-1.amazonaws.com/model/x/invoke", nil)
	if err := testSigner().Sign(context.Background(), req, []byte(`{}`)); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	auth := req.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "AWS4-HMAC-SHA256 Credential=AKID/20260102/us-east-1/bedrock/aws4_request") {
		t.Errorf("Authorization = %q", auth)
	}
	if got := req.Header.Get("X-Amz-Date"); got != "20260102T030405Z" {
		t.Errorf("X-Amz-Date = %q", got)
	}
	if got := req.Header.Get("X-Amz-Security-Token"); got != "TOKEN" {
		t.Errorf("X-Amz-Security-Token = %q", got)
	}
}

func TestRuntime_Stream(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/model/amazon.nova-pro-v1:0/invoke-with-response-stream" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "AWS4-HMAC-SHA256") {
			t.Errorf("request not signed")
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", eventStreamAccept)
		_, _ = w.Write(chunkEvent(t, `{"contentBlockDelta":{"delta":{"text":"Bon"}}}`))
		_, _ = w.Write(chunkEvent(t, `{"contentBlockDelta":{"delta":{"text":"jour"}}}`))
		_, _ = w.Write(chunkEvent(t, `{"messageStop":{"stopReason":"end_turn"}}`))
	}))
	defer srv.Close()

	rt, err := NewRuntime(Config{RuntimeEndpoint: srv.URL}, testSigner(), llm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := llm.Collect(context.Background(), rt, llm.CompletionRequest{
		Model:    "arn:aws:bedrock:us-east-1::foundation-model/amazon.nova-pro-v1:0",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Salut"}},
	})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got != "Bonjour" {
		t.Errorf("text = %q, want Bonjour", got)
	}

	inference, _ := body["inferenceConfig"].(map[string]any)
	if inference["max_new_tokens"] != float64(1000) || inference["temperature"] != float64(1) {
		t.Errorf("inferenceConfig = %v", inference)
	}
}

func TestRuntime_Errors(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantMsg    string
	}{
		{
			name: "rejected before streaming",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"message":"not authorized"}`))
			},
			wantStatus: http.StatusForbidden,
			wantMsg:    "not authorized",
		},
		{
			name: "throttled mid-stream",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write(chunkEvent(t, `{"contentBlockDelta":{"delta":{"text":"Bon"}}}`))
				_, _ = w.Write(encodeEvent(t, eventstream.Message{
					Headers: eventstream.Headers{
						{Name: ":message-type", Value: eventstream.StringValue("exception")},
						{Name: ":exception-type", Value: eventstream.StringValue("throttlingException")},
					},
					Payload: []byte(`{"message":"Too many requests"}`),
				}))
			},
			wantStatus: http.StatusTooManyRequests,
			wantMsg:    "Too many requests",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			rt, err := NewRuntime(Config{RuntimeEndpoint: srv.URL}, testSigner(), llm.Config{})
			if err != nil {
				t.Fatal(err)
			}
			_, err = llm.Collect(context.Background(), rt, llm.CompletionRequest{
				Model:    "amazon.nova-pro-v1:0",
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "Salut"}},
			})
			appErr, ok := apperrors.AsAppError(err)
			if !ok || appErr.Code != apperrors.ErrCodeUpstream {
				t.Fatalf("err = %v, want upstream error", err)
			}
			if appErr.HTTPStatus != tt.wantStatus {
				t.Errorf("status = %d, want %d", appErr.HTTPStatus, tt.wantStatus)
			}
			if !strings.Contains(appErr.Message, tt.wantMsg) {
				t.Errorf("message = %q, want %q", appErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestKnowledgeBase_Retrieve(t *testing.T) {
	var paths []string
	var req retrieveRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"retrievalResults":[
			{"content":{"text":"Paris est la capitale."},"score":0.9},
			{"content":{"text":"Elle compte 2 millions d'habitants."},"score":0.7}
		]}`))
	}))
	defer srv.Close()

	kb, err := NewKnowledgeBase(Config{AgentEndpoint: srv.URL, KnowledgeBaseID: "KB1"}, testSigner())
	if err != nil {
		t.Fatal(err)
	}
	got, err := kb.Retrieve(context.Background(), "Capitale ?")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if want := "Paris est la capitale.\n\nElle compte 2 millions d'habitants."; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	if req.RetrievalQuery.Text != "Capitale ?" || req.RetrievalConfiguration.VectorSearchConfiguration.NumberOfResults != 3 {
		t.Errorf("request = %+v", req)
	}

	if _, err := kb.Scope("KB2").Retrieve(context.Background(), "q"); err != nil {
		t.Fatalf("scoped Retrieve: %v", err)
	}
	if len(paths) != 2 || paths[0] != "/knowledgebases/KB1/retrieve" || paths[1] != "/knowledgebases/KB2/retrieve" {
		t.Errorf("paths = %v", paths)
	}
}

func TestKnowledgeBase_Unset(t *testing.T) {
	kb, err := NewKnowledgeBase(Config{AgentEndpoint: "http://127.0.0.1:1"}, testSigner())
	if err != nil {
		t.Fatal(err)
	}
	got, err := kb.Retrieve(context.Background(), "q")
	if err != nil || got != "" {
		t.Errorf("Retrieve = %q, %v; want empty", got, err)
	}
}

func TestKnowledgeBase_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	kb, err := NewKnowledgeBase(Config{AgentEndpoint: srv.URL, KnowledgeBaseID: "KB1"}, testSigner())
	if err != nil {
		t.Fatal(err)
	}
	_, err = kb.Retrieve(context.Background(), "q")
	if !apperrors.HasCode(err, apperrors.ErrCodeUpstream) {
		t.Fatalf("err = %v, want upstream", err)
	}
}

func TestComponent(t *testing.T) {
	c, err := newComponent(Config{Region: "eu-west-3", KnowledgeBaseID: "KB1"}, testSigner(), llm.Config{}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h := c.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("health = %+v", h)
	}
	if d := c.Describe(); d.Details != "region=eu-west-3 knowledge_base=KB1" {
		t.Errorf("details = %q", d.Details)
	}
	if c.Runtime().Name() != ProviderName {
		t.Errorf("runtime name = %q", c.Runtime().Name())
	}
}
