package commands

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/chatstream/chat"
	apperrors "github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/flush"
	"github.com/kbukum/chatstream/llm"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/session"
)

// syncBuffer is written by the reveal goroutine while the test reads it.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func startServer(t *testing.T, echoDelay time.Duration) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	providers := llm.NewRegistry()
	providers.Register(llm.NewEcho(echoDelay))
	h := chat.NewHandler(providers, session.NewRegistry(),
		chat.WithLogger(logger.Nop()),
		chat.WithModels(llm.DefaultModels()),
		chat.WithFlushConfig(flush.Config{MinChunkSize: 3, FlushInterval: 10 * time.Millisecond}),
	)
	r := gin.New()
	h.Register(r.Group("/api"))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL
}

func run(ctx context.Context, stdin string, args ...string) (string, error) {
	out := &syncBuffer{}
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestAsk(t *testing.T) {
	url := startServer(t, 0)

	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{name: "raw", args: []string{"ask", "Bonjour le monde"}, want: "Bonjour le monde\n"},
		{name: "sse", args: []string{"ask", "--sse", "Bonjour", "le", "monde"}, want: "Bonjour le monde\n"},
		{name: "no stream", args: []string{"ask", "--no-stream", "tout d'un coup"}, want: "tout d'un coup\n"},
		{name: "stdin", stdin: "  depuis stdin \n", args: []string{"ask"}, want: "depuis stdin\n"},
		{name: "local echo", args: []string{"ask", "--local", "--provider", "echo", "sans serveur"}, want: "sans serveur\n"},
		{name: "temperature and model", args: []string{"ask", "-t", "0.2", "-m", "amazon.nova-pro-v1:0", "réglé"}, want: "réglé\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			args := append([]string{"--server", url, "--interval", "1ms"}, tt.args...)
			got, err := run(ctx, tt.stdin, args...)
			if err != nil {
				t.Fatalf("ask: %v", err)
			}
			if got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAskErrors(t *testing.T) {
	url := startServer(t, 0)

	tests := []struct {
		name  string
		args  []string
		check func(error) bool
	}{
		{name: "no question", args: []string{"ask"}, check: func(err error) bool {
			return err != nil && strings.Contains(err.Error(), "no question")
		}},
		{name: "temperature out of range", args: []string{"ask", "-t", "1.5", "chaud"}, check: func(err error) bool {
			return apperrors.HasCode(err, apperrors.ErrCodeInvalidInput)
		}},
		{name: "unknown provider", args: []string{"ask", "--provider", "gpt", "qui"}, check: func(err error) bool {
			return apperrors.HasCode(err, apperrors.ErrCodeNotFound)
		}},
		{name: "local ollama", args: []string{"ask", "--local", "--provider", "ollama", "non"}, check: func(err error) bool {
			return err != nil && strings.Contains(err.Error(), "--local")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--server", url}, tt.args...)
			_, err := run(context.Background(), "", args...)
			if !tt.check(err) {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestAskInterrupted(t *testing.T) {
	url := startServer(t, 20*time.Millisecond)
	question := strings.Repeat("mot ", 100)

	for _, local := range []bool{false, true} {
		name := "remote"
		if local {
			name = "local"
		}
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			out := &syncBuffer{}
			cmd := NewRootCommand()
			args := []string{"--server", url, "--interval", "1ms", "ask", question}
			if local {
				args = append(args, "--local")
			}
			cmd.SetArgs(args)
			cmd.SetOut(out)
			cmd.SetErr(&bytes.Buffer{})

			done := make(chan error, 1)
			go func() { done <- cmd.ExecuteContext(ctx) }()

			deadline := time.After(3 * time.Second)
			for out.String() == "" {
				select {
				case <-deadline:
					t.Fatal("nothing revealed")
				case <-time.After(2 * time.Millisecond):
				}
			}
			cancel()

			select {
			case err := <-done:
				if !errors.Is(err, ErrCancelled) {
					t.Fatalf("err = %v, want %v", err, ErrCancelled)
				}
			case <-time.After(3 * time.Second):
				t.Fatal("ask did not stop")
			}
			got := strings.TrimSuffix(out.String(), "\n")
			if !strings.HasPrefix(question, got) || len(got) >= len(strings.TrimSpace(question)) {
				t.Errorf("revealed %q, want a strict prefix", got)
			}
		})
	}
}

func TestModelsAndCancel(t *testing.T) {
	url := startServer(t, 0)

	got, err := run(context.Background(), "", "--server", url, "models")
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	for _, want := range []string{"ID", "amazon.nova-pro-v1:0", "12000"} {
		if !strings.Contains(got, want) {
			t.Errorf("models output missing %q:\n%s", want, got)
		}
	}

	_, err = run(context.Background(), "", "--server", url, "cancel", "nope")
	if !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("cancel err = %v, want not found", err)
	}

	got, err = run(context.Background(), "", "version")
	if err != nil || strings.TrimSpace(got) == "" {
		t.Errorf("version = %q, %v", got, err)
	}
}
