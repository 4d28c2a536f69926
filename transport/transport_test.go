package transport

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/kbukum/chatstream/errors"
)

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name   string
		target string
		accept string
		want   Framing
	}{
		{"default raw", "/api/chat", "", FramingRaw},
		{"query sse", "/api/chat?format=sse", "", FramingSSE},
		{"query raw", "/api/chat?format=raw", "text/event-stream", FramingRaw},
		{"accept sse", "/api/chat", "text/event-stream", FramingSSE},
		{"accept list", "/api/chat", "application/json, text/event-stream;q=0.9", FramingSSE},
		{"accept plain", "/api/chat", "text/plain", FramingRaw},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, tt.target, nil)
			if tt.accept != "" {
				r.Header.Set("Accept", tt.accept)
			}
			if got := Negotiate(r); got != tt.want {
				t.Errorf("Negotiate = %s, want %s", got, tt.want)
			}
		})
	}
}

// serve runs handler behind a real server so trailers and flushing behave as
// they do in production.
func serve(t *testing.T, framing Framing, handler func(w Writer)) Reader {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		handler(NewWriter(framing, rw))
	}))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	r := NewReader(resp)
	t.Cleanup(func() { r.Close() })
	return r
}

func readAll(r Reader) (string, error) {
	var sb strings.Builder
	for {
		b, err := r.Next()
		if err != nil {
			return sb.String(), err
		}
		sb.Write(b)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, framing := range []Framing{FramingRaw, FramingSSE} {
		t.Run(string(framing), func(t *testing.T) {
			t.Run("completed", func(t *testing.T) {
				r := serve(t, framing, func(w Writer) {
					w.WriteChunk("Bonjour")
					w.WriteChunk(", le monde\n")
					w.WriteChunk("🙂")
					w.Close()
				})
				text, err := readAll(r)
				if !errors.Is(err, io.EOF) {
					t.Fatalf("err = %v, want EOF", err)
				}
				if text != "Bonjour, le monde\n🙂" {
					t.Errorf("text = %q", text)
				}
			})

			t.Run("errored", func(t *testing.T) {
				r := serve(t, framing, func(w Writer) {
					w.WriteChunk("partial")
					w.WriteError(apperrors.Upstream("bedrock", "model overloaded", 503))
					w.Close()
				})
				text, err := readAll(r)
				var se *StreamError
				if !errors.As(err, &se) {
					t.Fatalf("err = %v, want StreamError", err)
				}
				if se.Message != "model overloaded" || se.Code != string(apperrors.ErrCodeUpstream) {
					t.Errorf("StreamError = %+v", se)
				}
				if text != "partial" {
					t.Errorf("text = %q", text)
				}
			})

			t.Run("cancelled", func(t *testing.T) {
				r := serve(t, framing, func(w Writer) {
					w.WriteChunk("stop here")
					w.Cancel()
				})
				text, err := readAll(r)
				if !errors.Is(err, ErrCancelled) {
					t.Fatalf("err = %v, want ErrCancelled", err)
				}
				if text != "stop here" {
					t.Errorf("text = %q", text)
				}
			})

			t.Run("truncated", func(t *testing.T) {
				r := serve(t, framing, func(w Writer) {
					w.WriteChunk("cut")
				})
				text, err := readAll(r)
				if !errors.Is(err, ErrTruncated) {
					t.Fatalf("err = %v, want ErrTruncated", err)
				}
				if text != "cut" {
					t.Errorf("text = %q", text)
				}
			})
		})
	}
}

func TestWriterIgnoresWritesAfterEnd(t *testing.T) {
	for _, framing := range []Framing{FramingRaw, FramingSSE} {
		t.Run(string(framing), func(t *testing.T) {
			rec := httptest.NewRecorder()
			w := NewWriter(framing, rec)
			w.WriteChunk("a")
			w.Close()
			w.WriteChunk("late")
			w.WriteError(errors.New("late"))
			if strings.Contains(rec.Body.String(), "late") {
				t.Errorf("body contains writes after end: %q", rec.Body.String())
			}
		})
	}
}

func TestSSEWriterFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec)
	w.WriteChunk("hi \"you\"")
	w.Close()

	want := "data: {\"text\":\"hi \\\"you\\\"\"}\n\ndata: [DONE]\n\n"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestSSEWriterTerminalEvents(t *testing.T) {
	tests := []struct {
		name string
		end  func(*SSEWriter)
		want string
	}{
		{"completed", func(w *SSEWriter) { w.Close() },
			"data: {\"text\":\"hi\"}\n\ndata: [DONE]\n\n"},
		{"cancelled", func(w *SSEWriter) { w.Cancel() },
			"data: {\"text\":\"hi\"}\n\ndata: {\"cancelled\":true}\n\ndata: [DONE]\n\n"},
		{"errored", func(w *SSEWriter) { w.WriteError(apperrors.Upstream("bedrock", "throttled", 429)) },
			"data: {\"text\":\"hi\"}\n\ndata: {\"error\":\"throttled\",\"code\":\"UPSTREAM_ERROR\"}\n\ndata: [DONE]\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			w := NewSSEWriter(rec)
			w.WriteChunk("hi")
			tt.end(w)
			w.Close()
			if rec.Body.String() != tt.want {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.want)
			}
		})
	}
}

func TestSSEReaderLenient(t *testing.T) {
	body := ": keep-alive\n\nevent: message\ndata: plain\ndata: lines\n\ndata: {\"text\":\"json\"}\n\ndata: [DONE]\n\n"
	r := NewSSEReader(io.NopCloser(strings.NewReader(body)))
	text, err := readAll(r)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want EOF", err)
	}
	if text != "plain\nlinesjson" {
		t.Errorf("text = %q", text)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next after end = %v, want EOF", err)
	}
}
