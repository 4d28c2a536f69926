package middleware_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/server/middleware"
)

// ---------------------------------------------------------------------------
// Recovery
// ---------------------------------------------------------------------------

func TestRecovery(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantError  string
	}{
		{
			name: "no panic",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "panic",
			handler:    func(http.ResponseWriter, *http.Request) { panic("test panic") },
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal server error",
		},
		{
			name: "panic after headers",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				panic("late panic")
			},
			wantStatus: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			middleware.Recovery(logger.Nop())(tt.handler).ServeHTTP(rr, httptest.NewRequest("GET", "/", http.NoBody))

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rr.Code)
			}
			if tt.wantError == "" {
				return
			}
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("response is not valid JSON: %v", err)
			}
			if body["error"] != tt.wantError || body["code"] != "INTERNAL_ERROR" {
				t.Fatalf("unexpected body: %v", body)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// RequestID
// ---------------------------------------------------------------------------

func TestRequestID_GeneratesID(t *testing.T) {
	handler := middleware.RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-Id") == "" {
			t.Error("expected X-Request-Id in request headers")
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", http.NoBody))

	if rr.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id in response headers")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	handler := middleware.RequestID()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", http.NoBody)
	req.Header.Set("X-Request-Id", "custom-id-123")
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-Id"); got != "custom-id-123" {
		t.Fatalf("expected custom-id-123, got %s", got)
	}
}

// ---------------------------------------------------------------------------
// CORS
// ---------------------------------------------------------------------------

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		cfg        middleware.CORSConfig
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{
			name:       "allowed origin",
			cfg:        middleware.CORSConfig{AllowedOrigins: []string{"https://example.com"}, AllowedMethods: []string{"GET", "POST"}},
			method:     "GET",
			origin:     "https://example.com",
			wantOrigin: "https://example.com",
			wantStatus: http.StatusOK,
		},
		{
			name:       "disallowed origin",
			cfg:        middleware.CORSConfig{AllowedOrigins: []string{"https://allowed.com"}},
			method:     "GET",
			origin:     "https://evil.com",
			wantStatus: http.StatusOK,
		},
		{
			name:       "preflight",
			cfg:        middleware.CORSConfig{AllowedOrigins: []string{"*"}},
			method:     "OPTIONS",
			origin:     "https://app.example.com",
			wantOrigin: "https://app.example.com",
			wantStatus: http.StatusNoContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.CORS(&tt.cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodOptions {
					t.Error("handler should not be called for OPTIONS preflight")
				}
				w.WriteHeader(http.StatusOK)
			}))
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/api/chat", http.NoBody)
			req.Header.Set("Origin", tt.origin)
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rr.Code)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Fatalf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
		})
	}
}

func TestCORS_ExposesStreamHeaders(t *testing.T) {
	cfg := &middleware.CORSConfig{
		AllowedOrigins:   []string{"*"},
		ExposedHeaders:   []string{"X-Session-Id"},
		AllowCredentials: true,
	}
	handler := middleware.CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/chat", http.NoBody)
	req.Header.Set("Origin", "https://app.example.com")
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Expose-Headers"); got != "X-Session-Id" {
		t.Fatalf("expected X-Session-Id exposed, got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected 'true', got %s", got)
	}
}

// ---------------------------------------------------------------------------
// RequestLogger
// ---------------------------------------------------------------------------

func TestRequestLogger(t *testing.T) {
	for _, path := range []string{"/api/chat", "/health"} {
		t.Run(path, func(t *testing.T) {
			called := false
			handler := middleware.RequestLogger(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusCreated)
			}))

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest("POST", path, http.NoBody))

			if !called {
				t.Error("handler not called")
			}
			if rr.Code != http.StatusCreated {
				t.Fatalf("expected 201, got %d", rr.Code)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// BodySizeLimit
// ---------------------------------------------------------------------------

func TestBodySizeLimit(t *testing.T) {
	tests := []struct {
		name    string
		limit   string
		body    string
		wantErr bool
	}{
		{"under limit", "1KB", strings.Repeat("a", 100), false},
		{"over limit", "1KB", strings.Repeat("a", 2000), true},
		{"bad size falls back to 1MB", "lots", strings.Repeat("a", 2000), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var readErr error
			handler := middleware.BodySizeLimit(tt.limit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, readErr = io.ReadAll(r.Body)
				w.WriteHeader(http.StatusOK)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/chat", strings.NewReader(tt.body)))
			if (readErr != nil) != tt.wantErr {
				t.Fatalf("read err = %v, wantErr %v", readErr, tt.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// RateLimit
// ---------------------------------------------------------------------------

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerMinute: 2,
		KeyFunc:           func(c *gin.Context) string { return c.GetHeader("X-Client") },
	}))
	r.GET("/api/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(client string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/ping", http.NoBody)
		req.Header.Set("X-Client", client)
		r.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := do("a"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
	}
	rr := do("a")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if rr := do("b"); rr.Code != http.StatusOK {
		t.Fatalf("other client: expected 200, got %d", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// Chain
// ---------------------------------------------------------------------------

func TestChain_Order(t *testing.T) {
	var order []string

	m1 := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "m1-before")
			next.ServeHTTP(w, r)
			order = append(order, "m1-after")
		})
	}
	m2 := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "m2-before")
			next.ServeHTTP(w, r)
			order = append(order, "m2-after")
		})
	}

	handler := middleware.Chain(m1, m2)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		order = append(order, "handler")
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", http.NoBody))

	expected := []string{"m1-before", "m2-before", "handler", "m2-after", "m1-after"}
	if strings.Join(order, ",") != strings.Join(expected, ",") {
		t.Fatalf("order = %v, want %v", order, expected)
	}
}

// ---------------------------------------------------------------------------
// statusWriter: Flush support
// ---------------------------------------------------------------------------

type flushRecorder struct {
	http.ResponseWriter
	flushed bool
}

func (f *flushRecorder) Flush() { f.flushed = true }

func TestStatusWriter_Flush(t *testing.T) {
	fr := &flushRecorder{ResponseWriter: httptest.NewRecorder()}

	handler := middleware.RequestLogger(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if err := http.NewResponseController(w).Flush(); err != nil {
			t.Errorf("Flush: %v", err)
		}
	}))
	handler.ServeHTTP(fr, httptest.NewRequest("GET", "/api/chat", http.NoBody))

	if !fr.flushed {
		t.Error("expected Flush to be delegated to underlying writer")
	}
}
