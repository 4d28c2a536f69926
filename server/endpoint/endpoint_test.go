package endpoint

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/chatstream/component"
)

func checker(statuses ...component.HealthStatus) HealthChecker {
	return func(context.Context) []component.Health {
		out := make([]component.Health, len(statuses))
		for i, s := range statuses {
			out[i] = component.Health{Name: "c", Status: s}
		}
		return out
	}
}

func serve(t *testing.T, h gin.HandlerFunc) (int, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", h)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", http.NoBody))
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	return rr.Code, body
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checker    HealthChecker
		wantCode   int
		wantStatus string
	}{
		{"no checker", nil, http.StatusOK, "healthy"},
		{"all healthy", checker(component.StatusHealthy, component.StatusHealthy), http.StatusOK, "healthy"},
		{"degraded", checker(component.StatusHealthy, component.StatusDegraded), http.StatusOK, "degraded"},
		{"unhealthy wins", checker(component.StatusDegraded, component.StatusUnhealthy), http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := serve(t, Health("chatstreamd", tt.checker))
			if code != tt.wantCode || body["status"] != tt.wantStatus {
				t.Errorf("got %d %v, want %d %s", code, body["status"], tt.wantCode, tt.wantStatus)
			}
		})
	}
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name        string
		components  []component.Health
		wantCode    int
		wantWaiting map[string]any
	}{
		{"healthy", []component.Health{
			{Name: "server", Status: component.StatusHealthy},
			{Name: "sessions", Status: component.StatusHealthy, Message: "2 live"},
		}, http.StatusOK, nil},
		{"draining", []component.Health{
			{Name: "server", Status: component.StatusHealthy},
			{Name: "sessions", Status: component.StatusDegraded, Message: "draining"},
		}, http.StatusServiceUnavailable, map[string]any{"sessions": "draining"}},
		{"unhealthy provider", []component.Health{
			{Name: "bedrock", Status: component.StatusUnhealthy, Message: "no credentials"},
		}, http.StatusServiceUnavailable, map[string]any{"bedrock": "no credentials"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := func(context.Context) []component.Health { return tt.components }
			code, body := serve(t, Readiness("chatstreamd", check))
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			waiting, _ := body["waiting_on"].(map[string]any)
			if !maps.Equal(waiting, tt.wantWaiting) {
				t.Errorf("waiting_on = %v, want %v", body["waiting_on"], tt.wantWaiting)
			}
		})
	}
}

func TestInfo(t *testing.T) {
	code, body := serve(t, Info("chatstreamd", InfoSource{
		Providers:    func() []string { return []string{"bedrock", "echo"} },
		DefaultModel: "amazon.nova-pro-v1:0",
		LiveSessions: func() int { return 2 },
	}))
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if body["default_model"] != "amazon.nova-pro-v1:0" || body["live_sessions"] != float64(2) {
		t.Errorf("body = %v", body)
	}
	if providers, _ := body["providers"].([]any); len(providers) != 2 {
		t.Errorf("providers = %v", body["providers"])
	}
}

func TestLiveness(t *testing.T) {
	if code, body := serve(t, Liveness("chatstreamd")); code != http.StatusOK || body["status"] != "alive" {
		t.Errorf("got %d %v", code, body)
	}
}
