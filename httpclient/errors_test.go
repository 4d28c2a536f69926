package httpclient

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyStatusCode(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorCode
		isNil  bool
	}{
		{200, 0, true},
		{204, 0, true},
		{401, ErrCodeAuth, false},
		{403, ErrCodeAuth, false},
		{404, ErrCodeNotFound, false},
		{422, ErrCodeValidation, false},
		{429, ErrCodeRateLimit, false},
		{500, ErrCodeServer, false},
		{502, ErrCodeServer, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("HTTP %d", tt.status), func(t *testing.T) {
			err := ClassifyStatusCode(tt.status, nil)
			if tt.isNil {
				if err != nil {
					t.Errorf("expected nil, got %v", err)
				}
				return
			}
			if err == nil || err.Code != tt.want {
				t.Errorf("got %v, want code %s", err, tt.want)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := NewConnectionError(cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should expose the cause")
	}
	if err.Error() != "httpclient: connection: dial tcp: refused" {
		t.Errorf("Error() = %q", err.Error())
	}
	wrapped := fmt.Errorf("invoke: %w", NewTimeoutError(cause))
	if !IsTimeout(wrapped) || !IsRetryable(wrapped) {
		t.Error("helpers should see through wrapping")
	}
}

func TestStatusMessage(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"json message", 400, `{"message":"bad"}`, "bad"},
		{"aws Message", 403, `{"Message":"denied"}`, "denied"},
		{"plain text", 500, "boom", "boom"},
		{"unknown json", 500, `{"detail":"x"}`, "HTTP 500"},
		{"empty", 502, "", "HTTP 502"},
		{"unsigned", 0, "", "request rejected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusMessage(tt.status, []byte(tt.body)); got != tt.want {
				t.Errorf("statusMessage = %q, want %q", got, tt.want)
			}
		})
	}
}
