package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// TypedResponse wraps a response with a decoded body of type T.
type TypedResponse[T any] struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Headers are the response headers.
	Headers map[string]string
	// Data is the decoded response body.
	Data T
}

// RequestOption configures a single request.
type RequestOption func(*Request)

// WithHeader adds a header to the request.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Headers == nil {
			r.Headers = make(map[string]string)
		}
		r.Headers[key] = value
	}
}

// Get performs a GET request and decodes the JSON response into type T.
func Get[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (*TypedResponse[T], error) {
	return doTyped[T](ctx, c, http.MethodGet, path, nil, opts...)
}

// Post performs a POST request with a JSON body and decodes the response into type T.
func Post[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (*TypedResponse[T], error) {
	return doTyped[T](ctx, c, http.MethodPost, path, body, opts...)
}

func doTyped[T any](ctx context.Context, c *Client, method, path string, body any, opts ...RequestOption) (*TypedResponse[T], error) {
	req := Request{
		Method: method,
		Path:   path,
		Body:   body,
	}
	for _, opt := range opts {
		opt(&req)
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	var data T
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &data); err != nil {
			return nil, fmt.Errorf("httpclient: decode response: %w", err)
		}
	}

	return &TypedResponse[T]{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Data:       data,
	}, nil
}
