package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kbukum/chatstream/version"
)

// Signer authenticates an outgoing request. body is the exact payload that
// will be sent.
type Signer interface {
	Sign(ctx context.Context, req *http.Request, body []byte) error
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(ctx context.Context, req *http.Request, body []byte) error

func (f SignerFunc) Sign(ctx context.Context, req *http.Request, body []byte) error {
	return f(ctx, req, body)
}

// Option configures a Client.
type Option func(*Client)

// WithSigner authenticates every request with s.
func WithSigner(s Signer) Option {
	return func(c *Client) { c.signer = s }
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// Client is a configurable HTTP client.
type Client struct {
	httpClient   *http.Client
	streamClient *http.Client
	transport    http.RoundTripper
	signer       Signer
	config       Config
}

// New creates a new HTTP client with the given configuration.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{config: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	c.httpClient = &http.Client{Transport: c.transport, Timeout: cfg.Timeout}
	// Streams outlive any fixed timeout; the context bounds them.
	c.streamClient = &http.Client{Transport: c.transport}
	return c, nil
}

// Name returns the configured client name.
func (c *Client) Name() string { return c.config.Name }

// Do executes an HTTP request and returns the complete response. A non-2xx
// status returns both the response and an *Error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewTimeoutError(err)
		}
		return nil, NewConnectionError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewConnectionError(fmt.Errorf("read response body: %w", err))
	}

	result := &Response{
		StatusCode: resp.StatusCode,
		Headers:    flattenHeaders(resp.Header),
		Body:       body,
	}

	if classErr := ClassifyStatusCode(resp.StatusCode, body); classErr != nil {
		return result, classErr
	}

	return result, nil
}

// DoStream executes an HTTP request and returns the open response body.
// The caller must close the returned StreamResponse when done.
func (c *Client) DoStream(ctx context.Context, req Request) (*StreamResponse, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewTimeoutError(err)
		}
		return nil, NewConnectionError(err)
	}

	// Check for error status before starting to stream
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		return nil, ClassifyStatusCode(resp.StatusCode, body)
	}

	return &StreamResponse{
		StatusCode:  resp.StatusCode,
		Headers:     flattenHeaders(resp.Header),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        resp.Body,
		HTTP:        resp,
	}, nil
}

// buildRequest constructs an *http.Request from the client config and request.
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	// Resolve URL
	url := req.Path
	if c.config.BaseURL != "" && !strings.HasPrefix(req.Path, "http://") && !strings.HasPrefix(req.Path, "https://") {
		url = strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(req.Path, "/")
	}

	payload, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("encode body: %v", err))
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("create request: %v", err))
	}

	// Apply query parameters
	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	httpReq.Header.Set("User-Agent", version.UserAgent("chatstream"))
	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if payload != nil && httpReq.Header.Get("Content-Type") == "" && contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	if c.signer != nil {
		if err := c.signer.Sign(ctx, httpReq, payload); err != nil {
			return nil, NewAuthError(0, []byte(err.Error()))
		}
	}
	return httpReq, nil
}

// encodeBody converts a body value into bytes and a content type.
func encodeBody(body any) ([]byte, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return v, "", nil
	case string:
		return []byte(v), "text/plain", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return data, "application/json", nil
	}
}
