package llm

import (
	"context"
	"errors"
	"net/http"

	apperrors "github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/frame"
	"github.com/kbukum/chatstream/httpclient"
)

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithDialect pins the dialect instead of choosing one per model.
func WithDialect(d Dialect) AdapterOption { return func(a *Adapter) { a.dialect = d } }

// WithPath sets the request path for a model ID.
func WithPath(fn func(modelID string) string) AdapterOption { return func(a *Adapter) { a.path = fn } }

// WithStreamFormat sets how response bodies are framed.
func WithStreamFormat(f StreamFormat) AdapterOption { return func(a *Adapter) { a.format = f } }

// WithHeaders adds headers to every stream request.
func WithHeaders(h map[string]string) AdapterOption { return func(a *Adapter) { a.headers = h } }

// WithDefaults fills unset request fields from cfg.
func WithDefaults(cfg Config) AdapterOption {
	return func(a *Adapter) {
		cfg.ApplyDefaults()
		a.defaults = &cfg
	}
}

// WithFrameExtractors adds extractors for this provider's frame shape.
func WithFrameExtractors(ex ...frame.Extractor) AdapterOption {
	return func(a *Adapter) { a.extractors = append(a.extractors, ex...) }
}

// Adapter is a Provider that posts a dialect-built body over an
// httpclient.Client and streams the response.
type Adapter struct {
	name       string
	client     *httpclient.Client
	dialect    Dialect
	path       func(string) string
	format     StreamFormat
	headers    map[string]string
	defaults   *Config
	extractors []frame.Extractor
}

var (
	_ Provider    = (*Adapter)(nil)
	_ FrameShaper = (*Adapter)(nil)
)

// NewAdapter creates an adapter named name over client.
func NewAdapter(name string, client *httpclient.Client, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		name:   name,
		client: client,
		path:   func(string) string { return "/" },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return a.name }

// Extractors returns the provider-specific extractors.
func (a *Adapter) Extractors() []frame.Extractor { return a.extractors }

// Stream builds the request body, opens the stream and wraps the body in a
// frame source. HTTP failures become upstream errors.
func (a *Adapter) Stream(ctx context.Context, req CompletionRequest) (frame.Source, error) {
	if a.defaults != nil {
		req = a.defaults.Apply(req)
	}
	dialect := a.dialect
	if dialect == nil {
		d, err := ForModel(req.Model)
		if err != nil {
			return nil, err
		}
		dialect = d
	}

	body, err := dialect.BuildRequest(req)
	if err != nil {
		return nil, apperrors.InvalidInput("request", err.Error())
	}

	resp, err := a.client.DoStream(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    a.path(ModelID(req.Model)),
		Headers: a.headers,
		Body:    body,
	})
	if err != nil {
		return nil, UpstreamError(a.name, err)
	}
	return NewSource(a.name, a.format, resp.Body), nil
}

// UpstreamError converts an httpclient failure into an upstream AppError
// carrying the provider's status and message.
func UpstreamError(provider string, err error) error {
	var httpErr *httpclient.Error
	if !errors.As(err, &httpErr) {
		return apperrors.Upstream(provider, err.Error(), 0).WithCause(err)
	}
	return apperrors.Upstream(provider, httpErr.Message, httpErr.StatusCode).WithCause(err)
}
