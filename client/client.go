// Package client is the display side of the chat API: it posts a chat
// request, reads the framed stream and reveals it through a
// reconstruct.Reconstructor at a steady pace.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/kbukum/chatstream/chat"
	apperrors "github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/httpclient"
	"github.com/kbukum/chatstream/llm"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/reconstruct"
	"github.com/kbukum/chatstream/transport"
)

const cancelTimeout = 5 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is the chatstreamd address, e.g. http://localhost:8080.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// Framing asks the server for raw or SSE framing.
	Framing transport.Framing `yaml:"framing" mapstructure:"framing"`
	// Interval paces the reveal.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	// Timeout bounds non-streaming calls such as cancel.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	if c.Framing == "" {
		c.Framing = transport.FramingRaw
	}
	if c.Interval == 0 {
		c.Interval = reconstruct.DefaultInterval
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// Client talks to a chatstreamd server.
type Client struct {
	http     *httpclient.Client
	framing  transport.Framing
	interval time.Duration
	log      *logger.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	hc, err := httpclient.New(httpclient.Config{Name: "chatstream", BaseURL: cfg.BaseURL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	return &Client{http: hc, framing: cfg.Framing, interval: cfg.Interval, log: logger.Get("client")}, nil
}

// Stream is one chat response being revealed.
type Stream struct {
	// ID is the server session ID.
	ID string

	client *Client
	reader transport.Reader
	rec    *reconstruct.Reconstructor
}

// Chat starts a chat and reveals the reply into sink. It returns once the
// server has accepted the request; rejections before streaming come back as
// an *apperrors.AppError.
func (c *Client) Chat(ctx context.Context, req chat.Request, sink reconstruct.Sink) (*Stream, error) {
	accept := "text/plain"
	if c.framing == transport.FramingSSE {
		accept = "text/event-stream"
	}
	resp, err := c.http.DoStream(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    "/api/chat",
		Query:   map[string]string{"format": string(c.framing)},
		Headers: map[string]string{"Accept": accept},
		Body:    req,
	})
	if err != nil {
		return nil, serverError(err)
	}

	s := &Stream{
		ID:     resp.HTTP.Header.Get(chat.HeaderSessionID),
		client: c,
		reader: transport.NewReader(resp.HTTP),
	}
	s.rec = reconstruct.New(sink,
		reconstruct.WithInterval(c.interval),
		reconstruct.WithLogger(c.log),
	)
	go s.read()
	go s.watch()
	return s, nil
}

// read feeds the reconstructor until the stream ends.
func (s *Stream) read() {
	defer func() { _ = s.reader.Close() }()
	for {
		chunk, err := s.reader.Next()
		switch {
		case err == nil:
			if _, werr := s.rec.Write(chunk); werr != nil {
				return
			}
		case errors.Is(err, io.EOF):
			s.rec.CloseInput()
			return
		case errors.Is(err, transport.ErrCancelled):
			s.rec.Cancel()
			return
		default:
			if s.rec.Token().Cancelled() {
				return
			}
			s.rec.Fail(err)
			return
		}
	}
}

// watch stops the server session when the reveal is cancelled locally.
func (s *Stream) watch() {
	select {
	case <-s.rec.Done():
		return
	case <-s.rec.Token().Done():
	}
	if s.rec.Token().Failed() {
		return
	}
	_ = s.reader.Close()
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	if err := s.client.Cancel(ctx, s.ID); err != nil && !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		s.client.log.Warn("server cancel failed", logger.MergeWithError(logger.Fields(logger.FieldSessionID, s.ID), err))
	}
}

// Cancel stops the reveal at once and asks the server to stop generating.
func (s *Stream) Cancel() { s.rec.Cancel() }

// Wait blocks until the reveal resolves or ctx ends.
func (s *Stream) Wait(ctx context.Context) (reconstruct.Result, error) {
	return s.rec.Wait(ctx)
}

// Done is closed once the reveal has resolved.
func (s *Stream) Done() <-chan struct{} { return s.rec.Done() }

// Cancel asks the server to stop session id.
func (c *Client) Cancel(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("id", "session id is required")
	}
	_, err := c.http.Do(ctx, httpclient.Request{Method: http.MethodPost, Path: "/api/chat/" + id + "/cancel"})
	if err != nil {
		return serverError(err)
	}
	return nil
}

// Models lists the server's model catalogue.
func (c *Client) Models(ctx context.Context) ([]llm.Model, error) {
	resp, err := httpclient.Get[struct {
		Models []llm.Model `json:"models"`
	}](ctx, c.http, "/api/models")
	if err != nil {
		return nil, serverError(err)
	}
	return resp.Data.Models, nil
}

// serverError restores the server's AppError from an error response body.
func serverError(err error) error {
	var httpErr *httpclient.Error
	if !errors.As(err, &httpErr) {
		return err
	}
	if httpErr.StatusCode == 0 {
		return apperrors.ServiceUnavailable("chatstream").WithCause(err)
	}
	var body apperrors.ErrorResponse
	if json.Unmarshal(httpErr.Body, &body) != nil || body.Code == "" {
		return apperrors.ExternalServiceError("chatstream", err)
	}
	appErr := apperrors.New(body.Code, body.Error, httpErr.StatusCode).WithCause(err)
	appErr.Retryable = body.Retryable
	for k, v := range body.Details {
		appErr = appErr.WithDetail(k, v)
	}
	return appErr
}
