package frame

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"

	apperrors "github.com/kbukum/chatstream/errors"
)

// Source yields raw provider frames in arrival order. Next returns io.EOF
// after the last frame. Close releases the underlying stream and may be
// called concurrently with a blocked Next to unblock it.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// --- Slice source ---

// SliceOption configures a SliceSource.
type SliceOption func(*SliceSource)

// WithFrameDelay waits d before each frame.
func WithFrameDelay(d time.Duration) SliceOption {
	return func(s *SliceSource) { s.delay = d }
}

// WithTrailingError makes Next return err instead of io.EOF after the frames.
func WithTrailingError(err error) SliceOption {
	return func(s *SliceSource) { s.err = err }
}

// SliceSource replays a fixed list of frames.
type SliceSource struct {
	frames [][]byte
	delay  time.Duration
	err    error
	pos    int
	closed chan struct{}
}

// NewSliceSource returns a Source over frames.
func NewSliceSource(frames [][]byte, opts ...SliceOption) *SliceSource {
	s := &SliceSource{frames: frames, closed: make(chan struct{})}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStringSource is NewSliceSource for string frames.
func NewStringSource(frames []string, opts ...SliceOption) *SliceSource {
	b := make([][]byte, len(frames))
	for i, f := range frames {
		b[i] = []byte(f)
	}
	return NewSliceSource(b, opts...)
}

func (s *SliceSource) Next(ctx context.Context) ([]byte, error) {
	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.closed:
			return nil, io.EOF
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.frames) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *SliceSource) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}

// --- Line source ---

// LineSource splits a byte stream on newlines, yielding each non-blank line.
// It serves NDJSON bodies and upstream SSE bodies, whose "data:" prefix the
// Decoder strips.
type LineSource struct {
	body   io.ReadCloser
	reader *bufio.Reader
}

// NewLineSource wraps body. The source owns body and closes it on Close.
func NewLineSource(body io.ReadCloser) *LineSource {
	return &LineSource{body: body, reader: bufio.NewReader(body)}
}

func (s *LineSource) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, err := s.reader.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			return bytes.TrimRight(line, "\r\n"), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *LineSource) Close() error { return s.body.Close() }

// --- AWS event-stream source ---

// Event-stream header names.
const (
	headerMessageType   = ":message-type"
	headerEventType     = ":event-type"
	headerExceptionType = ":exception-type"
	headerErrorCode     = ":error-code"
	headerErrorMessage  = ":error-message"
)

// EventStreamSource reads the binary application/vnd.amazon.eventstream
// framing used by Bedrock's response streams. Each event message yields its
// payload; exception and error messages end the stream with an upstream
// AppError.
type EventStreamSource struct {
	provider string
	body     io.ReadCloser
	decoder  *eventstream.Decoder
}

// NewEventStreamSource wraps body. provider names the upstream in errors.
func NewEventStreamSource(provider string, body io.ReadCloser) *EventStreamSource {
	return &EventStreamSource{
		provider: provider,
		body:     body,
		decoder:  eventstream.NewDecoder(),
	}
}

func (s *EventStreamSource) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg, err := s.decoder.Decode(s.body, nil)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, apperrors.Upstream(s.provider, "malformed event stream", 0).WithCause(err)
		}

		switch headerString(msg.Headers, headerMessageType) {
		case "exception":
			return nil, exceptionError(s.provider, headerString(msg.Headers, headerExceptionType), msg.Payload)
		case "error":
			return nil, apperrors.Upstream(s.provider, headerString(msg.Headers, headerErrorMessage), 0).
				WithDetail("error_code", headerString(msg.Headers, headerErrorCode))
		}
		if len(msg.Payload) == 0 {
			continue
		}
		return msg.Payload, nil
	}
}

func (s *EventStreamSource) Close() error { return s.body.Close() }

func headerString(h eventstream.Headers, name string) string {
	v := h.Get(name)
	if v == nil {
		return ""
	}
	return v.String()
}

// exceptionStatus maps Bedrock stream exception types to HTTP statuses.
var exceptionStatus = map[string]int{
	"throttlingException":         http.StatusTooManyRequests,
	"validationException":         http.StatusBadRequest,
	"accessDeniedException":       http.StatusForbidden,
	"resourceNotFoundException":   http.StatusNotFound,
	"modelTimeoutException":       http.StatusGatewayTimeout,
	"serviceUnavailableException": http.StatusServiceUnavailable,
	"internalServerException":     http.StatusInternalServerError,
	"modelStreamErrorException":   0,
}

func exceptionError(provider, typ string, payload []byte) *apperrors.AppError {
	var body struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(payload, &body)
	if body.Message == "" {
		body.Message = typ
	}
	return apperrors.Upstream(provider, body.Message, exceptionStatus[typ]).WithDetail("exception", typ)
}
