// Package transport carries flushed chunks from a stream session to the
// display side over HTTP.
//
// Two framings are supported. Raw framing writes text/plain chunks and
// reports the terminal status in the X-Stream-Status trailer. SSE framing
// writes data: {"text": ...} events, an error event on failure, and a
// data: [DONE] terminator. Writers run on the server; Readers are their
// display-side counterparts and turn the terminal signal into io.EOF or an
// error.
package transport

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	apperrors "github.com/kbukum/chatstream/errors"
)

// Framing selects the wire format.
type Framing string

const (
	FramingRaw Framing = "raw"
	FramingSSE Framing = "sse"
)

// Status is the terminal outcome reported to the display side.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusErrored   Status = "errored"
)

// Raw framing trailer names.
const (
	TrailerStatus = "X-Stream-Status"
	TrailerError  = "X-Stream-Error"
	TrailerCode   = "X-Stream-Error-Code"
)

// Writer is the server-side sink for one stream. Exactly one of Close,
// Cancel or WriteError ends it; later calls are no-ops.
type Writer interface {
	WriteChunk(text string) error
	WriteError(err error) error
	Cancel() error
	Close() error
	Framing() Framing
}

// Reader is the display-side source for one stream. Next returns text in
// arrival order and io.EOF after a completed stream. A cancelled stream ends
// with ErrCancelled, a failed one with a *StreamError, and a connection that
// closes without any terminal signal with ErrTruncated.
type Reader interface {
	Next() ([]byte, error)
	Close() error
}

var (
	// ErrCancelled ends a stream the server stopped on request.
	ErrCancelled = errors.New("stream cancelled by server")
	// ErrTruncated ends a stream that closed without a terminal signal.
	ErrTruncated = errors.New("stream ended without terminal signal")
)

// StreamError is a failure reported in-band by the server.
type StreamError struct {
	Message string
	Code    string
}

func (e *StreamError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Negotiate picks the framing for a request. An explicit ?format= query wins;
// otherwise an Accept header listing text/event-stream selects SSE.
func Negotiate(r *http.Request) Framing {
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case string(FramingSSE):
		return FramingSSE
	case string(FramingRaw):
		return FramingRaw
	}
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == "text/event-stream" {
			return FramingSSE
		}
	}
	return FramingRaw
}

// NewWriter returns the writer for framing over w.
func NewWriter(framing Framing, w http.ResponseWriter) Writer {
	if framing == FramingSSE {
		return NewSSEWriter(w)
	}
	return NewRawWriter(w)
}

// NewReader returns the reader matching the response's content type.
func NewReader(resp *http.Response) Reader {
	mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mt == "text/event-stream" {
		return NewSSEReader(resp.Body)
	}
	return NewRawReader(resp)
}

func errorBody(err error) (message, code string) {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.Message, string(appErr.Code)
	}
	return err.Error(), ""
}
