package transport

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/chatstream/logger"
)

// RawWriter streams text/plain chunks and reports the outcome in trailers.
type RawWriter struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	rc     *http.ResponseController
	ended  bool
	header bool
}

// NewRawWriter prepares w for a raw stream. Headers are sent with the first
// chunk or terminal signal.
func NewRawWriter(w http.ResponseWriter) *RawWriter {
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug("could not disable write deadline", logger.Fields(logger.FieldError, err.Error()))
	}
	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Accel-Buffering", "no")
	h.Add("Trailer", TrailerStatus)
	h.Add("Trailer", TrailerError)
	h.Add("Trailer", TrailerCode)
	return &RawWriter{w: w, rc: rc}
}

func (r *RawWriter) Framing() Framing { return FramingRaw }

// WriteChunk writes text and flushes it to the client.
func (r *RawWriter) WriteChunk(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return nil
	}
	r.writeHeader()
	if _, err := io.WriteString(r.w, text); err != nil {
		return err
	}
	return r.rc.Flush()
}

// WriteError ends the stream with the errored status.
func (r *RawWriter) WriteError(err error) error {
	msg, code := errorBody(err)
	return r.end(StatusErrored, msg, code)
}

// Cancel ends the stream with the cancelled status.
func (r *RawWriter) Cancel() error { return r.end(StatusCancelled, "", "") }

// Close ends the stream with the completed status.
func (r *RawWriter) Close() error { return r.end(StatusCompleted, "", "") }

func (r *RawWriter) end(status Status, msg, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return nil
	}
	r.ended = true
	r.writeHeader()
	h := r.w.Header()
	h.Set(TrailerStatus, string(status))
	if msg != "" {
		// Trailer values must stay on one line.
		h.Set(TrailerError, strings.ReplaceAll(msg, "\n", " "))
	}
	if code != "" {
		h.Set(TrailerCode, code)
	}
	return r.rc.Flush()
}

func (r *RawWriter) writeHeader() {
	if !r.header {
		r.header = true
		r.w.WriteHeader(http.StatusOK)
	}
}

// RawReader reads a raw stream and interprets its trailers at EOF.
type RawReader struct {
	resp *http.Response
	buf  []byte
}

// NewRawReader wraps resp. The reader owns resp.Body.
func NewRawReader(resp *http.Response) *RawReader {
	return &RawReader{resp: resp, buf: make([]byte, 4096)}
}

func (r *RawReader) Next() ([]byte, error) {
	for {
		n, err := r.resp.Body.Read(r.buf)
		if n > 0 {
			out := make([]byte, n)
			copy(out, r.buf[:n])
			return out, nil
		}
		if err == io.EOF {
			return nil, r.terminal()
		}
		if err != nil {
			return nil, err
		}
	}
}

func (r *RawReader) terminal() error {
	switch Status(r.resp.Trailer.Get(TrailerStatus)) {
	case StatusCompleted:
		return io.EOF
	case StatusCancelled:
		return ErrCancelled
	case StatusErrored:
		return &StreamError{Message: r.resp.Trailer.Get(TrailerError), Code: r.resp.Trailer.Get(TrailerCode)}
	default:
		return ErrTruncated
	}
}

func (r *RawReader) Close() error { return r.resp.Body.Close() }
