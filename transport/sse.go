package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/chatstream/logger"
)

// DoneMarker terminates every SSE stream, after the error or cancelled event
// when there is one.
const DoneMarker = "[DONE]"

// ssePayload is the JSON body of one data: event.
type ssePayload struct {
	Text      string `json:"text,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// SSEWriter streams chunks as server-sent events.
type SSEWriter struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	rc     *http.ResponseController
	ended  bool
	header bool
}

// NewSSEWriter prepares w for an event stream.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug("could not disable write deadline", logger.Fields(logger.FieldError, err.Error()))
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &SSEWriter{w: w, rc: rc}
}

func (s *SSEWriter) Framing() Framing { return FramingSSE }

// WriteChunk sends data: {"text": ...}.
func (s *SSEWriter) WriteChunk(text string) error {
	return s.send(ssePayload{Text: text}, false)
}

// WriteError sends data: {"error": ..., "code": ...} then data: [DONE].
func (s *SSEWriter) WriteError(err error) error {
	msg, code := errorBody(err)
	return s.send(ssePayload{Error: msg, Code: code}, true)
}

// Cancel sends data: {"cancelled": true} then data: [DONE].
func (s *SSEWriter) Cancel() error {
	return s.send(ssePayload{Cancelled: true}, true)
}

// Close sends data: [DONE] and ends the stream.
func (s *SSEWriter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil
	}
	s.ended = true
	return s.writeEvent(DoneMarker)
}

func (s *SSEWriter) send(p ssePayload, last bool) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil
	}
	if last {
		s.ended = true
	}
	if err := s.writeEvent(string(data)); err != nil || !last {
		return err
	}
	return s.writeEvent(DoneMarker)
}

func (s *SSEWriter) writeEvent(data string) error {
	if !s.header {
		s.header = true
		s.w.WriteHeader(http.StatusOK)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	return s.rc.Flush()
}

// maxEventSize bounds a single SSE line.
const maxEventSize = 1 << 20

// SSEReader reads an event stream written by SSEWriter.
type SSEReader struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
	done    error
}

// NewSSEReader wraps body. The reader owns body.
func NewSSEReader(body io.ReadCloser) *SSEReader {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &SSEReader{scanner: sc, body: body}
}

// Next returns the text of the next chunk event.
func (r *SSEReader) Next() ([]byte, error) {
	if r.done != nil {
		return nil, r.done
	}
	for {
		data, err := r.nextEvent()
		if err != nil {
			r.done = err
			return nil, err
		}
		if data == DoneMarker {
			r.done = io.EOF
			return nil, io.EOF
		}

		var p ssePayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			// Non-JSON data is displayed as is.
			return []byte(data), nil
		}
		switch {
		case p.Error != "":
			r.done = &StreamError{Message: p.Error, Code: p.Code}
			return nil, r.done
		case p.Cancelled:
			r.done = ErrCancelled
			return nil, r.done
		case p.Text != "":
			return []byte(p.Text), nil
		}
	}
}

// nextEvent returns the data of the next event, joining multi-line data.
func (r *SSEReader) nextEvent() (string, error) {
	var data []string
	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")
		if line == "" {
			if len(data) > 0 {
				return strings.Join(data, "\n"), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if field, value := parseSSELine(line); field == "data" {
			data = append(data, value)
		}
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	if len(data) > 0 {
		return strings.Join(data, "\n"), nil
	}
	return "", ErrTruncated
}

func (r *SSEReader) Close() error { return r.body.Close() }

// parseSSELine splits "field: value", dropping one leading space.
func parseSSELine(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field, value = line[:idx], line[idx+1:]
	value = strings.TrimPrefix(value, " ")
	return field, value
}
