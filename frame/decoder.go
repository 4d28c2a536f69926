package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"

	apperrors "github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/logger"
)

// Delta is one increment of generated text. Sequence numbers start at 1 and
// increase by one per delta from the same Decoder. Final marks the last delta
// of a stream; its text may be non-empty.
type Delta struct {
	Sequence int
	Text     string
	Final    bool
}

// maxNesting bounds how deep nested payloads are followed.
const maxNesting = 4

// Option configures a Decoder.
type Option func(*Decoder)

// WithExtractors replaces the extractor list.
func WithExtractors(ex ...Extractor) Option {
	return func(d *Decoder) { d.extractors = ex }
}

// WithLogger sets the logger used for skipped frames.
func WithLogger(l *logger.Logger) Option {
	return func(d *Decoder) { d.log = l }
}

// WithSkipHook registers a callback invoked for every skipped frame.
func WithSkipHook(fn func(err error)) Option {
	return func(d *Decoder) { d.onSkip = fn }
}

// Decoder converts frames into deltas. It is not safe for concurrent use; a
// stream session owns exactly one.
type Decoder struct {
	extractors []Extractor
	log        *logger.Logger
	onSkip     func(err error)

	seq      int
	finished bool
	skipped  atomic.Int64
}

// NewDecoder creates a Decoder with DefaultExtractors.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		extractors: DefaultExtractors(),
		log:        logger.Get("frame"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode turns one raw frame into at most one delta. Frames after a final
// delta are ignored.
func (d *Decoder) Decode(raw []byte) (Delta, bool) {
	if d.finished {
		return Delta{}, false
	}

	payload := stripFraming(raw)
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return Delta{}, false
	}
	if bytes.Equal(trimmed, doneMarker) {
		return d.Final(), true
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return d.emit(string(payload), false), true
	}

	var doc any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		d.skip(apperrors.FrameDecode("invalid json", err), trimmed)
		return Delta{}, false
	}

	text, found, stop, err := d.walk(doc, 0)
	if err != nil {
		d.skip(apperrors.FrameDecode("invalid nested payload", err), trimmed)
		return Delta{}, false
	}
	if stop {
		return d.emit(text, true), true
	}
	if !found || text == "" {
		return Delta{}, false
	}
	return d.emit(text, false), true
}

// Final returns the terminal delta used when input ends without a stop
// marker. It returns a zero Delta with Final set if the stream already
// finished, without consuming a sequence number.
func (d *Decoder) Final() Delta {
	if d.finished {
		return Delta{Sequence: d.seq, Final: true}
	}
	return d.emit("", true)
}

// Finished reports whether a final delta has been produced.
func (d *Decoder) Finished() bool { return d.finished }

// Skipped returns the number of frames dropped as malformed.
func (d *Decoder) Skipped() int64 { return d.skipped.Load() }

func (d *Decoder) emit(text string, final bool) Delta {
	d.seq++
	if final {
		d.finished = true
	}
	return Delta{Sequence: d.seq, Text: text, Final: final}
}

func (d *Decoder) walk(doc any, depth int) (text string, found, stop bool, err error) {
	stop = hasStopMarker(doc)
	for _, ex := range d.extractors {
		m, err := ex.Extract(doc)
		if err != nil {
			return "", false, stop, err
		}
		if !m.OK {
			continue
		}
		if m.Nested == nil {
			return m.Text, true, stop, nil
		}
		if depth+1 >= maxNesting {
			return "", false, stop, errNestingTooDeep
		}
		t, f, s, err := d.walk(m.Nested, depth+1)
		return t, f, stop || s, err
	}
	return "", false, stop, nil
}

func (d *Decoder) skip(err error, frame []byte) {
	d.skipped.Add(1)
	d.log.Warn("skipping malformed frame", logger.Fields(
		logger.FieldError, err.Error(),
		"frame", truncate(string(frame), 200),
	))
	if d.onSkip != nil {
		d.onSkip(err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var errNestingTooDeep = errors.New("payload nesting exceeds limit")

var doneMarker = []byte("[DONE]")

// stripFraming reduces a textual event-stream frame to its data payload.
// Frames without a data line are returned unchanged.
func stripFraming(raw []byte) []byte {
	lines := strings.Split(string(raw), "\n")
	var data []string
	for _, line := range lines {
		line = strings.TrimLeft(strings.TrimRight(line, "\r"), " \t")
		if after, ok := strings.CutPrefix(line, "data:"); ok {
			data = append(data, strings.TrimPrefix(after, " "))
		}
	}
	if data == nil {
		return raw
	}
	return []byte(strings.Join(data, "\n"))
}
