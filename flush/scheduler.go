// Package flush batches stream deltas into transport writes.
//
// The policy is hybrid: a chunk is written as soon as the buffer holds
// MinChunkSize display units, or once FlushInterval has passed since the
// previous flush, or when the final delta arrives. Units are grapheme
// clusters.
package flush

import (
	"strings"
	"time"

	"github.com/rivo/uniseg"

	apperrors "github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/frame"
)

// Writer receives flushed chunks.
type Writer interface {
	WriteChunk(text string) error
}

// Reason says why a flush happened.
type Reason string

const (
	ReasonFinal    Reason = "final"
	ReasonSize     Reason = "size"
	ReasonInterval Reason = "interval"
	ReasonTick     Reason = "tick"
	ReasonForced   Reason = "forced"
)

// BufferedChunk is text accepted but not yet written.
type BufferedChunk struct {
	Text          string
	Units         int
	FirstByteTime time.Time
}

// Event describes one completed flush.
type Event struct {
	Reason Reason
	Units  int
	Bytes  int
	Age    time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithFlushHook registers a callback run after every successful flush.
func WithFlushHook(fn func(Event)) Option {
	return func(s *Scheduler) { s.onFlush = fn }
}

// Scheduler buffers delta text for one stream. It is not safe for concurrent
// use; the session's run loop owns it.
type Scheduler struct {
	cfg     Config
	w       Writer
	now     func() time.Time
	onFlush func(Event)

	buf       strings.Builder
	units     int
	first     time.Time
	lastFlush time.Time
}

// New creates a Scheduler writing to w. The flush clock starts now.
func New(cfg Config, w Writer, opts ...Option) *Scheduler {
	cfg.ApplyDefaults()
	s := &Scheduler{cfg: cfg, w: w, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.lastFlush = s.now()
	return s
}

// Push buffers a delta and flushes if the delta is final, the buffer reached
// MinChunkSize, or FlushInterval elapsed since the last flush.
func (s *Scheduler) Push(d frame.Delta) error {
	if d.Text != "" {
		if s.buf.Len() == 0 {
			s.first = s.now()
		}
		s.buf.WriteString(d.Text)
		s.units = uniseg.GraphemeClusterCount(s.buf.String())
	}

	switch {
	case d.Final:
		return s.flush(ReasonFinal)
	case s.units >= s.cfg.MinChunkSize:
		return s.flush(ReasonSize)
	case s.now().Sub(s.lastFlush) >= s.cfg.FlushInterval:
		return s.flush(ReasonInterval)
	}
	return nil
}

// Tick flushes a non-empty buffer once FlushInterval has passed since the
// last flush. The run loop calls it from a ticker so slow streams still move.
func (s *Scheduler) Tick() error {
	if s.buf.Len() == 0 || s.now().Sub(s.lastFlush) < s.cfg.FlushInterval {
		return nil
	}
	return s.flush(ReasonTick)
}

// Flush writes any buffered text immediately.
func (s *Scheduler) Flush() error {
	return s.flush(ReasonForced)
}

// Discard drops buffered text without writing it and returns what was
// dropped.
func (s *Scheduler) Discard() BufferedChunk {
	dropped := s.Buffered()
	s.reset()
	return dropped
}

// Buffered returns the pending chunk.
func (s *Scheduler) Buffered() BufferedChunk {
	return BufferedChunk{Text: s.buf.String(), Units: s.units, FirstByteTime: s.first}
}

// Config returns the effective policy.
func (s *Scheduler) Config() Config { return s.cfg }

func (s *Scheduler) flush(reason Reason) error {
	if s.buf.Len() == 0 {
		return nil
	}
	chunk := s.Buffered()
	now := s.now()
	s.reset()
	s.lastFlush = now

	if err := s.w.WriteChunk(chunk.Text); err != nil {
		return apperrors.Transport("write", err)
	}
	if s.onFlush != nil {
		s.onFlush(Event{Reason: reason, Units: chunk.Units, Bytes: len(chunk.Text), Age: now.Sub(chunk.FirstByteTime)})
	}
	return nil
}

func (s *Scheduler) reset() {
	s.buf.Reset()
	s.units = 0
	s.first = time.Time{}
}
