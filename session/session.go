// Package session runs one stream from provider frames to a transport
// writer.
//
// A Session moves Idle → Streaming → Completed, Cancelled or Errored. It
// enters Streaming when the first delta arrives, and can also fail or be
// cancelled before that. Terminal states never
// change. While streaming, a single goroutine owns the frame decoder and the
// flush scheduler; a second goroutine only pulls frames from the source.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/chatstream/cancel"
	apperrors "github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/flush"
	"github.com/kbukum/chatstream/frame"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/observability"
	"github.com/kbukum/chatstream/transport"
)

// Stats summarises a session's progress.
type Stats struct {
	Deltas  int
	Chunks  int
	Skipped int64
}

// Option configures a Session.
type Option func(*Session)

// WithID sets the session ID. The default is a random UUID.
func WithID(id string) Option { return func(s *Session) { s.id = id } }

// WithToken shares an existing cancellation token.
func WithToken(t *cancel.Token) Option { return func(s *Session) { s.token = t } }

// WithFlushConfig sets the flush policy.
func WithFlushConfig(cfg flush.Config) Option { return func(s *Session) { s.flushCfg = cfg } }

// WithLogger sets the session logger.
func WithLogger(l *logger.Logger) Option { return func(s *Session) { s.log = l } }

// WithMetrics records session instruments.
func WithMetrics(m *observability.StreamMetrics) Option { return func(s *Session) { s.metrics = m } }

// WithDecoderOptions passes options to the frame decoder.
func WithDecoderOptions(opts ...frame.Option) Option {
	return func(s *Session) { s.decoderOpts = append(s.decoderOpts, opts...) }
}

// Session is one streamed response.
type Session struct {
	id          string
	token       *cancel.Token
	flushCfg    flush.Config
	log         *logger.Logger
	metrics     *observability.StreamMetrics
	decoderOpts []frame.Option

	mu      sync.RWMutex
	state   State
	running bool
	text    strings.Builder
	err     error
	stats   Stats
	started time.Time
	done    chan struct{}
}

// New creates an idle session.
func New(opts ...Option) *Session {
	s := &Session{done: make(chan struct{})}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.token == nil {
		s.token = cancel.New()
	}
	if s.log == nil {
		s.log = logger.Get("session")
	}
	s.log = s.log.WithFields(logger.Fields(logger.FieldSessionID, s.id))
	s.flushCfg.ApplyDefaults()
	return s
}

func (s *Session) ID() string { return s.id }

// Token returns the session's cancellation token.
func (s *Session) Token() *cancel.Token { return s.token }

// Cancel requests a consumer stop.
func (s *Session) Cancel() { s.token.Cancel() }

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Running reports whether Run has been entered and the session has not
// ended yet. A running session stays Idle until its first delta.
func (s *Session) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running && !s.state.Terminal()
}

// Text returns the concatenation of every delta decoded so far.
func (s *Session) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text.String()
}

// Err returns the failure of an Errored session.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Stats returns progress counters.
func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Fail moves a session that has not started streaming to Errored, for
// provider errors raised before the first frame. It reports whether the
// transition happened.
func (s *Session) Fail(err error) bool {
	if !s.finish(Errored, err) {
		return false
	}
	s.token.Fail(err)
	s.log.Warn("session failed before streaming", logger.Fields(logger.FieldError, err.Error()))
	return true
}

type pulled struct {
	data []byte
	err  error
}

// Run streams src into w until the source ends, the token is set, or an
// error occurs. Cancellation is not an error: Run returns nil and the session
// ends Cancelled. Upstream and transport failures end the session Errored and
// are returned.
func (s *Session) Run(ctx context.Context, src frame.Source, w transport.Writer) (err error) {
	if !s.begin() {
		_ = src.Close()
		return apperrors.Conflict(fmt.Sprintf("session %s is %s", s.id, s.State()))
	}
	s.metrics.SessionStarted(ctx)
	if s.token.Cancelled() && !s.token.Failed() {
		_ = src.Close()
		_ = w.Cancel()
		s.finish(Cancelled, nil)
		return nil
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanSession)
	defer func() { observability.EndSpan(span, err) }()

	unbind := s.token.Bind(ctx)
	defer unbind()

	pumpCtx, release := s.token.Context(ctx)
	frames := make(chan pulled)
	var wg sync.WaitGroup
	wg.Add(1)
	go s.pump(pumpCtx, src, frames, &wg)
	defer func() {
		release()
		_ = src.Close()
		wg.Wait()
	}()

	decoder := frame.NewDecoder(append([]frame.Option{
		frame.WithLogger(s.log),
		frame.WithSkipHook(func(error) { s.metrics.FrameSkipped(ctx) }),
	}, s.decoderOpts...)...)
	sched := flush.New(s.flushCfg, w, flush.WithFlushHook(func(e flush.Event) { s.onFlush(ctx, e) }))

	ticker := time.NewTicker(tickInterval(s.flushCfg.FlushInterval))
	defer ticker.Stop()

	for {
		select {
		case <-s.token.Done():
			return s.stop(ctx, sched, w, decoder)

		case <-ticker.C:
			if err := sched.Tick(); err != nil {
				return s.abort(ctx, sched, w, decoder, err)
			}

		case p, ok := <-frames:
			if ctx.Err() != nil {
				s.token.Cancel()
			}
			if s.token.Cancelled() || !ok {
				return s.stop(ctx, sched, w, decoder)
			}
			if p.err != nil {
				if errors.Is(p.err, io.EOF) {
					return s.complete(ctx, sched, w, decoder, decoder.Final())
				}
				return s.abort(ctx, sched, w, decoder, p.err)
			}
			delta, ok := decoder.Decode(p.data)
			if !ok {
				continue
			}
			s.transition(Idle, Streaming)
			s.appendDelta(delta)
			if delta.Final {
				return s.complete(ctx, sched, w, decoder, delta)
			}
			if err := sched.Push(delta); err != nil {
				return s.abort(ctx, sched, w, decoder, err)
			}
		}
	}
}

func (s *Session) pump(ctx context.Context, src frame.Source, out chan<- pulled, wg *sync.WaitGroup) {
	defer wg.Done()
	defer close(out)
	for {
		data, err := src.Next(ctx)
		select {
		case out <- pulled{data: data, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// complete flushes the final delta and closes the stream.
func (s *Session) complete(ctx context.Context, sched *flush.Scheduler, w transport.Writer, d *frame.Decoder, final frame.Delta) error {
	s.transition(Idle, Streaming)
	if err := sched.Push(final); err != nil {
		return s.abort(ctx, sched, w, d, err)
	}
	if err := w.Close(); err != nil {
		return s.abort(ctx, sched, w, d, apperrors.Transport("close", err))
	}
	s.end(ctx, Completed, nil, d)
	return nil
}

// stop handles a set token: a consumer stop discards buffered text, a failed
// token ends the session with its cause.
func (s *Session) stop(ctx context.Context, sched *flush.Scheduler, w transport.Writer, d *frame.Decoder) error {
	if s.token.Failed() {
		return s.abort(ctx, sched, w, d, s.token.Err())
	}
	dropped := sched.Discard()
	_ = w.Cancel()
	s.end(ctx, Cancelled, nil, d)
	if dropped.Units > 0 {
		s.log.Debug("discarded buffered text", logger.Fields(logger.FieldUnits, dropped.Units))
	}
	return nil
}

// abort flushes what it can, reports err downstream and fails the session.
func (s *Session) abort(ctx context.Context, sched *flush.Scheduler, w transport.Writer, d *frame.Decoder, err error) error {
	if !apperrors.HasCode(err, apperrors.ErrCodeTransport) {
		if ferr := sched.Flush(); ferr != nil {
			s.log.Debug("flush before error failed", logger.Fields(logger.FieldError, ferr.Error()))
		}
	}
	if werr := w.WriteError(err); werr != nil {
		s.log.Debug("error signal not delivered", logger.Fields(logger.FieldError, werr.Error()))
	}
	s.token.Fail(err)
	s.end(ctx, Errored, err, d)
	return err
}

func (s *Session) end(ctx context.Context, state State, err error, d *frame.Decoder) {
	s.mu.Lock()
	s.stats.Skipped = d.Skipped()
	s.mu.Unlock()
	if !s.finish(state, err) {
		return
	}
	stats := s.Stats()
	fields := logger.Fields(
		logger.FieldState, state.String(),
		logger.FieldChunks, stats.Chunks,
		"deltas", stats.Deltas,
		"skipped", stats.Skipped,
		logger.FieldDuration, time.Since(s.started).Milliseconds(),
	)
	if err != nil {
		s.log.Error("stream failed", logger.MergeWithError(fields, err))
		return
	}
	s.log.Info("stream ended", fields)
}

func (s *Session) appendDelta(d frame.Delta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text.WriteString(d.Text)
	s.stats.Deltas++
}

func (s *Session) onFlush(ctx context.Context, e flush.Event) {
	s.mu.Lock()
	s.stats.Chunks++
	first := s.stats.Chunks == 1
	started := s.started
	s.mu.Unlock()
	if first {
		s.metrics.FirstChunk(ctx, time.Since(started))
	}
	s.metrics.Flushed(ctx, string(e.Reason), e.Units)
}

func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from || !canTransition(from, to) {
		return false
	}
	s.state = to
	return true
}

// begin marks the session as running. It fails if Run was already entered or
// the session has ended.
func (s *Session) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.state != Idle {
		return false
	}
	s.running = true
	s.started = time.Now()
	return true
}

// finish moves the session into a terminal state once.
func (s *Session) finish(to State, err error) bool {
	s.mu.Lock()
	from := s.state
	if !canTransition(from, to) {
		s.mu.Unlock()
		return false
	}
	s.state = to
	s.err = err
	started, counted := s.started, s.running
	s.mu.Unlock()
	close(s.done)

	var d time.Duration
	if !started.IsZero() {
		d = time.Since(started)
	}
	s.metrics.SessionEnded(context.Background(), to.String(), counted, d)
	return true
}

// tickInterval is how often the run loop asks the scheduler for a
// time-driven flush.
func tickInterval(flushInterval time.Duration) time.Duration {
	if d := flushInterval / 2; d > time.Millisecond {
		return d
	}
	return time.Millisecond
}
