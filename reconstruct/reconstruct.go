package reconstruct

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rivo/uniseg"

	"github.com/kbukum/chatstream/cancel"
	"github.com/kbukum/chatstream/logger"
)

// DefaultInterval is the pacing delay between two units.
const DefaultInterval = 25 * time.Millisecond

// ErrClosed is returned by Write after input was closed or the reveal ended.
var ErrClosed = errors.New("reconstruct: closed")

// Sink receives display units one at a time. Emit is never called
// concurrently. It must not call Fail on the Reconstructor feeding it.
type Sink interface {
	Emit(unit string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(unit string)

func (f SinkFunc) Emit(unit string) { f(unit) }

// Outcome is how a reveal ended.
type Outcome int

const (
	Completed Outcome = iota + 1
	Cancelled
	Errored
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Errored:
		return "errored"
	}
	return "pending"
}

// Result is the resolved state of a Reconstructor. Text is everything the
// sink received, including a failure marker.
type Result struct {
	Outcome Outcome
	Text    string
	Err     error
}

// FailureMarker is the inline text appended to the display when the stream
// fails.
func FailureMarker(err error) string {
	return "\n\n❌ " + err.Error()
}

// Option configures a Reconstructor.
type Option func(*Reconstructor)

// WithInterval sets the pacing delay.
func WithInterval(d time.Duration) Option {
	return func(r *Reconstructor) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithToken shares a cancellation token with the rest of the stream.
func WithToken(t *cancel.Token) Option { return func(r *Reconstructor) { r.token = t } }

// OnComplete registers fn to run once the whole response was displayed.
func OnComplete(fn func(text string)) Option { return func(r *Reconstructor) { r.onComplete = fn } }

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option { return func(r *Reconstructor) { r.log = l } }

// Reconstructor paces text into a Sink.
type Reconstructor struct {
	sink       Sink
	interval   time.Duration
	token      *cancel.Token
	onComplete func(string)
	log        *logger.Logger

	emitMu sync.Mutex

	mu          sync.Mutex
	queue       []string
	pending     []byte
	text        strings.Builder
	inputClosed bool
	draining    bool
	finished    bool
	timer       *time.Timer

	done   chan struct{}
	result Result
}

// New creates a Reconstructor emitting to sink.
func New(sink Sink, opts ...Option) *Reconstructor {
	r := &Reconstructor{sink: sink, interval: DefaultInterval, done: make(chan struct{})}
	for _, opt := range opts {
		opt(r)
	}
	if r.token == nil {
		r.token = cancel.New()
	}
	if r.log == nil {
		r.log = logger.Get("reconstruct")
	}
	go r.watch()
	return r
}

// Token returns the token the drain loop checks.
func (r *Reconstructor) Token() *cancel.Token { return r.token }

// Write queues p for display. A UTF-8 sequence cut at the end of p is held
// until the next Write.
func (r *Reconstructor) Write(p []byte) (int, error) {
	r.mu.Lock()
	if r.inputClosed || r.finished {
		r.mu.Unlock()
		return 0, ErrClosed
	}
	buf := append(r.pending, p...)
	cut := completePrefix(buf)
	r.pending = append([]byte(nil), buf[cut:]...)
	r.queue = appendUnits(r.queue, string(buf[:cut]))
	start := r.startLocked()
	r.mu.Unlock()

	if start {
		r.step()
	}
	return len(p), nil
}

// WriteString is Write for a string.
func (r *Reconstructor) WriteString(s string) (int, error) {
	return r.Write([]byte(s))
}

// CloseInput marks the end of upstream text. The reveal completes once the
// queue drains.
func (r *Reconstructor) CloseInput() {
	r.mu.Lock()
	if r.inputClosed || r.finished {
		r.mu.Unlock()
		return
	}
	r.inputClosed = true
	if len(r.pending) > 0 {
		r.queue = append(r.queue, string(utf8.RuneError))
		r.pending = nil
	}
	start := r.startLocked()
	idle := !r.draining && len(r.queue) == 0
	r.mu.Unlock()

	switch {
	case start:
		r.step()
	case idle:
		r.complete()
	}
}

// Cancel stops the reveal. Units already emitted stay.
func (r *Reconstructor) Cancel() { r.token.Cancel() }

// Fail ends the reveal with err: the token fails, queued units are dropped
// and the failure marker is emitted.
func (r *Reconstructor) Fail(err error) {
	if err == nil {
		err = cancel.ErrCancelled
	}
	r.token.Fail(err)
	r.halt()
}

// Done is closed once the reveal has resolved.
func (r *Reconstructor) Done() <-chan struct{} { return r.done }

// Wait blocks until the reveal resolves or ctx ends.
func (r *Reconstructor) Wait(ctx context.Context) (Result, error) {
	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Text returns what the sink has received so far.
func (r *Reconstructor) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.text.String()
}

// Queued returns the number of units waiting for display.
func (r *Reconstructor) Queued() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// startLocked claims the drain loop if units are queued and none is running.
func (r *Reconstructor) startLocked() bool {
	if r.draining || r.finished || len(r.queue) == 0 || r.token.Cancelled() {
		return false
	}
	r.draining = true
	return true
}

// step emits one unit and schedules the next. When the queue is empty the
// loop ends; the reveal completes if input was closed.
func (r *Reconstructor) step() {
	if r.token.Cancelled() {
		r.halt()
		return
	}

	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	if len(r.queue) == 0 {
		r.draining = false
		closed := r.inputClosed
		r.mu.Unlock()
		if closed {
			r.complete()
		}
		return
	}
	unit := r.queue[0]
	r.queue[0] = ""
	r.queue = r.queue[1:]
	r.text.WriteString(unit)
	r.mu.Unlock()

	r.emitMu.Lock()
	r.sink.Emit(unit)
	r.emitMu.Unlock()

	r.mu.Lock()
	if !r.finished {
		r.timer = time.AfterFunc(r.interval, r.step)
	}
	r.mu.Unlock()
}

func (r *Reconstructor) complete() {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	res := Result{Outcome: Completed, Text: r.text.String()}
	r.mu.Unlock()

	if r.onComplete != nil {
		r.onComplete(res.Text)
	}
	r.resolve(res)
}

// halt resolves a cancelled or failed reveal.
func (r *Reconstructor) halt() {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	r.draining = false
	dropped := len(r.queue)
	r.queue = nil
	r.pending = nil
	if r.timer != nil {
		r.timer.Stop()
	}
	res := Result{Outcome: Cancelled}
	var marker string
	if r.token.Failed() {
		res.Outcome = Errored
		res.Err = r.token.Err()
		marker = FailureMarker(res.Err)
		r.text.WriteString(marker)
	}
	res.Text = r.text.String()
	r.mu.Unlock()

	if marker != "" {
		r.emitMu.Lock()
		r.sink.Emit(marker)
		r.emitMu.Unlock()
	}
	r.log.Debug("reveal stopped", logger.Fields(logger.FieldState, res.Outcome.String(), "dropped_units", dropped))
	r.resolve(res)
}

func (r *Reconstructor) resolve(res Result) {
	r.result = res
	close(r.done)
}

// watch resolves the reveal when the token is set while no unit is being
// drained.
func (r *Reconstructor) watch() {
	select {
	case <-r.token.Done():
		r.halt()
	case <-r.done:
	}
}

// completePrefix returns the length of the longest prefix of b that does not
// end inside a multi-byte UTF-8 sequence.
func completePrefix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}

func appendUnits(queue []string, s string) []string {
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		queue = append(queue, g.Str())
	}
	return queue
}
