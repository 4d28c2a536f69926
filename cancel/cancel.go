// Package cancel provides the stop signal shared by every stage of a stream.
//
// A Token is written at most once, either by a consumer stop (Cancel) or by a
// fatal error (Fail). Producers and the display side check it before each unit
// of work; nothing already emitted is ever retracted.
package cancel

import (
	"context"
	"errors"
	"sync"
)

// ErrCancelled is the cause reported by a Token stopped with Cancel.
var ErrCancelled = errors.New("stream cancelled")

// Token is a write-once cancellation signal. The zero value is not usable;
// create tokens with New.
type Token struct {
	once sync.Once
	done chan struct{}

	mu  sync.RWMutex
	err error
}

// New returns an unset token.
func New() *Token {
	return &Token{done: make(chan struct{})}
}

// Cancel records a consumer stop. It has no effect if the token is already set.
func (t *Token) Cancel() {
	t.set(ErrCancelled)
}

// Fail records a fatal error. A nil err is treated as Cancel. It has no effect
// if the token is already set.
func (t *Token) Fail(err error) {
	if err == nil {
		err = ErrCancelled
	}
	t.set(err)
}

func (t *Token) set(err error) {
	t.once.Do(func() {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		close(t.done)
	})
}

// Cancelled reports whether the token has been set by either Cancel or Fail.
func (t *Token) Cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Err returns nil while the token is unset, ErrCancelled after Cancel, or the
// failure cause after Fail.
func (t *Token) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Failed reports whether the token was set by Fail with a real error.
func (t *Token) Failed() bool {
	err := t.Err()
	return err != nil && !errors.Is(err, ErrCancelled)
}

// Done returns a channel closed when the token is set.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Bind cancels the token when ctx is done. The returned function detaches the
// binding and reports whether it did so before ctx fired.
func (t *Token) Bind(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, t.Cancel)
}

// Context derives a context that is cancelled when the token is set, with the
// token's error as cause.
func (t *Token) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	go func() {
		select {
		case <-t.done:
			cancel(t.Err())
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}
