package bootstrap

import (
	"context"
	"fmt"
)

// Hook is a lifecycle callback.
type Hook func(ctx context.Context) error

// OnStart registers hooks that run once every component has started.
func (a *App[C]) OnStart(hooks ...Hook) {
	a.onStart = append(a.onStart, hooks...)
}

// OnReady registers hooks that run after the ready check, right before the
// application blocks.
func (a *App[C]) OnReady(hooks ...Hook) {
	a.onReady = append(a.onReady, hooks...)
}

// OnStop registers hooks that run before components are stopped.
func (a *App[C]) OnStop(hooks ...Hook) {
	a.onStop = append(a.onStop, hooks...)
}

func runHooks(ctx context.Context, hooks []Hook) error {
	for i, h := range hooks {
		if err := h(ctx); err != nil {
			return fmt.Errorf("hook %d: %w", i, err)
		}
	}
	return nil
}
