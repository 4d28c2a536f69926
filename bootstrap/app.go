// Package bootstrap runs a chatstream binary through its lifecycle: start
// components, configure handlers, block on a signal, drain and stop.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/chatstream/component"
	"github.com/kbukum/chatstream/logger"
)

const defaultGracefulTimeout = 15 * time.Second

// App owns the component registry and lifecycle hooks of one service.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.Register(sessions, srv)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
//	    handler.Register(srv.GinEngine().Group("/api"))
//	    return nil
//	})
//	err = app.Run(ctx)
type App[C Config] struct {
	Name       string
	Version    string
	Cfg        C
	Components *component.Registry
	Logger     *logger.Logger

	gracefulTimeout time.Duration
	signals         []os.Signal
	onConfigure     []func(ctx context.Context, app *App[C]) error
	onStart         []Hook
	onReady         []Hook
	onStop          []Hook
}

// NewApp applies defaults to cfg, validates it and prepares the logger.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	base := cfg.GetServiceConfig()

	o := &appOptions{
		gracefulTimeout: defaultGracefulTimeout,
		signals:         []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
	for _, opt := range opts {
		opt(o)
	}

	app := &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		Components:      component.NewRegistry(),
		Logger:          o.logger,
		gracefulTimeout: o.gracefulTimeout,
		signals:         o.signals,
	}
	if app.Logger == nil {
		logger.Init(base.Logging)
		app.Logger = logger.GetGlobalLogger()
	}
	return app, nil
}

// Register adds components in start order. They stop in reverse.
func (a *App[C]) Register(cs ...component.Component) error {
	for _, c := range cs {
		if err := a.Components.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// OnConfigure registers a callback run after components start. Handlers that
// need started infrastructure are wired here.
func (a *App[C]) OnConfigure(fn func(ctx context.Context, app *App[C]) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// ReadyCheck fails when any component is not healthy.
func (a *App[C]) ReadyCheck(ctx context.Context) error {
	var unhealthy []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status == component.StatusHealthy {
			continue
		}
		detail := h.Name + "=" + string(h.Status)
		if h.Message != "" {
			detail += "(" + h.Message + ")"
		}
		unhealthy = append(unhealthy, detail)
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// Run starts the application, blocks until a signal or ctx ends, then shuts
// down gracefully.
func (a *App[C]) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		a.abort()
		return err
	}
	a.Logger.Info("ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)
	return a.stop()
}

// RunTask runs a finite task with the same lifecycle. A signal cancels the
// task's context.
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		a.abort()
		return err
	}

	taskCtx, cancel := signal.NotifyContext(ctx, a.signals...)
	defer cancel()
	taskErr := task(taskCtx)

	if stopErr := a.stop(); stopErr != nil && taskErr == nil {
		return stopErr
	}
	return taskErr
}

func (a *App[C]) startup(ctx context.Context) error {
	start := time.Now()
	a.Logger.Info("starting", logger.Fields("name", a.Name, "version", a.Version))

	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("start components: %w", err)
	}
	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart: %w", err)
	}
	for _, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			return fmt.Errorf("configure: %w", err)
		}
	}
	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("ready check reported issues", logger.Fields(logger.FieldError, err.Error()))
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady: %w", err)
	}
	fields := logger.DurationFields("startup", time.Since(start))
	fields["components"] = len(a.Components.All())
	a.Logger.Info("started", fields)
	return nil
}

// WaitForSignal blocks until a shutdown signal arrives or ctx ends.
func (a *App[C]) WaitForSignal(ctx context.Context) os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, a.signals...)
	defer signal.Stop(ch)

	select {
	case sig := <-ch:
		a.Logger.Info("shutdown signal received", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		a.Logger.Info("context done, shutting down")
		return nil
	}
}

// Shutdown stops the application when the caller manages the lifecycle.
func (a *App[C]) Shutdown() error {
	return a.stop()
}

// abort stops whatever did start after a failed startup.
func (a *App[C]) abort() {
	if err := a.stop(); err != nil {
		a.Logger.Warn("cleanup after failed startup", logger.Fields(logger.FieldError, err.Error()))
	}
}

func (a *App[C]) stop() error {
	a.Logger.Info("shutting down", logger.Fields("timeout", a.gracefulTimeout.String()))
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var errs []error
	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("onStop hook failed", logger.Fields(logger.FieldError, err.Error()))
		errs = append(errs, err)
	}
	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("component shutdown failed", logger.Fields(logger.FieldError, err.Error()))
		errs = append(errs, err)
	}
	a.Logger.Info("shutdown complete")
	return errors.Join(errs...)
}
