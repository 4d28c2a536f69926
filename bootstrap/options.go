package bootstrap

import (
	"os"
	"time"

	"github.com/kbukum/chatstream/logger"
)

// Option configures the App during creation.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	gracefulTimeout time.Duration
	signals         []os.Signal
}

// WithLogger sets the application logger. Without it the global logger is
// initialized from the config's logging section.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) { o.logger = l }
}

// WithGracefulTimeout bounds OnStop hooks plus component shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) { o.gracefulTimeout = d }
}

// WithSignals replaces the shutdown signals (SIGINT, SIGTERM).
func WithSignals(sigs ...os.Signal) Option {
	return func(o *appOptions) { o.signals = sigs }
}
