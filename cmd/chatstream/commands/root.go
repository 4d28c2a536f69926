// Package commands implements the chatstream CLI.
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/chatstream/client"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/reconstruct"
	"github.com/kbukum/chatstream/version"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	server   string
	interval time.Duration
	verbose  bool
}

// Execute runs the CLI. Ctrl-C cancels the running command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "chatstream",
		Short:         "Stream chat completions from a chatstreamd server",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			level := "warn"
			if g.verbose {
				level = "debug"
			}
			logger.Init(logger.Config{Service: "chatstream", Level: level, Output: "stderr"})
		},
	}

	server := os.Getenv("CHATSTREAM_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&g.server, "server", "s", server, "chatstreamd base URL")
	pf.DurationVar(&g.interval, "interval", reconstruct.DefaultInterval, "delay between revealed characters")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newAskCommand(g),
		newModelsCommand(g),
		newCancelCommand(g),
		newVersionCommand(),
	)
	return root
}

func (g *globals) client(opts ...func(*client.Config)) (*client.Client, error) {
	cfg := client.Config{BaseURL: g.server, Interval: g.interval}
	for _, opt := range opts {
		opt(&cfg)
	}
	return client.New(cfg)
}
