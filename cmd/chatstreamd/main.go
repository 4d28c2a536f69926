// Command chatstreamd serves streamed chat completions over HTTP.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/chatstream/config"
	"github.com/kbukum/chatstream/version"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile, envFile string

	cmd := &cobra.Command{
		Use:          serviceName,
		Short:        "Stream LLM completions to chat clients",
		Version:      version.Get().String(),
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile, envFile)
			if err != nil {
				return err
			}
			app, _, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (default: searched under ./cmd/chatstreamd, ./config, .)")
	cmd.Flags().StringVar(&envFile, "env-file", "", ".env file to load")
	return cmd
}

func loadConfig(configFile, envFile string) (*Config, error) {
	var opts []config.LoaderOption
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if envFile != "" {
		opts = append(opts, config.WithEnvFile(envFile))
	}
	cfg := &Config{}
	if err := config.LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}
