package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/gamestats/internal/config"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	level      *slog.LevelVar
	logger     *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{level: new(slog.LevelVar)}
	root := &cobra.Command{
		Use:           "gamestats",
		Short:         "Aggregate gameplay statistics from a stream of session events",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := config.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			opts.level.Set(lvl)
			opts.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: opts.level}))
			slog.SetDefault(opts.logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config (defaults are used when empty)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug|info|warn|error")

	root.AddCommand(newServeCmd(opts), newDemoCmd(opts))
	return root
}

// loadConfig returns the file-backed loader (nil without --config) and the
// effective configuration. A log.level from the file overrides --log-level.
func (o *rootOptions) loadConfig() (*config.Loader, *config.Config, error) {
	if o.configPath == "" {
		return nil, config.Default(), nil
	}
	loader, err := config.NewLoader(o.configPath, o.logger)
	if err != nil {
		return nil, nil, err
	}
	cfg := loader.Config()
	o.applyLevel(cfg)
	return loader, cfg, nil
}

func (o *rootOptions) applyLevel(cfg *config.Config) {
	lvl, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		o.logger.Warn("ignoring log level from config", "err", err)
		return
	}
	o.level.Set(lvl)
}
