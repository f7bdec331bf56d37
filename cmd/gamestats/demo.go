package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/gamestats/internal/report"
	"github.com/gyaneshwarpardhi/gamestats/internal/session"
	"github.com/gyaneshwarpardhi/gamestats/internal/simulator"
)

type demoOptions struct {
	rom      string
	duration time.Duration
	tick     time.Duration
	seed     uint64
}

func newDemoCmd(opts *rootOptions) *cobra.Command {
	d := &demoOptions{}
	cmd := &cobra.Command{
		Use:     "demo [rom]",
		Short:   "Simulate a gameplay session and print the final report as JSON",
		Example: "  gamestats demo red.gb --duration 10s --seed 7",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				d.rom = args[0]
			}
			return runDemo(cmd.Context(), opts, d, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&d.rom, "rom", "", "ROM name reported in game_started (the positional argument wins)")
	cmd.Flags().DurationVar(&d.duration, "duration", 30*time.Second, "Simulated session length")
	cmd.Flags().DurationVar(&d.tick, "tick", 100*time.Millisecond, "Delay between simulated actions (0 runs as fast as possible)")
	cmd.Flags().Uint64Var(&d.seed, "seed", 0, "Random seed (0 picks one from the clock)")
	return cmd
}

func runDemo(ctx context.Context, opts *rootOptions, d *demoOptions, out io.Writer) error {
	_, cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(cfg, opts.logger)
	var final *report.Report
	sess.Reports.OnReport(func(r report.Report) { final = &r })

	ticks := 300
	if d.tick > 0 {
		ticks = max(1, int(d.duration/d.tick))
	}
	sim := simulator.New(sess.Bus, simulator.Options{
		ROM:       d.rom,
		Ticks:     ticks,
		Tick:      d.tick,
		Seed:      d.seed,
		MaxHealth: cfg.Health.MaxHealth,
	}, opts.logger)
	sim.Run(ctx)

	if final == nil {
		// game_ended reporting is disabled in config.
		r := sess.Report(context.Background())
		final = &r
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(final); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
