package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/gamestats/internal/api"
	"github.com/gyaneshwarpardhi/gamestats/internal/bus"
	"github.com/gyaneshwarpardhi/gamestats/internal/config"
	"github.com/gyaneshwarpardhi/gamestats/internal/report"
	"github.com/gyaneshwarpardhi/gamestats/internal/session"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP event ingestion and reporting server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides server.addr)")
	return cmd
}

func runServe(opts *rootOptions, addrFlag string) error {
	logger := opts.logger

	// ── Load config ──────────────────────────────────────────────────────────
	loader, cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if addrFlag != "" {
		addr = addrFlag
	}

	// ── Session + async queue ─────────────────────────────────────────────────
	sess := session.New(cfg, logger)
	sess.Reports.OnReport(func(r report.Report) {
		logger.Info("report ready", "generated_at", r.GeneratedAt, "sections", len(r.Statistics))
	})
	queue := bus.NewQueue(sess.Bus, cfg.Bus.QueueDepth, bus.FullPolicy(cfg.Bus.FullPolicy), logger)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	if loader != nil {
		loader.OnChange(func(newCfg *config.Config) {
			opts.applyLevel(newCfg)
			slog.Info("config hot-reloaded", "log_level", newCfg.Log.Level)
		})
		stopWatch, err := loader.Watch()
		if err != nil {
			slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
		} else {
			defer stopWatch()
		}
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.New(sess, queue, loader, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errC:
		queue.Close()
		return err
	}
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	queue.Close() // dispatch everything already enqueued
	slog.Info("goodbye", "events_recorded", len(sess.Bus.History()))
	return nil
}
