package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks the config for:
//   - a version string
//   - positive dispatcher depth, queue depth, max health and step log interval
//   - a known log level and queue full policy
//
// All problems are reported together.
func Validate(cfg *Config) error {
	var errs []string
	if cfg.Version == "" {
		errs = append(errs, "version is required")
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err.Error())
	}
	if cfg.Bus.MaxDepth < 1 {
		errs = append(errs, fmt.Sprintf("bus.max_depth must be >= 1, got %d", cfg.Bus.MaxDepth))
	}
	if cfg.Bus.QueueDepth < 1 {
		errs = append(errs, fmt.Sprintf("bus.queue_depth must be >= 1, got %d", cfg.Bus.QueueDepth))
	}
	switch cfg.Bus.FullPolicy {
	case "reject", "block":
	default:
		errs = append(errs, fmt.Sprintf("bus.full_policy must be 'reject' or 'block', got %q", cfg.Bus.FullPolicy))
	}
	if cfg.Health.MaxHealth < 1 {
		errs = append(errs, fmt.Sprintf("health.max_health must be >= 1, got %d", cfg.Health.MaxHealth))
	}
	if cfg.Steps.LogEvery < 1 {
		errs = append(errs, fmt.Sprintf("steps.log_every must be >= 1, got %d", cfg.Steps.LogEvery))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ParseLevel maps a config log level to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level must be one of debug|info|warn|error, got %q", s)
}
