// Package processor holds the gameplay statistics aggregators.
//
// Each processor subscribes to its event types when constructed and keeps
// private state that is only mutated from its Handle method. The Dispatcher
// serializes dispatch, so processors do no locking of their own; callers on
// other goroutines must read snapshots through Dispatcher.Exclusive.
package processor

import (
	"log/slog"
	"time"

	"github.com/gyaneshwarpardhi/gamestats/internal/bus"
)

// Subscriber is the part of the Dispatcher processors need.
type Subscriber interface {
	Subscribe(eventType string, h bus.Handler) *bus.Subscription
}

// Names under which processors appear in reports.
const (
	NameBattleCounter      = "battle_counter"
	NameStepCounter        = "step_counter"
	NameGameTime           = "game_time"
	NameHealthMonitor      = "health_monitor"
	NameInteractionTracker = "interaction_tracker"
)

func subscribeAll(sub Subscriber, h bus.Handler, types ...string) {
	for _, t := range types {
		sub.Subscribe(t, h)
	}
}

func componentLogger(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("processor", name)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
