// Package session wires a Dispatcher, the statistics processors and the
// report generator into one unit.
package session

import (
	"context"
	"log/slog"

	"github.com/gyaneshwarpardhi/gamestats/internal/bus"
	"github.com/gyaneshwarpardhi/gamestats/internal/config"
	"github.com/gyaneshwarpardhi/gamestats/internal/event"
	"github.com/gyaneshwarpardhi/gamestats/internal/processor"
	"github.com/gyaneshwarpardhi/gamestats/internal/report"
)

// Session owns the dispatcher and everything subscribed to it.
type Session struct {
	Bus         *bus.Dispatcher
	Battles     *processor.BattleCounter
	Steps       *processor.StepCounter
	Time        *processor.GameTimeTracker
	Health      *processor.HealthMonitor
	Interaction *processor.InteractionTracker
	Reports     *report.Generator
}

// New builds a session from cfg. Extra bus options (such as a test clock)
// are applied after the configured ones.
func New(cfg *config.Config, logger *slog.Logger, opts ...bus.Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]bus.Option{bus.WithMaxDepth(cfg.Bus.MaxDepth)}, opts...)
	d := bus.New(logger, opts...)

	s := &Session{
		Bus:         d,
		Battles:     processor.NewBattleCounter(d, logger),
		Steps:       processor.NewStepCounter(d, logger, cfg.Steps.LogEvery),
		Time:        processor.NewGameTimeTracker(d, logger, d.Now),
		Health:      processor.NewHealthMonitor(d, logger, cfg.Health.MaxHealth),
		Interaction: processor.NewInteractionTracker(d, logger),
		Reports:     report.NewGenerator(d, logger, d.Now),
	}
	for _, src := range []struct {
		name string
		p    report.Provider
	}{
		{processor.NameBattleCounter, s.Battles},
		{processor.NameStepCounter, s.Steps},
		{processor.NameGameTime, s.Time},
		{processor.NameHealthMonitor, s.Health},
		{processor.NameInteractionTracker, s.Interaction},
	} {
		// Names are fixed and distinct; Register cannot fail here.
		_ = s.Reports.Register(src.name, src.p)
	}
	if !cfg.Report.GenerateOnGameEnded() {
		d.Unsubscribe(event.GameEnded, s.Reports)
	}
	logger.Info("session initialized", "sources", len(s.Reports.Sources()), "subscribers", d.SubscriberCount(""))
	return s
}

// Report generates a report serialized with in-flight dispatch.
func (s *Session) Report(ctx context.Context) report.Report {
	var r report.Report
	s.Bus.Exclusive(ctx, func() { r = s.Reports.Generate() })
	return r
}

// Section returns one source's current snapshot, serialized with in-flight
// dispatch. ok is false for an unknown name.
func (s *Session) Section(ctx context.Context, name string) (v any, ok bool) {
	s.Bus.Exclusive(ctx, func() { v, ok = s.Reports.Section(name) })
	return v, ok
}

// Reset clears every processor's state without touching subscriptions.
func (s *Session) Reset(ctx context.Context) {
	s.Bus.Exclusive(ctx, func() {
		s.Battles.Reset()
		s.Steps.Reset()
		s.Time.Reset()
		s.Health.Reset()
		s.Interaction.Reset()
	})
}
