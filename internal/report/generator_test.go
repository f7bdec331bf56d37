package report_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/gamestats/internal/bus"
	"github.com/gyaneshwarpardhi/gamestats/internal/event"
	"github.com/gyaneshwarpardhi/gamestats/internal/processor"
	"github.com/gyaneshwarpardhi/gamestats/internal/report"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type staticProvider struct{ v any }

func (s staticProvider) Statistics() any { return s.v }

type panicProvider struct{}

func (panicProvider) Statistics() any { panic("stats unavailable") }

func TestGenerate_CollectsEverySource(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return t0 }
	d := bus.New(quiet, bus.WithClock(clock))
	gen := report.NewGenerator(d, quiet, clock)

	steps := processor.NewStepCounter(d, quiet, 0)
	require.NoError(t, gen.Register(processor.NameStepCounter, steps))
	require.NoError(t, gen.Register("static", staticProvider{v: 42}))

	require.NoError(t, d.Publish(context.Background(), event.PlayerMoved, map[string]interface{}{"direction": "left"}))

	r := gen.Generate()
	assert.True(t, r.GeneratedAt.Equal(t0))
	assert.Len(t, r.Statistics, 3)
	assert.Equal(t, 42, r.Statistics["static"])
	assert.Equal(t, 1, r.Statistics[processor.NameStepCounter].(processor.StepStats).TotalSteps)
	assert.Equal(t, report.Stats{ReportsGenerated: 0}, r.Statistics[report.NameReportGenerator])

	assert.Equal(t, []string{report.NameReportGenerator, processor.NameStepCounter, "static"}, gen.Sources())
}

func TestGenerate_IsReflexive(t *testing.T) {
	d := bus.New(quiet)
	gen := report.NewGenerator(d, quiet, nil)

	gen.Generate()
	gen.Generate()
	r := gen.Generate()
	assert.Equal(t, report.Stats{ReportsGenerated: 2}, r.Statistics[report.NameReportGenerator])
	assert.Equal(t, 3, gen.Stats().ReportsGenerated)
}

func TestRegister_Duplicate(t *testing.T) {
	gen := report.NewGenerator(bus.New(quiet), quiet, nil)
	require.NoError(t, gen.Register("a", staticProvider{}))
	assert.ErrorIs(t, gen.Register("a", staticProvider{}), report.ErrDuplicateSource)
	assert.ErrorIs(t, gen.Register(report.NameReportGenerator, staticProvider{}), report.ErrDuplicateSource)
	assert.Error(t, gen.Register("", staticProvider{}))
	assert.Error(t, gen.Register("nil", nil))
}

func TestTriggers(t *testing.T) {
	d := bus.New(quiet)
	gen := report.NewGenerator(d, quiet, nil)
	var got []report.Report
	gen.OnReport(func(r report.Report) { got = append(got, r) })

	_, ok := gen.Latest()
	assert.False(t, ok)

	require.NoError(t, d.Publish(context.Background(), event.GenerateReport, nil))
	require.NoError(t, d.Publish(context.Background(), event.GameEnded, map[string]interface{}{"total_frames": 60}))
	require.NoError(t, d.Publish(context.Background(), event.PlayerMoved, nil))

	require.Len(t, got, 2)
	assert.Equal(t, 2, gen.Stats().ReportsGenerated)

	latest, ok := gen.Latest()
	require.True(t, ok)
	assert.Equal(t, report.Stats{ReportsGenerated: 1}, latest.Statistics[report.NameReportGenerator])

	// Latest hands out copies.
	latest.Statistics["x"] = 1
	again, _ := gen.Latest()
	assert.NotContains(t, again.Statistics, "x")
}

func TestTrigger_FailingSourceIsIsolated(t *testing.T) {
	d := bus.New(quiet)
	gen := report.NewGenerator(d, quiet, nil)
	require.NoError(t, gen.Register("broken", panicProvider{}))

	after := 0
	d.Subscribe(event.GameEnded, bus.HandlerFunc(func(context.Context, event.Event) { after++ }))

	require.NotPanics(t, func() {
		require.NoError(t, d.Publish(context.Background(), event.GameEnded, nil))
	})
	assert.Equal(t, 1, after)
	assert.Len(t, d.History(), 1)

	latest, ok := gen.Latest()
	require.True(t, ok)
	assert.Equal(t, map[string]string{"error": "stats unavailable"}, latest.Statistics["broken"])
	assert.Contains(t, latest.Statistics, report.NameReportGenerator)
}

func TestLatest_SharesNoMapsWithCallers(t *testing.T) {
	d := bus.New(quiet)
	gen := report.NewGenerator(d, quiet, nil)
	steps := processor.NewStepCounter(d, quiet, 0)
	battles := processor.NewBattleCounter(d, quiet)
	require.NoError(t, gen.Register(processor.NameStepCounter, steps))
	require.NoError(t, gen.Register(processor.NameBattleCounter, battles))

	require.NoError(t, d.Publish(context.Background(), event.PlayerMoved, map[string]interface{}{"direction": "up"}))
	require.NoError(t, d.Publish(context.Background(), event.BattleStarted, nil))
	require.NoError(t, d.Publish(context.Background(), event.BattleEnded, map[string]interface{}{"result": "won"}))

	returned := gen.Generate()
	returned.Statistics[processor.NameStepCounter].(processor.StepStats).StepsByDirection["up"] = 99
	*returned.Statistics[processor.NameBattleCounter].(processor.BattleStats).LastBattleTime = time.Time{}

	latest, ok := gen.Latest()
	require.True(t, ok)
	stepStats := latest.Statistics[processor.NameStepCounter].(processor.StepStats)
	assert.Equal(t, 1, stepStats.StepsByDirection["up"])
	battleStats := latest.Statistics[processor.NameBattleCounter].(processor.BattleStats)
	require.NotNil(t, battleStats.LastBattleTime)
	assert.False(t, battleStats.LastBattleTime.IsZero())

	stepStats.StepsByDirection["up"] = 42
	again, _ := gen.Latest()
	assert.Equal(t, 1, again.Statistics[processor.NameStepCounter].(processor.StepStats).StepsByDirection["up"])
}

func TestSection(t *testing.T) {
	d := bus.New(quiet)
	gen := report.NewGenerator(d, quiet, nil)
	require.NoError(t, gen.Register("static", staticProvider{v: 7}))
	require.NoError(t, gen.Register("broken", panicProvider{}))

	v, ok := gen.Section("static")
	require.True(t, ok)
	assert.Equal(t, 7, v)

	v, ok = gen.Section("broken")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"error": "stats unavailable"}, v)

	_, ok = gen.Section("missing")
	assert.False(t, ok)

	// Reading one section does not count as a report.
	assert.Equal(t, 0, gen.Stats().ReportsGenerated)
}
