package report

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/gamestats/internal/bus"
	"github.com/gyaneshwarpardhi/gamestats/internal/event"
	"github.com/gyaneshwarpardhi/gamestats/internal/metrics"
)

// NameReportGenerator is the section under which a Generator reports itself.
const NameReportGenerator = "report_generator"

// Report is the aggregation of every registered provider's snapshot.
type Report struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Statistics  map[string]any `json:"statistics"`
}

// Stats is the Generator's own snapshot.
type Stats struct {
	ReportsGenerated int `json:"reports_generated"`
}

// Subscriber is the part of the Dispatcher the Generator needs.
type Subscriber interface {
	Subscribe(eventType string, h bus.Handler) *bus.Subscription
}

// Generator builds reports on generate_report and game_ended, or on demand.
// It registers itself as a source, so each report carries the number of
// reports produced before it.
type Generator struct {
	logger  *slog.Logger
	now     func() time.Time
	sources *Registry

	mu     sync.Mutex
	count  int
	latest *Report
	sinks  []func(Report)
}

// NewGenerator subscribes to the report triggers. nil now means time.Now.
func NewGenerator(sub Subscriber, logger *slog.Logger, now func() time.Time) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	g := &Generator{
		logger:  logger.With("component", NameReportGenerator),
		now:     now,
		sources: NewRegistry(),
	}
	_ = g.sources.Register(NameReportGenerator, g)
	sub.Subscribe(event.GenerateReport, g)
	sub.Subscribe(event.GameEnded, g)
	return g
}

// Register adds a snapshot provider under name.
func (g *Generator) Register(name string, p Provider) error {
	return g.sources.Register(name, p)
}

// Sources returns the registered section names in order.
func (g *Generator) Sources() []string { return g.sources.Names() }

// OnReport registers fn to receive every report produced by an event trigger.
func (g *Generator) OnReport(fn func(Report)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sinks = append(g.sinks, fn)
}

func (g *Generator) Handle(_ context.Context, ev event.Event) {
	switch ev.Type() {
	case event.GameEnded:
		g.logger.Info("game ended, generating final report")
	case event.GenerateReport:
		g.logger.Info("report requested")
	default:
		return
	}
	r := g.Generate()

	g.mu.Lock()
	sinks := make([]func(Report), len(g.sinks))
	copy(sinks, g.sinks)
	g.mu.Unlock()
	for _, fn := range sinks {
		fn(r)
	}
}

// Generate reads every source and returns a new Report. Callers outside a
// dispatch should run it under Dispatcher.Exclusive.
func (g *Generator) Generate() Report {
	r := Report{
		GeneratedAt: g.now(),
		Statistics:  make(map[string]any),
	}
	for _, e := range g.sources.entries() {
		r.Statistics[e.name] = g.read(e.name, e.p)
	}

	g.mu.Lock()
	g.count++
	latest := r
	latest.Statistics = cloneStats(r.Statistics)
	g.latest = &latest
	n := g.count
	g.mu.Unlock()

	metrics.ReportsGenerated.Inc()
	g.logger.Info("report generated", "sections", len(r.Statistics), "reports_generated", n)
	return r
}

// read isolates a panicking source; its section carries the failure instead.
func (g *Generator) read(name string, p Provider) (v any) {
	defer func() {
		if rec := recover(); rec != nil {
			g.logger.Error("statistics source failed", "source", name, "panic", rec)
			v = map[string]string{"error": fmt.Sprint(rec)}
		}
	}()
	return p.Statistics()
}

// Latest returns the most recent report, if any.
func (g *Generator) Latest() (Report, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.latest == nil {
		return Report{}, false
	}
	r := *g.latest
	r.Statistics = cloneStats(g.latest.Statistics)
	return r, true
}

// Section reads a single source without producing a report. Callers outside
// a dispatch should run it under Dispatcher.Exclusive.
func (g *Generator) Section(name string) (any, bool) {
	p, ok := g.sources.Get(name)
	if !ok {
		return nil, false
	}
	return g.read(name, p), true
}

// Stats returns the Generator's own snapshot.
func (g *Generator) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{ReportsGenerated: g.count}
}

func (g *Generator) Statistics() any { return g.Stats() }

// Cloner is implemented by snapshots holding maps or pointers, so a retained
// report shares nothing with the copies handed to callers.
type Cloner interface {
	Clone() any
}

func cloneStats(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch c := v.(type) {
		case Cloner:
			v = c.Clone()
		case map[string]string:
			v = maps.Clone(c)
		}
		out[k] = v
	}
	return out
}
