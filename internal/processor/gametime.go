package processor

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gyaneshwarpardhi/gamestats/internal/event"
)

// Phase is the session state tracked by GameTimeTracker.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseRunning    Phase = "running"
	PhasePaused     Phase = "paused"
	PhaseEnded      Phase = "ended"
)

// TimeStats is a snapshot of GameTimeTracker. When Status is
// PhaseNotStarted every other field is zero.
type TimeStats struct {
	Status             Phase
	StartTime          *time.Time
	EndTime            *time.Time
	TotalDuration      time.Duration
	ActiveDuration     time.Duration
	PauseCount         int
	TotalPauseDuration time.Duration
}

// Clone returns a copy that shares no pointer with s.
func (s TimeStats) Clone() any {
	s.StartTime = cloneTime(s.StartTime)
	s.EndTime = cloneTime(s.EndTime)
	return s
}

// MarshalJSON reports durations in seconds.
func (s TimeStats) MarshalJSON() ([]byte, error) {
	if s.Status == PhaseNotStarted {
		return json.Marshal(map[string]string{"status": string(s.Status)})
	}
	return json.Marshal(struct {
		Status             Phase      `json:"status"`
		StartTime          *time.Time `json:"start_time"`
		EndTime            *time.Time `json:"end_time"`
		TotalDuration      float64    `json:"total_duration_seconds"`
		ActiveDuration     float64    `json:"active_duration_seconds"`
		PauseCount         int        `json:"pause_count"`
		TotalPauseDuration float64    `json:"total_pause_duration_seconds"`
	}{
		Status:             s.Status,
		StartTime:          s.StartTime,
		EndTime:            s.EndTime,
		TotalDuration:      s.TotalDuration.Seconds(),
		ActiveDuration:     s.ActiveDuration.Seconds(),
		PauseCount:         s.PauseCount,
		TotalPauseDuration: s.TotalPauseDuration.Seconds(),
	})
}

// GameTimeTracker measures session length and time spent paused.
//
//	not_started --game_started--> running
//	running     --game_paused-->  paused
//	paused      --game_resumed--> running
//	any         --game_ended-->   ended
//
// A game_started while running or paused only moves the start time. A
// game_started after game_ended begins a fresh session. Pauses outside the
// running phase and resumes without an open pause are ignored.
type GameTimeTracker struct {
	logger *slog.Logger
	now    func() time.Time

	phase      Phase
	start      time.Time
	end        time.Time
	pauses     int
	paused     time.Duration
	pauseStart time.Time
}

// NewGameTimeTracker subscribes to the lifecycle events. now supplies the
// current time for sessions that have not ended; nil means time.Now.
func NewGameTimeTracker(sub Subscriber, logger *slog.Logger, now func() time.Time) *GameTimeTracker {
	if now == nil {
		now = time.Now
	}
	g := &GameTimeTracker{
		logger: componentLogger(logger, NameGameTime),
		now:    now,
		phase:  PhaseNotStarted,
	}
	subscribeAll(sub, g, event.GameStarted, event.GameEnded, event.GamePaused, event.GameResumed)
	return g
}

func (g *GameTimeTracker) Handle(_ context.Context, ev event.Event) {
	ts := ev.Timestamp()
	switch ev.Type() {
	case event.GameStarted:
		if g.phase == PhaseEnded {
			g.Reset()
		}
		if g.phase != PhaseNotStarted {
			g.logger.Warn("game_started while session active; moving start time", "phase", g.phase)
		} else {
			g.phase = PhaseRunning
		}
		g.start = ts
		g.logger.Info("game started", "at", ts, "rom", ev.String("rom", "unknown"))
	case event.GamePaused:
		if g.phase != PhaseRunning {
			g.logger.Debug("ignoring game_paused", "phase", g.phase)
			return
		}
		g.phase = PhasePaused
		g.pauses++
		g.pauseStart = ts
		g.logger.Info("game paused", "pauses", g.pauses)
	case event.GameResumed:
		if g.pauseStart.IsZero() {
			g.logger.Debug("ignoring game_resumed without open pause", "phase", g.phase)
			return
		}
		d := ts.Sub(g.pauseStart)
		g.paused += d
		g.pauseStart = time.Time{}
		if g.phase == PhasePaused {
			g.phase = PhaseRunning
		}
		g.logger.Info("game resumed", "pause", d)
	case event.GameEnded:
		// An open pause stays open; only game_resumed adds pause time.
		g.phase = PhaseEnded
		g.end = ts
		g.logger.Info("game ended", "at", ts)
	}
}

// Phase returns the current session phase.
func (g *GameTimeTracker) Phase() Phase { return g.phase }

// Stats returns the current snapshot. For a session still in progress the
// durations are measured up to now. Pause time counts once the pause is
// resumed.
func (g *GameTimeTracker) Stats() TimeStats {
	if g.start.IsZero() {
		return TimeStats{Status: PhaseNotStarted}
	}
	start := g.start
	s := TimeStats{
		Status:     g.phase,
		StartTime:  &start,
		PauseCount: g.pauses,
	}
	until := g.now()
	if !g.end.IsZero() {
		end := g.end
		s.EndTime = &end
		until = end
	}
	s.TotalPauseDuration = g.paused
	s.TotalDuration = until.Sub(start)
	s.ActiveDuration = s.TotalDuration - s.TotalPauseDuration
	return s
}

func (g *GameTimeTracker) Statistics() any { return g.Stats() }

// Reset returns the tracker to not_started.
func (g *GameTimeTracker) Reset() {
	g.phase = PhaseNotStarted
	g.start, g.end, g.pauseStart = time.Time{}, time.Time{}, time.Time{}
	g.pauses, g.paused = 0, 0
}
