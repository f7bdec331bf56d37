package processor

import (
	"context"
	"log/slog"
	"maps"

	"github.com/gyaneshwarpardhi/gamestats/internal/event"
)

// Directions tallied by StepCounter.
const (
	DirUp    = "up"
	DirDown  = "down"
	DirLeft  = "left"
	DirRight = "right"
)

// DefaultStepLogEvery is how often StepCounter logs a progress line.
const DefaultStepLogEvery = 100

// StepStats is a snapshot of StepCounter.
type StepStats struct {
	TotalSteps       int            `json:"total_steps"`
	StepsByDirection map[string]int `json:"steps_by_direction"`
}

// Clone returns a copy that shares no map with s.
func (s StepStats) Clone() any {
	s.StepsByDirection = maps.Clone(s.StepsByDirection)
	return s
}

// StepCounter counts player_moved events, tallying the four known directions.
type StepCounter struct {
	logger   *slog.Logger
	logEvery int

	steps                 int
	up, down, left, right int
}

// NewStepCounter subscribes to player_moved. logEvery <= 0 uses DefaultStepLogEvery.
func NewStepCounter(sub Subscriber, logger *slog.Logger, logEvery int) *StepCounter {
	if logEvery <= 0 {
		logEvery = DefaultStepLogEvery
	}
	s := &StepCounter{logger: componentLogger(logger, NameStepCounter), logEvery: logEvery}
	subscribeAll(sub, s, event.PlayerMoved)
	return s
}

func (s *StepCounter) Handle(_ context.Context, ev event.Event) {
	if ev.Type() != event.PlayerMoved {
		return
	}
	s.steps++
	switch ev.String("direction", "unknown") {
	case DirUp:
		s.up++
	case DirDown:
		s.down++
	case DirLeft:
		s.left++
	case DirRight:
		s.right++
	}
	if s.steps%s.logEvery == 0 {
		s.logger.Info("step milestone", "steps", s.steps)
	}
}

// Stats returns the current snapshot. The direction map is freshly allocated.
func (s *StepCounter) Stats() StepStats {
	return StepStats{
		TotalSteps: s.steps,
		StepsByDirection: map[string]int{
			DirUp:    s.up,
			DirDown:  s.down,
			DirLeft:  s.left,
			DirRight: s.right,
		},
	}
}

func (s *StepCounter) Statistics() any { return s.Stats() }

// Reset clears all counters.
func (s *StepCounter) Reset() {
	s.steps, s.up, s.down, s.left, s.right = 0, 0, 0, 0, 0
}
