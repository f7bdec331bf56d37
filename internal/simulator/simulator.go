// Package simulator produces a scripted, randomized gameplay session for
// demos and end-to-end tests when no emulator is attached.
package simulator

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/gyaneshwarpardhi/gamestats/internal/event"
)

// Publisher is the part of the Dispatcher the simulator drives.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]interface{}) error
}

// Options tunes a simulated session. Zero values pick the defaults noted.
type Options struct {
	ROM         string        // "demo.gb"
	Ticks       int           // 300
	Tick        time.Duration // 0: no sleeping between ticks
	Seed        uint64        // 0: time-based
	BattleEvery int           // 30 steps
	MaxHealth   int           // 100
}

// Summary describes what a run produced.
type Summary struct {
	Steps     int
	Battles   int
	Knockouts int
	Frames    int
}

var (
	directions = []string{"up", "down", "left", "right"}
	items      = []string{"Potion", "Pokeball", "Antidote", "Poké Flute"}
	results    = []string{event.ResultWon, event.ResultWon, event.ResultLost}
)

// Simulator publishes a session's worth of events.
type Simulator struct {
	pub    Publisher
	opts   Options
	rng    *rand.Rand
	logger *slog.Logger

	health  int
	summary Summary
}

func New(pub Publisher, opts Options, logger *slog.Logger) *Simulator {
	if opts.ROM == "" {
		opts.ROM = "demo.gb"
	}
	if opts.Ticks <= 0 {
		opts.Ticks = 300
	}
	if opts.BattleEvery <= 0 {
		opts.BattleEvery = 30
	}
	if opts.MaxHealth <= 0 {
		opts.MaxHealth = 100
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		pub:    pub,
		opts:   opts,
		rng:    rand.New(rand.NewPCG(seed, seed>>1|1)),
		logger: logger.With("component", "simulator"),
		health: opts.MaxHealth,
	}
}

// Run plays one session: game_started, opts.Ticks ticks of movement, battles
// and interactions, then game_ended. A cancelled ctx ends the session early;
// game_ended is still published.
func (s *Simulator) Run(ctx context.Context) Summary {
	begin := time.Now()
	s.publish(ctx, event.GameStarted, map[string]interface{}{"rom": s.opts.ROM})

	var ticker *time.Ticker
	if s.opts.Tick > 0 {
		ticker = time.NewTicker(s.opts.Tick)
		defer ticker.Stop()
	}

loop:
	for i := 0; i < s.opts.Ticks; i++ {
		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				break loop
			}
		} else if ctx.Err() != nil {
			break loop
		}
		s.summary.Frames += 6
		s.tick(ctx)
	}

	if s.opts.Tick > 0 {
		s.summary.Frames = int(time.Since(begin).Seconds() * 60)
	}
	s.publish(context.WithoutCancel(ctx), event.GameEnded, map[string]interface{}{
		"total_frames": s.summary.Frames,
		"total_steps":  s.summary.Steps,
	})
	s.logger.Info("simulated session finished",
		"steps", s.summary.Steps, "battles", s.summary.Battles, "knockouts", s.summary.Knockouts)
	return s.summary
}

func (s *Simulator) tick(ctx context.Context) {
	if s.rng.Float64() < 0.7 {
		s.summary.Steps++
		n := s.summary.Steps
		s.publish(ctx, event.PlayerMoved, map[string]interface{}{
			"direction":   directions[s.rng.IntN(len(directions))],
			"position":    []int{n, n, 1},
			"step_number": n,
		})
		if n%s.opts.BattleEvery == 0 {
			s.battle(ctx)
		}
	}
	if s.rng.Float64() < 0.1 {
		s.interact(ctx)
	}
}

func (s *Simulator) battle(ctx context.Context) {
	s.summary.Battles++
	s.publish(ctx, event.BattleStarted, map[string]interface{}{"frame": s.summary.Frames})

	for hits := 2 + s.rng.IntN(3); hits > 0; hits-- {
		dmg := 10 + s.rng.IntN(21)
		prev := s.health
		s.health = max(0, s.health-dmg)
		s.publish(ctx, event.PlayerDamaged, map[string]interface{}{
			"damage":          dmg,
			"current_health":  s.health,
			"previous_health": prev,
		})
		if s.health == 0 {
			s.summary.Knockouts++
			s.publish(ctx, event.PlayerFainted, map[string]interface{}{"frame": s.summary.Frames})
			s.publish(ctx, event.BattleEnded, map[string]interface{}{"frame": s.summary.Frames, "result": event.ResultLost})
			s.health = s.opts.MaxHealth
			return
		}
	}

	result := results[s.rng.IntN(len(results))]
	s.publish(ctx, event.BattleEnded, map[string]interface{}{"frame": s.summary.Frames, "result": result})
	if result == event.ResultWon {
		prev := s.health
		s.health = min(s.opts.MaxHealth, s.health+20)
		s.publish(ctx, event.PlayerHealed, map[string]interface{}{
			"healing":         20,
			"current_health":  s.health,
			"previous_health": prev,
		})
	}
}

func (s *Simulator) interact(ctx context.Context) {
	switch s.rng.IntN(4) {
	case 0:
		s.publish(ctx, event.NPCInteraction, map[string]interface{}{"npc_id": 1 + s.rng.IntN(10)})
	case 1:
		s.publish(ctx, event.ItemCollected, map[string]interface{}{"item": items[s.rng.IntN(len(items))]})
	case 2:
		s.publish(ctx, event.DoorOpened, nil)
	default:
		s.publish(ctx, event.MenuOpened, nil)
	}
}

func (s *Simulator) publish(ctx context.Context, typ string, payload map[string]interface{}) {
	if err := s.pub.Publish(ctx, typ, payload); err != nil {
		s.logger.Warn("publish failed", "event_type", typ, "err", err)
	}
}
