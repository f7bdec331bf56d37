package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/gyaneshwarpardhi/gamestats/internal/event"
)

// BattleStats is a snapshot of BattleCounter.
type BattleStats struct {
	TotalBattles   int        `json:"total_battles"`
	BattlesWon     int        `json:"battles_won"`
	BattlesLost    int        `json:"battles_lost"`
	WinRate        float64    `json:"win_rate"`
	LastBattleTime *time.Time `json:"last_battle_time"`
	LastFrame      int        `json:"last_frame"`
}

// Clone returns a copy that shares no pointer with s.
func (s BattleStats) Clone() any {
	s.LastBattleTime = cloneTime(s.LastBattleTime)
	return s
}

// BattleCounter counts battles and their outcomes. Results other than "won"
// and "lost" count as a battle but as neither a win nor a loss.
type BattleCounter struct {
	logger *slog.Logger

	count      int
	won        int
	lost       int
	lastBattle time.Time
	lastFrame  int
}

func NewBattleCounter(sub Subscriber, logger *slog.Logger) *BattleCounter {
	b := &BattleCounter{logger: componentLogger(logger, NameBattleCounter)}
	subscribeAll(sub, b, event.BattleStarted, event.BattleEnded)
	return b
}

func (b *BattleCounter) Handle(_ context.Context, ev event.Event) {
	switch ev.Type() {
	case event.BattleStarted:
		b.count++
		b.lastBattle = ev.Timestamp()
		b.lastFrame = ev.Int("frame", b.lastFrame)
		b.logger.Info("battle started", "battle", b.count, "at", ev.Timestamp())
	case event.BattleEnded:
		result := ev.String("result", event.ResultUnknown)
		switch result {
		case event.ResultWon:
			b.won++
		case event.ResultLost:
			b.lost++
		}
		b.lastFrame = ev.Int("frame", b.lastFrame)
		b.logger.Info("battle ended", "result", result)
	}
}

// Stats returns the current snapshot.
func (b *BattleCounter) Stats() BattleStats {
	s := BattleStats{
		TotalBattles: b.count,
		BattlesWon:   b.won,
		BattlesLost:  b.lost,
		LastFrame:    b.lastFrame,
	}
	if b.count > 0 {
		s.WinRate = float64(b.won) / float64(b.count)
		t := b.lastBattle
		s.LastBattleTime = &t
	}
	return s
}

func (b *BattleCounter) Statistics() any { return b.Stats() }

// Reset clears all counters.
func (b *BattleCounter) Reset() {
	*b = BattleCounter{logger: b.logger}
}
