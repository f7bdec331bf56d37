package processor

import (
	"context"
	"log/slog"
	"math"

	"github.com/gyaneshwarpardhi/gamestats/internal/event"
)

// DefaultMaxHealth is the starting and maximum health when none is configured.
const DefaultMaxHealth = 100

// HealthStats is a snapshot of HealthMonitor.
type HealthStats struct {
	CurrentHealth   int `json:"current_health"`
	MaxHealth       int `json:"max_health"`
	DamageTaken     int `json:"total_damage_taken"`
	HealingReceived int `json:"total_healing_received"`
	Knockouts       int `json:"knockouts"`
	NetDamage       int `json:"net_damage"`
}

// HealthMonitor tracks player health. Current health is clamped to
// [0, max]; damage and healing totals accumulate the raw amounts.
// Negative amounts are ignored.
type HealthMonitor struct {
	logger *slog.Logger

	current   int
	max       int
	damage    int
	healing   int
	knockouts int
}

// NewHealthMonitor starts at full health. maxHealth <= 0 uses DefaultMaxHealth.
func NewHealthMonitor(sub Subscriber, logger *slog.Logger, maxHealth int) *HealthMonitor {
	if maxHealth <= 0 {
		maxHealth = DefaultMaxHealth
	}
	h := &HealthMonitor{
		logger:  componentLogger(logger, NameHealthMonitor),
		current: maxHealth,
		max:     maxHealth,
	}
	subscribeAll(sub, h, event.PlayerDamaged, event.PlayerHealed, event.PlayerFainted)
	return h
}

func (h *HealthMonitor) Handle(_ context.Context, ev event.Event) {
	switch ev.Type() {
	case event.PlayerDamaged:
		dmg := h.amount(ev, "damage")
		h.damage = addSat(h.damage, dmg)
		h.current = clamp(h.current-dmg, 0, h.max)
		h.logger.Debug("player damaged", "damage", dmg, "current_health", h.current)
	case event.PlayerHealed:
		heal := h.amount(ev, "healing")
		h.healing = addSat(h.healing, heal)
		h.current = clamp(h.current+min(heal, h.max), 0, h.max)
		h.logger.Debug("player healed", "healing", heal, "current_health", h.current)
	case event.PlayerFainted:
		// Authoritative regardless of the tracked health.
		h.knockouts++
		h.current = 0
		h.logger.Info("player fainted", "knockouts", h.knockouts)
	}
}

func (h *HealthMonitor) amount(ev event.Event, key string) int {
	n := ev.Int(key, 0)
	if n < 0 {
		h.logger.Warn("ignoring negative amount", "event_type", ev.Type(), key, n)
		return 0
	}
	return n
}

func clamp(v, lo, hi int) int { return min(hi, max(lo, v)) }

// addSat adds two non-negative ints, saturating at math.MaxInt.
func addSat(a, b int) int {
	if b > math.MaxInt-a {
		return math.MaxInt
	}
	return a + b
}

// Stats returns the current snapshot.
func (h *HealthMonitor) Stats() HealthStats {
	return HealthStats{
		CurrentHealth:   h.current,
		MaxHealth:       h.max,
		DamageTaken:     h.damage,
		HealingReceived: h.healing,
		Knockouts:       h.knockouts,
		NetDamage:       h.damage - h.healing,
	}
}

func (h *HealthMonitor) Statistics() any { return h.Stats() }

// Reset restores full health and clears the totals.
func (h *HealthMonitor) Reset() {
	h.current = h.max
	h.damage, h.healing, h.knockouts = 0, 0, 0
}
