package processor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gyaneshwarpardhi/gamestats/internal/event"
)

// InteractionStats is a snapshot of InteractionTracker.
type InteractionStats struct {
	NPCInteractions int    `json:"npc_interactions"`
	ItemsCollected  int    `json:"items_collected"`
	DoorsOpened     int    `json:"doors_opened"`
	MenusOpened     int    `json:"menus_opened"`
	LastNPC         string `json:"last_npc,omitempty"`
	LastItem        string `json:"last_item,omitempty"`
}

// InteractionTracker counts NPC talks, item pickups, doors and menus.
type InteractionTracker struct {
	logger *slog.Logger

	npcs, items, doors, menus int
	lastNPC, lastItem         string
}

func NewInteractionTracker(sub Subscriber, logger *slog.Logger) *InteractionTracker {
	t := &InteractionTracker{logger: componentLogger(logger, NameInteractionTracker)}
	subscribeAll(sub, t, event.NPCInteraction, event.ItemCollected, event.DoorOpened, event.MenuOpened)
	return t
}

func (t *InteractionTracker) Handle(_ context.Context, ev event.Event) {
	switch ev.Type() {
	case event.NPCInteraction:
		t.npcs++
		t.lastNPC = "unknown"
		if id, ok := ev.Value("npc_id"); ok && id != nil {
			t.lastNPC = fmt.Sprint(id)
		}
		t.logger.Debug("npc interaction", "count", t.npcs, "npc_id", t.lastNPC)
	case event.ItemCollected:
		t.items++
		t.lastItem = ev.String("item", "unknown")
		t.logger.Debug("item collected", "item", t.lastItem)
	case event.DoorOpened:
		t.doors++
	case event.MenuOpened:
		t.menus++
	}
}

// Stats returns the current snapshot.
func (t *InteractionTracker) Stats() InteractionStats {
	return InteractionStats{
		NPCInteractions: t.npcs,
		ItemsCollected:  t.items,
		DoorsOpened:     t.doors,
		MenusOpened:     t.menus,
		LastNPC:         t.lastNPC,
		LastItem:        t.lastItem,
	}
}

func (t *InteractionTracker) Statistics() any { return t.Stats() }

// Reset clears all counters.
func (t *InteractionTracker) Reset() {
	*t = InteractionTracker{logger: t.logger}
}
