package event

// Event types understood by the processors and the report generator.
const (
	GameStarted = "game_started"
	GameEnded   = "game_ended"
	GamePaused  = "game_paused"
	GameResumed = "game_resumed"

	PlayerMoved = "player_moved"

	BattleStarted = "battle_started"
	BattleEnded   = "battle_ended"

	PlayerDamaged = "player_damaged"
	PlayerHealed  = "player_healed"
	PlayerFainted = "player_fainted"

	NPCInteraction = "npc_interaction"
	ItemCollected  = "item_collected"
	DoorOpened     = "door_opened"
	MenuOpened     = "menu_opened"

	GenerateReport = "generate_report"
)

// Battle outcomes carried in the battle_ended "result" field.
const (
	ResultWon     = "won"
	ResultLost    = "lost"
	ResultUnknown = "unknown"
)

// Catalog lists every known event type in a stable order.
var Catalog = []string{
	GameStarted, GameEnded, GamePaused, GameResumed,
	PlayerMoved,
	BattleStarted, BattleEnded,
	PlayerDamaged, PlayerHealed, PlayerFainted,
	NPCInteraction, ItemCollected, DoorOpened, MenuOpened,
	GenerateReport,
}

// Known reports whether typ is in the catalog.
func Known(typ string) bool {
	for _, t := range Catalog {
		if t == typ {
			return true
		}
	}
	return false
}
