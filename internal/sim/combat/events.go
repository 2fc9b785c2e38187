package combat

import (
	"time"

	"github.com/google/uuid"

	"combatkeep.ai/internal/sim/item"
)

type DamageEvent struct {
	Damager Entity
	Target  Entity
	// At is when the hit landed; zero means "now" per the handler clock.
	At time.Time
}

// DeathEvent carries the stacks about to fall into the world. OnDeath
// rewrites Drops in place.
type DeathEvent struct {
	Player Player
	Drops  []*item.Stack
}

type RespawnEvent struct {
	Player Player
}

type QuitEvent struct {
	PlayerID uuid.UUID
}

const (
	MsgKeptFmt  = "You keep %d items thanks to the combat bonus."
	MsgRestored = "Your combat items have been restored."
)
