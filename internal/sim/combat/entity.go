package combat

import (
	"github.com/google/uuid"

	"combatkeep.ai/internal/sim/item"
)

// Entity is anything the host can report as a damage source or target.
type Entity interface {
	EntityID() string
}

// Player is a connected player as seen by the combat rules.
type Player interface {
	Entity
	UniqueID() uuid.UUID
	Inventory() Inventory
	Location() Location
	World() World
	SendMessage(text string)
}

// Projectile attributes its damage to whoever launched it.
type Projectile interface {
	Entity
	Shooter() Entity
}

type Inventory interface {
	// AddItem stores as much of s as fits and returns what did not.
	AddItem(s *item.Stack) []*item.Stack
}

type World interface {
	DropItem(at Location, s *item.Stack)
}

type Location struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// ResolvePlayer returns the player behind e: e itself, or the shooter of a
// projectile when that shooter is a player.
func ResolvePlayer(e Entity) (Player, bool) {
	switch v := e.(type) {
	case nil:
		return nil, false
	case Player:
		return v, true
	case Projectile:
		if p, ok := v.Shooter().(Player); ok {
			return p, true
		}
	}
	return nil, false
}
