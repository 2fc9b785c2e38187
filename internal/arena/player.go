package arena

import (
	"sync"

	"github.com/google/uuid"

	"combatkeep.ai/internal/sim/combat"
)

// Player is an arena participant. It satisfies combat.Player.
type Player struct {
	id    uuid.UUID
	name  string
	inv   *Inventory
	arena *Arena

	mu     sync.Mutex
	loc    combat.Location
	dead   bool
	notify func(text string)
}

func (p *Player) EntityID() string           { return p.id.String() }
func (p *Player) UniqueID() uuid.UUID         { return p.id }
func (p *Player) Name() string                { return p.name }
func (p *Player) World() combat.World         { return p.arena }
func (p *Player) Inventory() combat.Inventory { return p.inv }

func (p *Player) Location() combat.Location {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loc
}

func (p *Player) Dead() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dead
}

func (p *Player) SendMessage(text string) {
	p.mu.Lock()
	fn := p.notify
	p.mu.Unlock()
	if fn != nil {
		fn(text)
	}
}

// setDead flips the dead flag and reports whether it changed.
func (p *Player) setDead(dead bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dead == dead {
		return false
	}
	p.dead = dead
	return true
}

// Mob is a non-player damage source or target.
type Mob struct{ Kind string }

func (m Mob) EntityID() string { return MobPrefix + m.Kind }

// Arrow is a projectile fired by an entity.
type Arrow struct {
	id   string
	from combat.Entity
}

func (a *Arrow) EntityID() string       { return a.id }
func (a *Arrow) Shooter() combat.Entity { return a.from }
