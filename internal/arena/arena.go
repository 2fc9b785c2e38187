// Package arena is a small in-memory host for the combat rules: players with
// slot inventories, ground items and projectiles.
package arena

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"combatkeep.ai/internal/sim/combat"
	"combatkeep.ai/internal/sim/item"
)

const (
	DefaultSlots    = 36
	DefaultMaxStack = 64

	MobPrefix = "mob:"
)

var (
	ErrUnknownPlayer = errors.New("arena: unknown player")
	ErrAlreadyOnline = errors.New("arena: player already online")
	ErrInvalidTarget = errors.New("arena: invalid target")
	ErrDead          = errors.New("arena: player is dead")
	ErrAlive         = errors.New("arena: player is alive")
)

type Config struct {
	Name     string
	Slots    int
	MaxStack int
	Spawn    combat.Location
}

type Arena struct {
	cfg    Config
	combat *combat.Handler
	ground *ground

	arrows atomic.Uint64

	mu      sync.RWMutex
	players map[uuid.UUID]*Player
}

func New(cfg Config, h *combat.Handler) *Arena {
	if cfg.Name == "" {
		cfg.Name = "arena"
	}
	if cfg.Slots <= 0 {
		cfg.Slots = DefaultSlots
	}
	if cfg.MaxStack <= 0 {
		cfg.MaxStack = DefaultMaxStack
	}
	if cfg.Spawn.World == "" {
		cfg.Spawn.World = cfg.Name
	}
	return &Arena{
		cfg:     cfg,
		combat:  h,
		ground:  newGround(),
		players: map[uuid.UUID]*Player{},
	}
}

func (a *Arena) Config() Config { return a.cfg }

// DropItem puts a copy of s on the ground at loc.
func (a *Arena) DropItem(at combat.Location, s *item.Stack) {
	a.ground.spawn(at, s)
}

func (a *Arena) GroundItems() []GroundItem { return a.ground.list() }

// Join registers a player at the spawn point. A nil id gets a fresh one.
func (a *Arena) Join(name string, id uuid.UUID, notify func(text string)) (*Player, error) {
	if id == uuid.Nil {
		id = uuid.New()
	}
	p := &Player{
		id:     id,
		name:   name,
		inv:    NewInventory(a.cfg.Slots, a.cfg.MaxStack),
		arena:  a,
		loc:    a.cfg.Spawn,
		notify: notify,
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.players[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyOnline, id)
	}
	a.players[id] = p
	return p, nil
}

// Leave removes the player; anything kept for it is forfeited.
func (a *Arena) Leave(id uuid.UUID) {
	a.mu.Lock()
	_, ok := a.players[id]
	delete(a.players, id)
	a.mu.Unlock()
	if ok {
		a.combat.OnQuit(&combat.QuitEvent{PlayerID: id})
	}
}

func (a *Arena) Lookup(id uuid.UUID) (*Player, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.players[id]
	return p, ok
}

func (a *Arena) Online() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.players)
}

func (a *Arena) alive(id uuid.UUID) (*Player, error) {
	p, ok := a.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	if p.Dead() {
		return nil, ErrDead
	}
	return p, nil
}

// Attack lands one hit from the player on target: a player id or
// "mob:<kind>". Ranged hits travel as an arrow shot by the attacker.
func (a *Arena) Attack(attacker uuid.UUID, target string, ranged bool) error {
	p, err := a.alive(attacker)
	if err != nil {
		return err
	}
	victim, err := a.resolveTarget(attacker, target)
	if err != nil {
		return err
	}
	var damager combat.Entity = p
	if ranged {
		damager = &Arrow{id: fmt.Sprintf("AR%06d", a.arrows.Add(1)), from: p}
	}
	a.combat.OnDamage(&combat.DamageEvent{Damager: damager, Target: victim})
	return nil
}

// MobAttack lets a mob hit a player. Mobs do not tag on their own.
func (a *Arena) MobAttack(kind string, target uuid.UUID) error {
	p, err := a.alive(target)
	if err != nil {
		return err
	}
	a.combat.OnDamage(&combat.DamageEvent{Damager: Mob{Kind: kind}, Target: p})
	return nil
}

func (a *Arena) resolveTarget(attacker uuid.UUID, target string) (combat.Entity, error) {
	if kind, ok := strings.CutPrefix(target, MobPrefix); ok {
		if kind == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
		}
		return Mob{Kind: kind}, nil
	}
	id, err := uuid.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	if id == attacker {
		return nil, fmt.Errorf("%w: self", ErrInvalidTarget)
	}
	v, err := a.alive(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	return v, nil
}

// Kill empties the player's inventory into a death event and spawns
// whatever the combat rules leave in the drop list. It returns the number of
// stacks that hit the ground.
func (a *Arena) Kill(id uuid.UUID) (int, error) {
	p, ok := a.Lookup(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	if !p.setDead(true) {
		return 0, ErrDead
	}
	ev := &combat.DeathEvent{Player: p, Drops: p.inv.TakeAll()}
	a.combat.OnDeath(ev)
	loc := p.Location()
	for _, s := range ev.Drops {
		a.DropItem(loc, s)
	}
	return len(ev.Drops), nil
}

// Respawn moves a dead player back to spawn and returns kept items.
func (a *Arena) Respawn(id uuid.UUID) error {
	p, ok := a.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	p.mu.Lock()
	if !p.dead {
		p.mu.Unlock()
		return ErrAlive
	}
	p.dead = false
	p.loc = a.cfg.Spawn
	p.mu.Unlock()

	a.combat.OnRespawn(&combat.RespawnEvent{Player: p})
	return nil
}

// Give adds count of itemID to the player; overflow lands at its feet.
func (a *Arena) Give(id uuid.UUID, itemID string, count int) error {
	p, err := a.alive(id)
	if err != nil {
		return err
	}
	if itemID == "" || count <= 0 {
		return fmt.Errorf("arena: bad give %q x%d", itemID, count)
	}
	for _, l := range p.inv.AddItem(item.New(itemID, count)) {
		a.DropItem(p.Location(), l)
	}
	return nil
}

func (a *Arena) Move(id uuid.UUID, x, y, z float64) error {
	p, err := a.alive(id)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.loc.X, p.loc.Y, p.loc.Z = x, y, z
	p.mu.Unlock()
	return nil
}

// Snapshot is what one player can see about itself.
type Snapshot struct {
	PlayerID    uuid.UUID
	Name        string
	Dead        bool
	InCombat    bool
	Loc         combat.Location
	Inventory   []*item.Stack
	Kept        []*item.Stack
	GroundItems int
}

func (a *Arena) Snapshot(id uuid.UUID) (Snapshot, error) {
	p, ok := a.Lookup(id)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, id)
	}
	p.mu.Lock()
	dead, loc := p.dead, p.loc
	p.mu.Unlock()
	return Snapshot{
		PlayerID:    id,
		Name:        p.name,
		Dead:        dead,
		InCombat:    a.combat.InCombat(id),
		Loc:         loc,
		Inventory:   p.inv.Contents(),
		Kept:        a.combat.Kept().Peek(id),
		GroundItems: a.ground.len(),
	}, nil
}

type Stats struct {
	Online      int `json:"online"`
	Tagged      int `json:"tagged"`
	Retained    int `json:"retained"`
	GroundItems int `json:"ground_items"`
}

// Stats counts raw store entries; Tagged may include stale tags not yet
// swept.
func (a *Arena) Stats() Stats {
	return Stats{
		Online:      a.Online(),
		Tagged:      a.combat.Tags().Len(),
		Retained:    a.combat.Kept().Len(),
		GroundItems: a.ground.len(),
	}
}
