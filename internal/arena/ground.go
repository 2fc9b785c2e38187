package arena

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"combatkeep.ai/internal/sim/combat"
	"combatkeep.ai/internal/sim/item"
)

// GroundItem is a dropped stack lying in the arena.
type GroundItem struct {
	EntityID string          `json:"entity_id"`
	Pos      BlockPos        `json:"pos"`
	Stack    *item.Stack     `json:"stack"`
	Loc      combat.Location `json:"loc"`
}

type BlockPos struct {
	World string `json:"world"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
}

func blockOf(l combat.Location) BlockPos {
	return BlockPos{
		World: l.World,
		X:     int(math.Floor(l.X)),
		Y:     int(math.Floor(l.Y)),
		Z:     int(math.Floor(l.Z)),
	}
}

type ground struct {
	mu    sync.Mutex
	next  uint64
	items map[string]*GroundItem
	at    map[BlockPos][]string
}

func newGround() *ground {
	return &ground{
		items: map[string]*GroundItem{},
		at:    map[BlockPos][]string{},
	}
}

// spawn merges s into a similar stack on the same block, or creates a new
// entity. The stack is copied.
func (g *ground) spawn(loc combat.Location, s *item.Stack) string {
	if s.Empty() {
		return ""
	}
	pos := blockOf(loc)

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range g.at[pos] {
		e := g.items[id]
		if e != nil && e.Stack.SimilarTo(s) {
			e.Stack.Count += s.Count
			return id
		}
	}
	g.next++
	id := fmt.Sprintf("IT%06d", g.next)
	g.items[id] = &GroundItem{EntityID: id, Pos: pos, Stack: s.Clone(), Loc: loc}
	g.at[pos] = append(g.at[pos], id)
	return id
}

func (g *ground) len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.items)
}

// list returns copies sorted by entity id.
func (g *ground) list() []GroundItem {
	g.mu.Lock()
	out := make([]GroundItem, 0, len(g.items))
	for _, e := range g.items {
		cp := *e
		cp.Stack = e.Stack.Clone()
		out = append(out, cp)
	}
	g.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}
