package arena

import (
	"sync"

	"combatkeep.ai/internal/sim/item"
)

// Inventory is a fixed number of slots; similar stacks merge up to maxStack.
type Inventory struct {
	mu       sync.Mutex
	slots    []*item.Stack
	maxStack int
}

func NewInventory(slots, maxStack int) *Inventory {
	if slots <= 0 {
		slots = DefaultSlots
	}
	if maxStack <= 0 {
		maxStack = DefaultMaxStack
	}
	return &Inventory{slots: make([]*item.Stack, slots), maxStack: maxStack}
}

// AddItem fills partial stacks first, then empty slots. It never keeps a
// reference to s.
func (inv *Inventory) AddItem(s *item.Stack) []*item.Stack {
	if s.Empty() {
		return nil
	}
	left := s.Count

	inv.mu.Lock()
	for _, cur := range inv.slots {
		if left == 0 {
			break
		}
		if cur == nil || cur.Count >= inv.maxStack || !cur.SimilarTo(s) {
			continue
		}
		n := min(inv.maxStack-cur.Count, left)
		cur.Count += n
		left -= n
	}
	for i := range inv.slots {
		if left == 0 {
			break
		}
		if inv.slots[i] != nil {
			continue
		}
		n := min(inv.maxStack, left)
		c := s.Clone()
		c.Count = n
		inv.slots[i] = c
		left -= n
	}
	inv.mu.Unlock()

	if left == 0 {
		return nil
	}
	rest := s.Clone()
	rest.Count = left
	return []*item.Stack{rest}
}

// TakeAll empties the inventory and returns its stacks in slot order.
func (inv *Inventory) TakeAll() []*item.Stack {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	var out []*item.Stack
	for i, s := range inv.slots {
		if s != nil {
			out = append(out, s)
			inv.slots[i] = nil
		}
	}
	return out
}

// Contents returns copies of the occupied slots.
func (inv *Inventory) Contents() []*item.Stack {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	out := make([]*item.Stack, 0, len(inv.slots))
	for _, s := range inv.slots {
		if s != nil {
			out = append(out, s.Clone())
		}
	}
	return out
}

func (inv *Inventory) Free() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	n := 0
	for _, s := range inv.slots {
		if s == nil {
			n++
		}
	}
	return n
}
