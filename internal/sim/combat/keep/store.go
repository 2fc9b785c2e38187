package keep

import (
	"github.com/google/uuid"

	"combatkeep.ai/internal/sim/combat/shard"
	"combatkeep.ai/internal/sim/item"
)

// Store holds at most one pending set of kept stacks per player.
type Store struct {
	sets *shard.Map[[]*item.Stack]
}

func NewStore() *Store {
	return &Store{sets: shard.NewMap[[]*item.Stack]()}
}

// Put replaces any pending set for id. An empty set clears it.
func (s *Store) Put(id uuid.UUID, stacks []*item.Stack) {
	if len(stacks) == 0 {
		s.sets.Delete(id)
		return
	}
	s.sets.Store(id, stacks)
}

// Take removes and returns the pending set for id.
func (s *Store) Take(id uuid.UUID) ([]*item.Stack, bool) {
	return s.sets.LoadAndDelete(id)
}

// Discard drops the pending set for id, if any.
func (s *Store) Discard(id uuid.UUID) {
	s.sets.Delete(id)
}

// Peek returns copies of the pending set without consuming it.
func (s *Store) Peek(id uuid.UUID) []*item.Stack {
	stacks, ok := s.sets.Load(id)
	if !ok {
		return nil
	}
	return item.CloneAll(stacks)
}

func (s *Store) Len() int { return s.sets.Len() }

func (s *Store) Reset() { s.sets.Clear() }
