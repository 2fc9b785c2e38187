package shard

import (
	"sync"

	"github.com/google/uuid"
)

// Locks is a fixed set of striped mutexes. Two players may share a stripe;
// one player always maps to the same stripe.
type Locks struct {
	mu [Count]sync.Mutex
}

func (l *Locks) For(id uuid.UUID) *sync.Mutex {
	return &l.mu[index(id)]
}
