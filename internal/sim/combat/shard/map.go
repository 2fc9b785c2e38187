// Package shard holds the player-keyed concurrent primitives shared by the
// combat stores. Keys hash to one of Count shards, so work on unrelated
// players never serializes on one lock.
package shard

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

const Count = 64

func index(id uuid.UUID) int {
	return int(xxhash.Sum64(id[:]) % Count)
}

type bucket[V any] struct {
	mu sync.RWMutex
	m  map[uuid.UUID]V
}

// Map is a uuid-keyed map safe for concurrent use. Every method is atomic
// with respect to the key it touches.
type Map[V any] struct {
	shards [Count]bucket[V]
}

func NewMap[V any]() *Map[V] {
	m := &Map[V]{}
	for i := range m.shards {
		m.shards[i].m = make(map[uuid.UUID]V)
	}
	return m
}

func (m *Map[V]) bucket(id uuid.UUID) *bucket[V] {
	return &m.shards[index(id)]
}

func (m *Map[V]) Load(id uuid.UUID) (V, bool) {
	b := m.bucket(id)
	b.mu.RLock()
	v, ok := b.m[id]
	b.mu.RUnlock()
	return v, ok
}

func (m *Map[V]) Store(id uuid.UUID, v V) {
	b := m.bucket(id)
	b.mu.Lock()
	b.m[id] = v
	b.mu.Unlock()
}

func (m *Map[V]) Delete(id uuid.UUID) {
	b := m.bucket(id)
	b.mu.Lock()
	delete(b.m, id)
	b.mu.Unlock()
}

func (m *Map[V]) LoadAndDelete(id uuid.UUID) (V, bool) {
	b := m.bucket(id)
	b.mu.Lock()
	v, ok := b.m[id]
	if ok {
		delete(b.m, id)
	}
	b.mu.Unlock()
	return v, ok
}

// DeleteIf removes the entry for id only when pred holds for its current
// value, evaluated under the shard lock.
func (m *Map[V]) DeleteIf(id uuid.UUID, pred func(V) bool) bool {
	b := m.bucket(id)
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.m[id]
	if !ok || !pred(v) {
		return false
	}
	delete(b.m, id)
	return true
}

// PurgeIf walks every shard and removes entries matching pred. It returns
// the number removed.
func (m *Map[V]) PurgeIf(pred func(uuid.UUID, V) bool) int {
	n := 0
	for i := range m.shards {
		b := &m.shards[i]
		b.mu.Lock()
		for id, v := range b.m {
			if pred(id, v) {
				delete(b.m, id)
				n++
			}
		}
		b.mu.Unlock()
	}
	return n
}

func (m *Map[V]) Len() int {
	n := 0
	for i := range m.shards {
		b := &m.shards[i]
		b.mu.RLock()
		n += len(b.m)
		b.mu.RUnlock()
	}
	return n
}

func (m *Map[V]) Clear() {
	for i := range m.shards {
		b := &m.shards[i]
		b.mu.Lock()
		clear(b.m)
		b.mu.Unlock()
	}
}
