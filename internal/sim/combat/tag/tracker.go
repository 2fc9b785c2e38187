// Package tag tracks which players were recently in combat.
package tag

import (
	"time"

	"github.com/google/uuid"

	"combatkeep.ai/internal/sim/combat/shard"
)

// Duration is how long a player stays tagged after their last hit.
const Duration = 15 * time.Second

const durationMs = int64(Duration / time.Millisecond)

// Tracker maps player id -> unix millis of the last combat involvement.
type Tracker struct {
	last *shard.Map[int64]
}

func NewTracker() *Tracker {
	return &Tracker{last: shard.NewMap[int64]()}
}

// Mark records combat involvement for id at now. The latest write wins.
func (t *Tracker) Mark(id uuid.UUID, now time.Time) {
	t.last.Store(id, now.UnixMilli())
}

// InCombat reports whether id was marked within Duration of now (inclusive).
// A stale entry is dropped on the way out, but only if nobody refreshed it
// in the meantime.
func (t *Tracker) InCombat(id uuid.UUID, now time.Time) bool {
	ok, _ := t.InCombatAt(id, func() time.Time { return now })
	return ok
}

// InCombatAt loads the entry for id before reading clock, and returns the
// instant it judged against. A concurrent Sweep can only remove an entry that
// was already stale at an instant no later than that one.
func (t *Tracker) InCombatAt(id uuid.UUID, clock func() time.Time) (bool, time.Time) {
	at, ok := t.last.Load(id)
	now := clock()
	if !ok {
		return false, now
	}
	if now.UnixMilli()-at <= durationMs {
		return true, now
	}
	t.last.DeleteIf(id, func(cur int64) bool { return cur == at })
	return false, now
}

// LastMark returns the stored instant for id, if any. Stale entries are
// returned as-is.
func (t *Tracker) LastMark(id uuid.UUID) (time.Time, bool) {
	at, ok := t.last.Load(id)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(at), true
}

func (t *Tracker) Clear(id uuid.UUID) {
	t.last.Delete(id)
}

// Sweep removes every entry that is stale at now and returns how many went.
func (t *Tracker) Sweep(now time.Time) int {
	nowMs := now.UnixMilli()
	return t.last.PurgeIf(func(_ uuid.UUID, at int64) bool {
		return nowMs-at > durationMs
	})
}

func (t *Tracker) Len() int { return t.last.Len() }

func (t *Tracker) Reset() { t.last.Clear() }
