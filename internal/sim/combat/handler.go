// Package combat wires damage, death, respawn and quit notifications to the
// combat tag tracker and the kept-item store.
package combat

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"combatkeep.ai/internal/sim/combat/keep"
	"combatkeep.ai/internal/sim/combat/shard"
	"combatkeep.ai/internal/sim/combat/tag"
	"combatkeep.ai/internal/sim/item"
)

// Options configures a Handler. Zero values fall back to defaults.
type Options struct {
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Rand defaults to keep.DefaultRand.
	Rand   keep.Rand
	Logger *log.Logger
	Audit  AuditSink
}

// Handler owns the tag tracker and kept-item store. All methods are safe for
// concurrent use; events for one player are serialized on that player's lock.
type Handler struct {
	tags  *tag.Tracker
	kept  *keep.Store
	locks shard.Locks

	clock func() time.Time
	rnd   keep.Rand
	log   *log.Logger
	audit AuditSink
}

// NewHandler returns a Handler with empty state.
func NewHandler(opts Options) *Handler {
	h := &Handler{
		tags:  tag.NewTracker(),
		kept:  keep.NewStore(),
		clock: opts.Clock,
		rnd:   opts.Rand,
		log:   opts.Logger,
		audit: opts.Audit,
	}
	if h.clock == nil {
		h.clock = time.Now
	}
	if h.rnd == nil {
		h.rnd = keep.DefaultRand
	}
	if h.log == nil {
		h.log = log.New(io.Discard, "", 0)
	}
	return h
}

func (h *Handler) Tags() *tag.Tracker { return h.tags }
func (h *Handler) Kept() *keep.Store  { return h.kept }

// OnDamage tags every player involved in the hit.
func (h *Handler) OnDamage(ev *DamageEvent) {
	if ev == nil {
		return
	}
	damager, okD := ResolvePlayer(ev.Damager)
	victim, okV := ResolvePlayer(ev.Target)
	if !okD && !okV {
		return
	}
	at := ev.At
	if at.IsZero() {
		at = h.clock()
	}
	if okD {
		h.tags.Mark(damager.UniqueID(), at)
	}
	if okV {
		h.tags.Mark(victim.UniqueID(), at)
	}
}

// OnDeath keeps half (rounded down) of a tagged player's drops. Kept stacks
// are removed from ev.Drops and stored as copies until respawn.
func (h *Handler) OnDeath(ev *DeathEvent) {
	if ev == nil || ev.Player == nil {
		return
	}
	p := ev.Player
	id := p.UniqueID()

	mu := h.locks.For(id)
	mu.Lock()
	tagged, now := h.tags.InCombatAt(id, h.clock)
	if !tagged {
		h.tags.Clear(id)
		stale, had := h.kept.Take(id)
		if had {
			h.writeAudit(newAudit(now, id.String(), AuditDiscard, stale))
		}
		mu.Unlock()
		if had {
			h.log.Printf("combat: discarded %d stale kept stacks player=%s", len(stale), id)
		}
		return
	}
	kept, remaining := keep.Select(ev.Drops, h.rnd)
	if len(kept) == 0 {
		mu.Unlock()
		return
	}
	dropped := len(ev.Drops)
	ev.Drops = remaining
	h.kept.Put(id, kept)
	e := newAudit(now, id.String(), AuditRetain, kept)
	e.Dropped = dropped
	h.writeAudit(e)
	mu.Unlock()

	h.log.Printf("combat: kept %d/%d stacks player=%s", len(kept), dropped, id)
	p.SendMessage(fmt.Sprintf(MsgKeptFmt, len(kept)))
}

// OnRespawn hands kept stacks back. Whatever the inventory cannot hold is
// dropped at the player's location.
func (h *Handler) OnRespawn(ev *RespawnEvent) {
	if ev == nil || ev.Player == nil {
		return
	}
	p := ev.Player
	id := p.UniqueID()

	mu := h.locks.For(id)
	mu.Lock()
	kept, ok := h.kept.Take(id)
	h.tags.Clear(id)
	ok = ok && len(kept) > 0
	now := h.clock()
	if ok {
		h.writeAudit(newAudit(now, id.String(), AuditRestore, kept))
	}
	mu.Unlock()
	if !ok {
		return
	}

	loc := p.Location()
	overflow := h.restore(p, loc, kept)

	h.log.Printf("combat: restored %d stacks player=%s overflow=%d", len(kept), id, len(overflow))
	if len(overflow) > 0 {
		e := newAudit(now, id.String(), AuditOverflow, overflow)
		e.Loc = &loc
		h.writeAudit(e)
	}
	p.SendMessage(MsgRestored)
}

func (h *Handler) restore(p Player, loc Location, kept []*item.Stack) []*item.Stack {
	inv := p.Inventory()
	w := p.World()
	var overflow []*item.Stack
	for _, s := range kept {
		leftover := []*item.Stack{s}
		if inv != nil {
			leftover = inv.AddItem(s)
		}
		for _, l := range leftover {
			if l.Empty() {
				continue
			}
			overflow = append(overflow, l)
			if w == nil {
				h.log.Printf("combat: no world to drop overflow player=%s item=%s count=%d", p.UniqueID(), l.Item, l.Count)
				continue
			}
			w.DropItem(loc, l)
		}
	}
	return overflow
}

// OnQuit forfeits anything pending for the player.
func (h *Handler) OnQuit(ev *QuitEvent) {
	if ev == nil || ev.PlayerID == uuid.Nil {
		return
	}
	h.Forget(ev.PlayerID)
}

// Forget clears both the combat tag and any kept stacks for id.
func (h *Handler) Forget(id uuid.UUID) {
	mu := h.locks.For(id)
	mu.Lock()
	h.tags.Clear(id)
	kept, had := h.kept.Take(id)
	if had {
		h.writeAudit(newAudit(h.clock(), id.String(), AuditForfeit, kept))
	}
	mu.Unlock()
	if had {
		h.log.Printf("combat: forfeited %d kept stacks player=%s", len(kept), id)
	}
}

// InCombat reports the tag state for id at the handler's current time.
func (h *Handler) InCombat(id uuid.UUID) bool {
	ok, _ := h.tags.InCombatAt(id, h.clock)
	return ok
}

// RunSweeper drops stale combat tags every interval until ctx is done. It
// only reclaims memory; InCombat answers the same with or without it.
func (h *Handler) RunSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.tags.Sweep(h.clock())
		}
	}
}

// Close drops all combat state.
func (h *Handler) Close() {
	h.tags.Reset()
	h.kept.Reset()
}

func (h *Handler) writeAudit(e AuditEntry) {
	if h.audit == nil {
		return
	}
	if err := h.audit.WriteAudit(e); err != nil {
		h.log.Printf("combat: audit %s player=%s: %v", e.Action, e.Player, err)
	}
}
