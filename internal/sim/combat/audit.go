package combat

import (
	"time"

	"combatkeep.ai/internal/sim/item"
)

const (
	AuditRetain   = "RETAIN"
	AuditRestore  = "RESTORE"
	AuditOverflow = "OVERFLOW"
	AuditForfeit  = "FORFEIT"
	AuditDiscard  = "DISCARD"
)

// AuditEntry describes one retention transition. Entries are write-only;
// nothing reads them back into the stores.
type AuditEntry struct {
	TimeMs  int64         `json:"ts"`
	Player  string        `json:"player"`
	Action  string        `json:"action"`
	Count   int           `json:"count"`
	Dropped int           `json:"dropped,omitempty"`
	Items   []*item.Stack `json:"items,omitempty"`
	Loc     *Location     `json:"loc,omitempty"`
}

// AuditSink receives entries while the player's lock is held, so entries for
// one player arrive in the order their transitions happened. Implementations
// must not call back into the Handler.
type AuditSink interface {
	WriteAudit(e AuditEntry) error
}

// MultiAudit fans one entry out to several sinks and returns the first error.
type MultiAudit []AuditSink

func (m MultiAudit) WriteAudit(e AuditEntry) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.WriteAudit(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func newAudit(now time.Time, player, action string, items []*item.Stack) AuditEntry {
	return AuditEntry{
		TimeMs: now.UnixMilli(),
		Player: player,
		Action: action,
		Count:  len(items),
		Items:  item.CloneAll(items),
	}
}
