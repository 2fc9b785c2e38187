package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"combatkeep.ai/internal/sim/combat"
	"combatkeep.ai/internal/sim/item"
)

func entry(ts int64, player, action string, dropped int, items ...*item.Stack) combat.AuditEntry {
	return combat.AuditEntry{TimeMs: ts, Player: player, Action: action, Count: len(items), Dropped: dropped, Items: items}
}

func writeAudit(t *testing.T, path string, entries ...combat.AuditEntry) {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	for _, e := range entries {
		b, _ := json.Marshal(e)
		_, _ = enc.Write(append(b, '\n'))
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("zstd close: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestReplay_SummarizesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeAudit(t, filepath.Join(dir, "audit-2026-01-01-00.jsonl.zst"),
		entry(1, "a", combat.AuditRetain, 4, item.New("GOLD", 2), item.New("IRON", 1)),
		entry(2, "b", combat.AuditRetain, 2, item.New("BREAD", 3)),
	)
	writeAudit(t, filepath.Join(dir, "audit-2026-01-01-01.jsonl.zst"),
		entry(3, "a", combat.AuditRestore, 0, item.New("GOLD", 2), item.New("IRON", 1)),
	)
	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)

	files, err := listAuditFiles(dir)
	if err != nil || len(files) != 2 {
		t.Fatalf("files: %v %v", err, files)
	}
	s := newSummary("")
	for _, f := range files {
		if err := replayFile(s, f); err != nil {
			t.Fatalf("replayFile: %v", err)
		}
	}
	if s.Entries != 3 || s.ByAction[combat.AuditRetain] != 2 || len(s.Pending) != 1 || len(s.Violations) != 0 {
		t.Fatalf("summary: %+v", s)
	}
	if s.Items[combat.AuditRestore]["GOLD"] != 2 {
		t.Fatalf("restore items: %+v", s.Items[combat.AuditRestore])
	}

	var out bytes.Buffer
	s.print(&out)
	if !strings.HasPrefix(out.String(), "entries=3 pending=1 overwrites=0 violations=0") {
		t.Fatalf("output: %q", out.String())
	}
}

func TestSummary_FlagsViolations(t *testing.T) {
	s := newSummary("")
	s.add(entry(1, "a", combat.AuditRestore, 0, item.New("X", 1)))
	s.add(entry(2, "a", combat.AuditRetain, 2, item.New("X", 1)))
	s.add(entry(3, "a", combat.AuditRetain, 2, item.New("Y", 1)))
	s.add(entry(4, "a", combat.AuditForfeit, 0, item.New("Y", 1), item.New("Z", 1)))
	s.add(entry(5, "b", combat.AuditRetain, 1, item.New("Q", 1)))

	if s.Overwrites != 1 {
		t.Fatalf("overwrites: got %d want 1", s.Overwrites)
	}
	if len(s.Violations) != 3 {
		t.Fatalf("violations: %v", s.Violations)
	}

	only := newSummary("b")
	if err := only.consume(strings.NewReader(`{"ts":1,"player":"a","action":"RETAIN","count":1,"dropped":2}` + "\n" + `{"ts":2,"player":"b","action":"RETAIN","count":1,"dropped":2}` + "\n")); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if only.Entries != 1 {
		t.Fatalf("player filter: got %d entries", only.Entries)
	}
	if err := only.consume(strings.NewReader("{")); err == nil {
		t.Fatalf("expected decode error")
	}
}
