package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"combatkeep.ai/internal/sim/combat"
	"combatkeep.ai/internal/sim/item"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()
	var out []string
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestHourlyLog_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	cur := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w := NewHourlyLog(dir, "audit")
	w.clock = func() time.Time { return cur }

	if err := w.Append(map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Append(map[string]int{"n": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	cur = cur.Add(2 * time.Minute)
	if err := w.Append(map[string]int{"n": 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := w.Path(cur); got != filepath.Join(dir, "audit-2026-03-01-11.jsonl.zst") {
		t.Fatalf("Path=%s", got)
	}
	first := readLines(t, filepath.Join(dir, "audit-2026-03-01-10.jsonl.zst"))
	second := readLines(t, filepath.Join(dir, "audit-2026-03-01-11.jsonl.zst"))
	if len(first) != 2 || len(second) != 1 {
		t.Fatalf("lines: got %d/%d want 2/1", len(first), len(second))
	}
	if second[0] != `{"n":3}` {
		t.Fatalf("line: got %s", second[0])
	}
}

func TestHourlyLog_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		w := NewHourlyLog(dir, "x")
		w.clock = func() time.Time { return at }
		if err := w.Append(i); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	lines := readLines(t, filepath.Join(dir, "x-2026-03-01-10.jsonl.zst"))
	if len(lines) != 2 || lines[0] != "0" || lines[1] != "1" {
		t.Fatalf("lines: %v", lines)
	}
}

func TestRetentionLogger_WritesEntries(t *testing.T) {
	dir := t.TempDir()
	l := NewRetentionLogger(dir)
	e := combat.AuditEntry{
		TimeMs:  1000,
		Player:  "p1",
		Action:  combat.AuditRetain,
		Count:   1,
		Dropped: 3,
		Items:   []*item.Stack{item.New("DIAMOND", 2)},
	}
	if err := l.WriteAudit(e); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.WriteAudit(e); !errors.Is(err, ErrClosed) {
		t.Fatalf("write after close: got %v want ErrClosed", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "audit", "audit-*.jsonl.zst"))
	if len(files) != 1 {
		t.Fatalf("files: %v", files)
	}
	lines := readLines(t, files[0])
	if len(lines) != 1 {
		t.Fatalf("lines: %v", lines)
	}
	var got combat.AuditEntry
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Action != combat.AuditRetain || got.Dropped != 3 || len(got.Items) != 1 || got.Items[0].Item != "DIAMOND" {
		t.Fatalf("entry: %+v", got)
	}
}

