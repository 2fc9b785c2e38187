package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"combatkeep.ai/internal/sim/combat"
)

func main() {
	var (
		auditDir = flag.String("audit", "./data/audit", "dir containing audit-*.jsonl.zst")
		player   = flag.String("player", "", "only count this player id (optional)")
		strict   = flag.Bool("strict", false, "exit non-zero on sequence violations")
	)
	flag.Parse()

	files, err := listAuditFiles(*auditDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list audit:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no audit files found in", *auditDir)
		os.Exit(1)
	}

	s := newSummary(strings.TrimSpace(*player))
	for _, path := range files {
		if err := replayFile(s, path); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	s.print(os.Stdout)
	if *strict && len(s.Violations) > 0 {
		os.Exit(1)
	}
}

func listAuditFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "audit-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func replayFile(s *summary, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	if err := s.consume(dec); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

// summary tracks per-action totals and checks that each kept set is
// resolved at most once.
type summary struct {
	player string

	Entries    int
	ByAction   map[string]int
	Items      map[string]map[string]int // action -> item -> count
	Pending    map[string]int            // player -> stacks waiting for respawn
	Overwrites int
	Violations []string
}

func newSummary(player string) *summary {
	return &summary{
		player:   player,
		ByAction: map[string]int{},
		Items:    map[string]map[string]int{},
		Pending:  map[string]int{},
	}
}

func (s *summary) consume(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		var e combat.AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("line %d: unmarshal: %w", line, err)
		}
		if s.player != "" && e.Player != s.player {
			continue
		}
		s.add(e)
	}
	return sc.Err()
}

func (s *summary) add(e combat.AuditEntry) {
	s.Entries++
	s.ByAction[e.Action]++
	per := s.Items[e.Action]
	if per == nil {
		per = map[string]int{}
		s.Items[e.Action] = per
	}
	for _, st := range e.Items {
		if st != nil {
			per[st.Item] += st.Count
		}
	}

	switch e.Action {
	case combat.AuditRetain:
		if _, ok := s.Pending[e.Player]; ok {
			s.Overwrites++
		}
		if e.Count > e.Dropped/2 {
			s.Violations = append(s.Violations, fmt.Sprintf("ts=%d player=%s kept %d of %d", e.TimeMs, e.Player, e.Count, e.Dropped))
		}
		s.Pending[e.Player] = e.Count
	case combat.AuditRestore, combat.AuditForfeit, combat.AuditDiscard:
		n, ok := s.Pending[e.Player]
		if !ok {
			s.Violations = append(s.Violations, fmt.Sprintf("ts=%d player=%s %s without RETAIN", e.TimeMs, e.Player, e.Action))
			return
		}
		if n != e.Count {
			s.Violations = append(s.Violations, fmt.Sprintf("ts=%d player=%s %s count=%d retained=%d", e.TimeMs, e.Player, e.Action, e.Count, n))
		}
		delete(s.Pending, e.Player)
	}
}

func (s *summary) print(w io.Writer) {
	actions := make([]string, 0, len(s.ByAction))
	for a := range s.ByAction {
		actions = append(actions, a)
	}
	sort.Strings(actions)

	fmt.Fprintf(w, "entries=%d pending=%d overwrites=%d violations=%d\n", s.Entries, len(s.Pending), s.Overwrites, len(s.Violations))
	for _, a := range actions {
		items := s.Items[a]
		ids := make([]string, 0, len(items))
		for id := range items {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		parts := make([]string, 0, len(ids))
		for _, id := range ids {
			parts = append(parts, fmt.Sprintf("%s=%d", id, items[id]))
		}
		fmt.Fprintf(w, "%-9s n=%d items[%s]\n", a, s.ByAction[a], strings.Join(parts, " "))
	}
	for _, v := range s.Violations {
		fmt.Fprintln(w, "violation:", v)
	}
}
