package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"combatkeep.ai/internal/arena"
	"combatkeep.ai/internal/persistence/indexdb"
	"combatkeep.ai/internal/sim/combat"
)

type fakeAudits struct {
	rows   []indexdb.AuditRow
	err    error
	player string
	limit  int
}

func (f *fakeAudits) RecentAudits(_ context.Context, player string, limit int) ([]indexdb.AuditRow, error) {
	f.player, f.limit = player, limit
	return f.rows, f.err
}

func setup(t *testing.T) (*mux.Router, *arena.Arena, *Server) {
	t.Helper()
	h := combat.NewHandler(combat.Options{})
	a := arena.New(arena.Config{Name: "pit"}, h)
	s := NewServer(a, h, log.New(io.Discard, "", 0))
	r := mux.NewRouter()
	s.Register(r)
	return r, a, s
}

func do(r http.Handler, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

const local = "127.0.0.1:5000"

func TestHealthz(t *testing.T) {
	r, _, _ := setup(t)
	rec := do(r, "/healthz", "203.0.113.9:1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200", rec.Code)
	}
}

func TestAdmin_LoopbackOnly(t *testing.T) {
	r, _, s := setup(t)
	if rec := do(r, "/admin/stats", "203.0.113.9:1"); rec.Code != http.StatusForbidden {
		t.Fatalf("remote: got %d want 403", rec.Code)
	}
	if rec := do(r, "/admin/stats", "[::1]:9"); rec.Code != http.StatusOK {
		t.Fatalf("ipv6 loopback: got %d want 200", rec.Code)
	}
	s.AllowRemote = true
	if rec := do(r, "/admin/stats", "203.0.113.9:1"); rec.Code != http.StatusOK {
		t.Fatalf("allow remote: got %d want 200", rec.Code)
	}
}

func TestAdmin_PlayerAndStats(t *testing.T) {
	r, a, _ := setup(t)
	atk, _ := a.Join("atk", uuid.Nil, nil)
	vic, _ := a.Join("vic", uuid.Nil, nil)
	_ = a.Give(vic.UniqueID(), "A", 1)
	_ = a.Give(vic.UniqueID(), "B", 1)
	if err := a.Attack(atk.UniqueID(), vic.UniqueID().String(), false); err != nil {
		t.Fatalf("Attack: %v", err)
	}
	if _, err := a.Kill(vic.UniqueID()); err != nil {
		t.Fatalf("Kill: %v", err)
	}

	rec := do(r, "/admin/players/"+vic.UniqueID().String(), local)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var p playerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !p.Online || !p.Dead || p.Name != "vic" || len(p.Kept) != 1 {
		t.Fatalf("player: %+v", p)
	}

	rec = do(r, "/admin/stats", local)
	var st statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Online != 2 || st.Retained != 1 || st.GroundItems != 1 || st.Index != nil {
		t.Fatalf("stats: %+v", st)
	}

	if rec := do(r, "/admin/players/"+uuid.NewString(), local); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown player: got %d want 404", rec.Code)
	}
	if rec := do(r, "/admin/players/xyz", local); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: got %d want 400", rec.Code)
	}
}

func TestAdmin_Audits(t *testing.T) {
	r, _, s := setup(t)
	if rec := do(r, "/admin/audits", local); rec.Code != http.StatusNotFound {
		t.Fatalf("disabled: got %d want 404", rec.Code)
	}

	src := &fakeAudits{rows: []indexdb.AuditRow{{Seq: 1, AuditEntry: combat.AuditEntry{Player: "p", Action: combat.AuditRetain}}}}
	s.WithIndex(src, func() indexdb.Stats { return indexdb.Stats{QueueCapacity: 4} })
	rec := do(r, "/admin/audits?player=p&limit=5", local)
	if rec.Code != http.StatusOK || src.player != "p" || src.limit != 5 {
		t.Fatalf("audits: code=%d player=%q limit=%d", rec.Code, src.player, src.limit)
	}
	var rows []indexdb.AuditRow
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil || len(rows) != 1 || rows[0].Action != combat.AuditRetain {
		t.Fatalf("rows: %v %+v", err, rows)
	}

	rec = do(r, "/admin/stats", local)
	var st statsResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &st)
	if st.Index == nil || st.Index.QueueCapacity != 4 {
		t.Fatalf("index stats: %+v", st.Index)
	}

	src.err = errors.New("boom")
	if rec := do(r, "/admin/audits", local); rec.Code != http.StatusInternalServerError {
		t.Fatalf("error: got %d want 500", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	r, a, s := setup(t)
	_, _ = a.Join("x", uuid.Nil, nil)
	s.WithIndex(&fakeAudits{}, func() indexdb.Stats { return indexdb.Stats{DropAuditTotal: 3} })

	rec := do(r, "/metrics", "203.0.113.9:1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`combatkeep_players_online{arena="pit"} 1`,
		`combatkeep_retained_sets{arena="pit"} 0`,
		`combatkeep_index_dropped_total{arena="pit",kind="audit"} 3`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}
