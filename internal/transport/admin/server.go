// Package admin serves read-only JSON views of arena and combat state.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"combatkeep.ai/internal/arena"
	"combatkeep.ai/internal/persistence/indexdb"
	"combatkeep.ai/internal/sim/combat"
	"combatkeep.ai/internal/sim/item"
)

// AuditSource is the query side of the audit index.
type AuditSource interface {
	RecentAudits(ctx context.Context, player string, limit int) ([]indexdb.AuditRow, error)
}

type Server struct {
	arena  *arena.Arena
	combat *combat.Handler
	audits AuditSource
	index  func() indexdb.Stats
	log    *log.Logger

	// AllowRemote disables the loopback check on /admin routes.
	AllowRemote bool
}

func NewServer(a *arena.Arena, h *combat.Handler, logger *log.Logger) *Server {
	return &Server{arena: a, combat: h, log: logger}
}

// WithIndex exposes audit queries and writer queue stats.
func (s *Server) WithIndex(src AuditSource, stats func() indexdb.Stats) *Server {
	s.audits = src
	s.index = stats
	return s
}

// Register mounts the routes on r.
func (s *Server) Register(r *mux.Router) {
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.metrics).Methods(http.MethodGet)

	sub := r.PathPrefix("/admin").Subrouter()
	sub.Use(s.loopbackOnly)
	sub.HandleFunc("/stats", s.stats).Methods(http.MethodGet)
	sub.HandleFunc("/players/{id}", s.player).Methods(http.MethodGet)
	sub.HandleFunc("/audits", s.auditList).Methods(http.MethodGet)
}

func (s *Server) health(rw http.ResponseWriter, _ *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
}

type statsResponse struct {
	arena.Stats
	Index *indexdb.Stats `json:"index,omitempty"`
}

func (s *Server) stats(rw http.ResponseWriter, _ *http.Request) {
	resp := statsResponse{Stats: s.arena.Stats()}
	if s.index != nil {
		st := s.index()
		resp.Index = &st
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (s *Server) metrics(rw http.ResponseWriter, _ *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	st := s.arena.Stats()
	name := s.arena.Config().Name

	// Minimal Prometheus exposition format.
	gauge(rw, "combatkeep_players_online", "Players currently in the arena.", name, st.Online)
	gauge(rw, "combatkeep_tag_entries", "Combat tag entries held, including stale ones not yet swept.", name, st.Tagged)
	gauge(rw, "combatkeep_retained_sets", "Players with kept items waiting for respawn.", name, st.Retained)
	gauge(rw, "combatkeep_ground_items", "Item entities lying on the ground.", name, st.GroundItems)
	if s.index != nil {
		is := s.index()
		gauge(rw, "combatkeep_index_queue_depth", "Audit index writer backlog.", name, is.QueueDepth)
		fmt.Fprintf(rw, "# HELP combatkeep_index_dropped_total Audit index entries dropped on a full queue.\n")
		fmt.Fprintf(rw, "# TYPE combatkeep_index_dropped_total counter\n")
		fmt.Fprintf(rw, "combatkeep_index_dropped_total{arena=%q,kind=%q} %d\n", name, "audit", is.DropAuditTotal)
		fmt.Fprintf(rw, "combatkeep_index_dropped_total{arena=%q,kind=%q} %d\n", name, "join", is.DropJoinTotal)
	}
}

func gauge(w io.Writer, metric, help, arenaName string, v int) {
	fmt.Fprintf(w, "# HELP %s %s\n", metric, help)
	fmt.Fprintf(w, "# TYPE %s gauge\n", metric)
	fmt.Fprintf(w, "%s{arena=%q} %d\n", metric, arenaName, v)
}

type playerResponse struct {
	PlayerID   string        `json:"player_id"`
	Online     bool          `json:"online"`
	Name       string        `json:"name,omitempty"`
	Dead       bool          `json:"dead"`
	InCombat   bool          `json:"in_combat"`
	LastMarkMs int64         `json:"last_mark_ms,omitempty"`
	Kept       []*item.Stack `json:"kept,omitempty"`
}

func (s *Server) player(rw http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "bad player id"})
		return
	}
	resp := playerResponse{
		PlayerID: id.String(),
		InCombat: s.combat.InCombat(id),
		Kept:     s.combat.Kept().Peek(id),
	}
	if at, ok := s.combat.Tags().LastMark(id); ok {
		resp.LastMarkMs = at.UnixMilli()
	}
	if p, ok := s.arena.Lookup(id); ok {
		resp.Online = true
		resp.Name = p.Name()
		resp.Dead = p.Dead()
	}
	if !resp.Online && resp.LastMarkMs == 0 && len(resp.Kept) == 0 {
		writeJSON(rw, http.StatusNotFound, resp)
		return
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (s *Server) auditList(rw http.ResponseWriter, r *http.Request) {
	if s.audits == nil {
		writeJSON(rw, http.StatusNotFound, map[string]string{"error": "audit index disabled"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := s.audits.RecentAudits(r.Context(), r.URL.Query().Get("player"), limit)
	if err != nil {
		s.log.Printf("admin: audits: %v", err)
		writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	writeJSON(rw, http.StatusOK, rows)
}

func (s *Server) loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if !s.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
