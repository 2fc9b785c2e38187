package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"combatkeep.ai/internal/sim/combat"
)

// SQLiteIndex is a write-behind read model of the retention audit trail.
// Writes never block the caller; when the queue is full the entry is
// dropped and counted. The zstd JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// mu guards closed and every send on ch against close(ch).
	mu     sync.RWMutex
	closed bool

	dropAudit atomic.Uint64
	dropJoin  atomic.Uint64
}

type reqKind int

const (
	reqAudit reqKind = iota + 1
	reqJoin
)

type req struct {
	kind  reqKind
	audit combat.AuditEntry
	join  joinRow
}

type joinRow struct {
	PlayerID string
	Name     string
	TimeMs   int64
}

type Stats struct {
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
	DropAuditTotal uint64 `json:"drop_audit_total"`
	DropJoinTotal  uint64 `json:"drop_join_total"`
}

const defaultQueue = 65536

func OpenSQLite(path string) (*SQLiteIndex, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &SQLiteIndex{db: db, ch: make(chan req, defaultQueue)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func openDB(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("sqlite %s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audits (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			player TEXT NOT NULL,
			action TEXT NOT NULL,
			count INTEGER NOT NULL,
			dropped INTEGER NOT NULL,
			world TEXT,
			x REAL,
			y REAL,
			z REAL,
			items_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_player_ts ON audits(player, ts);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_action ON audits(action);`,
		`CREATE TABLE IF NOT EXISTS joins (
			player TEXT NOT NULL,
			name TEXT NOT NULL,
			ts INTEGER NOT NULL,
			PRIMARY KEY (player, ts)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteAudit queues e for the writer loop. It is a no-op after Close.
func (s *SQLiteIndex) WriteAudit(e combat.AuditEntry) error {
	if !s.enqueue(req{kind: reqAudit, audit: e}) {
		s.dropAudit.Add(1)
	}
	return nil
}

// RecordJoin remembers the display name a player id joined with.
func (s *SQLiteIndex) RecordJoin(playerID, name string, at time.Time) {
	if !s.enqueue(req{kind: reqJoin, join: joinRow{PlayerID: playerID, Name: name, TimeMs: at.UnixMilli()}}) {
		s.dropJoin.Add(1)
	}
}

// enqueue reports false only when the queue is full. Requests arriving after
// Close are discarded silently.
func (s *SQLiteIndex) enqueue(r req) bool {
	if s == nil {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- r:
		return true
	default:
		return false
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropAuditTotal: s.dropAudit.Load(),
		DropJoinTotal:  s.dropJoin.Load(),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAudit, _ := s.db.Prepare(`INSERT INTO audits(ts,player,action,count,dropped,world,x,y,z,items_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertJoin, _ := s.db.Prepare(`INSERT OR REPLACE INTO joins(player,name,ts) VALUES(?,?,?)`)
	defer func() {
		if insertAudit != nil {
			_ = insertAudit.Close()
		}
		if insertJoin != nil {
			_ = insertJoin.Close()
		}
	}()

	var (
		tx          *sql.Tx
		opCount     int
		commitEvery = 500
	)
	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
	}

	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			commit()
			continue
		case r, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			begin()
			if tx == nil {
				continue
			}
			switch r.kind {
			case reqAudit:
				if insertAudit == nil {
					continue
				}
				a := r.audit
				items, _ := json.Marshal(a.Items)
				var world any
				var x, y, z any
				if a.Loc != nil {
					world, x, y, z = a.Loc.World, a.Loc.X, a.Loc.Y, a.Loc.Z
				}
				if _, err := tx.Stmt(insertAudit).Exec(a.TimeMs, a.Player, a.Action, a.Count, a.Dropped, world, x, y, z, string(items)); err != nil {
					rollback()
					continue
				}
				opCount++
			case reqJoin:
				if insertJoin == nil {
					continue
				}
				j := r.join
				if _, err := tx.Stmt(insertJoin).Exec(j.PlayerID, j.Name, j.TimeMs); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			if opCount >= commitEvery {
				commit()
			}
		}
	}
}
