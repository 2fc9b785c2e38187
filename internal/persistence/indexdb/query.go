package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"combatkeep.ai/internal/sim/combat"
	"combatkeep.ai/internal/sim/item"
)

// Reader queries an index written by SQLiteIndex. It does not start a writer.
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

type AuditRow struct {
	Seq int64 `json:"seq"`
	combat.AuditEntry
}

// RecentAudits returns the newest entries first. An empty player matches all.
func (r *Reader) RecentAudits(ctx context.Context, player string, limit int) ([]AuditRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, ts, player, action, count, dropped, world, x, y, z, items_json
		FROM audits
		WHERE (? = '' OR player = ?)
		ORDER BY seq DESC
		LIMIT ?`, player, player, limit)
	if err != nil {
		return nil, fmt.Errorf("query audits: %w", err)
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var (
			row     AuditRow
			world   sql.NullString
			x, y, z sql.NullFloat64
			items   string
		)
		if err := rows.Scan(&row.Seq, &row.TimeMs, &row.Player, &row.Action, &row.Count, &row.Dropped, &world, &x, &y, &z, &items); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		if world.Valid {
			row.Loc = &combat.Location{World: world.String, X: x.Float64, Y: y.Float64, Z: z.Float64}
		}
		var stacks []*item.Stack
		if err := json.Unmarshal([]byte(items), &stacks); err != nil {
			return nil, fmt.Errorf("decode audit %d items: %w", row.Seq, err)
		}
		row.Items = stacks
		out = append(out, row)
	}
	return out, rows.Err()
}

// PlayerTotals sums audited stacks per player and action.
type PlayerTotals struct {
	Player   string         `json:"player"`
	Name     string         `json:"name,omitempty"`
	ByAction map[string]int `json:"by_action"`
}

func (r *Reader) PlayerTotals(ctx context.Context) ([]PlayerTotals, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.player, COALESCE((SELECT j.name FROM joins j WHERE j.player = a.player ORDER BY j.ts DESC LIMIT 1), ''),
		       a.action, SUM(a.count)
		FROM audits a
		GROUP BY a.player, a.action
		ORDER BY a.player, a.action`)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	defer rows.Close()

	var out []PlayerTotals
	for rows.Next() {
		var player, name, action string
		var n int
		if err := rows.Scan(&player, &name, &action, &n); err != nil {
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].Player != player {
			out = append(out, PlayerTotals{Player: player, Name: name, ByAction: map[string]int{}})
		}
		out[len(out)-1].ByAction[action] = n
	}
	return out, rows.Err()
}
