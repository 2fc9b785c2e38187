package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"combatkeep.ai/internal/persistence/indexdb"
)

func dbCmd(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("db", flag.ContinueOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/combat.sqlite)")
	player := fs.String("player", "", "player id filter (audits)")
	limit := fs.Int("limit", 20, "result limit (audits)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q := "audits"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "combat.sqlite")
	}
	r, err := indexdb.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	ctx := context.Background()
	enc := json.NewEncoder(w)
	switch q {
	case "audits":
		rows, err := r.RecentAudits(ctx, strings.TrimSpace(*player), *limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
	case "totals":
		rows, err := r.PlayerTotals(ctx)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown query %q (want audits or totals)", q)
	}
	return nil
}
