package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"combatkeep.ai/internal/sim/tuning"
)

func main() {
	var (
		tuningPath   = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (missing file means defaults)")
		addr         = flag.String("addr", "", "http listen address (overrides tuning)")
		dataDir      = flag.String("data", "", "runtime data directory (overrides tuning)")
		disableDB    = flag.Bool("disable_db", false, "disable the sqlite audit index")
		disableAudit = flag.Bool("disable_audit_log", false, "disable the zstd audit log")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if err := tuning.ApplyEnv(&tune); err != nil {
		logger.Fatalf("tuning env: %v", err)
	}
	if v := strings.TrimSpace(*addr); v != "" {
		tune.Addr = v
	}
	if v := strings.TrimSpace(*dataDir); v != "" {
		tune.DataDir = v
	}
	if *disableDB {
		tune.IndexDB = false
	}
	if *disableAudit {
		tune.AuditLog = false
	}
	if err := tune.Validate(); err != nil {
		logger.Fatalf("tuning: %v", err)
	}

	rt, err := newRuntime(tune, logger)
	if err != nil {
		logger.Fatalf("init: %v", err)
	}
	defer rt.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := rt.Run(ctx); err != nil {
		logger.Printf("server stopped: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
