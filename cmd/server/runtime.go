package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"combatkeep.ai/internal/arena"
	"combatkeep.ai/internal/persistence/indexdb"
	persistlog "combatkeep.ai/internal/persistence/log"
	"combatkeep.ai/internal/protocol"
	"combatkeep.ai/internal/sim/combat"
	"combatkeep.ai/internal/sim/tuning"
	"combatkeep.ai/internal/transport/admin"
	"combatkeep.ai/internal/transport/ws"
)

type runtime struct {
	tune tuning.Tuning
	log  *log.Logger

	combat *combat.Handler
	arena  *arena.Arena
	ws     *ws.Server
	router *mux.Router

	auditLog *persistlog.RetentionLogger
	index    *indexdb.SQLiteIndex
	reader   *indexdb.Reader

	// ready receives the bound address once the listener is up.
	ready chan string
}

func newRuntime(tune tuning.Tuning, logger *log.Logger) (*runtime, error) {
	rt := &runtime{tune: tune, log: logger, ready: make(chan string, 1)}

	var sinks combat.MultiAudit
	if tune.AuditLog {
		rt.auditLog = persistlog.NewRetentionLogger(tune.DataDir)
		sinks = append(sinks, rt.auditLog)
	}
	if tune.IndexDB {
		path := filepath.Join(tune.DataDir, "index", "combat.sqlite")
		idx, err := indexdb.OpenSQLite(path)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open index: %w", err)
		}
		rt.index = idx
		sinks = append(sinks, idx)
		r, err := indexdb.OpenReader(path)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open index reader: %w", err)
		}
		rt.reader = r
	}

	opts := combat.Options{Logger: logger}
	if len(sinks) > 0 {
		opts.Audit = sinks
	}
	rt.combat = combat.NewHandler(opts)
	rt.arena = arena.New(arena.Config{
		Name:     tune.Arena.Name,
		Slots:    tune.Arena.Slots,
		MaxStack: tune.Arena.MaxStack,
	}, rt.combat)

	v, err := protocol.NewValidator()
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("protocol schemas: %w", err)
	}
	wsOpts := ws.Options{MaxQueue: tune.WSMaxQueue}
	if rt.index != nil {
		wsOpts.OnJoin = func(id uuid.UUID, name string) {
			rt.index.RecordJoin(id.String(), name, time.Now())
		}
	}

	rt.router = mux.NewRouter()
	rt.ws = ws.NewServer(rt.arena, v, logger, wsOpts)
	rt.router.HandleFunc("/v1/ws", rt.ws.Handler())
	adm := admin.NewServer(rt.arena, rt.combat, logger)
	if rt.index != nil {
		adm.WithIndex(rt.reader, rt.index.Stats)
	}
	adm.Register(rt.router)
	if tune.PprofHTTP {
		rt.router.HandleFunc("/debug/pprof/", pprof.Index)
		rt.router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		rt.router.HandleFunc("/debug/pprof/profile", pprof.Profile)
		rt.router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		rt.router.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return rt, nil
}

// Run serves HTTP and sweeps stale tags until ctx is cancelled.
func (rt *runtime) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", rt.tune.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", rt.tune.Addr, err)
	}
	srv := &http.Server{
		Handler:           rt.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		rt.combat.RunSweeper(gctx, rt.tune.SweepInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(ctx2)
		if werr := rt.ws.Shutdown(ctx2); werr != nil {
			rt.log.Printf("ws shutdown: %v", werr)
		}
		return err
	})

	rt.log.Printf("listening on %s arena=%s", ln.Addr(), rt.arena.Config().Name)
	rt.ready <- ln.Addr().String()
	return g.Wait()
}

func (rt *runtime) Close() {
	if rt.combat != nil {
		rt.combat.Close()
	}
	if rt.auditLog != nil {
		if err := rt.auditLog.Close(); err != nil {
			rt.log.Printf("close audit log: %v", err)
		}
	}
	if rt.reader != nil {
		_ = rt.reader.Close()
	}
	if rt.index != nil {
		if err := rt.index.Close(); err != nil {
			rt.log.Printf("close index: %v", err)
		}
	}
}
