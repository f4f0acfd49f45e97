package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Bullochman/hivegrid/internal/app"
	"github.com/Bullochman/hivegrid/internal/config"
	"github.com/Bullochman/hivegrid/internal/transport/api"
	"github.com/Bullochman/hivegrid/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address (default: localhost:$PORT, or 0.0.0.0:$PORT when hosted)")
		dataDir    = flag.String("data", ".", "directory holding hive_config.json and derived files")
		layoutPath = flag.String("layout", "", "path to hive.yaml layout defaults (empty: built-in 10x10)")
		disableDB  = flag.Bool("disable_db", false, "disable the SQLite roster/audit index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	env, err := config.LoadServer()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if *addr == "" {
		*addr = env.Addr()
	}

	rt, err := app.Open(app.Options{
		DataDir:      *dataDir,
		LayoutPath:   *layoutPath,
		Source:       "api",
		SnapshotKeep: env.SnapshotKeep,
		DisableDB:    *disableDB || env.DisableDB,
		R2:           env.R2,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatalf("open: %v", err)
	}
	defer rt.Close()

	// Load once at startup so a missing file is seeded and repairs are logged
	// before the first request.
	doc, err := rt.Service.Current()
	if err != nil {
		logger.Fatalf("load state: %v", err)
	}
	logger.Printf("state %s rev=%d members=%d assigned=%d grid=%s",
		rt.Store.Path(), doc.Revision, len(doc.State.Members), len(doc.State.Assignments), doc.State.Config)

	apiSrv := api.NewServer(rt.Service, logger)
	apiSrv.AddMetrics(indexMetrics(rt.Index))
	apiSrv.AddMetrics(mirrorMetrics(rt.Mirror))

	mux := http.NewServeMux()
	apiSrv.Register(mux)
	if env.EnableObserver {
		obs := observer.NewServer(rt.Service, logger)
		rt.Service.AddExporter(obs)
		apiSrv.AddMetrics(observerMetrics(obs))
		mux.HandleFunc("/observer/ws", obs.WSHandler())
	} else {
		logger.Printf("observer stream disabled (HIVE_ENABLE_OBSERVER=false)")
	}

	ctx, cancel := signalContext()
	defer cancel()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (hosted=%v)", *addr, env.Hosted())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
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
