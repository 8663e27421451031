package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gemrush.dev/internal/config"
	"gemrush.dev/internal/persistence/db"
	"gemrush.dev/internal/persistence/journal"
	"gemrush.dev/internal/server"
	"gemrush.dev/internal/sim/world/gen"
	"gemrush.dev/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address (overrides config)")
		configPath = flag.String("config", "", "path to config.yaml (optional)")
		dbPath     = flag.String("db", "", "sqlite database path (overrides config)")
		journalDir = flag.String("journal", "", "journal directory (overrides config)")
		seed       = flag.Int64("seed", 0, "world seed (overrides config)")
		genName    = flag.String("gen", "", "terrain generator name (overrides config)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(strings.TrimSpace(*configPath))
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "db":
			cfg.DBPath = *dbPath
		case "journal":
			cfg.JournalDir = *journalDir
		case "seed":
			cfg.Seed = *seed
		case "gen":
			cfg.Generator = *genName
		}
	})

	g, ok := gen.ByName(cfg.Generator, cfg.Seed)
	if !ok {
		logger.Fatalf("unknown generator %q", cfg.Generator)
	}

	_ = os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755)
	store, err := db.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Fatalf("open db: %v", err)
	}
	defer store.Close()

	jrnl, err := journal.Open(cfg.JournalDir, logger)
	if err != nil {
		logger.Fatalf("open journal: %v", err)
	}
	defer jrnl.Close()

	hub := server.NewHub(server.Config{
		Spawn:        cfg.SpawnTile(),
		StreamRadius: int32(cfg.StreamRadius),
		PingInterval: cfg.PingInterval(),
	}, g, store, jrnl, logger)

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, hub.Stats())
	})
	mux.HandleFunc("/ws", ws.NewServer(func(conn *ws.Conn) {
		server.RunSession(hub, conn, logger)
	}, logger).Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("seed %d, generator %q, db %s", cfg.Seed, cfg.Generator, cfg.DBPath)
	logger.Printf("listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// Listener is down; wind sessions down so every entity persists.
	hub.Shutdown(5 * time.Second)
	logger.Printf("bye")
}

func writeMetrics(rw http.ResponseWriter, st server.Stats) {
	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP gemrush_sessions Current number of connected sessions.\n")
	fmt.Fprintf(rw, "# TYPE gemrush_sessions gauge\n")
	fmt.Fprintf(rw, "gemrush_sessions %d\n", st.Sessions)

	fmt.Fprintf(rw, "# HELP gemrush_entities Current number of entities in the world.\n")
	fmt.Fprintf(rw, "# TYPE gemrush_entities gauge\n")
	fmt.Fprintf(rw, "gemrush_entities %d\n", st.Entities)

	fmt.Fprintf(rw, "# HELP gemrush_loaded_chunks Loaded chunk count.\n")
	fmt.Fprintf(rw, "# TYPE gemrush_loaded_chunks gauge\n")
	fmt.Fprintf(rw, "gemrush_loaded_chunks %d\n", st.ChunksLoaded)

	fmt.Fprintf(rw, "# HELP gemrush_connects_total Total accepted sessions.\n")
	fmt.Fprintf(rw, "# TYPE gemrush_connects_total counter\n")
	fmt.Fprintf(rw, "gemrush_connects_total %d\n", st.Connects)

	fmt.Fprintf(rw, "# HELP gemrush_disconnects_total Total closed sessions.\n")
	fmt.Fprintf(rw, "# TYPE gemrush_disconnects_total counter\n")
	fmt.Fprintf(rw, "gemrush_disconnects_total %d\n", st.Disconnects)

	fmt.Fprintf(rw, "# HELP gemrush_frames_in_total Total frames received.\n")
	fmt.Fprintf(rw, "# TYPE gemrush_frames_in_total counter\n")
	fmt.Fprintf(rw, "gemrush_frames_in_total %d\n", st.FramesIn)

	fmt.Fprintf(rw, "# HELP gemrush_frames_out_total Total frames sent.\n")
	fmt.Fprintf(rw, "# TYPE gemrush_frames_out_total counter\n")
	fmt.Fprintf(rw, "gemrush_frames_out_total %d\n", st.FramesOut)

	fmt.Fprintf(rw, "# HELP gemrush_moves_rejected_total Total move requests that were corrected.\n")
	fmt.Fprintf(rw, "# TYPE gemrush_moves_rejected_total counter\n")
	fmt.Fprintf(rw, "gemrush_moves_rejected_total %d\n", st.MovesRejected)

	fmt.Fprintf(rw, "# HELP gemrush_chunks_generated_total Total chunks produced by the generator.\n")
	fmt.Fprintf(rw, "# TYPE gemrush_chunks_generated_total counter\n")
	fmt.Fprintf(rw, "gemrush_chunks_generated_total %d\n", st.ChunksGenerated)

	fmt.Fprintf(rw, "# HELP gemrush_events_dropped_total Total events dropped on full session buffers.\n")
	fmt.Fprintf(rw, "# TYPE gemrush_events_dropped_total counter\n")
	fmt.Fprintf(rw, "gemrush_events_dropped_total %d\n", st.EventsDropped)

	fmt.Fprintf(rw, "# HELP gemrush_journal_dropped_total Total journal records dropped under backlog.\n")
	fmt.Fprintf(rw, "# TYPE gemrush_journal_dropped_total counter\n")
	fmt.Fprintf(rw, "gemrush_journal_dropped_total %d\n", st.JournalDropped)
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
