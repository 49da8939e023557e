// Package main is the entry point for the debate arena engine.
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
	"syscall"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/anthropics/debate-arena/internal/agents"
	"github.com/anthropics/debate-arena/internal/broadcast"
	"github.com/anthropics/debate-arena/internal/config"
	"github.com/anthropics/debate-arena/internal/docstore"
	"github.com/anthropics/debate-arena/internal/engine"
	"github.com/anthropics/debate-arena/internal/inference"
	"github.com/anthropics/debate-arena/internal/ipc"
	"github.com/anthropics/debate-arena/internal/prompt"
	"github.com/anthropics/debate-arena/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to configuration JSON file")
	flag.Parse()

	if *showVersion {
		fmt.Printf("debatearena %s (commit=%s, built=%s)\n", version, commit, date)
		os.Exit(0)
	}

	// Resolve config path: --config flag > ARENA_CONFIG env > auto-discover.
	path := *configPath
	if path == "" {
		path = os.Getenv("ARENA_CONFIG")
	}
	if path == "" {
		path = discoverConfig()
	}
	if path == "" {
		fatal("no config found. Place config.json next to the exe, use --config <path>, or set ARENA_CONFIG.")
	}

	cfg, err := config.Load(path)
	if err != nil {
		fatal(fmt.Sprintf("load config: %v", err))
	}

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Seed the default panel so a fresh install can debate immediately.
	registry := agents.NewRegistry(db)
	if err := registry.EnsureDefaults(context.Background()); err != nil {
		log.Fatalf("seed default agents: %v", err)
	}

	documents := docstore.NewStore(db)

	// Wire the inference gateway.
	opts := []option.RequestOption{option.WithAPIKey(os.Getenv(cfg.APIKeyEnv))}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	gateway := inference.NewGateway(&client, cfg.Model, inference.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   time.Duration(cfg.RetryBaseMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.RetryMaxMs) * time.Millisecond,
	})

	// The gateway doubles as the summarizer behind context folding.
	window := prompt.NewManager(cfg.WindowRounds, cfg.TokenBudget, gateway)

	broadcaster := broadcast.NewBroadcaster(cfg.SubscriberBuffer)

	statementRepo := &store.StatementRepo{}
	coordinator := &engine.RoundCoordinator{
		DB:                db,
		Statements:        statementRepo,
		Gateway:           gateway,
		Window:            window,
		Events:            broadcaster,
		AbortFailureRatio: cfg.AbortFailureRatio,
		AgentTimeout:      time.Duration(cfg.AgentTimeoutSec) * time.Second,
	}

	machine := engine.NewMachine(db, registry, documents, window, coordinator, broadcaster, cfg.ExcerptTokens)
	machine.MaxPanel = cfg.MaxConcurrentAgents
	defer machine.Close()

	handler := &ipc.Handler{
		Machine:     machine,
		Agents:      registry,
		Documents:   documents,
		Broadcaster: broadcaster,
		DB:          db,
		Statements:  statementRepo,
	}

	srv := ipc.NewServer(handler, cfg.ListenAddr)

	// Graceful shutdown on interrupt.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Println("shutting down...")

		machine.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("debate arena listening on %s", ipc.FormatListenURL(cfg.ListenAddr))

	if err := srv.Start(); err != nil && err != http.ErrServerClosed {
		fatal(fmt.Sprintf("server error: %v", err))
	}
}

// discoverConfig looks for config.json next to the executable, then in the cwd.
func discoverConfig() string {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "config.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if _, err := os.Stat("config.json"); err == nil {
		return "config.json"
	}
	return ""
}

func fatal(msg string) {
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", msg)
	os.Exit(1)
}
