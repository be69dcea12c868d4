package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dockforge/dockforge/internal/api"
	"github.com/dockforge/dockforge/internal/config"
	"github.com/dockforge/dockforge/internal/metrics"
	"github.com/dockforge/dockforge/internal/store"
	"github.com/dockforge/dockforge/internal/workspace"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	mgr, err := workspace.NewManager(filepath.Join(cfg.DataDir, "workspaces"))
	if err != nil {
		log.Fatalf("failed to initialize workspace root: %v", err)
	}
	log.Printf("dockforge: workspace root: %s", filepath.Join(cfg.DataDir, "workspaces"))

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to open record store: %v", err)
	}
	defer st.Close()
	log.Printf("dockforge: SQLite record store: %s", filepath.Join(cfg.DataDir, "dockforge.db"))

	metrics.Register()

	if cfg.APIKey == "" {
		log.Println("dockforge: no DOCKFORGE_API_KEY configured, API is unauthenticated")
	}

	server := api.NewServer(cfg, mgr, st)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("dockforge: starting server on %s", addr)

	go func() {
		if err := server.Start(addr); err != nil {
			log.Printf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("dockforge: shutting down...")
	if err := server.Close(); err != nil {
		log.Printf("error closing server: %v", err)
	}
}
