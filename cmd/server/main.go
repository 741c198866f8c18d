// Command server runs the apfiles request broker API.
//
// Configuration comes from config.yaml (or -config), .env and the
// environment; see internal/config. With REDIS_ADDR set and reachable the
// server runs in Remote Mode, otherwise in Local Mode on a SQLite file.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/sakif/apfiles/internal/config"
	"github.com/sakif/apfiles/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (default config.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := config.NewLogger(cfg, os.Stdout)

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
