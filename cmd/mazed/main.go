package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lawnchairsociety/towermaze/internal/config"
	"github.com/lawnchairsociety/towermaze/internal/database"
	"github.com/lawnchairsociety/towermaze/internal/logger"
	"github.com/lawnchairsociety/towermaze/internal/mazespec"
	"github.com/lawnchairsociety/towermaze/internal/server"
)

func main() {
	configFile := flag.String("config", "mazed.yaml", "Path to service config YAML file")
	loggingConfig := flag.String("logging", "", "Path to logging config YAML file (default: the service config)")
	listen := flag.String("listen", "", "Override the listen address")
	missionFile := flag.String("mission", "", "Override the mission YAML file")
	noStore := flag.Bool("no-store", false, "Publish mazes without storing them")
	warmup := flag.Bool("warmup", true, "Generate one maze at startup so subscribers have something to read")
	flag.Parse()

	// Initialize logger first (before any logging)
	logPath := *loggingConfig
	if logPath == "" {
		logPath = *configFile
	}
	logConfig, _ := logger.LoadConfig(logPath)
	logConfig.Service = "mazed"
	logger.Initialize(logConfig)

	logger.Info("Starting maze service")

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Warning("Failed to load service config, using defaults", "path", *configFile, "error", err)
		cfg = config.DefaultConfig()
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *missionFile != "" {
		cfg.Mission = *missionFile
	}
	if *noStore {
		cfg.Store.Enabled = false
	}

	mission, err := mazespec.LoadFromYAML(cfg.Mission)
	if err != nil {
		log.Fatalf("Failed to load mission: %v", err)
	}
	logger.Info("Mission loaded",
		"path", cfg.Mission,
		"width", mission.Width,
		"length", mission.Length,
		"waypoints", mission.WaypointCount())

	var store server.MazeStore
	if cfg.Store.Enabled {
		db, err := database.OpenWithConfig(cfg.Store.Config)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
		store = db
		logger.Info("Maze store initialized", "driver", db.Dialect().DriverName())
	} else {
		logger.Info("Maze store disabled")
	}

	if len(cfg.WebSocket.AllowedOrigins) == 0 {
		logger.Info("WebSocket CORS policy", "mode", "same-origin")
	} else if len(cfg.WebSocket.AllowedOrigins) == 1 && cfg.WebSocket.AllowedOrigins[0] == "*" {
		logger.Warning("WebSocket CORS allows all origins (not recommended for production)")
	} else {
		logger.Info("WebSocket CORS policy", "allowed_origins", cfg.WebSocket.AllowedOrigins)
	}

	srv := server.NewServer(cfg, mission, store)

	if *warmup {
		if resp, err := srv.Generate("", ""); err != nil {
			logger.Error("Warmup generation failed", "error", err)
		} else {
			logger.Info("Warmup maze ready", "fingerprint", resp.Fingerprint)
		}
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("Maze service error: %v", err)
		}
	}()

	logger.Info("Press Ctrl+C to shutdown")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down maze service")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Maze service stopped")
}
