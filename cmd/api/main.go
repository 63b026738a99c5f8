package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stocksync/internal/api"
	"stocksync/internal/config"
	"stocksync/internal/credentials"
	"stocksync/internal/database"
	"stocksync/internal/lock"
	"stocksync/internal/logger"
	"stocksync/internal/orchestrator"
	"stocksync/internal/services/shopify"
	"stocksync/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel, cfg.Env)

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	store := credentials.NewStore(db.DB)
	recorder := orchestrator.NewGormRecorder(db.DB)
	orch := orchestrator.New(store, orchestrator.PlatformClients(cfg, logger), orchestrator.OptionsFromConfig(cfg), logger).
		WithRecorder(recorder)

	if cfg.RedisURL != "" {
		locker, err := lock.NewRedisLockerFromURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("Failed to configure run lock: %v", err)
		}
		defer locker.Close()
		orch.WithLocker(locker)
	} else {
		logger.Warn("REDIS_URL not set; tenant locks are local to this process")
	}

	if len(cfg.Brokers()) > 0 {
		producer := worker.NewProducer(cfg)
		defer producer.Close()
		orch.WithQueue(producer)
	}

	// Initialize API server
	server := api.New(cfg, logger, api.Deps{
		DB:     db.DB,
		Sync:   orch,
		Runs:   recorder,
		OAuth:  shopify.NewOAuthService(cfg, logger),
		Tokens: store,
	})

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("Server shutdown failed: %v", err)
	}
}
