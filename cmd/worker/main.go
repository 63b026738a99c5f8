package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"stocksync/internal/config"
	"stocksync/internal/credentials"
	"stocksync/internal/database"
	"stocksync/internal/logger"
	"stocksync/internal/worker"
	"stocksync/internal/worker/processors"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel, cfg.Env)

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	processor := processors.NewJobProcessor(
		credentials.NewStore(db.DB),
		processors.ShopifyWriters(cfg.ShopifyAPIVersion, logger),
		logger,
	)
	producer := worker.NewProducer(cfg)
	defer producer.Close()

	// Initialize worker
	w := worker.New(cfg, processor, producer, logger)
	defer w.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting worker on topic %s...", cfg.KafkaMutationTopic)
	if err := w.Start(ctx); err != nil {
		logger.Error("Worker stopped: %v", err)
	}
}
