package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kaili/songforge/internal/config"
	"github.com/kaili/songforge/internal/cover"
	"github.com/kaili/songforge/internal/engine"
	"github.com/kaili/songforge/internal/executor"
	"github.com/kaili/songforge/internal/jobstate"
	"github.com/kaili/songforge/internal/logger"
	"github.com/kaili/songforge/internal/queue"
	"github.com/kaili/songforge/internal/repository"
	"github.com/kaili/songforge/internal/storage"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.NewFromEnv("songforge-worker")
	logger.SetDefault(appLogger)
	defer logger.Sync()

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	songRepo := repository.NewSongRepository(db)
	store := jobstate.New(db, cfg.Jobs.TTL)

	// Initialize storage
	objectStorage, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	// Initialize the inference chain. The primary engine's weights load
	// lazily on the first job; an unreachable sidecar degrades to the
	// fallback synthesizer instead of failing jobs.
	var primary engine.Generator
	if cfg.Engine.BaseURL != "" {
		primary = engine.NewAceStep(engine.AceStepConfig{
			BaseURL:      cfg.Engine.BaseURL,
			ModelDir:     cfg.Engine.ModelDir,
			Device:       cfg.Engine.Device,
			PollInterval: cfg.Engine.PollInterval,
			Timeout:      cfg.Engine.Timeout,
		})
	}
	chain := engine.NewChain(primary, appLogger)

	coverService := cover.New(&cover.Config{
		Enabled: cfg.Cover.Enabled,
		Model:   cfg.Cover.Model,
		Token:   cfg.Cover.Token,
		BaseURL: cfg.Cover.BaseURL,
	})

	exec := executor.New(store, chain, coverService, objectStorage, songRepo, appLogger, cfg.Engine.SampleRate)

	// Initialize the queue worker client
	pool, err := pgxpool.New(context.Background(), cfg.Queue.DatabaseURL)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to queue database")
	}
	defer pool.Close()

	workerClient, err := queue.NewWorkerClient(pool, exec, cfg.Queue.MaxWorkers)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to create queue worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := workerClient.Start(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to start queue worker")
	}
	appLogger.WithField("max_workers", cfg.Queue.MaxWorkers).Info("Worker started")

	// Janitor: sweep expired job records so abandoned jobs don't pile up
	sweepInterval := cfg.Jobs.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := store.PurgeExpired(ctx)
				if err != nil {
					appLogger.WithError(err).Warn("Job record sweep failed")
				} else if n > 0 {
					appLogger.WithField("purged", n).Info("Purged expired job records")
				}
			}
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down worker...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := workerClient.Stop(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Worker forced to shutdown")
	}

	appLogger.Info("Worker exited")
}
