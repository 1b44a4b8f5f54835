package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kaili/songforge/internal/api"
	"github.com/kaili/songforge/internal/config"
	"github.com/kaili/songforge/internal/jobstate"
	"github.com/kaili/songforge/internal/logger"
	"github.com/kaili/songforge/internal/queue"
	"github.com/kaili/songforge/internal/repository"
	"github.com/kaili/songforge/internal/service"
	"github.com/kaili/songforge/internal/storage"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.NewFromEnv("songforge-api")
	logger.SetDefault(appLogger)
	defer logger.Sync()

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories and the job state store
	userRepo := repository.NewUserRepository(db)
	store := jobstate.New(db, cfg.Jobs.TTL)

	// Initialize storage (supports local directory, MinIO, R2, S3)
	objectStorage, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	// Initialize the work queue (insert-only in the web process)
	pool, err := pgxpool.New(context.Background(), cfg.Queue.DatabaseURL)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to queue database")
	}
	defer pool.Close()

	queueClient, err := queue.NewInsertClient(pool)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to create queue client")
	}

	// Initialize services
	generationService := service.NewGenerationService(userRepo, store, queueClient, appLogger)
	streamService := service.NewStreamService(store, cfg.Jobs.PollInterval, cfg.Jobs.StreamTimeout, appLogger)

	// Setup router
	router := api.SetupRouter(cfg, generationService, streamService, objectStorage, appLogger)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
