// Package api wires the HTTP surface: admission, progress streaming, local
// artifact serving and health.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kaili/songforge/internal/api/handler"
	"github.com/kaili/songforge/internal/api/middleware"
	"github.com/kaili/songforge/internal/config"
	"github.com/kaili/songforge/internal/logger"
	"github.com/kaili/songforge/internal/service"
	"github.com/kaili/songforge/internal/storage"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	cfg *config.Config,
	generation *service.GenerationService,
	stream *service.StreamService,
	objectStorage storage.ObjectStorage,
	log *logger.Logger,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.Server.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	generateHandler := handler.NewGenerateHandler(generation, stream)
	filesHandler := handler.NewFilesHandler(objectStorage)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Artifact files (local storage backend only)
		v1.GET("/files/:key", filesHandler.Get)

		auth := v1.Group("")
		auth.Use(middleware.Auth(cfg.Auth.JWTSecret))
		{
			// Generation
			auth.POST("/generate", generateHandler.Generate)
			auth.GET("/generate/events/:job_id", generateHandler.Events)
		}
	}

	return r
}
