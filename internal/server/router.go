package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/lessonforge/backend/internal/handlers"
)

type RouterConfig struct {
	SessionHandler   *handlers.SessionHandler
	LogStreamHandler *handlers.LogStreamHandler
	GenerateHandler  *handlers.GenerateHandler
	DocumentHandler  *handlers.DocumentHandler
	DownloadHandler  *handlers.DownloadHandler
	TracingEnabled   bool
	ServiceName      string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	if cfg.TracingEnabled {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)
	router.GET("/download/:filename", cfg.DownloadHandler.Download)

	api := router.Group("/api")
	{
		// Sessions
		api.POST("/sessions", cfg.SessionHandler.Create)
		api.GET("/sessions/:id", cfg.SessionHandler.Get)
		api.DELETE("/sessions/:id", cfg.SessionHandler.Delete)
		api.GET("/sessions/:id/logs", cfg.SessionHandler.Poll)
		api.GET("/sessions/:id/stream", cfg.LogStreamHandler.Stream)
		// Generation
		api.POST("/generate", cfg.GenerateHandler.GenerateOne)
		api.POST("/batch-generate", cfg.GenerateHandler.BatchGenerate)
		// Reference documents
		api.POST("/lessons/:lessonId/documents", cfg.DocumentHandler.Upload)
		api.GET("/lessons/:lessonId/documents", cfg.DocumentHandler.List)
		api.DELETE("/lessons/:lessonId/documents/:filename", cfg.DocumentHandler.Delete)
	}

	return router
}
