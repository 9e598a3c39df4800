package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lessonforge/backend/internal/config"
	"github.com/lessonforge/backend/internal/db"
	"github.com/lessonforge/backend/internal/handlers"
	"github.com/lessonforge/backend/internal/logger"
	"github.com/lessonforge/backend/internal/observability"
	"github.com/lessonforge/backend/internal/repos"
	"github.com/lessonforge/backend/internal/server"
	"github.com/lessonforge/backend/internal/services"
	"github.com/lessonforge/backend/internal/sse"
	"github.com/lessonforge/backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Env
	log.Info("Loading environment variables from main...")
	port := utils.GetEnv("PORT", "8080", log)
	outputDir := utils.GetEnv("OUTPUT_DIR", "output", log)
	uploadDir := utils.GetEnv("UPLOAD_DIR", "uploads", log)
	auditDir := utils.GetEnv("PROMPT_AUDIT_DIR", "prompt_audit", log)
	profilePath := utils.GetEnv("COURSE_PROFILE_PATH", "", log)
	sessionMaxIdleMin := utils.GetEnvAsInt("SESSION_MAX_IDLE_MINUTES", 30, log)
	sweepIntervalSec := utils.GetEnvAsInt("SESSION_SWEEP_INTERVAL_SECONDS", 60, log)

	// Tracing
	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "lessonforge-backend",
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})

	// Course profile defaults
	profile := config.DefaultCourseProfile()
	if profilePath != "" {
		loaded, err := config.LoadCourseProfile(profilePath)
		if err != nil {
			log.Warn("Could not load course profile, using defaults", "path", profilePath, "error", err)
		} else {
			profile = profile.Merge(loaded)
		}
	}

	// SQLite
	sqliteService, err := db.NewSQLiteService(log)
	if err != nil {
		log.Error("SQLite init failed", "error", err)
		os.Exit(1)
	}
	if err = sqliteService.AutoMigrateAll(); err != nil {
		log.Warn("SQLite auto migration failed", "error", err)
	}
	theDB := sqliteService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	refDocRepo := repos.NewReferenceDocumentRepo(theDB, log)

	// SSE
	log.Info("Setting up SSE hub now...")
	hub := sse.NewHub(log)

	// Cross-instance fanout rides redis when configured; otherwise events go
	// straight to the local hub.
	var emitter services.SSEEmitter = services.NewHubEmitter(hub)
	var bus services.SSEBus
	if os.Getenv("REDIS_ADDR") != "" {
		bus, err = services.NewRedisSSEBus(log)
		if err != nil {
			log.Warn("Redis SSE bus init failed, falling back to local hub", "error", err)
		} else {
			if err := bus.StartForwarder(ctx, services.BroadcastToHub(hub)); err != nil {
				log.Warn("Redis SSE forwarder failed to start", "error", err)
			} else {
				emitter = &services.RedisEmitter{Bus: bus}
			}
		}
	}

	// Services
	log.Info("Setting up Services from main...")
	notifier := services.NewSessionNotifier(log, emitter, hub)
	sessionStore := services.NewSessionStore(log)
	delivery := services.NewLogDeliveryService(log, sessionStore)

	var generator services.TextGenerator
	if os.Getenv("GENERATOR_MOCK") == "1" {
		log.Warn("Using mock text generator")
		generator = services.NewMockGenerator()
	} else {
		generator = services.NewDeepSeekClient(log)
	}

	renderer, err := services.NewMarkdownRenderer(log, outputDir)
	if err != nil {
		log.Error("Could not init MarkdownRenderer", "error", err)
		os.Exit(1)
	}
	documentStore, err := services.NewDocumentStore(theDB, log, refDocRepo, uploadDir)
	if err != nil {
		log.Error("Could not init DocumentStore", "error", err)
		os.Exit(1)
	}
	orchestrator := services.NewBatchOrchestrator(log, sessionStore, notifier, documentStore, generator, renderer, profile, auditDir)
	lifecycle := services.NewSessionLifecycleManager(
		log,
		sessionStore,
		notifier,
		time.Duration(sessionMaxIdleMin)*time.Minute,
		time.Duration(sweepIntervalSec)*time.Second,
	)

	// Handlers
	log.Info("Setting up handlers from main...")
	sessionHandler := handlers.NewSessionHandler(sessionStore, delivery)
	logStreamHandler := handlers.NewLogStreamHandler(hub, sessionStore)
	generateHandler := handlers.NewGenerateHandler(orchestrator, sessionStore)
	documentHandler := handlers.NewDocumentHandler(documentStore)
	downloadHandler := handlers.NewDownloadHandler(outputDir)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		SessionHandler:   sessionHandler,
		LogStreamHandler: logStreamHandler,
		GenerateHandler:  generateHandler,
		DocumentHandler:  documentHandler,
		DownloadHandler:  downloadHandler,
		TracingEnabled:   observability.Enabled(),
		ServiceName:      "lessonforge-backend",
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lifecycle.Start(gctx)
		return nil
	})
	g.Go(func() error {
		fmt.Printf("Server listening on :%s\n", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server failed", "error", err)
	}
	if bus != nil {
		_ = bus.Close()
	}
	if shutdownOtel != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOtel(shutdownCtx)
	}
}
