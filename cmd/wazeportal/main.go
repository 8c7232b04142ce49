package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/wazeportal/ingest/config"
	"github.com/wazeportal/ingest/internal/api"
	"github.com/wazeportal/ingest/internal/database"
	"github.com/wazeportal/ingest/internal/feed"
	"github.com/wazeportal/ingest/internal/logger"
	"github.com/wazeportal/ingest/internal/metrics"
	middlewares "github.com/wazeportal/ingest/internal/middleware"
	"github.com/wazeportal/ingest/internal/notify"
	"github.com/wazeportal/ingest/internal/pipeline"
	"github.com/wazeportal/ingest/internal/ratelimit"
	"github.com/wazeportal/ingest/internal/runlock"
	"github.com/wazeportal/ingest/internal/store"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Local development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting WazePortal ingestion service",
		"version", Version,
		"build_time", BuildTime,
		"git_commit", GitCommit,
	)

	if cfg.Metrics.Enabled {
		metrics.Init()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database and schema
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}
	defer db.Close(ctx)

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", "error", err)
	}

	portalStore := store.New(db)

	// Redis is optional: without it the run lock and API rate limiting are
	// disabled, which is fine for a single-instance deployment.
	var runLock pipeline.Locker
	var limiter *ratelimit.Manager
	if cfg.Redis.URL != "" {
		lock, err := runlock.New(cfg.Redis.URL, cfg.Redis.RunLockTTL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", "error", err)
		}
		defer lock.Close()
		runLock = lock

		if cfg.Redis.APIRateLimit > 0 {
			limiter, err = ratelimit.NewManager(cfg.Redis.URL, cfg.Redis.APIRateLimit)
			if err != nil {
				logger.Fatal("Failed to initialize rate limiter", "error", err)
			}
			defer limiter.Close()
		}
	}

	// Ingestion pipeline
	fetcher := feed.NewHTTPFetcher(cfg.Feeds)
	ingestPipeline := pipeline.New(portalStore, fetcher, runLock, cfg.Pipeline)

	go func() {
		if err := ingestPipeline.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Pipeline error", "error", err)
		}
	}()

	// Notification fan-out
	builder := notify.NewQueueBuilder(portalStore, cfg.Notifier.BuilderInterval)
	go func() {
		if err := builder.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Queue builder error", "error", err)
		}
	}()

	senders := []notify.Sender{
		notify.NewEmailSender(cfg.Notifier.SMTP),
		notify.NewSMSSender(cfg.Notifier.Twilio),
		notify.NewWhatsAppSender(cfg.Notifier.WhatsApp),
	}
	worker := notify.NewDeliveryWorker(portalStore, senders, cfg.Notifier.BatchSize, cfg.Notifier.WorkerInterval)
	go func() {
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Delivery worker error", "error", err)
		}
	}()

	// Setup HTTP server
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.Logging)
	r.Use(middlewares.Metrics)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.ReadTimeout))
	r.Use(middlewares.Security)
	r.Use(middlewares.RedisRateLimiter(limiter))

	apiHandler := api.NewHandler(portalStore, Version, BuildTime, GitCommit)
	apiHandler.RegisterRoutes(r)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting HTTP server", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

func startMetricsServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting metrics server", "address", addr, "path", path)

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server failed", "error", err)
	}
}
