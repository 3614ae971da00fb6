// Health Triage - Server Entry Point
//
// This is the main entry point for the rule-based health triage service.
// It initializes all dependencies and starts the HTTP server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/health-triage/internal/config"
	"github.com/health-triage/internal/handler"
	"github.com/health-triage/internal/logger"
	"github.com/health-triage/internal/metrics"
	"github.com/health-triage/internal/rules"
	"github.com/health-triage/internal/service"
	"github.com/health-triage/internal/snapshot"
	"github.com/health-triage/pkg/sanitizer"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// maxLogPreview bounds the request body excerpt logged for rejected requests.
const maxLogPreview = 512

func main() {
	// Load .env file if it exists (development)
	_ = godotenv.Load()

	// Determine if we're in development mode
	isDev := os.Getenv("GIN_MODE") != "release"

	// Initialize logger
	zapLogger, err := logger.New(logger.Options{
		Development: isDev,
		Service:     handler.ServiceName,
	})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting health triage service",
		zap.Bool("development", isDev),
	)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		zapLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	zapLogger.Info("configuration loaded",
		zap.String("port", cfg.Server.Port),
		zap.String("config_source", string(cfg.Source.Kind)),
		zap.Duration("refresh_interval", cfg.Source.RefreshInterval),
		zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
	)

	// Initialize configuration source
	var src snapshot.Source
	switch cfg.Source.Kind {
	case config.SourceSQLite:
		sqliteSrc, err := snapshot.NewSQLiteSource(cfg.Source.SQLitePath)
		if err != nil {
			zapLogger.Fatal("failed to open sqlite source", zap.Error(err))
		}
		defer sqliteSrc.Close()
		src = sqliteSrc
	default:
		src = snapshot.NewFileSource(cfg.Source.RulesDir)
	}

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Initialize snapshot store
	store := snapshot.NewStore(src, snapshot.StoreConfig{
		CheckOnRead:  cfg.Source.CheckOnRead,
		RetryBackoff: cfg.Source.RetryBackoff,
		OnReload:     m.OnReload(),
	}, zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A missing configuration is not fatal; /ready reports it and requests
	// get 503 until a later refresh succeeds.
	if err := store.Refresh(ctx); err != nil {
		zapLogger.Warn("initial configuration load failed", zap.Error(err))
	}
	go store.Run(ctx, cfg.Source.RefreshInterval)

	// Initialize triage service
	triager := service.NewTriager(
		store,
		rules.NewEngine(zapLogger),
		sanitizer.New(maxLogPreview),
		m.Hooks(),
		zapLogger,
	)

	// Initialize handlers
	triageHandler := handler.NewTriageHandler(triager, zapLogger)
	catalogHandler := handler.NewCatalogHandler(triager, zapLogger)
	healthHandler := handler.NewHealthHandler(zapLogger)
	readyHandler := handler.NewReadyHandler(store, zapLogger)

	// Setup Gin router
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Apply middleware
	router.Use(handler.RecoveryMiddleware(zapLogger))
	router.Use(handler.RequestIDMiddleware())
	router.Use(handler.LoggingMiddleware(zapLogger))
	router.Use(handler.CORSMiddleware(cfg.Server.CORSAllowOrigin))
	router.Use(handler.BodyLimitMiddleware(cfg.Server.MaxBodyBytes))

	// Register routes
	router.GET("/health", healthHandler.Handle)
	router.GET("/ready", readyHandler.Handle)
	router.GET("/config/:name", catalogHandler.Handle)
	if cfg.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	// Path used by existing clients
	router.POST("/api/triage", triageHandler.Handle)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/triage", triageHandler.Handle)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		zapLogger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	zapLogger.Info("shutting down server...")

	// Give the server 10 seconds to finish processing
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("server stopped")
}
