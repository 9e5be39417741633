package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pushrelay/dispatch-service/internal/config"
	"github.com/pushrelay/dispatch-service/internal/credentials"
	"github.com/pushrelay/dispatch-service/internal/dispatch"
	"github.com/pushrelay/dispatch-service/internal/domain"
	"github.com/pushrelay/dispatch-service/internal/gateway"
	"github.com/pushrelay/dispatch-service/internal/gateway/fcm"
	"github.com/pushrelay/dispatch-service/internal/handler"
	"github.com/pushrelay/dispatch-service/internal/middleware"
	"github.com/pushrelay/dispatch-service/internal/repository/postgres"
	"github.com/pushrelay/dispatch-service/internal/repository/redis"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger
	logLevel := slog.LevelInfo
	if cfg.App.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting dispatch service",
		"env", cfg.App.Env,
		"port", cfg.Server.Port,
		"gateway_mode", cfg.Gateway.Mode,
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthHandler := handler.NewHealthHandler()

	// PostgreSQL is optional; without it the delivery log is disabled and
	// batch results are only returned inline.
	var recorder domain.DeliveryRecorder
	if cfg.Database.URL != "" {
		db, err := postgres.New(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		recorder = postgres.NewDeliveryLog(db)
		healthHandler.AddChecker("postgres", db)
		logger.Info("connected to PostgreSQL, delivery log enabled")
	}

	// Redis is optional; without it suppression and rate limiting are off.
	var suppression *redis.SuppressionList
	var rateLimiter *redis.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		suppression = redis.NewSuppressionList(redisClient)
		rateLimiter = redis.NewRateLimiter(redisClient, cfg.Dispatch.RateLimitPerSec)
		healthHandler.AddChecker("redis", redisClient)
		logger.Info("connected to Redis, suppression and rate limiting enabled")
	}

	// Select the messaging gateway and its credential source.
	var gw domain.Gateway
	var source domain.CredentialProvider
	switch cfg.Gateway.Mode {
	case "fcm":
		client, err := fcm.NewClient(ctx, cfg.Gateway.FCMCredentialsFile)
		if err != nil {
			logger.Error("failed to create FCM client", "error", err)
			os.Exit(1)
		}
		gw = fcm.New(client, logger)
		// The SDK handles OAuth itself; the provider only backs the
		// batch-level availability check.
		source = credentials.NewStatic(cfg.Gateway.FCMCredentialsFile)
	case "http":
		gw = gateway.NewHTTPGateway(cfg.Gateway.URL, cfg.Gateway.Timeout)
		source = credentials.NewStatic(cfg.Gateway.BearerToken)
	default:
		logger.Error("unknown gateway mode", "mode", cfg.Gateway.Mode)
		os.Exit(1)
	}

	dispatcher := dispatch.NewDispatcher(gw, credentials.NewCached(source), logger, dispatch.Config{
		Concurrency:    cfg.Dispatch.Concurrency,
		MaxRetries:     cfg.Dispatch.MaxRetries,
		BaseBackoff:    cfg.Dispatch.BaseBackoff,
		MaxBackoff:     cfg.Dispatch.MaxBackoff,
		SendTimeout:    cfg.Dispatch.SendTimeout,
		MaxTokenLength: cfg.Dispatch.MaxTokenLength,
		MaxBatchSize:   cfg.Dispatch.MaxBatchSize,
		SuppressionTTL: cfg.Dispatch.SuppressionTTL,
	})
	if suppression != nil {
		dispatcher.SetSuppressionList(suppression)
	}
	if rateLimiter != nil {
		dispatcher.SetRateLimiter(rateLimiter)
	}

	// Initialize WebSocket hub
	wsHub := handler.NewWebSocketHub(logger)
	go wsHub.Run()

	// Initialize handlers
	metrics := handler.NewMetrics()
	metricsHandler := handler.NewMetricsHandler(metrics)
	dispatchHandler := handler.NewDispatchHandler(dispatcher, recorder, wsHub, metrics, logger)
	wsHandler := handler.NewWebSocketHandler(wsHub)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Correlation)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(metrics))
	r.Use(chimiddleware.Compress(5))

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	// Metrics endpoint
	r.Handle("/metrics", metricsHandler.Handler())

	// WebSocket endpoint
	r.Get("/ws", wsHandler.HandleWebSocket)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/dispatch", dispatchHandler.Dispatch)
		r.Get("/batches/{id}", dispatchHandler.GetBatch)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown; in-flight dispatches run to completion bounded by
	// the server write timeout.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	cancel()

	logger.Info("server stopped")
}
