package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/memorymachines/log-pipeline/internal/adapter/api"
	"github.com/memorymachines/log-pipeline/internal/adapter/api/handler"
	"github.com/memorymachines/log-pipeline/internal/adapter/api/middleware"
	"github.com/memorymachines/log-pipeline/internal/adapter/metrics"
	redisqueue "github.com/memorymachines/log-pipeline/internal/adapter/repository/redis"
	"github.com/memorymachines/log-pipeline/internal/domain"
	"github.com/memorymachines/log-pipeline/internal/pkg/config"
	"github.com/memorymachines/log-pipeline/internal/pkg/logger"
	"github.com/memorymachines/log-pipeline/internal/usecase"
)

// maxRequestBody bounds raw HTTP bodies; the character-level text limit is
// enforced by the normalizer.
const maxRequestBody = 1 << 20 // 1MB

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	m := metrics.NewIngestMetrics()
	stats := metrics.NewRuntimeStats("ingest")

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Delivery Channel ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	policy := domain.RetryPolicy{MaxAttempts: cfg.MaxDeliveryAttempts, AckDeadline: cfg.AckDeadline}
	queue, err := redisqueue.NewQueue(redisClient, log, cfg.LogStream, cfg.DLQStream, cfg.ConsumerGroup, "ingest-service", policy, nil)
	if err != nil {
		log.Error("failed to initialize delivery channel", "error", err)
		os.Exit(1)
	}

	// --- Use Case and Routes ---
	ingestUseCase := usecase.NewIngestLogUseCase(queue, log, cfg.MaxTextLength)
	ingestHandler := handler.NewIngestHandler(ingestUseCase, log, m, maxRequestBody)
	router := api.NewIngestRouter(ingestHandler, stats)

	chain := middleware.Logging(log)(
		middleware.Stats(stats)(
			middleware.RateLimit(cfg.IngestRateLimit, cfg.IngestBurst, log)(router)))

	ingestServer := &http.Server{
		Addr:         cfg.IngestServerAddr,
		Handler:      chain,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// --- Admin and Metrics Server ---
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	adminServer := &http.Server{Addr: cfg.AdminServerAddr, Handler: adminMux}

	go func() {
		log.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin & metrics server failed", "error", err)
		}
	}()

	go func() {
		log.Info("starting ingest server", "addr", ingestServer.Addr)
		if err := ingestServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("ingest server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := ingestServer.Shutdown(shutdownCtx); err != nil {
		log.Error("ingest server shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Error("admin server shutdown failed", "error", err)
	}

	log.Info("servers shut down gracefully")
}
