package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/memorymachines/log-pipeline/internal/adapter/api"
	"github.com/memorymachines/log-pipeline/internal/adapter/api/handler"
	"github.com/memorymachines/log-pipeline/internal/adapter/api/middleware"
	"github.com/memorymachines/log-pipeline/internal/adapter/metrics"
	"github.com/memorymachines/log-pipeline/internal/adapter/pii"
	"github.com/memorymachines/log-pipeline/internal/adapter/repository/archive"
	"github.com/memorymachines/log-pipeline/internal/adapter/repository/postgres"
	redisqueue "github.com/memorymachines/log-pipeline/internal/adapter/repository/redis"
	"github.com/memorymachines/log-pipeline/internal/domain"
	"github.com/memorymachines/log-pipeline/internal/pkg/config"
	"github.com/memorymachines/log-pipeline/internal/pkg/logger"
	"github.com/memorymachines/log-pipeline/internal/usecase"
)

const processingInterval = 1 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting worker service")

	m := metrics.NewWorkerMetrics()
	stats := metrics.NewRuntimeStats("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	// --- PostgreSQL ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	// --- Dead-letter Archive ---
	dlArchive, err := archive.New(cfg.ArchiveDir, cfg.ArchiveSegmentSize, cfg.ArchiveMaxDiskSize, log)
	if err != nil {
		log.Error("failed to initialize dead-letter archive", "error", err)
		os.Exit(1)
	}
	defer dlArchive.Close()

	// --- Delivery Channel ---
	consumerName, err := os.Hostname()
	if err != nil {
		log.Warn("could not get hostname for consumer name, using default", "error", err)
		consumerName = "worker-default"
	}

	policy := domain.RetryPolicy{MaxAttempts: cfg.MaxDeliveryAttempts, AckDeadline: cfg.AckDeadline}
	queue, err := redisqueue.NewQueue(redisClient, log, cfg.LogStream, cfg.DLQStream, cfg.ConsumerGroup, consumerName, policy, dlArchive)
	if err != nil {
		log.Error("failed to initialize delivery channel", "error", err)
		os.Exit(1)
	}

	// --- Processing Pipeline ---
	store := postgres.NewProcessedLogRepository(db, log)
	guard := usecase.NewIdempotencyGuard(store, log)

	var costHook usecase.CostHook
	if cfg.SleepPerChar > 0 {
		log.Warn("cost simulation enabled", "sleep_per_char", cfg.SleepPerChar)
		costHook = usecase.SleepCost(cfg.SleepPerChar)
	}

	pipeline := usecase.NewProcessLogUseCase(guard, pii.NewRedactor(), store, log, costHook)
	consumeUseCase := usecase.NewConsumeLogsUseCase(queue, pipeline, policy, log, m)

	// --- Push Delivery Server ---
	processHandler := handler.NewProcessHandler(pipeline, policy, log, m)
	router := api.NewWorkerRouter(processHandler, stats)

	workerServer := &http.Server{
		Addr:         cfg.WorkerServerAddr,
		Handler:      middleware.Logging(log)(middleware.Stats(stats)(router)),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.AckDeadline,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		log.Info("starting worker server", "addr", workerServer.Addr)
		if err := workerServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("worker server failed", "error", err)
			stop()
		}
	}()

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

	// --- Consumer Loop ---
	ticker := time.NewTicker(processingInterval)
	defer ticker.Stop()

	log.Info("consumer loop started", "group", cfg.ConsumerGroup, "consumer", consumerName)

Loop:
	for {
		select {
		case <-ticker.C:
			if _, err := consumeUseCase.ProcessBatch(ctx); err != nil {
				log.Error("error processing batch", "error", err)
			}
		case <-ctx.Done():
			log.Info("context cancelled, shutting down consumer loop")
			break Loop
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := workerServer.Shutdown(shutdownCtx); err != nil {
		log.Error("worker server shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Error("admin server shutdown failed", "error", err)
	}

	log.Info("worker shut down gracefully")
}
