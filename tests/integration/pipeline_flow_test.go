package integration

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"

	"github.com/memorymachines/log-pipeline/internal/adapter/metrics"
	"github.com/memorymachines/log-pipeline/internal/adapter/pii"
	"github.com/memorymachines/log-pipeline/internal/adapter/repository/postgres"
	redisqueue "github.com/memorymachines/log-pipeline/internal/adapter/repository/redis"
	"github.com/memorymachines/log-pipeline/internal/domain"
	"github.com/memorymachines/log-pipeline/internal/usecase"
)

const schema = `
CREATE TABLE IF NOT EXISTS processed_logs (
	tenant_id      TEXT        NOT NULL,
	log_id         TEXT        NOT NULL,
	correlation_id TEXT        NOT NULL DEFAULT '',
	source         TEXT        NOT NULL DEFAULT '',
	original_text  TEXT        NOT NULL DEFAULT '',
	modified_data  TEXT        NOT NULL DEFAULT '',
	content_hash   TEXT        NOT NULL DEFAULT '',
	processed_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, log_id)
)`

// TestPipelineFlow exercises publish -> deliver -> process -> persist ->
// dedup against live Redis and PostgreSQL. Run with:
//
//	INTEGRATION_TEST=1 REDIS_ADDR=localhost:6379 POSTGRES_URL=... go test ./tests/integration/
func TestPipelineFlow(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") == "" {
		t.Skip("set INTEGRATION_TEST=1 to run against live Redis and PostgreSQL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	redisClient := goredis.NewClient(&goredis.Options{Addr: os.Getenv("REDIS_ADDR")})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis unavailable: %v", err)
	}

	db, err := sql.Open("postgres", os.Getenv("POSTGRES_URL"))
	if err != nil {
		t.Fatalf("failed to open postgres: %v", err)
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	// Unique stream per run so reruns do not see stale entries.
	suffix := uuid.NewString()
	policy := domain.RetryPolicy{MaxAttempts: 5, AckDeadline: time.Minute}
	queue, err := redisqueue.NewQueue(redisClient, logger,
		"it_log_envelopes_"+suffix, "it_dlq_"+suffix, "it-processors", "it-consumer", policy, nil)
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}

	store := postgres.NewProcessedLogRepository(db, logger)
	guard := usecase.NewIdempotencyGuard(store, logger)
	pipeline := usecase.NewProcessLogUseCase(guard, pii.NewRedactor(), store, logger, nil)
	consumer := usecase.NewConsumeLogsUseCase(queue, pipeline, policy, logger, metrics.NewWorkerMetrics())

	tenantID := "it_tenant_" + suffix
	const text = "User 555-0199 accessed from IP 192.168.1.100"

	envelope, err := domain.NewEnvelope(tenantID, "log-1", text, domain.SourceJSON, uuid.NewString(), domain.DefaultMaxTextLength)
	if err != nil {
		t.Fatalf("failed to build envelope: %v", err)
	}

	// Publish the same envelope twice: the second delivery must be
	// suppressed by the idempotency guard, not the channel.
	if err := queue.Publish(ctx, envelope); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if err := queue.Publish(ctx, envelope); err != nil {
		t.Fatalf("second publish failed: %v", err)
	}

	processed := 0
	deadline := time.Now().Add(15 * time.Second)
	for processed < 2 && time.Now().Before(deadline) {
		n, err := consumer.ProcessBatch(ctx)
		if err != nil {
			t.Fatalf("process batch failed: %v", err)
		}
		processed += n
	}
	if processed != 2 {
		t.Fatalf("expected 2 resolved deliveries, got %d", processed)
	}

	record, found, err := store.Get(ctx, tenantID, "log-1")
	if err != nil || !found {
		t.Fatalf("expected stored record, found=%v err=%v", found, err)
	}
	if record.ModifiedData != "User [REDACTED] accessed from IP [REDACTED]" {
		t.Errorf("unexpected redacted text %q", record.ModifiedData)
	}
	if record.ContentHash != envelope.ContentHash {
		t.Error("stored hash must match the envelope hash")
	}

	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM processed_logs WHERE tenant_id = $1`, tenantID).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one row for the tenant, got %d", count)
	}
}
