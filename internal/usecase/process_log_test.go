package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/memorymachines/log-pipeline/internal/adapter/pii"
	"github.com/memorymachines/log-pipeline/internal/domain"
	"github.com/memorymachines/log-pipeline/internal/domain/mocks"
)

func newPipeline(store *mocks.MockProcessedLogStore) *ProcessLogUseCase {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	guard := NewIdempotencyGuard(store, logger)
	return NewProcessLogUseCase(guard, pii.NewRedactor(), store, logger, nil)
}

func makeDelivery(messageID, tenantID, logID, text string, attempt int) domain.Delivery {
	return domain.Delivery{
		MessageID: messageID,
		Attempt:   attempt,
		Envelope: domain.LogEnvelope{
			TenantID:      tenantID,
			LogID:         logID,
			Text:          text,
			Source:        domain.SourceJSON,
			ContentHash:   domain.HashContent(text),
			CorrelationID: "corr-1",
			SchemaVersion: domain.SchemaVersion,
		},
	}
}

func TestProcessLogUseCase_Process(t *testing.T) {
	t.Run("First delivery persists redacted record", func(t *testing.T) {
		store := mocks.NewMockProcessedLogStore()
		uc := newPipeline(store)

		delivery := makeDelivery("m1", "acme_corp", "log-1", "User 555-0199 accessed from IP 192.168.1.100", 1)
		outcome, err := uc.Process(context.Background(), delivery)

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if outcome != OutcomeProcessed {
			t.Errorf("expected outcome processed, got %s", outcome)
		}
		record, found, _ := store.Get(context.Background(), "acme_corp", "log-1")
		if !found {
			t.Fatal("expected a stored record")
		}
		if record.ModifiedData != "User [REDACTED] accessed from IP [REDACTED]" {
			t.Errorf("unexpected redacted text: %q", record.ModifiedData)
		}
		if record.OriginalText != delivery.Envelope.Text {
			t.Error("original text must be kept for audit")
		}
		if record.CorrelationID != "corr-1" {
			t.Error("correlation id must be carried into the record")
		}
		if record.ProcessedAt.IsZero() {
			t.Error("processed_at must be set")
		}
	})

	t.Run("Redelivery with same hash writes nothing", func(t *testing.T) {
		store := mocks.NewMockProcessedLogStore()
		uc := newPipeline(store)
		delivery := makeDelivery("m1", "acme_corp", "log-1", "same content", 1)

		if _, err := uc.Process(context.Background(), delivery); err != nil {
			t.Fatalf("first delivery failed: %v", err)
		}
		redelivery := makeDelivery("m2", "acme_corp", "log-1", "same content", 2)
		outcome, err := uc.Process(context.Background(), redelivery)

		if err != nil {
			t.Fatalf("duplicate must be success, got %v", err)
		}
		if outcome != OutcomeSkipped {
			t.Errorf("expected outcome skipped, got %s", outcome)
		}
		if store.PutCalls != 1 {
			t.Errorf("expected exactly 1 write, got %d", store.PutCalls)
		}
	})

	t.Run("Same log id with different hash overwrites", func(t *testing.T) {
		store := mocks.NewMockProcessedLogStore()
		uc := newPipeline(store)

		if _, err := uc.Process(context.Background(), makeDelivery("m1", "acme_corp", "log-1", "version one", 1)); err != nil {
			t.Fatalf("first delivery failed: %v", err)
		}
		outcome, err := uc.Process(context.Background(), makeDelivery("m2", "acme_corp", "log-1", "version two", 1))

		if err != nil {
			t.Fatalf("conflicting version must be processed, got %v", err)
		}
		if outcome != OutcomeProcessed {
			t.Errorf("expected outcome processed, got %s", outcome)
		}
		record, _, _ := store.Get(context.Background(), "acme_corp", "log-1")
		if record.ContentHash != domain.HashContent("version two") {
			t.Error("expected stored record to hold the new version")
		}
		if store.PutCalls != 2 {
			t.Errorf("expected 2 writes, got %d", store.PutCalls)
		}
	})

	t.Run("Missing attributes is a permanent error", func(t *testing.T) {
		store := mocks.NewMockProcessedLogStore()
		uc := newPipeline(store)

		delivery := makeDelivery("m1", "", "log-1", "text", 1)
		_, err := uc.Process(context.Background(), delivery)

		if !errors.Is(err, domain.ErrMissingAttributes) {
			t.Fatalf("expected ErrMissingAttributes, got %v", err)
		}
		if !domain.IsPermanent(err) {
			t.Error("missing attributes must classify as permanent")
		}
		if store.PutCalls != 0 {
			t.Error("no write should happen for an invalid delivery")
		}
	})

	t.Run("Store lookup failure is transient", func(t *testing.T) {
		store := mocks.NewMockProcessedLogStore()
		store.GetErr = errors.New("store unavailable")
		uc := newPipeline(store)

		_, err := uc.Process(context.Background(), makeDelivery("m1", "t1", "log-1", "text", 1))

		if err == nil {
			t.Fatal("expected an error, got nil")
		}
		if domain.IsPermanent(err) {
			t.Error("store errors must not classify as permanent")
		}
	})

	t.Run("Cost hook honors cancellation without partial write", func(t *testing.T) {
		store := mocks.NewMockProcessedLogStore()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		guard := NewIdempotencyGuard(store, logger)
		uc := NewProcessLogUseCase(guard, pii.NewRedactor(), store, logger, SleepCost(time.Hour))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := uc.Process(ctx, makeDelivery("m1", "t1", "log-1", "text", 1))

		if err == nil {
			t.Fatal("expected cancellation error")
		}
		if store.PutCalls != 0 {
			t.Error("a cancelled attempt must not write a partial record")
		}
	})
}

func TestIdempotencyGuard_Check(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("No record means process", func(t *testing.T) {
		guard := NewIdempotencyGuard(mocks.NewMockProcessedLogStore(), logger)
		decision, err := guard.Check(context.Background(), "t1", "l1", "h1")
		if err != nil || decision != DecisionProcess {
			t.Errorf("got (%s, %v), want (process, nil)", decision, err)
		}
	})

	t.Run("Same hash means skip", func(t *testing.T) {
		store := mocks.NewMockProcessedLogStore()
		store.Records[[2]string{"t1", "l1"}] = domain.ProcessedLog{TenantID: "t1", LogID: "l1", ContentHash: "h1"}
		guard := NewIdempotencyGuard(store, logger)
		decision, err := guard.Check(context.Background(), "t1", "l1", "h1")
		if err != nil || decision != DecisionSkipDuplicate {
			t.Errorf("got (%s, %v), want (skip_duplicate, nil)", decision, err)
		}
	})

	t.Run("Different hash means overwrite", func(t *testing.T) {
		store := mocks.NewMockProcessedLogStore()
		store.Records[[2]string{"t1", "l1"}] = domain.ProcessedLog{TenantID: "t1", LogID: "l1", ContentHash: "h1"}
		guard := NewIdempotencyGuard(store, logger)
		decision, err := guard.Check(context.Background(), "t1", "l1", "h2")
		if err != nil || decision != DecisionOverwrite {
			t.Errorf("got (%s, %v), want (overwrite, nil)", decision, err)
		}
	})
}
