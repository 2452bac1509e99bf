package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/memorymachines/log-pipeline/internal/adapter/pii"
	"github.com/memorymachines/log-pipeline/internal/domain"
)

// Outcome summarizes what processing one delivery did.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeSkipped   Outcome = "skipped"
)

// CostHook models variable per-message processing cost in test and load
// scenarios. It is never load-bearing: production wiring passes nil.
type CostHook func(ctx context.Context, chars int) error

// SleepCost returns a CostHook that sleeps perChar for every character of
// text, honoring context cancellation.
func SleepCost(perChar time.Duration) CostHook {
	return func(ctx context.Context, chars int) error {
		timer := time.NewTimer(time.Duration(chars) * perChar)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ProcessLogUseCase is the consumer-side pipeline for one delivered
// envelope: validate attributes, consult the idempotency guard, redact,
// persist. The caller maps the returned error (or its absence) onto the
// retry contract: nil means acknowledge, duplicates included.
type ProcessLogUseCase struct {
	guard    *IdempotencyGuard
	redactor *pii.Redactor
	store    domain.ProcessedLogStore
	logger   *slog.Logger
	costHook CostHook
	now      func() time.Time
}

// NewProcessLogUseCase creates a new ProcessLogUseCase. costHook may be nil.
func NewProcessLogUseCase(guard *IdempotencyGuard, redactor *pii.Redactor, store domain.ProcessedLogStore, logger *slog.Logger, costHook CostHook) *ProcessLogUseCase {
	return &ProcessLogUseCase{
		guard:    guard,
		redactor: redactor,
		store:    store,
		logger:   logger,
		costHook: costHook,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Process runs the pipeline for one delivery. Missing required attributes
// are permanent errors: redelivering the same bytes cannot fix them, but
// they are still failures so the bounded-retry counter advances and the
// message eventually dead-letters. Store errors are transient and worth a
// redelivery.
func (uc *ProcessLogUseCase) Process(ctx context.Context, delivery domain.Delivery) (Outcome, error) {
	env := delivery.Envelope
	if env.TenantID == "" || env.LogID == "" || env.ContentHash == "" {
		return "", fmt.Errorf("%w: tenant_id, log_id and content_hash are required", domain.ErrMissingAttributes)
	}

	decision, err := uc.guard.Check(ctx, env.TenantID, env.LogID, env.ContentHash)
	if err != nil {
		return "", err
	}
	if decision == DecisionSkipDuplicate {
		return OutcomeSkipped, nil
	}

	if uc.costHook != nil {
		if err := uc.costHook(ctx, len(env.Text)); err != nil {
			return "", fmt.Errorf("processing abandoned: %w", err)
		}
	}

	record := domain.ProcessedLog{
		TenantID:      env.TenantID,
		LogID:         env.LogID,
		CorrelationID: env.CorrelationID,
		Source:        env.Source,
		OriginalText:  env.Text,
		ModifiedData:  uc.redactor.Redact(env.Text),
		ContentHash:   env.ContentHash,
		ProcessedAt:   uc.now(),
	}

	if err := uc.store.Put(ctx, record); err != nil {
		return "", fmt.Errorf("failed to persist processed log: %w", err)
	}

	uc.logger.Info("processed log stored",
		"tenant_id", env.TenantID,
		"log_id", env.LogID,
		"correlation_id", env.CorrelationID,
		"decision", decision.String(),
		"attempt", delivery.Attempt,
	)
	return OutcomeProcessed, nil
}
