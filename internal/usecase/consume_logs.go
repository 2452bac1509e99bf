package usecase

import (
	"context"
	"log/slog"

	"github.com/memorymachines/log-pipeline/internal/adapter/metrics"
	"github.com/memorymachines/log-pipeline/internal/domain"
)

const defaultBatchSize = 100

// ConsumeLogsUseCase drives the consumer half of the delivery retry
// contract: it reads in-flight deliveries from the channel, runs each one
// through the processing pipeline under the ack-deadline, and maps the
// result onto acknowledge, nack or dead-letter.
type ConsumeLogsUseCase struct {
	queue     domain.DeliveryQueue
	pipeline  *ProcessLogUseCase
	policy    domain.RetryPolicy
	logger    *slog.Logger
	metrics   *metrics.WorkerMetrics
	batchSize int
}

// NewConsumeLogsUseCase creates a new ConsumeLogsUseCase.
func NewConsumeLogsUseCase(queue domain.DeliveryQueue, pipeline *ProcessLogUseCase, policy domain.RetryPolicy, logger *slog.Logger, m *metrics.WorkerMetrics) *ConsumeLogsUseCase {
	return &ConsumeLogsUseCase{
		queue:     queue,
		pipeline:  pipeline,
		policy:    policy,
		logger:    logger,
		metrics:   m,
		batchSize: defaultBatchSize,
	}
}

// ProcessBatch reads one batch of deliveries and resolves each of them.
// It returns the number of deliveries that reached a terminal-success state
// (processed or suppressed duplicate). Distinct deliveries are independent:
// one failing attempt never blocks the rest of the batch.
func (uc *ConsumeLogsUseCase) ProcessBatch(ctx context.Context) (int, error) {
	deliveries, err := uc.queue.ReadDeliveries(ctx, uc.batchSize)
	if err != nil {
		return 0, err
	}
	if len(deliveries) == 0 {
		return 0, nil
	}

	succeeded := 0
	for _, delivery := range deliveries {
		if uc.resolve(ctx, delivery) {
			succeeded++
		}
		if ctx.Err() != nil {
			break
		}
	}
	return succeeded, nil
}

// resolve runs one attempt and applies the retry contract transition.
// The attempt runs under its own deadline so a slow store call is abandoned
// before the channel assumes failure and redelivers.
func (uc *ConsumeLogsUseCase) resolve(ctx context.Context, delivery domain.Delivery) bool {
	attemptCtx, cancel := context.WithTimeout(ctx, uc.policy.AckDeadline)
	defer cancel()

	outcome, err := uc.pipeline.Process(attemptCtx, delivery)

	switch uc.policy.Outcome(delivery.Attempt, err) {
	case domain.StateAcknowledged:
		if outcome == OutcomeSkipped {
			uc.metrics.DeliveriesTotal.WithLabelValues("skipped_duplicate").Inc()
		} else {
			uc.metrics.DeliveriesTotal.WithLabelValues("processed").Inc()
		}
		if ackErr := uc.queue.Acknowledge(ctx, delivery.MessageID); ackErr != nil {
			// The attempt succeeded but the ack did not reach the channel;
			// the message will be redelivered and the idempotency guard
			// will suppress it.
			uc.logger.Error("failed to acknowledge delivery", "error", ackErr, "message_id", delivery.MessageID)
			return false
		}
		uc.logger.Debug("delivery acknowledged",
			"message_id", delivery.MessageID,
			"outcome", string(outcome),
			"attempt", delivery.Attempt,
		)
		return true

	case domain.StateDeadLettered:
		uc.metrics.DeliveriesTotal.WithLabelValues("dead_lettered").Inc()
		uc.metrics.DeadLettersTotal.Inc()
		uc.logger.Error("delivery exhausted retries, dead-lettering",
			"error", err,
			"message_id", delivery.MessageID,
			"tenant_id", delivery.Envelope.TenantID,
			"log_id", delivery.Envelope.LogID,
			"attempt", delivery.Attempt,
			"permanent", domain.IsPermanent(err),
		)
		if dlErr := uc.queue.DeadLetter(ctx, delivery); dlErr != nil {
			uc.logger.Error("failed to dead-letter delivery", "error", dlErr, "message_id", delivery.MessageID)
		}
		return false

	default: // StateNacked: leave the delivery in flight for redelivery.
		uc.metrics.DeliveriesTotal.WithLabelValues("nacked").Inc()
		uc.logger.Warn("delivery attempt failed, will be redelivered",
			"error", err,
			"message_id", delivery.MessageID,
			"attempt", delivery.Attempt,
			"max_attempts", uc.policy.MaxAttempts,
		)
		return false
	}
}
