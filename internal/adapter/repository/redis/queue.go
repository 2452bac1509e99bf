package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/memorymachines/log-pipeline/internal/domain"
)

const readBlock = 2 * time.Second

// Queue implements both halves of the delivery channel on Redis Streams:
// domain.EnvelopePublisher on the producing side and domain.DeliveryQueue on
// the consuming side. At-least-once semantics come from consumer-group
// pending entries: an entry that is not XACKed within the ack-deadline is
// reclaimed by XAUTOCLAIM with an incremented delivery counter.
type Queue struct {
	client    *redis.Client
	logger    *slog.Logger
	stream    string
	dlqStream string
	group     string
	consumer  string
	policy    domain.RetryPolicy
	archive   domain.DeadLetterArchive
}

// NewQueue creates the stream and consumer group if needed. The archive is
// optional; pass nil to skip the local dead-letter copy (e.g. on the
// publishing side).
func NewQueue(client *redis.Client, logger *slog.Logger, stream, dlqStream, group, consumer string, policy domain.RetryPolicy, archive domain.DeadLetterArchive) (*Queue, error) {
	q := &Queue{
		client:    client,
		logger:    logger.With("component", "redis_queue"),
		stream:    stream,
		dlqStream: dlqStream,
		group:     group,
		consumer:  consumer,
		policy:    policy,
		archive:   archive,
	}

	err := client.XGroupCreateMkStream(context.Background(), stream, group, "0").Err()
	if err != nil && !isBusyGroupError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}
	return q, nil
}

// Publish appends an envelope to the stream. Terminal success for the
// producing side; failures surface to the accept boundary unchanged.
func (q *Queue) Publish(ctx context.Context, envelope domain.LogEnvelope) error {
	args := &redis.XAddArgs{
		Stream: q.stream,
		Values: envelopeValues(envelope),
	}
	if err := q.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to XADD envelope: %w", err)
	}
	return nil
}

// ReadDeliveries returns redeliveries of attempts that outlived the
// ack-deadline, then fills the remainder of the batch with new envelopes at
// attempt 1.
func (q *Queue) ReadDeliveries(ctx context.Context, count int) ([]domain.Delivery, error) {
	deliveries, err := q.claimExpired(ctx, count)
	if err != nil {
		return nil, err
	}

	if remaining := count - len(deliveries); remaining > 0 {
		fresh, err := q.readNew(ctx, remaining)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, fresh...)
	}
	return deliveries, nil
}

func (q *Queue) claimExpired(ctx context.Context, count int) ([]domain.Delivery, error) {
	messages, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: q.consumer,
		MinIdle:  q.policy.AckDeadline,
		Start:    "0-0",
		Count:    int64(count),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to XAUTOCLAIM expired deliveries: %w", err)
	}
	if len(messages) == 0 {
		return nil, nil
	}

	attempts, err := q.deliveryCounts(ctx, messages)
	if err != nil {
		return nil, err
	}

	deliveries := make([]domain.Delivery, 0, len(messages))
	for _, msg := range messages {
		envelope, err := parseEnvelope(msg.Values)
		if err != nil {
			// Unparseable stream entries cannot improve on redelivery;
			// send them straight to the dead-letter stream.
			q.logger.Error("malformed stream entry, dead-lettering", "error", err, "message_id", msg.ID)
			broken := domain.Delivery{MessageID: msg.ID, Attempt: attempts[msg.ID]}
			if dlErr := q.DeadLetter(ctx, broken); dlErr != nil {
				q.logger.Error("failed to dead-letter malformed entry", "error", dlErr, "message_id", msg.ID)
			}
			continue
		}
		attempt := attempts[msg.ID]
		if attempt == 0 {
			attempt = 1
		}
		deliveries = append(deliveries, domain.Delivery{MessageID: msg.ID, Attempt: attempt, Envelope: envelope})
	}
	return deliveries, nil
}

func (q *Queue) readNew(ctx context.Context, count int) ([]domain.Delivery, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    int64(count),
		Block:    readBlock,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to XREADGROUP: %w", err)
	}
	if len(streams) == 0 {
		return nil, nil
	}

	deliveries := make([]domain.Delivery, 0, len(streams[0].Messages))
	for _, msg := range streams[0].Messages {
		envelope, err := parseEnvelope(msg.Values)
		if err != nil {
			q.logger.Error("malformed stream entry, dead-lettering", "error", err, "message_id", msg.ID)
			if dlErr := q.DeadLetter(ctx, domain.Delivery{MessageID: msg.ID, Attempt: 1}); dlErr != nil {
				q.logger.Error("failed to dead-letter malformed entry", "error", dlErr, "message_id", msg.ID)
			}
			continue
		}
		deliveries = append(deliveries, domain.Delivery{MessageID: msg.ID, Attempt: 1, Envelope: envelope})
	}
	return deliveries, nil
}

// deliveryCounts maps claimed message ids to their XPENDING delivery
// counter, which is the attempt number under this contract.
func (q *Queue) deliveryCounts(ctx context.Context, messages []redis.XMessage) (map[string]int, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   q.stream,
		Group:    q.group,
		Start:    messages[0].ID,
		End:      messages[len(messages)-1].ID,
		Count:    int64(len(messages)),
		Consumer: q.consumer,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to XPENDING delivery counts: %w", err)
	}

	attempts := make(map[string]int, len(pending))
	for _, p := range pending {
		attempts[p.ID] = int(p.RetryCount)
	}
	return attempts, nil
}

// Acknowledge marks deliveries as terminally successful.
func (q *Queue) Acknowledge(ctx context.Context, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := q.client.XAck(ctx, q.stream, q.group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("failed to XACK deliveries: %w", err)
	}
	return nil
}

// DeadLetter moves deliveries to the DLQ stream, acknowledges them on the
// source stream so they leave the retry cycle, and appends a copy to the
// local archive for operator inspection.
func (q *Queue) DeadLetter(ctx context.Context, deliveries ...domain.Delivery) error {
	if len(deliveries) == 0 {
		return nil
	}

	pipe := q.client.Pipeline()
	ids := make([]string, 0, len(deliveries))
	for _, d := range deliveries {
		values := envelopeValues(d.Envelope)
		values["attempts"] = strconv.Itoa(d.Attempt)
		values["failed_at"] = time.Now().UTC().Format(time.RFC3339)
		values["original_msg_id"] = d.MessageID
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: q.dlqStream, Values: values})
		ids = append(ids, d.MessageID)
	}
	pipe.XAck(ctx, q.stream, q.group, ids...)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute dead-letter pipeline: %w", err)
	}

	if q.archive != nil {
		for _, d := range deliveries {
			if err := q.archive.Write(ctx, d); err != nil {
				q.logger.Error("failed to archive dead-lettered delivery", "error", err, "message_id", d.MessageID)
			}
		}
	}

	q.logger.Warn("moved deliveries to dead-letter stream", "count", len(deliveries))
	return nil
}

func envelopeValues(envelope domain.LogEnvelope) map[string]interface{} {
	return map[string]interface{}{
		"data":           envelope.Text,
		"tenant_id":      envelope.TenantID,
		"log_id":         envelope.LogID,
		"source":         string(envelope.Source),
		"content_hash":   envelope.ContentHash,
		"correlation_id": envelope.CorrelationID,
		"schema_version": strconv.Itoa(envelope.SchemaVersion),
	}
}

func parseEnvelope(values map[string]interface{}) (domain.LogEnvelope, error) {
	text, ok := values["data"].(string)
	if !ok {
		return domain.LogEnvelope{}, fmt.Errorf("%w: missing data field", domain.ErrInvalidEnvelope)
	}

	str := func(key string) string {
		s, _ := values[key].(string)
		return s
	}
	version, _ := strconv.Atoi(str("schema_version"))

	return domain.LogEnvelope{
		TenantID:      str("tenant_id"),
		LogID:         str("log_id"),
		Text:          text,
		Source:        domain.Source(str("source")),
		ContentHash:   str("content_hash"),
		CorrelationID: str("correlation_id"),
		SchemaVersion: version,
	}, nil
}

func isBusyGroupError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
