package domain

import "context"

// EnvelopePublisher hands an envelope to the at-least-once delivery channel.
// A failed publish must surface to the accept boundary as temporarily
// unavailable, never as silent data loss.
type EnvelopePublisher interface {
	Publish(ctx context.Context, envelope LogEnvelope) error
}

// DeliveryQueue is the consumer side of the delivery channel. Implementations
// must provide at-least-once semantics: an attempt that is neither
// acknowledged nor dead-lettered within the ack-deadline is redelivered with
// an incremented attempt count.
type DeliveryQueue interface {
	// ReadDeliveries returns up to count in-flight attempts: newly published
	// envelopes at attempt 1 plus redeliveries of attempts that breached the
	// ack-deadline.
	ReadDeliveries(ctx context.Context, count int) ([]Delivery, error)

	// Acknowledge marks deliveries as terminally successful.
	Acknowledge(ctx context.Context, messageIDs ...string) error

	// DeadLetter moves deliveries to the dead-letter destination and removes
	// them from the retry cycle. Terminal; requires operator intervention.
	DeadLetter(ctx context.Context, deliveries ...Delivery) error
}

// ProcessedLogStore is the tenant-isolated document store. Put must be
// last-write deterministic for identical content so concurrent duplicate
// deliveries converge on one record.
type ProcessedLogStore interface {
	// Get returns the record for (tenantID, logID), or found=false.
	Get(ctx context.Context, tenantID, logID string) (ProcessedLog, bool, error)

	// Put upserts the record keyed by (tenantID, logID) atomically: a
	// cancelled or failed attempt never leaves a partial document.
	Put(ctx context.Context, record ProcessedLog) error
}

// DeadLetterArchive keeps a local, operator-inspectable copy of every
// dead-lettered envelope.
type DeadLetterArchive interface {
	Write(ctx context.Context, delivery Delivery) error

	// Scan streams archived deliveries to the handler, oldest first.
	Scan(ctx context.Context, handler func(delivery Delivery) error) error

	// Truncate drops archived segments after a successful operator replay.
	Truncate(ctx context.Context) error
}
