package domain

import (
	"errors"
	"time"
)

// DeliveryState models the lifecycle of one published envelope inside the
// at-least-once channel. The queue adapter and the consumer loop jointly
// honor these transitions; neither side owns the whole machine.
type DeliveryState string

const (
	StatePublished    DeliveryState = "published"
	StateDelivered    DeliveryState = "delivered"
	StateAcknowledged DeliveryState = "acknowledged"
	StateNacked       DeliveryState = "nacked"
	StateDeadLettered DeliveryState = "dead_lettered"
)

// Delivery is one in-flight consumer attempt for a published envelope.
// Attempt starts at 1 and increments on every redelivery.
type Delivery struct {
	MessageID string
	Attempt   int
	Envelope  LogEnvelope
}

// RetryPolicy bounds how often and how long a delivery may be attempted.
// AckDeadline is the time a Delivered attempt has to acknowledge before the
// channel assumes failure and redelivers.
type RetryPolicy struct {
	MaxAttempts int
	AckDeadline time.Duration
}

// DefaultRetryPolicy matches the channel configuration: five attempts, ten
// minute ack-deadline.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, AckDeadline: 600 * time.Second}
}

// Outcome maps the result of one consumer attempt to the next state.
// A nil error acknowledges (duplicates included: the idempotency guard
// reports them as success, not failure). A failed attempt nacks until the
// attempt count reaches MaxAttempts, after which the message dead-letters
// and leaves the retry cycle for good.
func (p RetryPolicy) Outcome(attempt int, err error) DeliveryState {
	if err == nil {
		return StateAcknowledged
	}
	if attempt >= p.MaxAttempts {
		return StateDeadLettered
	}
	return StateNacked
}

// Permanent delivery errors: redelivering the same bytes cannot succeed.
// They are still surfaced as failures so the bounded-retry counter advances
// and the message eventually dead-letters instead of looping forever.
var (
	ErrInvalidEnvelope   = errors.New("invalid delivery envelope")
	ErrMissingMessage    = errors.New("missing message in envelope")
	ErrMissingAttributes = errors.New("missing required message attributes")
	ErrInvalidEncoding   = errors.New("failed to decode message payload")
)

// IsPermanent reports whether a delivery error cannot be fixed by retrying
// the exact same bytes.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidEnvelope) ||
		errors.Is(err, ErrMissingMessage) ||
		errors.Is(err, ErrMissingAttributes) ||
		errors.Is(err, ErrInvalidEncoding)
}
