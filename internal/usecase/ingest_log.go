package usecase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/memorymachines/log-pipeline/internal/domain"
)

// IngestRequest is the tagged union over the two supported wire formats.
// The HTTP boundary resolves the content type exactly once into one of the
// two variants; everything downstream works on the union.
type IngestRequest interface {
	source() domain.Source
}

// JSONRequest is a structured application/json submission. LogID is
// optional; a missing one is generated during normalization.
type JSONRequest struct {
	TenantID string `json:"tenant_id"`
	LogID    string `json:"log_id"`
	Text     string `json:"text"`
}

func (JSONRequest) source() domain.Source { return domain.SourceJSON }

// TextRequest is a raw text/plain submission. The tenant is supplied
// out-of-band (header); the whole body becomes the text and the log id is
// always generated.
type TextRequest struct {
	TenantID string
	Body     string
}

func (TextRequest) source() domain.Source { return domain.SourceText }

// IngestLogUseCase normalizes an ingest request into a canonical envelope
// and hands it to the delivery channel.
type IngestLogUseCase struct {
	publisher     domain.EnvelopePublisher
	logger        *slog.Logger
	maxTextLength int
}

// NewIngestLogUseCase creates a new IngestLogUseCase.
func NewIngestLogUseCase(publisher domain.EnvelopePublisher, logger *slog.Logger, maxTextLength int) *IngestLogUseCase {
	return &IngestLogUseCase{
		publisher:     publisher,
		logger:        logger,
		maxTextLength: maxTextLength,
	}
}

// Normalize converts either request variant into a canonical envelope.
// The correlation id is propagated when the caller supplied one and
// generated otherwise; it is set here exactly once and never regenerated
// downstream. Pure aside from id generation: no I/O.
func (uc *IngestLogUseCase) Normalize(req IngestRequest, correlationID string) (domain.LogEnvelope, error) {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	var tenantID, logID, text string
	switch r := req.(type) {
	case JSONRequest:
		tenantID, logID, text = r.TenantID, r.LogID, r.Text
		if logID == "" {
			logID = uuid.NewString()
		}
	case TextRequest:
		tenantID, text = r.TenantID, r.Body
		logID = uuid.NewString()
	}

	return domain.NewEnvelope(tenantID, logID, text, req.source(), correlationID, uc.maxTextLength)
}

// Ingest normalizes and publishes one request. A publish failure is
// returned to the caller as-is so the boundary can answer temporarily
// unavailable; the envelope is not buffered anywhere else.
func (uc *IngestLogUseCase) Ingest(ctx context.Context, req IngestRequest, correlationID string) (domain.LogEnvelope, error) {
	envelope, err := uc.Normalize(req, correlationID)
	if err != nil {
		return domain.LogEnvelope{}, err
	}

	if err := uc.publisher.Publish(ctx, envelope); err != nil {
		uc.logger.Error("failed to publish envelope",
			"error", err,
			"tenant_id", envelope.TenantID,
			"log_id", envelope.LogID,
			"correlation_id", envelope.CorrelationID,
		)
		return domain.LogEnvelope{}, err
	}

	uc.logger.Info("envelope published",
		"tenant_id", envelope.TenantID,
		"log_id", envelope.LogID,
		"source", envelope.Source,
		"correlation_id", envelope.CorrelationID,
	)
	return envelope, nil
}
