package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/memorymachines/log-pipeline/internal/adapter/api"
	"github.com/memorymachines/log-pipeline/internal/adapter/metrics"
	"github.com/memorymachines/log-pipeline/internal/domain"
	"github.com/memorymachines/log-pipeline/internal/usecase"
)

// pushEnvelope is the push-delivery wire shape: a message with base64
// payload and string attributes, plus the channel's delivery attempt count.
type pushEnvelope struct {
	Message         *pushMessage `json:"message"`
	Subscription    string       `json:"subscription"`
	DeliveryAttempt int          `json:"deliveryAttempt"`
}

type pushMessage struct {
	MessageID   string            `json:"messageId"`
	Data        string            `json:"data"`
	Attributes  map[string]string `json:"attributes"`
	PublishTime string            `json:"publishTime"`
}

// ProcessHandler is the worker's push endpoint. The HTTP status is the ack
// signal: 200 acknowledges (duplicates included), anything else counts as a
// failed attempt and the channel's bounded retry takes over. Permanent
// errors answer 400 so they still advance the retry counter toward the
// dead letter, since redelivering the same bytes can never fix them.
type ProcessHandler struct {
	pipeline *usecase.ProcessLogUseCase
	policy   domain.RetryPolicy
	logger   *slog.Logger
	metrics  *metrics.WorkerMetrics
}

// NewProcessHandler creates a new ProcessHandler.
func NewProcessHandler(pipeline *usecase.ProcessLogUseCase, policy domain.RetryPolicy, logger *slog.Logger, m *metrics.WorkerMetrics) *ProcessHandler {
	return &ProcessHandler{pipeline: pipeline, policy: policy, logger: logger, metrics: m}
}

// ServeHTTP processes one pushed delivery.
func (h *ProcessHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	delivery, code, err := decodePush(r)
	if err != nil {
		h.logger.Error("rejecting push delivery", "error", err, "code", code)
		api.WriteError(w, http.StatusBadRequest, code, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.policy.AckDeadline)
	defer cancel()

	start := time.Now()
	outcome, err := h.pipeline.Process(ctx, delivery)
	h.metrics.ProcessDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if domain.IsPermanent(err) {
			h.metrics.DeliveriesTotal.WithLabelValues("rejected").Inc()
			api.WriteError(w, http.StatusBadRequest, api.CodeMissingAttributes, err.Error())
			return
		}
		h.metrics.DeliveriesTotal.WithLabelValues("nacked").Inc()
		h.logger.Error("processing failed, delivery will be retried",
			"error", err,
			"message_id", delivery.MessageID,
			"attempt", delivery.Attempt,
		)
		api.WriteError(w, http.StatusInternalServerError, api.CodeProcessingError, "failed to persist processed log")
		return
	}

	status := "processed"
	if outcome == usecase.OutcomeSkipped {
		status = "skipped"
		h.metrics.DeliveriesTotal.WithLabelValues("skipped_duplicate").Inc()
	} else {
		h.metrics.DeliveriesTotal.WithLabelValues("processed").Inc()
	}

	api.WriteSuccess(w, http.StatusOK, map[string]string{
		"status": status,
		"log_id": delivery.Envelope.LogID,
	})
}

// decodePush validates the transport envelope and rebuilds the delivery.
// Every failure here is permanent: same bytes, same result.
func decodePush(r *http.Request) (domain.Delivery, string, error) {
	var envelope pushEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		return domain.Delivery{}, api.CodeInvalidEnvelope, domain.ErrInvalidEnvelope
	}
	if envelope.Message == nil {
		return domain.Delivery{}, api.CodeMissingMessage, domain.ErrMissingMessage
	}

	payload, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		return domain.Delivery{}, api.CodeInvalidBase64, domain.ErrInvalidEncoding
	}

	attrs := envelope.Message.Attributes
	if attrs["tenant_id"] == "" || attrs["log_id"] == "" {
		return domain.Delivery{}, api.CodeMissingAttributes, domain.ErrMissingAttributes
	}

	attempt := envelope.DeliveryAttempt
	if attempt <= 0 {
		attempt = 1
	}
	version, _ := strconv.Atoi(attrs["schema_version"])

	return domain.Delivery{
		MessageID: envelope.Message.MessageID,
		Attempt:   attempt,
		Envelope: domain.LogEnvelope{
			TenantID:      attrs["tenant_id"],
			LogID:         attrs["log_id"],
			Text:          string(payload),
			Source:        domain.Source(attrs["source"]),
			ContentHash:   attrs["content_hash"],
			CorrelationID: attrs["correlation_id"],
			SchemaVersion: version,
		},
	}, "", nil
}
