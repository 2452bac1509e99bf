package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/memorymachines/log-pipeline/internal/adapter/api"
	"github.com/memorymachines/log-pipeline/internal/adapter/metrics"
	"github.com/memorymachines/log-pipeline/internal/domain"
	"github.com/memorymachines/log-pipeline/internal/usecase"
)

// Header-equivalents for the text/plain path and correlation propagation.
const (
	tenantHeader      = "X-Tenant-ID"
	correlationHeader = "X-Request-ID"
)

// IngestHandler accepts log submissions in either wire format, resolves the
// content type once into the request union, and answers 202 as soon as the
// envelope is queued.
type IngestHandler struct {
	useCase *usecase.IngestLogUseCase
	logger  *slog.Logger
	metrics *metrics.IngestMetrics
	maxBody int64
}

// NewIngestHandler creates a new IngestHandler. maxBody bounds the raw
// request body; the character-level text limit is enforced by the
// normalizer.
func NewIngestHandler(uc *usecase.IngestLogUseCase, logger *slog.Logger, m *metrics.IngestMetrics, maxBody int64) *IngestHandler {
	return &IngestHandler{useCase: uc, logger: logger, metrics: m, maxBody: maxBody}
}

// ServeHTTP processes one ingestion request.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	correlationID := r.Header.Get(correlationHeader)
	contentType := strings.ToLower(r.Header.Get("Content-Type"))

	var (
		req usecase.IngestRequest
		err error
	)
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		req, err = h.parseJSON(r)
	case strings.HasPrefix(contentType, "text/plain"):
		req, err = h.parseText(r)
	default:
		h.metrics.RequestsTotal.WithLabelValues("unsupported_content_type").Inc()
		api.WriteError(w, http.StatusUnsupportedMediaType, api.CodeUnsupportedContentType, "unsupported Content-Type")
		return
	}
	if err != nil {
		h.writeParseError(w, err)
		return
	}

	envelope, err := h.useCase.Ingest(r.Context(), req, correlationID)
	if err != nil {
		h.writeIngestError(w, err)
		return
	}

	h.metrics.RequestsTotal.WithLabelValues("accepted").Inc()
	h.metrics.TextBytesTotal.Add(float64(len(envelope.Text)))
	api.WriteSuccess(w, http.StatusAccepted, map[string]string{
		"status":         "accepted",
		"log_id":         envelope.LogID,
		"correlation_id": envelope.CorrelationID,
	})
}

var errInvalidJSON = errors.New("invalid JSON")

func (h *IngestHandler) parseJSON(r *http.Request) (usecase.IngestRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	var req usecase.JSONRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errInvalidJSON
	}
	return req, nil
}

func (h *IngestHandler) parseText(r *http.Request) (usecase.IngestRequest, error) {
	tenantID := r.Header.Get(tenantHeader)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: %s header required", domain.ErrEmptyTenantID, tenantHeader)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	return usecase.TextRequest{TenantID: tenantID, Body: string(body)}, nil
}

func (h *IngestHandler) writeParseError(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		h.metrics.RequestsTotal.WithLabelValues("payload_too_large").Inc()
		api.WriteError(w, http.StatusRequestEntityTooLarge, api.CodePayloadTooLarge, "request body too large")
	case errors.Is(err, errInvalidJSON):
		h.metrics.RequestsTotal.WithLabelValues("invalid_json").Inc()
		api.WriteError(w, http.StatusBadRequest, api.CodeInvalidJSON, "invalid JSON")
	case errors.Is(err, domain.ErrEmptyTenantID):
		h.metrics.RequestsTotal.WithLabelValues("validation_error").Inc()
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, err.Error())
	default:
		h.logger.Error("failed to read request body", "error", err)
		h.metrics.RequestsTotal.WithLabelValues("invalid_json").Inc()
		api.WriteError(w, http.StatusBadRequest, api.CodeInvalidJSON, "unreadable request body")
	}
}

func (h *IngestHandler) writeIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrTextTooLong):
		h.metrics.RequestsTotal.WithLabelValues("payload_too_large").Inc()
		api.WriteError(w, http.StatusRequestEntityTooLarge, api.CodePayloadTooLarge, err.Error())
	case errors.Is(err, domain.ErrEmptyTenantID), errors.Is(err, domain.ErrEmptyText):
		h.metrics.RequestsTotal.WithLabelValues("validation_error").Inc()
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, err.Error())
	default:
		// Publish failure: the caller may retry; nothing was accepted.
		h.metrics.RequestsTotal.WithLabelValues("service_unavailable").Inc()
		h.metrics.PublishFailures.Inc()
		api.WriteError(w, http.StatusServiceUnavailable, api.CodeServiceUnavailable, "failed to queue message")
	}
}
