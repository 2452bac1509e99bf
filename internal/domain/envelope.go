package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SchemaVersion tags the envelope shape for forward compatibility.
const SchemaVersion = 1

// DefaultMaxTextLength bounds the size of a single log text.
const DefaultMaxTextLength = 5000

// Source records which wire format produced an envelope.
type Source string

const (
	SourceJSON Source = "json"
	SourceText Source = "text"
)

var (
	ErrEmptyTenantID = errors.New("tenant_id required")
	ErrEmptyText     = errors.New("text required")
	ErrTextTooLong   = errors.New("text exceeds maximum length")
)

// LogEnvelope is the canonical representation of one ingested log record.
// It is immutable once constructed: build it through NewEnvelope only.
type LogEnvelope struct {
	TenantID      string `json:"tenant_id"`
	LogID         string `json:"log_id"`
	Text          string `json:"text"`
	Source        Source `json:"source"`
	ContentHash   string `json:"content_hash"`
	CorrelationID string `json:"correlation_id"`
	SchemaVersion int    `json:"schema_version"`
}

// NewEnvelope validates the inputs and constructs a canonical envelope.
// The text length is checked before the content hash is computed, so an
// envelope is never built from out-of-bound input.
func NewEnvelope(tenantID, logID, text string, source Source, correlationID string, maxTextLength int) (LogEnvelope, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return LogEnvelope{}, ErrEmptyTenantID
	}
	if strings.TrimSpace(text) == "" {
		return LogEnvelope{}, ErrEmptyText
	}
	if maxTextLength <= 0 {
		maxTextLength = DefaultMaxTextLength
	}
	if len([]rune(text)) > maxTextLength {
		return LogEnvelope{}, fmt.Errorf("%w (%d characters)", ErrTextTooLong, maxTextLength)
	}

	return LogEnvelope{
		TenantID:      tenantID,
		LogID:         logID,
		Text:          text,
		Source:        source,
		ContentHash:   HashContent(text),
		CorrelationID: correlationID,
		SchemaVersion: SchemaVersion,
	}, nil
}

// ProcessedLog is the persisted, redacted form of one envelope. Written at
// most once per distinct (tenant_id, log_id, content_hash); never mutated
// afterwards by this pipeline.
type ProcessedLog struct {
	TenantID      string    `json:"tenant_id"`
	LogID         string    `json:"log_id"`
	CorrelationID string    `json:"correlation_id"`
	Source        Source    `json:"source"`
	OriginalText  string    `json:"original_text"`
	ModifiedData  string    `json:"modified_data"`
	ContentHash   string    `json:"content_hash"`
	ProcessedAt   time.Time `json:"processed_at"`
}
