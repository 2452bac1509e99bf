package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/memorymachines/log-pipeline/internal/domain"
)

// Decision is the outcome of an idempotency check for one delivery.
type Decision int

const (
	// DecisionProcess: no record exists for (tenant_id, log_id); process
	// and persist.
	DecisionProcess Decision = iota

	// DecisionSkipDuplicate: a record with the same content hash already
	// exists. The normal outcome of a redelivery; acknowledge without
	// writing.
	DecisionSkipDuplicate

	// DecisionOverwrite: a record exists with a different content hash for
	// the same (tenant_id, log_id). An application-level conflict, not a
	// transport retry: the incoming envelope is treated as a new logical
	// version and overwrites the stored one.
	DecisionOverwrite
)

func (d Decision) String() string {
	switch d {
	case DecisionProcess:
		return "process"
	case DecisionSkipDuplicate:
		return "skip_duplicate"
	case DecisionOverwrite:
		return "overwrite"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// IdempotencyGuard decides whether a delivery is a first-time event, a
// duplicate to suppress, or a conflicting new version. It performs exactly
// one store read per invocation; the subsequent write is conditioned on the
// returned decision.
type IdempotencyGuard struct {
	store  domain.ProcessedLogStore
	logger *slog.Logger
}

// NewIdempotencyGuard creates a new IdempotencyGuard.
func NewIdempotencyGuard(store domain.ProcessedLogStore, logger *slog.Logger) *IdempotencyGuard {
	return &IdempotencyGuard{store: store, logger: logger}
}

// Check looks up the stored record for (tenantID, logID) and compares
// content hashes. A store failure is transient: the caller must nack so the
// channel redelivers.
func (g *IdempotencyGuard) Check(ctx context.Context, tenantID, logID, contentHash string) (Decision, error) {
	existing, found, err := g.store.Get(ctx, tenantID, logID)
	if err != nil {
		return DecisionProcess, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	if !found {
		return DecisionProcess, nil
	}

	if existing.ContentHash == contentHash {
		g.logger.Info("duplicate delivery suppressed",
			"tenant_id", tenantID,
			"log_id", logID,
			"content_hash", contentHash,
		)
		return DecisionSkipDuplicate, nil
	}

	g.logger.Warn("content hash conflict, overwriting as new version",
		"tenant_id", tenantID,
		"log_id", logID,
		"stored_hash", existing.ContentHash,
		"incoming_hash", contentHash,
	)
	return DecisionOverwrite, nil
}
