package archive

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/memorymachines/log-pipeline/internal/domain"
)

func setupTestArchive(t *testing.T, maxSegmentSize, maxTotalSize int64) *Archive {
	t.Helper()
	dir := t.TempDir()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(dir, maxSegmentSize, maxTotalSize, logger)
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func makeDelivery(attempt int, text string) domain.Delivery {
	return domain.Delivery{
		MessageID: uuid.NewString(),
		Attempt:   attempt,
		Envelope: domain.LogEnvelope{
			TenantID:      "acme_corp",
			LogID:         uuid.NewString(),
			Text:          text,
			Source:        domain.SourceJSON,
			ContentHash:   domain.HashContent(text),
			CorrelationID: uuid.NewString(),
			SchemaVersion: domain.SchemaVersion,
		},
	}
}

func TestArchive_WriteAndScan(t *testing.T) {
	a := setupTestArchive(t, 1024, 10*1024)

	written := []domain.Delivery{
		makeDelivery(5, "failed event 1"),
		makeDelivery(5, "failed event 2"),
		makeDelivery(5, "failed event 3"),
	}
	for _, d := range written {
		if err := a.Write(context.Background(), d); err != nil {
			t.Fatalf("failed to write delivery: %v", err)
		}
	}

	var scanned []domain.Delivery
	err := a.Scan(context.Background(), func(d domain.Delivery) error {
		scanned = append(scanned, d)
		return nil
	})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if len(scanned) != len(written) {
		t.Fatalf("expected %d archived deliveries, got %d", len(written), len(scanned))
	}
	for i, d := range scanned {
		if d.MessageID != written[i].MessageID {
			t.Errorf("delivery %d: message id mismatch", i)
		}
		if d.Attempt != written[i].Attempt {
			t.Errorf("delivery %d: attempt mismatch", i)
		}
		if d.Envelope != written[i].Envelope {
			t.Errorf("delivery %d: envelope mismatch", i)
		}
	}
}

func TestArchive_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := New(dir, 1024, 10*1024, logger)
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	delivery := makeDelivery(5, "persisted across restart")
	if err := a.Write(context.Background(), delivery); err != nil {
		t.Fatalf("failed to write delivery: %v", err)
	}
	a.Close()

	reopened, err := New(dir, 1024, 10*1024, logger)
	if err != nil {
		t.Fatalf("failed to reopen archive: %v", err)
	}
	defer reopened.Close()

	count := 0
	err = reopened.Scan(context.Background(), func(d domain.Delivery) error {
		count++
		if d.Envelope.Text != "persisted across restart" {
			t.Errorf("unexpected text %q", d.Envelope.Text)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 delivery after reopen, got %d", count)
	}
}

func TestArchive_SegmentRotation(t *testing.T) {
	// Tiny segments force a rotation on nearly every write.
	a := setupTestArchive(t, 64, 1024*1024)

	for i := 0; i < 5; i++ {
		if err := a.Write(context.Background(), makeDelivery(5, "rotating")); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	segments, err := a.sortedSegments()
	if err != nil {
		t.Fatalf("failed to list segments: %v", err)
	}
	if len(segments) < 2 {
		t.Errorf("expected multiple segments after rotation, got %d", len(segments))
	}
}

func TestArchive_TotalSizeLimit(t *testing.T) {
	a := setupTestArchive(t, 1024, 128)

	var err error
	for i := 0; i < 10; i++ {
		if err = a.Write(context.Background(), makeDelivery(5, "filler")); err != nil {
			break
		}
	}
	if err == nil {
		t.Fatal("expected writes to fail once the total size limit is reached")
	}
}

func TestArchive_Truncate(t *testing.T) {
	a := setupTestArchive(t, 1024, 10*1024)

	if err := a.Write(context.Background(), makeDelivery(5, "to be dropped")); err != nil {
		t.Fatalf("failed to write delivery: %v", err)
	}
	if err := a.Truncate(context.Background()); err != nil {
		t.Fatalf("truncate failed: %v", err)
	}

	count := 0
	if err := a.Scan(context.Background(), func(domain.Delivery) error { count++; return nil }); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty archive after truncate, got %d deliveries", count)
	}

	// The archive must still accept writes afterwards.
	if err := a.Write(context.Background(), makeDelivery(5, "after truncate")); err != nil {
		t.Errorf("write after truncate failed: %v", err)
	}
}
