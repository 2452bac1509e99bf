package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/memorymachines/log-pipeline/internal/domain"
)

const (
	segmentPrefix = "deadletter-"
	filePerm      = 0644
)

// record is the NDJSON line written per dead-lettered delivery.
type record struct {
	MessageID  string             `json:"message_id"`
	Attempt    int                `json:"attempt"`
	Envelope   domain.LogEnvelope `json:"envelope"`
	ArchivedAt time.Time          `json:"archived_at"`
}

// Archive is a file-based, segment-rotated copy of every dead-lettered
// envelope. It exists for operator inspection and replay: the channel's DLQ
// stream is the authoritative destination, this is the local audit trail.
type Archive struct {
	dir            string
	maxSegmentSize int64
	maxTotalSize   int64
	logger         *slog.Logger

	mu             sync.Mutex
	currentSegment *os.File
	currentSize    int64
}

// New creates an Archive writing NDJSON segments under dir.
func New(dir string, maxSegmentSize, maxTotalSize int64, logger *slog.Logger) (*Archive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", dir, err)
	}

	a := &Archive{
		dir:            dir,
		maxSegmentSize: maxSegmentSize,
		maxTotalSize:   maxTotalSize,
		logger:         logger.With("component", "deadletter_archive"),
	}

	if err := a.openLatestSegment(); err != nil {
		return nil, err
	}
	return a, nil
}

// Write appends one dead-lettered delivery to the current segment.
func (a *Archive) Write(ctx context.Context, delivery domain.Delivery) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.Marshal(record{
		MessageID:  delivery.MessageID,
		Attempt:    delivery.Attempt,
		Envelope:   delivery.Envelope,
		ArchivedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal delivery for archive: %w", err)
	}
	data = append(data, '\n')

	if a.currentSegment == nil {
		if err := a.rotate(); err != nil {
			return err
		}
	}

	totalSize, err := a.totalSize()
	if err != nil {
		return fmt.Errorf("could not verify archive disk space: %w", err)
	}
	if totalSize+int64(len(data)) > a.maxTotalSize {
		return fmt.Errorf("archive max total size exceeded (%d > %d)", totalSize, a.maxTotalSize)
	}

	n, err := a.currentSegment.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write archive segment: %w", err)
	}
	a.currentSize += int64(n)

	if a.currentSize >= a.maxSegmentSize {
		if err := a.rotate(); err != nil {
			a.logger.Error("failed to rotate archive segment", "error", err)
		}
	}
	return nil
}

// Scan streams every archived delivery to the handler, oldest segment
// first. A handler error stops the scan.
func (a *Archive) Scan(ctx context.Context, handler func(delivery domain.Delivery) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.currentSegment != nil {
		a.currentSegment.Close()
		a.currentSegment = nil
	}

	segments, err := a.sortedSegments()
	if err != nil {
		return err
	}

	for _, segmentPath := range segments {
		if err := a.scanSegment(ctx, segmentPath, handler); err != nil {
			return err
		}
	}
	return a.openLatestSegment()
}

func (a *Archive) scanSegment(ctx context.Context, path string, handler func(delivery domain.Delivery) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open segment %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var rec record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			a.logger.Warn("skipping malformed archive line", "error", err, "path", path)
			continue
		}
		delivery := domain.Delivery{MessageID: rec.MessageID, Attempt: rec.Attempt, Envelope: rec.Envelope}
		if err := handler(delivery); err != nil {
			return fmt.Errorf("archive scan handler failed: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error scanning segment %s: %w", path, err)
	}
	return nil
}

// Truncate removes all archive segments, e.g. after an operator replay.
func (a *Archive) Truncate(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.currentSegment != nil {
		a.currentSegment.Close()
		a.currentSegment = nil
	}

	segments, err := a.sortedSegments()
	if err != nil {
		return err
	}
	for _, segmentPath := range segments {
		if err := os.Remove(segmentPath); err != nil {
			a.logger.Error("failed to remove archive segment", "path", segmentPath, "error", err)
		}
	}

	return a.openLatestSegment()
}

// Close flushes and closes the current segment.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.currentSegment != nil {
		return a.currentSegment.Close()
	}
	return nil
}

func (a *Archive) rotate() error {
	if a.currentSegment != nil {
		if err := a.currentSegment.Sync(); err != nil {
			a.logger.Error("failed to sync segment before rotating", "error", err)
		}
		if err := a.currentSegment.Close(); err != nil {
			a.logger.Error("failed to close segment before rotating", "error", err)
		}
		a.currentSegment = nil
	}

	path := filepath.Join(a.dir, fmt.Sprintf("%s%d.ndjson", segmentPrefix, time.Now().UnixNano()))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create archive segment %s: %w", path, err)
	}
	a.currentSegment = f
	a.currentSize = 0
	return nil
}

func (a *Archive) openLatestSegment() error {
	segments, err := a.sortedSegments()
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return a.rotate()
	}

	latest := segments[len(segments)-1]
	stat, err := os.Stat(latest)
	if err != nil {
		return fmt.Errorf("failed to stat segment %s: %w", latest, err)
	}

	f, err := os.OpenFile(latest, os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open segment %s: %w", latest, err)
	}
	a.currentSegment = f
	a.currentSize = stat.Size()

	if a.currentSize >= a.maxSegmentSize {
		return a.rotate()
	}
	return nil
}

func (a *Archive) sortedSegments() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	var segments []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), segmentPrefix) {
			segments = append(segments, filepath.Join(a.dir, entry.Name()))
		}
	}
	sort.Strings(segments)
	return segments, nil
}

func (a *Archive) totalSize() (int64, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), segmentPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}
