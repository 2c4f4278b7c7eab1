package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/priceduel/internal/domain"
)

const (
	jsonlContentType = "application/x-ndjson"
	// multipartThreshold switches large months to a multipart upload.
	multipartThreshold = 8 * 1024 * 1024
)

// HistorySource lists settlement history for export.
type HistorySource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.HistoryRecord, error)
}

// HistoryArchiver implements domain.Archiver. It exports whole calendar
// months of history to archive/history/YYYY-MM.jsonl. A month already in the
// bucket is skipped, so repeated runs are cheap and never overwrite. Records
// stay in the primary store.
type HistoryArchiver struct {
	writer  domain.BlobWriter
	reader  domain.BlobReader
	history HistorySource
	audit   domain.AuditStore
	logger  *slog.Logger
}

// NewHistoryArchiver creates a HistoryArchiver.
func NewHistoryArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	history HistorySource,
	audit domain.AuditStore,
	logger *slog.Logger,
) *HistoryArchiver {
	return &HistoryArchiver{
		writer:  writer,
		reader:  reader,
		history: history,
		audit:   audit,
		logger:  logger.With(slog.String("component", "history_archiver")),
	}
}

// ArchiveHistory exports every complete month before the cutoff's month and
// returns the number of records newly written.
func (a *HistoryArchiver) ArchiveHistory(ctx context.Context, before time.Time) (int64, error) {
	cutoff := monthStart(before)
	recs, err := a.history.ListBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive history query: %w", err)
	}

	byMonth := make(map[string][]domain.HistoryRecord)
	for _, r := range recs {
		m := r.Date.UTC().Format("2006-01")
		byMonth[m] = append(byMonth[m], r)
	}
	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	var total int64
	for _, m := range months {
		n, err := a.archiveMonth(ctx, m, byMonth[m])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (a *HistoryArchiver) archiveMonth(ctx context.Context, month string, recs []domain.HistoryRecord) (int64, error) {
	path := archivePath("history", month)
	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive history check %s: %w", path, err)
	}
	if exists {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive history marshal %s: %w", month, err)
	}
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive history upload %s: %w", path, err)
	}

	count := int64(len(recs))
	a.logger.InfoContext(ctx, "history month archived",
		slog.String("path", path),
		slog.Int64("count", count),
	)
	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.history", map[string]any{
			"path":  path,
			"count": count,
			"month": month,
		}); err != nil {
			return count, fmt.Errorf("s3blob: archive history audit log: %w", err)
		}
	}
	return count, nil
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// archivePath builds the key of one archive file, e.g.
// archive/history/2026-01.jsonl.
func archivePath(kind, month string) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, month)
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*HistoryArchiver)(nil)
