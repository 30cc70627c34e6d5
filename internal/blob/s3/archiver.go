package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/preyanshu/verdict/internal/domain"
)

const (
	archiveBatch     = 1000
	jsonlContentType = "application/x-ndjson"
)

// Archiver moves aged rows into monthly JSONL objects at
// archive/<kind>/YYYY-MM.jsonl. Rows are deleted from the database only
// after the objects holding them have been written.
type Archiver struct {
	writer      domain.BlobWriter
	reader      domain.BlobReader
	redemptions domain.RedemptionStore
	audit       domain.AuditStore
	batch       int
	logger      *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(w domain.BlobWriter, r domain.BlobReader, redemptions domain.RedemptionStore, audit domain.AuditStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:      w,
		reader:      r,
		redemptions: redemptions,
		audit:       audit,
		batch:       archiveBatch,
		logger:      logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveRedemptions archives attempts that finished before before.
func (a *Archiver) ArchiveRedemptions(ctx context.Context, before time.Time) (int64, error) {
	n, err := drain(ctx, a, "redemptions", before,
		a.redemptions.ListFinishedBefore,
		a.redemptions.DeleteFinishedBefore,
		func(r domain.RedemptionAttempt) time.Time { return *r.FinishedAt },
	)
	if err != nil {
		return n, err
	}
	a.record(ctx, "redemptions", n, before)
	return n, nil
}

// ArchiveAuditLog archives audit entries created before before.
func (a *Archiver) ArchiveAuditLog(ctx context.Context, before time.Time) (int64, error) {
	n, err := drain(ctx, a, "audit_log", before,
		a.audit.ListBefore,
		a.audit.DeleteBefore,
		func(e domain.AuditEntry) time.Time { return e.CreatedAt },
	)
	if err != nil {
		return n, err
	}
	a.record(ctx, "audit_log", n, before)
	return n, nil
}

// drain archives rows older than before in batches. list returns rows
// oldest first; a full batch is cut just before its newest timestamp so rows
// sharing that timestamp are archived together in the next round.
func drain[T any](
	ctx context.Context,
	a *Archiver,
	kind string,
	before time.Time,
	list func(context.Context, time.Time, int) ([]T, error),
	purge func(context.Context, time.Time) (int64, error),
	stamp func(T) time.Time,
) (int64, error) {
	var total int64
	for {
		rows, err := list(ctx, before, a.batch)
		if err != nil {
			return total, fmt.Errorf("s3blob: list %s: %w", kind, err)
		}
		if len(rows) == 0 {
			return total, nil
		}

		cut := before
		keep := rows
		if len(rows) == a.batch {
			cut = stamp(rows[len(rows)-1])
			keep = keep[:0:0]
			for _, r := range rows {
				if stamp(r).Before(cut) {
					keep = append(keep, r)
				}
			}
			if len(keep) == 0 {
				// The whole batch shares one timestamp.
				cut = cut.Add(time.Microsecond)
				keep = rows
			}
		}

		if err := upload(ctx, a, kind, keep, stamp); err != nil {
			return total, err
		}
		if _, err := purge(ctx, cut); err != nil {
			return total, fmt.Errorf("s3blob: purge %s: %w", kind, err)
		}
		total += int64(len(keep))

		if len(rows) < a.batch {
			return total, nil
		}
	}
}

// upload appends rows to the monthly objects they belong to.
func upload[T any](ctx context.Context, a *Archiver, kind string, rows []T, stamp func(T) time.Time) error {
	months := make(map[string][]T)
	for _, r := range rows {
		m := stamp(r).UTC().Format("2006-01")
		months[m] = append(months[m], r)
	}
	keys := make([]string, 0, len(months))
	for m := range months {
		keys = append(keys, m)
	}
	sort.Strings(keys)

	for _, m := range keys {
		path := ArchivePath(kind, m)
		prior, err := a.existing(ctx, path)
		if err != nil {
			return err
		}
		body, err := marshalJSONL(months[m])
		if err != nil {
			return fmt.Errorf("s3blob: encode %s: %w", path, err)
		}
		if err := a.writer.Put(ctx, path, io.MultiReader(bytes.NewReader(prior), bytes.NewReader(body)), jsonlContentType); err != nil {
			return err
		}
		a.logger.Info("archive object written",
			slog.String("path", path),
			slog.Int("rows", len(months[m])),
			slog.Int("prior_bytes", len(prior)),
		)
	}
	return nil
}

// existing returns the current contents of path, or nil when absent.
func (a *Archiver) existing(ctx context.Context, path string) ([]byte, error) {
	rc, err := a.reader.Get(ctx, path)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("s3blob: read %s: %w", path, err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	return data, nil
}

func (a *Archiver) record(ctx context.Context, kind string, n int64, before time.Time) {
	if n == 0 {
		return
	}
	a.logger.Info("archive run complete",
		slog.String("kind", kind),
		slog.Int64("rows", n),
		slog.Time("before", before),
	)
	if err := a.audit.Log(ctx, "archive."+kind, map[string]any{
		"rows":   n,
		"before": before.UTC().Format(time.RFC3339),
	}); err != nil {
		a.logger.Warn("audit log write failed", slog.String("error", err.Error()))
	}
}

// ArchivePath is the object key for kind and month ("2006-01").
func ArchivePath(kind, month string) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, month)
}

func marshalJSONL[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, r := range rows {
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
