package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/preyanshu/verdict/internal/domain"
)

// AuditStore is the append-only audit_log table.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore on pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Log appends an event with its JSON detail.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	if detail == nil {
		detail = map[string]any{}
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit detail: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log (event, detail) VALUES ($1, $2)`, event, raw,
	); err != nil {
		return fmt.Errorf("postgres: log audit event %s: %w", event, err)
	}
	return nil
}

func auditListQuery(opts domain.ListOpts) *query {
	q := newQuery(`SELECT id, event, detail, created_at FROM audit_log WHERE TRUE`)
	if opts.Since != nil {
		q.where("created_at >= ?", *opts.Since)
	}
	if opts.Until != nil {
		q.where("created_at <= ?", *opts.Until)
	}
	q.raw(" ORDER BY created_at DESC")
	q.page(opts)
	return q
}

// List returns entries newest first.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	q := auditListQuery(opts)
	rows, err := s.pool.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	return collectAudit(rows)
}

// ListBefore returns up to limit entries older than before, oldest first.
func (s *AuditStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.AuditEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event, detail, created_at FROM audit_log
		 WHERE created_at < $1 ORDER BY created_at ASC LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit before: %w", err)
	}
	return collectAudit(rows)
}

// DeleteBefore removes entries older than before.
func (s *AuditStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_log WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete audit before: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectAudit(rows pgx.Rows) ([]domain.AuditEntry, error) {
	defer rows.Close()
	var out []domain.AuditEntry
	for rows.Next() {
		var (
			e   domain.AuditEntry
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.Event, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan audit entry: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Detail); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal audit detail %d: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: audit rows: %w", err)
	}
	return out, nil
}

var _ domain.AuditStore = (*AuditStore)(nil)
