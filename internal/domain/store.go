package domain

import (
	"context"
	"time"
)

// ListOpts pages a history query. Since and Until, when set, bound the row
// timestamp.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// RedemptionStore is the durable history of redemption attempts. Save
// upserts by attempt id so every transition overwrites the previous row.
type RedemptionStore interface {
	Save(ctx context.Context, a RedemptionAttempt) error
	GetByID(ctx context.Context, id string) (RedemptionAttempt, error)
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]RedemptionAttempt, error)

	ListFinishedBefore(ctx context.Context, before time.Time, limit int) ([]RedemptionAttempt, error)
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is one row of the operational log: a named event plus free-form
// detail.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore is an append-only operational log. Rows leave only through
// archival.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)

	ListBefore(ctx context.Context, before time.Time, limit int) ([]AuditEntry, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
