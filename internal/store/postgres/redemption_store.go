package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/preyanshu/verdict/internal/domain"
)

const redemptionColumns = `id, market_id, wallet, status, token, COALESCE(amount::text, ''),
	approve_tx, swap_tx, COALESCE(balance_after::text, ''), last_error,
	started_at, updated_at, finished_at`

// RedemptionStore keeps one row per redemption attempt, upserted on every
// state change.
type RedemptionStore struct {
	pool *pgxpool.Pool
}

// NewRedemptionStore creates a RedemptionStore on pool.
func NewRedemptionStore(pool *pgxpool.Pool) *RedemptionStore {
	return &RedemptionStore{pool: pool}
}

// nullableNumeric maps "" to NULL for NUMERIC columns.
func nullableNumeric(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Save upserts a.
func (s *RedemptionStore) Save(ctx context.Context, a domain.RedemptionAttempt) error {
	const q = `
		INSERT INTO redemptions (id, market_id, wallet, status, token, amount,
			approve_tx, swap_tx, balance_after, last_error, started_at, updated_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status        = EXCLUDED.status,
			token         = EXCLUDED.token,
			amount        = EXCLUDED.amount,
			approve_tx    = EXCLUDED.approve_tx,
			swap_tx       = EXCLUDED.swap_tx,
			balance_after = EXCLUDED.balance_after,
			last_error    = EXCLUDED.last_error,
			updated_at    = EXCLUDED.updated_at,
			finished_at   = EXCLUDED.finished_at`
	_, err := s.pool.Exec(ctx, q,
		a.ID, a.MarketID, a.Wallet, string(a.Status), a.Token, nullableNumeric(a.Amount),
		a.ApproveTx, a.SwapTx, nullableNumeric(a.Balance), a.LastError,
		a.StartedAt, a.UpdatedAt, a.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save redemption %s: %w", a.ID, err)
	}
	return nil
}

// GetByID returns one attempt or domain.ErrNotFound.
func (s *RedemptionStore) GetByID(ctx context.Context, id string) (domain.RedemptionAttempt, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+redemptionColumns+` FROM redemptions WHERE id = $1`, id)
	a, err := scanRedemption(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RedemptionAttempt{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RedemptionAttempt{}, fmt.Errorf("postgres: get redemption %s: %w", id, err)
	}
	return a, nil
}

func walletHistoryQuery(wallet string, opts domain.ListOpts) *query {
	q := newQuery(`SELECT ` + redemptionColumns + ` FROM redemptions WHERE TRUE`)
	q.where("lower(wallet) = ?", strings.ToLower(wallet))
	if opts.Since != nil {
		q.where("started_at >= ?", *opts.Since)
	}
	if opts.Until != nil {
		q.where("started_at <= ?", *opts.Until)
	}
	q.raw(" ORDER BY started_at DESC")
	q.page(opts)
	return q
}

// ListByWallet returns a wallet's attempts, newest first.
func (s *RedemptionStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.RedemptionAttempt, error) {
	q := walletHistoryQuery(wallet, opts)
	rows, err := s.pool.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list redemptions: %w", err)
	}
	return collectRedemptions(rows)
}

// ListFinishedBefore returns terminal attempts finished before before,
// oldest first.
func (s *RedemptionStore) ListFinishedBefore(ctx context.Context, before time.Time, limit int) ([]domain.RedemptionAttempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+redemptionColumns+` FROM redemptions
		 WHERE finished_at IS NOT NULL AND finished_at < $1
		 ORDER BY finished_at ASC LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list finished redemptions: %w", err)
	}
	return collectRedemptions(rows)
}

// DeleteFinishedBefore removes terminal attempts finished before before.
func (s *RedemptionStore) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM redemptions WHERE finished_at IS NOT NULL AND finished_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete finished redemptions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRedemption(row pgx.Row) (domain.RedemptionAttempt, error) {
	var (
		a      domain.RedemptionAttempt
		status string
	)
	err := row.Scan(&a.ID, &a.MarketID, &a.Wallet, &status, &a.Token, &a.Amount,
		&a.ApproveTx, &a.SwapTx, &a.Balance, &a.LastError,
		&a.StartedAt, &a.UpdatedAt, &a.FinishedAt)
	a.Status = domain.RedemptionStatus(status)
	return a, err
}

func collectRedemptions(rows pgx.Rows) ([]domain.RedemptionAttempt, error) {
	defer rows.Close()
	var out []domain.RedemptionAttempt
	for rows.Next() {
		a, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan redemption: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: redemption rows: %w", err)
	}
	return out, nil
}

var _ domain.RedemptionStore = (*RedemptionStore)(nil)
