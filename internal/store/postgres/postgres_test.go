package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preyanshu/verdict/internal/config"
	"github.com/preyanshu/verdict/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/verdict?sslmode=disable",
		DSN(config.PostgresConfig{Host: "db", User: "u", Password: "p", Database: "verdict"}))
	assert.Equal(t, "postgres://x", DSN(config.PostgresConfig{DSN: " postgres://x ", Host: "ignored"}))
}

func TestMigrationNamesOrdered(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_audit_log.sql", "002_redemptions.sql"}, names)
}

func TestAuditListQuery(t *testing.T) {
	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	q := auditListQuery(domain.ListOpts{Since: &since, Limit: 20, Offset: 40})

	assert.Equal(t,
		"SELECT id, event, detail, created_at FROM audit_log WHERE TRUE AND created_at >= $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		q.String())
	assert.Equal(t, []any{since, 20, 40}, q.args)
}

func TestWalletHistoryQueryLowercases(t *testing.T) {
	q := walletHistoryQuery("0xABCdef", domain.ListOpts{Limit: 10})

	assert.Contains(t, q.String(), "lower(wallet) = $1")
	assert.Contains(t, q.String(), "ORDER BY started_at DESC LIMIT $2")
	assert.Equal(t, []any{"0xabcdef", 10}, q.args)
}

func TestNullableNumeric(t *testing.T) {
	assert.Nil(t, nullableNumeric(""))
	assert.Equal(t, "42", nullableNumeric("42"))
}
