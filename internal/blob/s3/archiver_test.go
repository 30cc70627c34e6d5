package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preyanshu/verdict/internal/domain"
)

type memBlobs struct {
	objects map[string][]byte
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: map[string][]byte{}} }

func (m *memBlobs) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = b
	return nil
}

func (m *memBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlobs) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var out []domain.BlobInfo
	for p, b := range m.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(b))})
		}
	}
	return out, nil
}

func (m *memBlobs) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m.objects[path]
	return ok, nil
}

type memRedemptions struct {
	rows []domain.RedemptionAttempt
}

func (m *memRedemptions) Save(context.Context, domain.RedemptionAttempt) error { return nil }

func (m *memRedemptions) GetByID(context.Context, string) (domain.RedemptionAttempt, error) {
	return domain.RedemptionAttempt{}, domain.ErrNotFound
}

func (m *memRedemptions) ListByWallet(context.Context, string, domain.ListOpts) ([]domain.RedemptionAttempt, error) {
	return nil, nil
}

func (m *memRedemptions) ListFinishedBefore(_ context.Context, before time.Time, limit int) ([]domain.RedemptionAttempt, error) {
	var out []domain.RedemptionAttempt
	for _, r := range m.rows {
		if r.FinishedAt != nil && r.FinishedAt.Before(before) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FinishedAt.Before(*out[j].FinishedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRedemptions) DeleteFinishedBefore(_ context.Context, before time.Time) (int64, error) {
	kept := m.rows[:0]
	var n int64
	for _, r := range m.rows {
		if r.FinishedAt != nil && r.FinishedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return n, nil
}

type memAudit struct {
	entries []domain.AuditEntry
	logged  []string
}

func (m *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	m.logged = append(m.logged, event)
	return nil
}

func (m *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return m.entries, nil
}

func (m *memAudit) ListBefore(_ context.Context, before time.Time, limit int) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for _, e := range m.entries {
		if e.CreatedAt.Before(before) {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memAudit) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	kept := m.entries[:0]
	var n int64
	for _, e := range m.entries {
		if e.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return n, nil
}

func finished(id string, at time.Time) domain.RedemptionAttempt {
	return domain.RedemptionAttempt{ID: id, MarketID: "m1", Wallet: "0xabc", Status: domain.RedemptionDone, FinishedAt: &at}
}

func countLines(t *testing.T, data []byte) []string {
	t.Helper()
	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var a domain.RedemptionAttempt
		require.NoError(t, json.Unmarshal(sc.Bytes(), &a))
		ids = append(ids, a.ID)
	}
	return ids
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestArchiveRedemptions_GroupsByMonthAndPurges(t *testing.T) {
	blobs := newMemBlobs()
	jan := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	store := &memRedemptions{rows: []domain.RedemptionAttempt{
		finished("a", jan),
		finished("b", feb),
		finished("c", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
	}}
	audit := &memAudit{}
	arch := NewArchiver(blobs, blobs, store, audit, quietLogger())

	n, err := arch.ArchiveRedemptions(context.Background(), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.Equal(t, []string{"a"}, countLines(t, blobs.objects["archive/redemptions/2025-01.jsonl"]))
	assert.Equal(t, []string{"b"}, countLines(t, blobs.objects["archive/redemptions/2025-02.jsonl"]))
	require.Len(t, store.rows, 1)
	assert.Equal(t, "c", store.rows[0].ID)
	assert.Equal(t, []string{"archive.redemptions"}, audit.logged)
}

func TestArchiveRedemptions_AppendsToExistingObject(t *testing.T) {
	blobs := newMemBlobs()
	blobs.objects["archive/redemptions/2025-01.jsonl"] = []byte(`{"id":"old"}`)
	store := &memRedemptions{rows: []domain.RedemptionAttempt{
		finished("new", time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)),
	}}
	arch := NewArchiver(blobs, blobs, store, &memAudit{}, quietLogger())

	_, err := arch.ArchiveRedemptions(context.Background(), time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "new"}, countLines(t, blobs.objects["archive/redemptions/2025-01.jsonl"]))
}

func TestArchiveRedemptions_BatchesWithoutDuplicates(t *testing.T) {
	blobs := newMemBlobs()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &memRedemptions{}
	for i := 0; i < 7; i++ {
		// Two rows share each timestamp.
		store.rows = append(store.rows, finished(string(rune('a'+i)), base.Add(time.Duration(i/2)*time.Hour)))
	}
	arch := NewArchiver(blobs, blobs, store, &memAudit{}, quietLogger())
	arch.batch = 3

	n, err := arch.ArchiveRedemptions(context.Background(), base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Empty(t, store.rows)

	ids := countLines(t, blobs.objects["archive/redemptions/2025-01.jsonl"])
	sort.Strings(ids)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g"}, ids)
}

func TestArchiveAuditLog_NothingToDo(t *testing.T) {
	blobs := newMemBlobs()
	audit := &memAudit{entries: []domain.AuditEntry{{ID: 1, Event: "audit.completed", CreatedAt: time.Now()}}}
	arch := NewArchiver(blobs, blobs, &memRedemptions{}, audit, quietLogger())

	n, err := arch.ArchiveAuditLog(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, blobs.objects)
	assert.Empty(t, audit.logged)
}

func TestWithScheme(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", withScheme("s3.example.com", true))
	assert.Equal(t, "http://minio:9000", withScheme("minio:9000", false))
	assert.Equal(t, "https://r2.dev", withScheme("https://r2.dev", false))
}
