package engine

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preyanshu/verdict/internal/domain"
)

const graduatedJSON = `[
  {"id":"strategy_1","name":"Gold above 2400","timestamp":1764000000000,"resolved":true,"winner":"yes",
   "resolutionDeadline":1764003600000,
   "usedDataSources":[{"id":12245,"currentValue":590,"targetValue":649,"operator":">"}],
   "yesToken":{"history":[{"price":0.41,"timestamp":1},{"price":0.62,"timestamp":2}],"twap":0.5},
   "noToken":{"history":[],"twap":0.38}},
  {"id":"strategy_2","name":"Oil below 70","timestamp":1764500000000,"resolved":true,"winner":null,
   "usedDataSources":[]},
  {"id":"strategy_1","name":"duplicate","timestamp":1764900000000,"resolved":true,"winner":"no"}
]`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGraduated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/strategies/graduated", r.URL.Path)
		_, _ = w.Write([]byte(graduatedJSON))
	})

	markets, err := c.Graduated(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 2, "duplicate ids dropped, first occurrence kept")

	assert.Equal(t, "strategy_2", markets[0].ID, "newest first")
	assert.Equal(t, domain.OutcomeUndecided, markets[0].Winner)

	gold := markets[1]
	assert.Equal(t, "Gold above 2400", gold.Name)
	assert.Equal(t, domain.OutcomeYes, gold.Winner)
	assert.True(t, gold.Settled())
	assert.Equal(t, 0.62, gold.YesPrice)
	assert.Equal(t, 0.38, gold.NoPrice)
	assert.Equal(t, time.UnixMilli(1764003600000).UTC(), gold.ResolutionDeadline)
	require.Len(t, gold.Conditions, 1)
	assert.Equal(t, domain.ResolutionCondition{SourceID: 12245, CurrentValue: 590, TargetValue: 649, Operator: ">"}, gold.Conditions[0])
}

func TestMarket_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/strategies/missing", r.URL.Path)
		http.NotFound(w, r)
	})

	_, err := c.Market(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarket_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "engine warming up", http.StatusServiceUnavailable)
	})

	_, err := c.Market(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 503")
}

func TestWinnerUnknownIsUndecided(t *testing.T) {
	w := "maybe"
	m := apiStrategy{ID: "x", Resolved: true, Winner: &w}.toDomain()
	assert.Equal(t, domain.OutcomeUndecided, m.Winner)
	assert.False(t, m.Settled())
}
