package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preyanshu/verdict/internal/domain"
)

func TestMarketService_GetMarketCachesSettledRepaired(t *testing.T) {
	settled := domain.Market{ID: "m1", Name: "Gold", Resolved: true, Winner: domain.OutcomeYes}
	engine := &fakeEngine{markets: map[string]domain.Market{"m1": settled}}
	cache := newMemMarketCache()
	svc := NewMarketService(engine, cache, tagRepairer{}, nil, discardLogger())
	ctx := context.Background()

	m, err := svc.GetMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "repaired", m.MathematicalLogic)
	assert.Equal(t, "repaired", cache.markets["m1"].MathematicalLogic)

	_, err = svc.GetMarket(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, engine.calls, "second read served from cache")
}

func TestMarketService_GetMarketSeesResolution(t *testing.T) {
	engine := &fakeEngine{markets: map[string]domain.Market{"m1": {ID: "m1"}}}
	cache := newMemMarketCache()
	svc := NewMarketService(engine, cache, tagRepairer{}, nil, discardLogger())
	ctx := context.Background()

	m, err := svc.GetMarket(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, m.Settled())
	assert.NotContains(t, cache.markets, "m1", "undecided market is not cached")

	engine.markets["m1"] = domain.Market{ID: "m1", Resolved: true, Winner: domain.OutcomeYes}

	m, err = svc.GetMarket(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, m.Settled())
	assert.Equal(t, domain.OutcomeYes, m.Winner)
	assert.Equal(t, 2, engine.calls)
}

func TestMarketService_GetMarketDropsUnsettledCacheEntry(t *testing.T) {
	engine := &fakeEngine{markets: map[string]domain.Market{"m1": {ID: "m1", Resolved: true, Winner: domain.OutcomeNo}}}
	cache := newMemMarketCache()
	cache.markets["m1"] = domain.Market{ID: "m1"}
	cache.graduated = []domain.Market{{ID: "m0"}}
	svc := NewMarketService(engine, cache, tagRepairer{}, nil, discardLogger())

	m, err := svc.GetMarket(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNo, m.Winner)
	assert.Equal(t, 1, engine.calls)
	assert.Nil(t, cache.graduated, "stale listing dropped with the entry")
	assert.True(t, cache.markets["m1"].Settled())
}

func TestMarketService_NotFound(t *testing.T) {
	svc := NewMarketService(&fakeEngine{}, nil, tagRepairer{}, nil, discardLogger())
	_, err := svc.GetMarket(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarketService_ListResolved(t *testing.T) {
	engine := &fakeEngine{graduated: []domain.Market{{ID: "a"}, {ID: "b"}}}
	cache := newMemMarketCache()
	svc := NewMarketService(engine, cache, tagRepairer{}, nil, discardLogger())

	list, err := svc.ListResolved(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, m := range list {
		assert.Equal(t, "repaired", m.MathematicalLogic)
	}

	_, err = svc.ListResolved(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, engine.calls)
}

type staticCatalog []domain.OracleFeed

func (c staticCatalog) All() []domain.OracleFeed { return c }

func TestFeedService_List(t *testing.T) {
	prices := &memPrices{}
	require.NoError(t, prices.SetPrice(context.Background(), 2, 71.5, timeZero))
	svc := NewFeedService(staticCatalog{{ID: 1, Ticker: "XAU"}, {ID: 2, Ticker: "WTI"}}, prices, discardLogger())

	views := svc.List(context.Background())
	require.Len(t, views, 2)
	assert.Nil(t, views[0].LastObserved)
	require.NotNil(t, views[1].LastObserved)
	assert.Equal(t, 71.5, *views[1].LastObserved)
}
