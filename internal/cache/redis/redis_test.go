package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preyanshu/verdict/internal/config"
	"github.com/preyanshu/verdict/internal/domain"
)

func TestLockManager_Acquire(t *testing.T) {
	db, mock := redismock.NewClientMock()
	lm := NewLockManager(Wrap(db))
	lm.token = func() string { return "tok-1" }
	ctx := context.Background()

	mock.ExpectSetNX("lock:redeem:m1:0xabc", "tok-1", time.Minute).SetVal(true)
	release, err := lm.Acquire(ctx, "redeem:m1:0xabc", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, release)

	mock.ExpectSetNX("lock:redeem:m1:0xabc", "tok-1", time.Minute).SetVal(false)
	_, err = lm.Acquire(ctx, "redeem:m1:0xabc", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPriceCache_SetAndGet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	pc := NewPriceCache(Wrap(db), time.Hour)
	ctx := context.Background()
	ts := time.UnixMilli(1764000000000).UTC()

	mock.ExpectTxPipeline()
	mock.ExpectHSet("oracle:price:7", "value", "2650.5", "ts", "1764000000000").SetVal(2)
	mock.ExpectExpire("oracle:price:7", time.Hour).SetVal(true)
	mock.ExpectTxPipelineExec()
	require.NoError(t, pc.SetPrice(ctx, 7, 2650.5, ts))

	mock.ExpectHGetAll("oracle:price:7").SetVal(map[string]string{"value": "2650.5", "ts": "1764000000000"})
	price, got, err := pc.GetPrice(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2650.5, price)
	assert.Equal(t, ts, got)

	mock.ExpectHGetAll("oracle:price:8").SetVal(map[string]string{})
	_, _, err = pc.GetPrice(ctx, 8)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarketCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mc := NewMarketCache(Wrap(db), 5*time.Minute)
	ctx := context.Background()

	m := domain.Market{ID: "m1", Name: "Gold above 2400", Resolved: true, Winner: domain.OutcomeYes}
	data, err := json.Marshal(m)
	require.NoError(t, err)

	mock.ExpectSet("market:m1", string(data), 5*time.Minute).SetVal("OK")
	require.NoError(t, mc.Set(ctx, m))

	mock.ExpectGet("market:m1").SetVal(string(data))
	got, err := mc.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, m.Name, got.Name)
	assert.Equal(t, domain.OutcomeYes, got.Winner)

	mock.ExpectGet("market:missing").RedisNil()
	_, err = mc.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	mock.ExpectDel("market:m1", graduatedKey).SetVal(1)
	require.NoError(t, mc.Invalidate(ctx, "m1"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_Allow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rl := NewRateLimiter(Wrap(db))
	now := time.UnixMicro(1_764_000_000_000_000)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	sha := rl.script.Hash()
	mock.ExpectEvalSha(sha, []string{"ratelimit:ip:1.2.3.4"}, now.UnixMicro(), time.Minute.Microseconds(), 2).
		SetVal([]interface{}{int64(1), int64(1)})
	ok, err := rl.Allow(ctx, "ip:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectEvalSha(sha, []string{"ratelimit:ip:1.2.3.4"}, now.UnixMicro(), time.Minute.Microseconds(), 2).
		SetVal([]interface{}{int64(0), int64(2)})
	ok, err = rl.Allow(ctx, "ip:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignalBus_Publish(t *testing.T) {
	db, mock := redismock.NewClientMock()
	sb := NewSignalBus(Wrap(db))

	mock.ExpectPublish(domain.ChannelRedemptions, []byte(`{"type":"redemption.done"}`)).SetVal(1)
	require.NoError(t, sb.Publish(context.Background(), domain.ChannelRedemptions, []byte(`{"type":"redemption.done"}`)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptions(t *testing.T) {
	opts, err := Options(config.RedisConfig{Addr: "localhost:6379", DB: 3, PoolSize: 5})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 5, opts.PoolSize)
	assert.Nil(t, opts.TLSConfig)

	opts, err = Options(config.RedisConfig{Addr: "rediss://:pw@cache.internal:6380/2"})
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.NotNil(t, opts.TLSConfig)

	_, err = Options(config.RedisConfig{Addr: "redis://host/notadb"})
	assert.Error(t, err)
}
