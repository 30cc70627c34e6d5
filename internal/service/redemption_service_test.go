package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preyanshu/verdict/internal/domain"
	"github.com/preyanshu/verdict/internal/notify"
	"github.com/preyanshu/verdict/internal/redemption"
)

type gaugeValue struct{ v float64 }

func (g *gaugeValue) Set(v float64) { g.v = v }

func TestRedemptionRecorder_MirrorsTransitions(t *testing.T) {
	history := &memHistory{}
	bus := newMemBus()
	notes := &memNotifier{}
	gauge := &gaugeValue{}
	rec := NewRedemptionRecorder(RedemptionRecorderDeps{
		History:  history,
		Bus:      bus,
		Notifier: notes,
		InFlight: gauge,
		Running:  func() int { return 3 },
	}, discardLogger())

	a := domain.RedemptionAttempt{ID: "r1", MarketID: "m1", Wallet: "0xabc", Status: domain.RedemptionSwapping, UpdatedAt: time.Now()}
	rec.AttemptChanged(context.Background(), a)
	a.Status = domain.RedemptionFailed
	a.LastError = redemption.MsgTxFailed
	rec.AttemptChanged(context.Background(), a)

	saved, err := history.GetByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RedemptionFailed, saved.Status)
	assert.Equal(t, []string{"redemption.swapping", "redemption.failed"}, bus.types(domain.ChannelRedemptions))
	assert.Equal(t, []string{notify.EventRedemptionFailed}, notes.events(), "only terminal states notify")
	assert.Equal(t, 3.0, gauge.v)
}

func TestRedemptionRecorder_CancelledContextStillRecords(t *testing.T) {
	history := &memHistory{}
	rec := NewRedemptionRecorder(RedemptionRecorderDeps{History: history}, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec.AttemptChanged(ctx, domain.RedemptionAttempt{ID: "r2", Status: domain.RedemptionFailed})
	_, err := history.GetByID(context.Background(), "r2")
	assert.NoError(t, err)
}

func TestRedemptionService_CurrentAndReset(t *testing.T) {
	store := redemption.NewStore()
	svc := NewRedemptionService(context.Background(), nil, store, nil, discardLogger())

	idle := svc.Current("m1", "0xabc")
	assert.Equal(t, domain.RedemptionIdle, idle.Status)

	a, err := store.Begin("m1", "0xabc", time.Now())
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Reset("m1", "0xabc"), domain.ErrAttemptInFlight)
	assert.Equal(t, 1, svc.InFlight())

	a.Status = domain.RedemptionFailed
	store.Update(a)
	require.NoError(t, svc.Reset("m1", "0xabc"))
	assert.Equal(t, domain.RedemptionIdle, svc.Current("m1", "0xabc").Status)
}

func TestRedemptionService_HistoryRequiresStore(t *testing.T) {
	svc := NewRedemptionService(context.Background(), nil, redemption.NewStore(), nil, discardLogger())
	_, err := svc.History(context.Background(), "0xabc", domain.ListOpts{})
	assert.Error(t, err)
}

func TestTokenAmount(t *testing.T) {
	assert.Equal(t, "1.5", tokenAmount("1500000000000000000"))
	assert.Equal(t, "0", tokenAmount("0"))
	assert.Equal(t, "n/a", tokenAmount("n/a"))
}
