package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/preyanshu/verdict/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEngine struct {
	mu        sync.Mutex
	markets   map[string]domain.Market
	graduated []domain.Market
	calls     int
}

func (f *fakeEngine) Graduated(context.Context) ([]domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return append([]domain.Market(nil), f.graduated...), nil
}

func (f *fakeEngine) Market(_ context.Context, id string) (domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	m, ok := f.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

type memMarketCache struct {
	markets   map[string]domain.Market
	graduated []domain.Market
}

func newMemMarketCache() *memMarketCache {
	return &memMarketCache{markets: map[string]domain.Market{}}
}

func (c *memMarketCache) Set(_ context.Context, m domain.Market) error {
	c.markets[m.ID] = m
	return nil
}

func (c *memMarketCache) Get(_ context.Context, id string) (domain.Market, error) {
	m, ok := c.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (c *memMarketCache) Invalidate(_ context.Context, id string) error {
	delete(c.markets, id)
	c.graduated = nil
	return nil
}

func (c *memMarketCache) SetGraduated(_ context.Context, ms []domain.Market) error {
	c.graduated = ms
	return nil
}

func (c *memMarketCache) Graduated(context.Context) ([]domain.Market, error) {
	if c.graduated == nil {
		return nil, domain.ErrNotFound
	}
	return c.graduated, nil
}

// tagRepairer marks every market it repairs.
type tagRepairer struct{}

func (tagRepairer) RepairMarket(m domain.Market) domain.Market {
	m.MathematicalLogic = "repaired"
	return m
}

type memPrices struct {
	mu     sync.Mutex
	prices map[int]float64
}

func (p *memPrices) SetPrice(_ context.Context, id int, v float64, _ time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.prices == nil {
		p.prices = map[int]float64{}
	}
	p.prices[id] = v
	return nil
}

func (p *memPrices) GetPrice(_ context.Context, id int) (float64, time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.prices[id]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return v, time.Time{}, nil
}

func (p *memPrices) GetPrices(_ context.Context, ids []int) (map[int]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[int]float64{}
	for _, id := range ids {
		if v, ok := p.prices[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

type memBus struct {
	mu        sync.Mutex
	published map[string][]domain.Event
	streams   map[string]int
}

func newMemBus() *memBus {
	return &memBus{published: map[string][]domain.Event{}, streams: map[string]int{}}
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	var evt domain.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], evt)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (b *memBus) StreamAppend(_ context.Context, stream string, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams[stream]++
	return nil
}

func (b *memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamEntry, error) {
	return nil, nil
}

func (b *memBus) types(channel string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, e := range b.published[channel] {
		out = append(out, e.Type)
	}
	return out
}

type memAuditLog struct {
	events []string
}

func (l *memAuditLog) Log(_ context.Context, event string, _ map[string]any) error {
	l.events = append(l.events, event)
	return nil
}

func (l *memAuditLog) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (l *memAuditLog) ListBefore(context.Context, time.Time, int) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (l *memAuditLog) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type recordedNote struct {
	event string
	title string
}

type memNotifier struct {
	mu    sync.Mutex
	notes []recordedNote
}

func (n *memNotifier) Notify(_ context.Context, event, title, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, recordedNote{event: event, title: title})
	return nil
}

func (n *memNotifier) events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, note := range n.notes {
		out = append(out, note.event)
	}
	return out
}

type memHistory struct {
	mu    sync.Mutex
	saved map[string]domain.RedemptionAttempt
}

func (h *memHistory) Save(_ context.Context, a domain.RedemptionAttempt) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.saved == nil {
		h.saved = map[string]domain.RedemptionAttempt{}
	}
	h.saved[a.ID] = a
	return nil
}

func (h *memHistory) GetByID(_ context.Context, id string) (domain.RedemptionAttempt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.saved[id]
	if !ok {
		return domain.RedemptionAttempt{}, domain.ErrNotFound
	}
	return a, nil
}

func (h *memHistory) ListByWallet(_ context.Context, wallet string, _ domain.ListOpts) ([]domain.RedemptionAttempt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []domain.RedemptionAttempt
	for _, a := range h.saved {
		if a.Wallet == wallet {
			out = append(out, a)
		}
	}
	return out, nil
}

func (h *memHistory) ListFinishedBefore(context.Context, time.Time, int) ([]domain.RedemptionAttempt, error) {
	return nil, nil
}

func (h *memHistory) DeleteFinishedBefore(context.Context, time.Time) (int64, error) { return 0, nil }
