package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/preyanshu/verdict/internal/domain"
	"github.com/preyanshu/verdict/internal/notify"
)

// Auditor re-evaluates a market against live feeds.
type Auditor interface {
	Audit(ctx context.Context, m domain.Market) (domain.AuditResult, error)
}

// MarketGetter loads a market by id.
type MarketGetter interface {
	GetMarket(ctx context.Context, id string) (domain.Market, error)
}

// AuditResults holds the latest result per market for display.
type AuditResults interface {
	Put(r domain.AuditResult)
	Get(marketID string) (domain.AuditResult, bool)
}

// AuditObserver records completed audits.
type AuditObserver interface {
	ObserveAudit(res domain.AuditResult)
}

// AuditDeps bundles the collaborators of an AuditService. Everything past
// Results is optional.
type AuditDeps struct {
	Markets  MarketGetter
	Auditor  Auditor
	Results  AuditResults
	Prices   domain.PriceCache
	Log      domain.AuditStore
	Bus      domain.SignalBus
	Notifier Notifier
	Metrics  AuditObserver
}

// AuditService runs audits and fans the results out. Every call recomputes
// from live feeds; stored results are never reused as a verdict.
type AuditService struct {
	deps   AuditDeps
	pub    publisher
	logger *slog.Logger
}

// NewAuditService creates an AuditService.
func NewAuditService(deps AuditDeps, logger *slog.Logger) *AuditService {
	logger = logger.With(slog.String("component", "audit_service"))
	return &AuditService{
		deps:   deps,
		pub:    publisher{bus: deps.Bus, now: time.Now, logger: logger},
		logger: logger,
	}
}

// Audit re-evaluates marketID.
func (s *AuditService) Audit(ctx context.Context, marketID string) (domain.AuditResult, error) {
	m, err := s.deps.Markets.GetMarket(ctx, marketID)
	if err != nil {
		return domain.AuditResult{}, fmt.Errorf("audit_service: load market: %w", err)
	}
	res, err := s.deps.Auditor.Audit(ctx, m)
	if err != nil {
		return domain.AuditResult{}, fmt.Errorf("audit_service: audit %s: %w", marketID, err)
	}

	s.deps.Results.Put(res)
	s.cachePrices(ctx, res)
	s.record(ctx, m, res)
	s.pub.publish(ctx, domain.ChannelAudits, domain.Event{
		Type:      "audit." + string(res.Verdict),
		MarketID:  res.MarketID,
		Data:      res,
		Timestamp: res.CompletedAt,
	})
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveAudit(res)
	}
	s.notify(ctx, m, res)

	s.logger.InfoContext(ctx, "audit completed",
		slog.String("market_id", res.MarketID),
		slog.String("verdict", string(res.Verdict)),
		slog.String("declared", string(res.Declared)),
		slog.Bool("agrees", res.Agrees),
		slog.Int("observed_feeds", len(res.Observed)),
	)
	return res, nil
}

// LastResult returns the most recent audit of marketID.
func (s *AuditService) LastResult(marketID string) (domain.AuditResult, bool) {
	return s.deps.Results.Get(marketID)
}

func (s *AuditService) cachePrices(ctx context.Context, res domain.AuditResult) {
	if s.deps.Prices == nil {
		return
	}
	for id, v := range res.Observed {
		if err := s.deps.Prices.SetPrice(ctx, id, v, res.CompletedAt); err != nil {
			s.logger.WarnContext(ctx, "price cache write failed",
				slog.Int("source_id", id),
				slog.String("error", err.Error()),
			)
			return
		}
	}
}

func (s *AuditService) record(ctx context.Context, m domain.Market, res domain.AuditResult) {
	if s.deps.Log == nil {
		return
	}
	evaluated := 0
	for _, c := range res.Conditions {
		if c.Evaluated {
			evaluated++
		}
	}
	err := s.deps.Log.Log(ctx, "audit.completed", map[string]any{
		"market_id":  m.ID,
		"verdict":    string(res.Verdict),
		"declared":   string(res.Declared),
		"agrees":     res.Agrees,
		"conditions": len(res.Conditions),
		"evaluated":  evaluated,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit log write failed", slog.String("error", err.Error()))
	}
}

func (s *AuditService) notify(ctx context.Context, m domain.Market, res domain.AuditResult) {
	if s.deps.Notifier == nil {
		return
	}
	var event string
	switch res.Verdict {
	case domain.VerdictPassed:
		event = notify.EventAuditPassed
	case domain.VerdictFailed:
		event = notify.EventAuditFailed
	default:
		event = notify.EventAuditIncomplete
	}
	title := fmt.Sprintf("Audit %s: %s", res.Verdict, m.Name)
	msg := fmt.Sprintf("market %s declared %q; audit agrees: %t", m.ID, res.Declared, res.Agrees)
	if err := s.deps.Notifier.Notify(ctx, event, title, msg); err != nil {
		s.logger.WarnContext(ctx, "audit notification failed", slog.String("error", err.Error()))
	}
}
