package oracle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/preyanshu/verdict/internal/domain"
)

// PriceFetcher reads a feed's live value.
type PriceFetcher interface {
	Fetch(ctx context.Context, feed domain.OracleFeed) (float64, error)
}

// Auditor re-evaluates a market's resolution conditions against live feeds.
type Auditor struct {
	catalog     *Catalog
	fetcher     PriceFetcher
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

// NewAuditor creates an Auditor fetching at most concurrency feeds at once.
func NewAuditor(catalog *Catalog, fetcher PriceFetcher, concurrency int, logger *slog.Logger) *Auditor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Auditor{
		catalog:     catalog,
		fetcher:     fetcher,
		concurrency: concurrency,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "auditor")),
	}
}

// Audit fetches every feed referenced by m concurrently and evaluates each
// condition with a strict comparison. Feeds that fail are left out of
// Observed and their conditions are not evaluated, which makes the verdict
// incomplete rather than failed. The verdict passes only when every
// condition was evaluated and passed.
func (a *Auditor) Audit(ctx context.Context, m domain.Market) (domain.AuditResult, error) {
	observed := a.observe(ctx, m)
	if err := ctx.Err(); err != nil {
		return domain.AuditResult{}, err
	}

	res := domain.AuditResult{
		MarketID:    m.ID,
		Conditions:  make([]domain.ConditionResult, 0, len(m.Conditions)),
		Observed:    observed,
		Declared:    m.Winner,
		CompletedAt: a.now().UTC(),
	}

	allEvaluated, allPassed := len(m.Conditions) > 0, true
	for _, c := range m.Conditions {
		cr := domain.ConditionResult{ResolutionCondition: c}
		if f, ok := a.catalog.Lookup(c.SourceID); ok {
			cr.Ticker = f.Ticker
		}
		if v, ok := observed[c.SourceID]; ok {
			cr.Evaluated = true
			cr.Observed = v
			cr.Passed = c.Operator.Holds(v, c.TargetValue)
		} else {
			allEvaluated = false
		}
		if cr.Evaluated && !cr.Passed {
			allPassed = false
		}
		res.Conditions = append(res.Conditions, cr)
	}

	switch {
	case !allEvaluated:
		res.Verdict = domain.VerdictIncomplete
	case allPassed:
		res.Verdict = domain.VerdictPassed
	default:
		res.Verdict = domain.VerdictFailed
	}
	if m.Settled() {
		res.Agrees = res.Verdict.Outcome() == m.Winner
	}

	a.logger.Info("audit complete",
		slog.String("market_id", m.ID),
		slog.String("verdict", string(res.Verdict)),
		slog.Int("conditions", len(m.Conditions)),
		slog.Int("observed", len(observed)),
	)
	return res, nil
}

func (a *Auditor) observe(ctx context.Context, m domain.Market) map[int]float64 {
	seen := make(map[int]bool, len(m.Conditions))
	var feeds []domain.OracleFeed
	for _, c := range m.Conditions {
		if seen[c.SourceID] {
			continue
		}
		seen[c.SourceID] = true
		f, ok := a.catalog.Lookup(c.SourceID)
		if !ok {
			a.logger.Warn("condition references unregistered feed",
				slog.String("market_id", m.ID),
				slog.Int("source_id", c.SourceID),
			)
			continue
		}
		feeds = append(feeds, f)
	}

	var (
		mu       sync.Mutex
		observed = make(map[int]float64, len(feeds))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, f := range feeds {
		g.Go(func() error {
			v, err := a.fetcher.Fetch(gctx, f)
			if err != nil {
				a.logger.Warn("feed fetch failed",
					slog.String("market_id", m.ID),
					slog.Int("source_id", f.ID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			mu.Lock()
			observed[f.ID] = v
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return observed
}
