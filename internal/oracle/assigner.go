package oracle

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/preyanshu/verdict/internal/domain"
)

const (
	// defaultTargetRatio applies to a valid feed without an explicit target.
	defaultTargetRatio = 1.1
	// fallbackTargetRatio applies to every substituted feed.
	fallbackTargetRatio = 1.05
	// fallbackMissingPrice stands in for a fallback feed with no reference price.
	fallbackMissingPrice = 100
)

// Assigner binds market conditions to registered feeds, substituting a
// deterministic fallback when a condition names an unknown feed. It holds no
// mutable state: output depends only on inputs and FallbackVersion.
type Assigner struct {
	catalog   *Catalog
	fallbacks []domain.OracleFeed
	logger    *slog.Logger
}

// NewAssigner fails if any fallback id is missing from catalog.
func NewAssigner(catalog *Catalog, logger *slog.Logger) (*Assigner, error) {
	a := &Assigner{
		catalog: catalog,
		logger:  logger.With(slog.String("component", "assigner")),
	}
	for _, id := range fallbackIDs {
		f, ok := catalog.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("oracle: fallback feed %d: %w", id, domain.ErrUnknownFeed)
		}
		a.fallbacks = append(a.fallbacks, f)
	}
	return a, nil
}

// Resolve returns the condition at index of marketID. A registered
// providedID passes through with its reference price and a default target;
// zero or an unregistered id selects the fallback.
func (a *Assigner) Resolve(marketID string, index int, providedID int) domain.ResolutionCondition {
	if f, ok := a.catalog.Lookup(providedID); ok {
		return domain.ResolutionCondition{
			SourceID:     f.ID,
			CurrentValue: f.SeedPrice,
			TargetValue:  f.SeedPrice * defaultTargetRatio,
			Operator:     domain.OperatorGreaterThan,
		}
	}
	return a.Fallback(marketID, index)
}

// Fallback returns the deterministic substitute for the condition at index.
func (a *Assigner) Fallback(marketID string, index int) domain.ResolutionCondition {
	f := a.fallbacks[FallbackIndex(marketID, index, len(a.fallbacks))]
	price := f.SeedPrice
	if price == 0 {
		price = fallbackMissingPrice
	}
	return domain.ResolutionCondition{
		SourceID:     f.ID,
		CurrentValue: price,
		TargetValue:  price * fallbackTargetRatio,
		Operator:     domain.OperatorGreaterThan,
	}
}

// RepairMarket returns m with every condition bound to a registered feed.
// Conditions on registered feeds keep their own non-zero values. A market
// with no conditions gets a single fallback at index 0.
func (a *Assigner) RepairMarket(m domain.Market) domain.Market {
	if len(m.Conditions) == 0 {
		c := a.Fallback(m.ID, 0)
		m.Conditions = []domain.ResolutionCondition{c}
		if m.MathematicalLogic == "" {
			m.MathematicalLogic = a.Logic(m.Conditions)
		}
		return m
	}

	fixed := make([]domain.ResolutionCondition, len(m.Conditions))
	for i, c := range m.Conditions {
		if !a.catalog.Has(c.SourceID) {
			a.logger.Warn("unregistered data source, using fallback",
				slog.String("market_id", m.ID),
				slog.Int("index", i),
				slog.Int("source_id", c.SourceID),
			)
			fixed[i] = a.Fallback(m.ID, i)
			continue
		}
		def := a.Resolve(m.ID, i, c.SourceID)
		if c.CurrentValue == 0 {
			c.CurrentValue = def.CurrentValue
		}
		if c.TargetValue == 0 {
			c.TargetValue = def.TargetValue
		}
		if c.Operator == "" {
			c.Operator = def.Operator
		}
		fixed[i] = c
	}
	m.Conditions = fixed
	m.MathematicalLogic = a.Logic(fixed)
	return m
}

// Logic renders conditions as "TICKER op target" clauses joined by AND.
func (a *Assigner) Logic(conds []domain.ResolutionCondition) string {
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		ticker := "ASSET"
		if f, ok := a.catalog.Lookup(c.SourceID); ok {
			ticker = f.Ticker
		}
		parts = append(parts, fmt.Sprintf("%s %s %.2f", ticker, c.Operator, c.TargetValue))
	}
	return strings.Join(parts, " AND ")
}
