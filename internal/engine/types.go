package engine

import (
	"time"

	"github.com/preyanshu/verdict/internal/domain"
)

// apiSource is one entry of a strategy's usedDataSources.
type apiSource struct {
	ID           int     `json:"id"`
	CurrentValue float64 `json:"currentValue"`
	TargetValue  float64 `json:"targetValue"`
	Operator     string  `json:"operator,omitempty"`
}

type apiPricePoint struct {
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

type apiToken struct {
	TokenReserve float64         `json:"tokenReserve"`
	Volume       float64         `json:"volume"`
	History      []apiPricePoint `json:"history"`
	TWAP         float64         `json:"twap"`
}

// lastPrice is the newest traded price, or the TWAP when nothing traded.
func (t apiToken) lastPrice() float64 {
	if n := len(t.History); n > 0 {
		return t.History[n-1].Price
	}
	return t.TWAP
}

// apiStrategy is a market as the engine publishes it.
type apiStrategy struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	Description        string      `json:"description"`
	EvaluationLogic    string      `json:"evaluationLogic"`
	MathematicalLogic  string      `json:"mathematicalLogic"`
	UsedDataSources    []apiSource `json:"usedDataSources"`
	ResolutionDeadline int64       `json:"resolutionDeadline"`
	YesToken           apiToken    `json:"yesToken"`
	NoToken            apiToken    `json:"noToken"`
	Timestamp          int64       `json:"timestamp"`
	Resolved           bool        `json:"resolved"`
	Winner             *string     `json:"winner"`
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// toDomain maps the engine payload. An unknown winner string is treated as
// undecided.
func (s apiStrategy) toDomain() domain.Market {
	m := domain.Market{
		ID:                 s.ID,
		Name:               s.Name,
		Description:        s.Description,
		MathematicalLogic:  s.MathematicalLogic,
		ResolutionDeadline: fromMillis(s.ResolutionDeadline),
		Resolved:           s.Resolved,
		YesPrice:           s.YesToken.lastPrice(),
		NoPrice:            s.NoToken.lastPrice(),
		CreatedAt:          fromMillis(s.Timestamp),
	}
	if s.Winner != nil {
		switch w := domain.Outcome(*s.Winner); w {
		case domain.OutcomeYes, domain.OutcomeNo:
			m.Winner = w
		}
	}
	m.Conditions = make([]domain.ResolutionCondition, 0, len(s.UsedDataSources))
	for _, src := range s.UsedDataSources {
		m.Conditions = append(m.Conditions, domain.ResolutionCondition{
			SourceID:     src.ID,
			CurrentValue: src.CurrentValue,
			TargetValue:  src.TargetValue,
			Operator:     domain.Operator(src.Operator),
		})
	}
	return m
}
