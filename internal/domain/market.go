package domain

import "time"

// Outcome is the settled side of a binary market.
type Outcome string

const (
	OutcomeYes       Outcome = "yes"
	OutcomeNo        Outcome = "no"
	OutcomeUndecided Outcome = ""
)

// Operator is the comparison a resolution condition applies to the observed value.
type Operator string

const (
	OperatorGreaterThan Operator = ">"
	OperatorLessThan    Operator = "<"
)

// Valid reports whether op is one of the two supported comparisons.
func (op Operator) Valid() bool {
	return op == OperatorGreaterThan || op == OperatorLessThan
}

// Holds applies op to observed against target. Both comparisons are strict:
// an observed value equal to the target never passes.
func (op Operator) Holds(observed, target float64) bool {
	switch op {
	case OperatorGreaterThan:
		return observed > target
	case OperatorLessThan:
		return observed < target
	default:
		return false
	}
}

// ResolutionCondition is one clause a market resolves against.
type ResolutionCondition struct {
	SourceID     int      `json:"id"`
	CurrentValue float64  `json:"currentValue"`
	TargetValue  float64  `json:"targetValue"`
	Operator     Operator `json:"operator"`
}

// Market is a binary prediction market as published by the market engine.
// Only resolved markets (Winner set) are eligible for redemption.
type Market struct {
	ID                 string                `json:"id"`
	Name               string                `json:"name"`
	Description        string                `json:"description,omitempty"`
	Conditions         []ResolutionCondition `json:"conditions"`
	MathematicalLogic  string                `json:"mathematicalLogic,omitempty"`
	ResolutionDeadline time.Time             `json:"resolutionDeadline"`
	Resolved           bool                  `json:"resolved"`
	Winner             Outcome               `json:"winner,omitempty"`
	YesPrice           float64               `json:"yesPrice,omitempty"`
	NoPrice            float64               `json:"noPrice,omitempty"`
	CreatedAt          time.Time             `json:"createdAt"`
}

// Settled reports whether the market has a declared winner.
func (m Market) Settled() bool {
	return m.Resolved && (m.Winner == OutcomeYes || m.Winner == OutcomeNo)
}
