package domain

import "time"

// Verdict is the aggregate outcome of an audit.
type Verdict string

const (
	VerdictPassed     Verdict = "passed"
	VerdictFailed     Verdict = "failed"
	VerdictIncomplete Verdict = "incomplete"
)

// Outcome maps a verdict to the settlement side it supports. Incomplete
// audits settle like failed ones.
func (v Verdict) Outcome() Outcome {
	if v == VerdictPassed {
		return OutcomeYes
	}
	return OutcomeNo
}

// ConditionResult is the evaluation of one resolution condition. Observed is
// only meaningful when Evaluated is true.
type ConditionResult struct {
	ResolutionCondition
	Ticker    string  `json:"ticker,omitempty"`
	Evaluated bool    `json:"evaluated"`
	Observed  float64 `json:"observed,omitempty"`
	Passed    bool    `json:"passed"`
}

// AuditResult is the outcome of re-evaluating a market against live feeds.
type AuditResult struct {
	MarketID    string            `json:"marketId"`
	Conditions  []ConditionResult `json:"conditions"`
	Verdict     Verdict           `json:"verdict"`
	Declared    Outcome           `json:"declared,omitempty"`
	Agrees      bool              `json:"agreesWithDeclared"`
	Observed    map[int]float64   `json:"observed"`
	CompletedAt time.Time         `json:"completedAt"`
}
