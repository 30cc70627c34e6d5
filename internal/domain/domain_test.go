package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperatorHoldsIsStrict(t *testing.T) {
	assert.True(t, OperatorGreaterThan.Holds(101, 100))
	assert.False(t, OperatorGreaterThan.Holds(100, 100))
	assert.True(t, OperatorLessThan.Holds(99, 100))
	assert.False(t, OperatorLessThan.Holds(100, 100))
	assert.False(t, Operator(">=").Holds(200, 100))
}

func TestVerdictOutcome(t *testing.T) {
	assert.Equal(t, OutcomeYes, VerdictPassed.Outcome())
	assert.Equal(t, OutcomeNo, VerdictFailed.Outcome())
	assert.Equal(t, OutcomeNo, VerdictIncomplete.Outcome())
}

func TestRedemptionStatusTerminal(t *testing.T) {
	for _, s := range []RedemptionStatus{RedemptionIdle, RedemptionDone, RedemptionFailed} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []RedemptionStatus{RedemptionCheckingChain, RedemptionApproving, RedemptionAwaitingSwap} {
		assert.False(t, s.Terminal(), s)
	}
}
