package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preyanshu/verdict/internal/domain"
)

func TestObserveTransition(t *testing.T) {
	r := New()
	r.ObserveTransition(domain.RedemptionAttempt{Status: domain.RedemptionSwapping})
	r.ObserveTransition(domain.RedemptionAttempt{Status: domain.RedemptionDone})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.Transitions.WithLabelValues("swapping")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Redemptions.WithLabelValues("done")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.Redemptions.WithLabelValues("failed")))
}

func TestObserveFetchAndAudit(t *testing.T) {
	r := New()
	r.ObserveFetch(12245, 120*time.Millisecond, nil)
	r.ObserveFetch(12245, time.Second, errors.New("timeout"))
	r.ObserveAudit(domain.AuditResult{Verdict: domain.VerdictPassed, Agrees: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.OracleFetches.WithLabelValues("12245", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.OracleFetches.WithLabelValues("12245", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.AuditVerdicts.WithLabelValues("passed", "true")))
}

func TestHandlerExposesNamespace(t *testing.T) {
	r := New()
	r.InFlight.Set(2)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "verdict_redemptions_in_flight 2")
}
