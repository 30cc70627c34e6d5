// Package metrics exposes Prometheus instruments for redemptions, oracle
// fetches and audits on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/preyanshu/verdict/internal/domain"
)

const namespace = "verdict"

// Registry owns every instrument the service records.
type Registry struct {
	reg *prometheus.Registry

	Transitions    *prometheus.CounterVec
	Redemptions    *prometheus.CounterVec
	InFlight       prometheus.Gauge
	OracleFetches  *prometheus.CounterVec
	OracleLatency  *prometheus.HistogramVec
	AuditVerdicts  *prometheus.CounterVec
	EngineRequests *prometheus.CounterVec
	WSClients      prometheus.Gauge
}

// New creates a Registry with Go runtime and process collectors attached.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemption_transitions_total",
			Help:      "Redemption state machine transitions by target state.",
		}, []string{"status"}),
		Redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemptions_total",
			Help:      "Finished redemption attempts by outcome.",
		}, []string{"outcome"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "redemptions_in_flight",
			Help:      "Redemption attempts not yet in a terminal state.",
		}),
		OracleFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_fetches_total",
			Help:      "Oracle feed fetches by feed and result.",
		}, []string{"feed", "result"}),
		OracleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_fetch_duration_seconds",
			Help:      "Oracle feed fetch latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"feed"}),
		AuditVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_verdicts_total",
			Help:      "Completed audits by verdict and agreement with the declared winner.",
		}, []string{"verdict", "agrees"}),
		EngineRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_requests_total",
			Help:      "Market engine lookups by source (cache or engine) and result.",
		}, []string{"source", "result"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected websocket clients.",
		}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.Transitions, r.Redemptions, r.InFlight,
		r.OracleFetches, r.OracleLatency,
		r.AuditVerdicts, r.EngineRequests, r.WSClients,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// ObserveFetch records one oracle fetch.
func (r *Registry) ObserveFetch(sourceID int, d time.Duration, err error) {
	feed := strconv.Itoa(sourceID)
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.OracleFetches.WithLabelValues(feed, result).Inc()
	r.OracleLatency.WithLabelValues(feed).Observe(d.Seconds())
}

// ObserveTransition records a state change of a redemption attempt.
func (r *Registry) ObserveTransition(a domain.RedemptionAttempt) {
	r.Transitions.WithLabelValues(string(a.Status)).Inc()
	if a.Status == domain.RedemptionDone || a.Status == domain.RedemptionFailed {
		r.Redemptions.WithLabelValues(string(a.Status)).Inc()
	}
}

// ObserveAudit records a completed audit.
func (r *Registry) ObserveAudit(res domain.AuditResult) {
	r.AuditVerdicts.WithLabelValues(string(res.Verdict), strconv.FormatBool(res.Agrees)).Inc()
}

// ObserveEngine records a market lookup.
func (r *Registry) ObserveEngine(source string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.EngineRequests.WithLabelValues(source, result).Inc()
}
