// Package metrics exposes Prometheus metrics for triage evaluations and
// configuration reloads.
package metrics

import (
	"github.com/health-triage/internal/service"
	"github.com/health-triage/internal/snapshot"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the triage service.
type Metrics struct {
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration *prometheus.HistogramVec
	MatchedRules       prometheus.Histogram
	RulesEvaluated     prometheus.Histogram
	EarlyExitsTotal    prometheus.Counter
	ReloadsTotal       *prometheus.CounterVec
	ActiveRules        prometheus.Gauge
}

// New registers and returns triage metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "health_triage_evaluations_total",
			Help: "Total triage evaluations by status and level.",
		}, []string{"status", "level"}),
		EvaluationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "health_triage_evaluation_duration_seconds",
			Help:    "Duration of triage evaluations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12), // 50us .. ~100ms
		}, []string{"status"}),
		MatchedRules: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "health_triage_matched_rules",
			Help:    "Rules matched per evaluation.",
			Buckets: prometheus.LinearBuckets(0, 1, 11), // 0 .. 10
		}),
		RulesEvaluated: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "health_triage_rules_evaluated",
			Help:    "Rules whose conditions were tested per evaluation.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1 .. 512
		}),
		EarlyExitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "health_triage_early_exits_total",
			Help: "Evaluations that stopped early at an L1 match.",
		}),
		ReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "health_triage_snapshot_reloads_total",
			Help: "Configuration snapshot rebuilds by result.",
		}, []string{"result"}),
		ActiveRules: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "health_triage_active_rules",
			Help: "Number of rules in the snapshot currently served.",
		}),
	}

	reg.MustRegister(
		m.EvaluationsTotal,
		m.EvaluationDuration,
		m.MatchedRules,
		m.RulesEvaluated,
		m.EarlyExitsTotal,
		m.ReloadsTotal,
		m.ActiveRules,
	)

	return m
}

// Hooks returns service hooks that record evaluation metrics.
func (m *Metrics) Hooks() service.Hooks {
	return service.Hooks{
		OnEvaluate: func(e *service.EvaluationEvent) {
			level := string(e.Level)
			if e.Status != service.StatusOK {
				level = "none"
			}
			m.EvaluationsTotal.WithLabelValues(e.Status, level).Inc()
			m.EvaluationDuration.WithLabelValues(e.Status).Observe(e.Duration)
			if e.Status != service.StatusOK {
				return
			}
			m.MatchedRules.Observe(float64(e.MatchedRules))
			m.RulesEvaluated.Observe(float64(e.Evaluated))
			if e.EarlyExit {
				m.EarlyExitsTotal.Inc()
			}
		},
	}
}

// OnReload records a snapshot rebuild attempt.
func (m *Metrics) OnReload() snapshot.ReloadFunc {
	return func(_ string, rules int, err error) {
		if err != nil {
			m.ReloadsTotal.WithLabelValues("error").Inc()
			return
		}
		m.ReloadsTotal.WithLabelValues("success").Inc()
		m.ActiveRules.Set(float64(rules))
	}
}
