// Package telemetry exposes engine counters to Prometheus.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine-level Prometheus collectors. A nil *Metrics is
// safe to use everywhere; every method no-ops.
type Metrics struct {
	executionsAdmitted  prometheus.Counter
	executionsRejected  prometheus.Counter
	executionsCompleted *prometheus.CounterVec
	activeExecutions    prometheus.Gauge
}

// New registers the engine collectors on reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		executionsAdmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "hexbench_executions_admitted_total",
			Help: "Executions admitted past the concurrency cap.",
		}),
		executionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "hexbench_executions_rejected_total",
			Help: "Start requests refused because the cap was reached.",
		}),
		executionsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hexbench_executions_completed_total",
			Help: "Executions that reached a terminal state, by status.",
		}, []string{"status"}),
		activeExecutions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hexbench_active_executions",
			Help: "Executions currently tracked by the registry.",
		}),
	}
}

func (m *Metrics) Admitted() {
	if m == nil {
		return
	}
	m.executionsAdmitted.Inc()
	m.activeExecutions.Inc()
}

func (m *Metrics) Rejected() {
	if m == nil {
		return
	}
	m.executionsRejected.Inc()
}

func (m *Metrics) Completed(status string) {
	if m == nil {
		return
	}
	m.executionsCompleted.WithLabelValues(status).Inc()
	m.activeExecutions.Dec()
}

// Handler serves the default registry in the standard exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
