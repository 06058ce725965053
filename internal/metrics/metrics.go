package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors the server exports. Each call to New
// gets its own registry so tests never trip duplicate-registration
// panics.
type Metrics struct {
	Registry *prometheus.Registry

	// DecisionsTotal counts evaluated presentations by reason code.
	DecisionsTotal *prometheus.CounterVec

	// AuditFailures counts decisions that could not be durably logged.
	// Any nonzero rate here should page: those events failed closed and
	// are missing from the audit trail.
	AuditFailures prometheus.Counter

	// HTTPDuration observes request latency per route and status.
	HTTPDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		DecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cardgate_decisions_total",
			Help: "Access decisions evaluated, labeled by reason code.",
		}, []string{"reason"}),
		AuditFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardgate_audit_failures_total",
			Help: "Decisions that failed closed because the audit write failed.",
		}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cardgate_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}
