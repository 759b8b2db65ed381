package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/saturn/pkg/retention"
)

// RetentionMetrics tracks the retention lifecycle.
//
// Metrics:
//   - saturn_sweep_duration_seconds: sweep duration histogram by outcome
//   - saturn_transitions_total: state transitions by from/to
//   - saturn_alerts_created_total: alerts raised by type
//   - saturn_alerts_dispatched_total: delivery attempts by type and result
//   - saturn_processes_registered_total: records entering tracking
//   - saturn_ledger_violations_total: integrity violations found by audits
type RetentionMetrics struct {
	sweepDuration    *prometheus.HistogramVec
	transitionsTotal *prometheus.CounterVec
	alertsCreated    *prometheus.CounterVec
	alertsDispatched *prometheus.CounterVec
	registeredTotal  prometheus.Counter
	violationsTotal  prometheus.Counter
}

// NewRetentionMetrics creates and registers the retention metric group.
func NewRetentionMetrics(namespace string, registry *prometheus.Registry) *RetentionMetrics {
	m := &RetentionMetrics{
		sweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of retention sweeps in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8), // 10ms to ~3m
			},
			[]string{"outcome"},
		),

		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Total retention process state transitions",
			},
			[]string{"from", "to"},
		),

		alertsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_created_total",
				Help:      "Total retention alerts raised",
			},
			[]string{"type"},
		),

		alertsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_dispatched_total",
				Help:      "Total alert delivery attempts",
			},
			[]string{"type", "result"},
		),

		registeredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "processes_registered_total",
				Help:      "Total records registered for retention tracking",
			},
		),

		violationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_violations_total",
				Help:      "Total audit chain integrity violations detected",
			},
		),
	}

	registry.MustRegister(
		m.sweepDuration,
		m.transitionsTotal,
		m.alertsCreated,
		m.alertsDispatched,
		m.registeredTotal,
		m.violationsTotal,
	)

	return m
}

// SweepCompleted records one finished sweep.
func (m *RetentionMetrics) SweepCompleted(outcome string, duration time.Duration) {
	m.sweepDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// Transition records a state transition.
func (m *RetentionMetrics) Transition(from, to retention.ProcessState) {
	m.transitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}

// AlertCreated records a raised alert.
func (m *RetentionMetrics) AlertCreated(alertType retention.AlertType) {
	m.alertsCreated.WithLabelValues(string(alertType)).Inc()
}

// AlertDispatched records a delivery attempt.
func (m *RetentionMetrics) AlertDispatched(alertType retention.AlertType, success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	m.alertsDispatched.WithLabelValues(string(alertType), result).Inc()
}

// ProcessRegistered records a record entering retention tracking.
func (m *RetentionMetrics) ProcessRegistered() {
	m.registeredTotal.Inc()
}

// LedgerViolation records an integrity violation found by an audit.
func (m *RetentionMetrics) LedgerViolation() {
	m.violationsTotal.Inc()
}
