package services

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusMetrics struct {
	ledgerOperations          *prometheus.CounterVec
	ledgerDuration            *prometheus.HistogramVec
	retryAttempts             *prometheus.CounterVec
	storeFailures             *prometheus.CounterVec
	circuitBreakerState       *prometheus.GaugeVec
	transferAmount            prometheus.Histogram
	reconciliationMismatches  prometheus.Counter
	authenticationEventsTotal *prometheus.CounterVec
}

// NewPrometheusMetrics registers the ledger collectors with reg.
// Pass prometheus.DefaultRegisterer to expose them on /metrics.
func NewPrometheusMetrics(reg prometheus.Registerer) MetricsRecorderInterface {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		ledgerOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_operations_total",
				Help: "Total number of ledger operations by outcome",
			},
			[]string{"operation", "status"},
		),
		ledgerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_milliseconds",
				Help:    "Ledger operation duration in milliseconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"operation"},
		),
		retryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_retry_attempts_total",
				Help: "Total number of attempts that hit a transient conflict",
			},
			[]string{"operation"},
		),
		storeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_store_failures_total",
				Help: "Ledger operations aborted by a store failure, by class (unreachable or unexpected)",
			},
			[]string{"operation", "class"},
		),
		circuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"service"},
		),
		transferAmount: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "transfer_amount",
				Help:    "Committed transfer amount in base currency units",
				Buckets: prometheus.ExponentialBuckets(1, 10, 8),
			},
		),
		reconciliationMismatches: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_reconciliation_mismatches_total",
				Help: "Accounts whose stored balance disagreed with the replayed history",
			},
		),
		authenticationEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authentication_events_total",
				Help: "Total number of authentication events",
			},
			[]string{"event", "status"},
		),
	}
}

func (m *PrometheusMetrics) IncrementCounter(name string, tags map[string]string) {
	operation := tags["operation"]
	status := tags["status"]

	switch name {
	case "ledger.operation":
		m.ledgerOperations.WithLabelValues(operation, status).Inc()
	case "ledger.retry":
		m.retryAttempts.WithLabelValues(operation).Inc()
	case "ledger.store_failure":
		m.storeFailures.WithLabelValues(operation, tags["class"]).Inc()
	case "ledger.reconciliation.mismatch":
		m.reconciliationMismatches.Inc()
	case "circuit_breaker.state_change":
		m.circuitBreakerState.WithLabelValues(tags["service"]).Set(breakerStateValue(tags["state"]))
	case "auth.event":
		if event := tags["event"]; event != "" {
			m.authenticationEventsTotal.WithLabelValues(event, status).Inc()
		}
	}
}

func (m *PrometheusMetrics) RecordProcessingTime(name string, duration time.Duration) {
	if operation, ok := strings.CutPrefix(name, "ledger."); ok {
		m.ledgerDuration.WithLabelValues(operation).Observe(float64(duration.Milliseconds()))
	}
}

func (m *PrometheusMetrics) RecordGauge(name string, value float64, tags map[string]string) {
	switch name {
	case "transfer_amount":
		m.transferAmount.Observe(value)
	}
}

func breakerStateValue(state string) float64 {
	switch state {
	case "open":
		return 1
	case "half-open":
		return 2
	default:
		return 0
	}
}
