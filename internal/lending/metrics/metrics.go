package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the lending engine.
type Metrics struct {
	// Borrow and return outcomes by result
	LendingOutcome *prometheus.CounterVec

	// End-to-end latency of lending operations
	OperationLatency *prometheus.HistogramVec

	// Loans currently out
	ActiveLoans prometheus.Gauge
}

// New creates a Metrics instance with all lending metrics registered.
func New() *Metrics {
	return &Metrics{
		LendingOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "libris_lending_outcomes_total",
			Help: "Total borrow and return outcomes by operation and result",
		}, []string{"operation", "result"}), // operation: "borrow", "return"

		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "libris_lending_operation_duration_seconds",
			Help:    "Duration of lending operations including the transaction",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),

		ActiveLoans: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "libris_lending_active_loans",
			Help: "Number of loans currently out",
		}),
	}
}

// IncrementOutcome records a lending operation result.
func (m *Metrics) IncrementOutcome(operation, result string) {
	if m != nil {
		m.LendingOutcome.WithLabelValues(operation, result).Inc()
	}
}

// ObserveOperationLatency records the duration of a lending operation.
func (m *Metrics) ObserveOperationLatency(operation string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// LoanOpened and LoanClosed track the active loan gauge.
func (m *Metrics) LoanOpened() {
	if m != nil {
		m.ActiveLoans.Inc()
	}
}

func (m *Metrics) LoanClosed() {
	if m != nil {
		m.ActiveLoans.Dec()
	}
}
