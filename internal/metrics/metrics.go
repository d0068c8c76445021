package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels operations that returned a result.
	OutcomeSuccess = "success"
	// OutcomeError labels operations that returned an error object.
	OutcomeError = "error"
)

const namespace = "mirador_yield"

var (
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of diagnostics operations handled, partitioned by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	operationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Failed diagnostics operations, partitioned by operation and error kind.",
		},
		[]string{"operation", "kind"},
	)

	operationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_seconds",
			Help:      "Diagnostics operation latency in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	anomaliesFlaggedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_flagged_total",
			Help:      "Samples flagged by rolling or absolute anomaly checks.",
		},
	)

	knowledgeReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "knowledge_reloads_total",
			Help:      "Knowledge base reload attempts, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	sessionsEndedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Sessions ended explicitly through endSession.",
		},
	)
)

// Register attaches mirador-yield collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		operationsTotal,
		operationErrorsTotal,
		operationDurationSeconds,
		anomaliesFlaggedTotal,
		knowledgeReloadsTotal,
		sessionsEndedTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// RegisterActiveSessions exposes a gauge read from fn at scrape time.
func RegisterActiveSessions(reg prometheus.Registerer, fn func() float64) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Sessions currently held by the in-memory store.",
	}, fn)
	if err := reg.Register(gauge); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// ObserveOperation records an operation duration and outcome. kind is the
// error kind and is ignored on success.
func ObserveOperation(operation string, duration time.Duration, outcome, kind string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	operationsTotal.WithLabelValues(operation, label).Inc()
	if label == OutcomeError {
		operationErrorsTotal.WithLabelValues(operation, kind).Inc()
	}
	if duration < 0 {
		duration = 0
	}
	operationDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// AddAnomalies counts flagged samples.
func AddAnomalies(n int) {
	if n > 0 {
		anomaliesFlaggedTotal.Add(float64(n))
	}
}

// ObserveKnowledgeReload counts a reload attempt.
func ObserveKnowledgeReload(err error) {
	if err != nil {
		knowledgeReloadsTotal.WithLabelValues(OutcomeError).Inc()
		return
	}
	knowledgeReloadsTotal.WithLabelValues(OutcomeSuccess).Inc()
}

// SessionEnded counts a session leaving the store.
func SessionEnded() {
	sessionsEndedTotal.Inc()
}
