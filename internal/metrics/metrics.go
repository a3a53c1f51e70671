// Package metrics provides Prometheus instrumentation for benchmark runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the harness.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	RetryAttempts     *prometheus.CounterVec
	BytesTransferred  *prometheus.CounterVec
	RunsTotal         *prometheus.CounterVec
	DatasetFiles      prometheus.Gauge
	DatasetBytes      prometheus.Gauge
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Address string // e.g. ":9090"
}

var defaultMetrics *Metrics

// Init initializes the metrics package with global metrics.
// Call this once at startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "s3bench"
	}

	m := &Metrics{
		OperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total operation attempts by outcome",
			},
			[]string{"provider", "op", "outcome"},
		),
		OperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Wall-clock duration of single operation attempts",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~160s
			},
			[]string{"provider", "op"},
		),
		RetryAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_attempts_total",
				Help:      "Total retry attempts after failed invocations",
			},
			[]string{"provider", "op"},
		),
		BytesTransferred: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_transferred_total",
				Help:      "Total payload bytes moved by successful attempts",
			},
			[]string{"provider", "op"},
		),
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Benchmark runs by outcome",
			},
			[]string{"provider", "outcome"},
		),
		DatasetFiles: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dataset_files",
				Help:      "Number of files in the active dataset",
			},
		),
		DatasetBytes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dataset_bytes",
				Help:      "Aggregate size of the active dataset",
			},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics instance.
// Returns nil if Init has not been called.
func Get() *Metrics {
	return defaultMetrics
}

// StartServer starts an HTTP server for Prometheus metrics scraping.
// Blocks until the server exits.
func StartServer(address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(address, mux)
}

// ObserveAttempt records one operation attempt.
func (m *Metrics) ObserveAttempt(provider, op string, seconds float64, bytes int64, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.OperationsTotal.WithLabelValues(provider, op, outcome).Inc()
	m.OperationDuration.WithLabelValues(provider, op).Observe(seconds)
	if ok && bytes > 0 {
		m.BytesTransferred.WithLabelValues(provider, op).Add(float64(bytes))
	}
}

// IncRetry records a retry after a failed attempt.
func (m *Metrics) IncRetry(provider, op string) {
	m.RetryAttempts.WithLabelValues(provider, op).Inc()
}

// ObserveRun records a completed or aborted run.
func (m *Metrics) ObserveRun(provider string, ok bool) {
	outcome := "completed"
	if !ok {
		outcome = "aborted"
	}
	m.RunsTotal.WithLabelValues(provider, outcome).Inc()
}

// SetDataset records the active dataset's shape.
func (m *Metrics) SetDataset(files int, bytes int64) {
	m.DatasetFiles.Set(float64(files))
	m.DatasetBytes.Set(float64(bytes))
}
