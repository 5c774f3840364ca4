// Package metrics exposes Prometheus instrumentation for the Esplora
// client.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	esploraRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "esplora",
		Subsystem: "client",
		Name:      "operations_total",
		Help:      "Count of Esplora API operations.",
	}, []string{"operation", "endpoint", "status"})
	esploraRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "esplora",
		Subsystem: "client",
		Name:      "operation_duration_seconds",
		Help:      "Duration of Esplora API operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "endpoint", "status"})
)

// EsploraClient tracks metrics for Esplora API calls against one endpoint.
type EsploraClient struct {
	endpoint string
}

// NewEsploraClient constructs a metrics collector for one base endpoint.
func NewEsploraClient(endpoint string) *EsploraClient {
	if endpoint == "" {
		endpoint = "unknown"
	}
	return &EsploraClient{endpoint: endpoint}
}

// Observe records a single API call outcome and duration.
func (m EsploraClient) Observe(operation string, err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}

	esploraRequestsTotal.WithLabelValues(operation, m.endpoint, status).Inc()
	esploraRequestDuration.WithLabelValues(operation, m.endpoint, status).Observe(time.Since(started).Seconds())
}
