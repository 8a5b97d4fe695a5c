// Package prometheus implements the pkg/metrics interfaces with Prometheus
// collectors.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dray/pkg/metrics"
)

// s3Metrics is the Prometheus implementation of metrics.S3Metrics.
type s3Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTotal        *prometheus.CounterVec
}

// NewS3Metrics registers S3 collectors on the global registry.
//
// Returns nil if metrics are not enabled (metrics.InitRegistry not called).
func NewS3Metrics() metrics.S3Metrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}
	return NewS3MetricsWith(reg)
}

// NewS3MetricsWith registers S3 collectors on reg.
func NewS3MetricsWith(reg prometheus.Registerer) metrics.S3Metrics {
	f := promauto.With(reg)
	return &s3Metrics{
		operationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dray_s3_operations_total",
				Help: "Total number of S3 API calls by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dray_s3_operation_duration_milliseconds",
				Help:    "Duration of S3 API calls in milliseconds",
				Buckets: []float64{5, 20, 100, 500, 1000, 5000, 30000},
			},
			[]string{"operation"},
		),
		bytesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dray_s3_bytes_total",
				Help: "Payload bytes transferred by S3 operation",
			},
			[]string{"operation"},
		),
	}
}

func (m *s3Metrics) ObserveOperation(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *s3Metrics) RecordBytes(operation string, bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.bytesTotal.WithLabelValues(operation).Add(float64(bytes))
}
