package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dray/pkg/metrics"
)

type sftpMetrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	requestsInFlight  *prometheus.GaugeVec
	bytesTotal        *prometheus.CounterVec
	authTotal         *prometheus.CounterVec
	connectionsTotal  *prometheus.CounterVec
	activeConnections prometheus.Gauge
}

// NewSFTPMetrics registers SFTP collectors on the global registry, or
// returns nil when metrics are disabled.
func NewSFTPMetrics() metrics.SFTPMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}
	return NewSFTPMetricsWith(reg)
}

// NewSFTPMetricsWith registers SFTP collectors on reg.
func NewSFTPMetricsWith(reg prometheus.Registerer) metrics.SFTPMetrics {
	f := promauto.With(reg)
	return &sftpMetrics{
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dray_sftp_requests_total",
				Help: "Total SFTP requests by operation and response status",
			},
			[]string{"operation", "status"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dray_sftp_request_duration_milliseconds",
				Help:    "SFTP handler duration in milliseconds",
				Buckets: []float64{0.1, 1, 5, 20, 100, 500, 2000, 10000},
			},
			[]string{"operation"},
		),
		requestsInFlight: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dray_sftp_requests_in_flight",
				Help: "SFTP requests currently being handled",
			},
			[]string{"operation"},
		),
		bytesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dray_sftp_bytes_total",
				Help: "File payload bytes served (read) or accepted (write)",
			},
			[]string{"direction"},
		),
		authTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dray_sftp_auth_attempts_total",
				Help: "Public key authentication attempts by result",
			},
			[]string{"result"},
		),
		connectionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dray_sftp_connections_total",
				Help: "Connection lifecycle events",
			},
			[]string{"event"},
		),
		activeConnections: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "dray_sftp_active_connections",
				Help: "Currently open SSH connections",
			},
		),
	}
}

func (m *sftpMetrics) RecordRequest(operation string, duration time.Duration, status string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(operation, status).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *sftpMetrics) RecordRequestStart(operation string) {
	if m == nil {
		return
	}
	m.requestsInFlight.WithLabelValues(operation).Inc()
}

func (m *sftpMetrics) RecordRequestEnd(operation string) {
	if m == nil {
		return
	}
	m.requestsInFlight.WithLabelValues(operation).Dec()
}

func (m *sftpMetrics) RecordBytes(direction string, bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.bytesTotal.WithLabelValues(direction).Add(float64(bytes))
}

func (m *sftpMetrics) RecordAuth(result string) {
	if m == nil {
		return
	}
	m.authTotal.WithLabelValues(result).Inc()
}

func (m *sftpMetrics) RecordConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsTotal.WithLabelValues("accepted").Inc()
}

func (m *sftpMetrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsTotal.WithLabelValues("closed").Inc()
}

func (m *sftpMetrics) RecordConnectionForceClosed() {
	if m == nil {
		return
	}
	m.connectionsTotal.WithLabelValues("force_closed").Inc()
}

func (m *sftpMetrics) SetActiveConnections(count int32) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(count))
}
