package metrics

import "github.com/prometheus/client_golang/prometheus"

// ServerMetrics instruments the storage server's put/get/describe/delete
// operations (spec.md §4.3). Field shape grounded on
// internal/adapter/nlm/metrics.go's Metrics struct: one CounterVec for
// outcomes, one HistogramVec for latency, both labeled by operation.
type ServerMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	BytesWritten    prometheus.Counter
	BytesRead       prometheus.Counter
	RecordsStored   prometheus.Gauge
}

// NewServerMetrics registers storage-server metrics against reg, or
// returns nil if reg is nil (metrics disabled).
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	if reg == nil {
		return nil
	}
	m := &ServerMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_server_requests_total",
				Help: "Total storage server requests by operation and status",
			},
			[]string{"operation", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storage_server_request_duration_seconds",
				Help:    "Storage server request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storage_server_bytes_written_total",
			Help: "Total bytes written via put/update",
		}),
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storage_server_bytes_read_total",
			Help: "Total bytes read via get",
		}),
		RecordsStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storage_server_records_stored",
			Help: "Current number of records known to the metadata store",
		}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.BytesWritten, m.BytesRead, m.RecordsStored)
	return m
}

// RecordRequest records a completed request's operation, status, and
// latency.
func (m *ServerMetrics) RecordRequest(operation, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// AddBytesWritten records content bytes accepted by a put or update.
func (m *ServerMetrics) AddBytesWritten(n int) {
	if m == nil {
		return
	}
	m.BytesWritten.Add(float64(n))
}

// AddBytesRead records content bytes streamed out by a get.
func (m *ServerMetrics) AddBytesRead(n int) {
	if m == nil {
		return
	}
	m.BytesRead.Add(float64(n))
}

// SetRecordsStored updates the current record count gauge.
func (m *ServerMetrics) SetRecordsStored(n int) {
	if m == nil {
		return
	}
	m.RecordsStored.Set(float64(n))
}
