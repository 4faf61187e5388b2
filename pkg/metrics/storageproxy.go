package metrics

import "github.com/prometheus/client_golang/prometheus"

// StorageProxyMetrics instruments the storage proxy's accept/queue/upload
// pipeline (spec.md §4.7).
type StorageProxyMetrics struct {
	Accepted      prometheus.Counter
	QueueDepth    prometheus.Gauge
	UploadsTotal  *prometheus.CounterVec
	FloodMarks    prometheus.Counter
	RecoveredJobs prometheus.Counter
}

// NewStorageProxyMetrics registers storage-proxy metrics against reg, or
// returns nil if reg is nil.
func NewStorageProxyMetrics(reg prometheus.Registerer) *StorageProxyMetrics {
	if reg == nil {
		return nil
	}
	m := &StorageProxyMetrics{
		Accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storage_proxy_accepted_total",
			Help: "Total relay requests staged and enqueued",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storage_proxy_queue_depth",
			Help: "Current number of entries waiting for upload",
		}),
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_proxy_uploads_total",
				Help: "Total upload attempts to upstream storage servers by outcome",
			},
			[]string{"status"}, // "success", "conflict", "retry"
		),
		FloodMarks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storage_proxy_flood_marks_total",
			Help: "Total times a target was marked as flooded after a failed upload",
		}),
		RecoveredJobs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storage_proxy_recovered_jobs_total",
			Help: "Total staged jobs re-enqueued by the startup recovery scan",
		}),
	}
	reg.MustRegister(m.Accepted, m.QueueDepth, m.UploadsTotal, m.FloodMarks, m.RecoveredJobs)
	return m
}

func (m *StorageProxyMetrics) RecordAccepted() {
	if m == nil {
		return
	}
	m.Accepted.Inc()
}

func (m *StorageProxyMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *StorageProxyMetrics) RecordUpload(status string) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(status).Inc()
}

func (m *StorageProxyMetrics) RecordFloodMark() {
	if m == nil {
		return
	}
	m.FloodMarks.Inc()
}

func (m *StorageProxyMetrics) AddRecoveredJobs(n int) {
	if m == nil {
		return
	}
	m.RecoveredJobs.Add(float64(n))
}
