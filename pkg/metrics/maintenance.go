package metrics

import "github.com/prometheus/client_golang/prometheus"

// MaintenanceMetrics instruments the four maintenance loops (spec.md
// §4.5): deletion, compression, record reconciliation, and filesystem
// reconciliation each report into this one metrics set, labeled by loop
// name, rather than getting one bespoke struct apiece.
type MaintenanceMetrics struct {
	CyclesTotal    *prometheus.CounterVec
	ItemsProcessed *prometheus.CounterVec
	ErrorsTotal    *prometheus.CounterVec
	CycleSeconds   *prometheus.HistogramVec
}

// NewMaintenanceMetrics registers maintenance-loop metrics against reg,
// or returns nil if reg is nil.
func NewMaintenanceMetrics(reg prometheus.Registerer) *MaintenanceMetrics {
	if reg == nil {
		return nil
	}
	m := &MaintenanceMetrics{
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maintenance_cycles_total",
				Help: "Total maintenance loop cycles run by loop name",
			},
			[]string{"loop"},
		),
		ItemsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maintenance_items_processed_total",
				Help: "Total records or files processed by loop name",
			},
			[]string{"loop"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maintenance_errors_total",
				Help: "Total errors encountered by loop name",
			},
			[]string{"loop"},
		),
		CycleSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "maintenance_cycle_duration_seconds",
				Help:    "Duration of one maintenance cycle by loop name",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"loop"},
		),
	}
	reg.MustRegister(m.CyclesTotal, m.ItemsProcessed, m.ErrorsTotal, m.CycleSeconds)
	return m
}

// RecordCycle records one completed cycle of loop, the number of items
// it processed, and its duration.
func (m *MaintenanceMetrics) RecordCycle(loop string, itemsProcessed int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(loop).Inc()
	m.ItemsProcessed.WithLabelValues(loop).Add(float64(itemsProcessed))
	m.CycleSeconds.WithLabelValues(loop).Observe(durationSeconds)
}

// RecordError records one error encountered during loop's cycle.
func (m *MaintenanceMetrics) RecordError(loop string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(loop).Inc()
}
