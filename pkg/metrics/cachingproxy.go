package metrics

import "github.com/prometheus/client_golang/prometheus"

// CachingProxyMetrics instruments the caching proxy (spec.md §4.6): hit
// rate, download latency against upstream, and purge activity.
type CachingProxyMetrics struct {
	Hits            prometheus.Counter
	Misses          prometheus.Counter
	DownloadsTotal  *prometheus.CounterVec
	DownloadSeconds prometheus.Histogram
	EntriesPurged   prometheus.Counter
	CacheEntries    prometheus.Gauge
}

// NewCachingProxyMetrics registers caching-proxy metrics against reg, or
// returns nil if reg is nil.
func NewCachingProxyMetrics(reg prometheus.Registerer) *CachingProxyMetrics {
	if reg == nil {
		return nil
	}
	m := &CachingProxyMetrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caching_proxy_hits_total",
			Help: "Total retrieve requests served from the local cache",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caching_proxy_misses_total",
			Help: "Total retrieve requests requiring an upstream download",
		}),
		DownloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caching_proxy_downloads_total",
				Help: "Total upstream downloads by outcome",
			},
			[]string{"status"},
		),
		DownloadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "caching_proxy_download_duration_seconds",
			Help:    "Duration of upstream downloads in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		EntriesPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caching_proxy_entries_purged_total",
			Help: "Total cache entries unlinked for having expired",
		}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "caching_proxy_cache_entries",
			Help: "Current number of tracked cache entries",
		}),
	}
	reg.MustRegister(m.Hits, m.Misses, m.DownloadsTotal, m.DownloadSeconds, m.EntriesPurged, m.CacheEntries)
	return m
}

func (m *CachingProxyMetrics) RecordHit() {
	if m == nil {
		return
	}
	m.Hits.Inc()
}

func (m *CachingProxyMetrics) RecordMiss() {
	if m == nil {
		return
	}
	m.Misses.Inc()
}

func (m *CachingProxyMetrics) RecordDownload(status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(status).Inc()
	m.DownloadSeconds.Observe(durationSeconds)
}

func (m *CachingProxyMetrics) AddEntriesPurged(n int) {
	if m == nil {
		return
	}
	m.EntriesPurged.Add(float64(n))
}

func (m *CachingProxyMetrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}
