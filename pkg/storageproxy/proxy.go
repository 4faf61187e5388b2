package storageproxy

import (
	"time"

	"github.com/marmos91/mediastorage/internal/mailer"
	"github.com/marmos91/mediastorage/pkg/metrics"
)

// Config configures a Proxy.
type Config struct {
	Root          string
	QueueCapacity int
	Workers       int
	UploadTimeout time.Duration
	FloodTimeout  time.Duration
}

// Proxy is the storage proxy's composition root: the staging Queue, its
// FloodMap, the accept Server, and the relay WorkerPool, constructed
// once and owned here rather than as module-level mutable state
// (spec.md §9).
type Proxy struct {
	Queue  *Queue
	Flood  *FloodMap
	Server *Server
	Pool   *WorkerPool

	root    string
	workers int
	metrics *metrics.StorageProxyMetrics
}

// New constructs a Proxy from cfg. m and mail may be nil.
func New(cfg Config, m *metrics.StorageProxyMetrics, mail *mailer.Mailer) *Proxy {
	queue := NewQueue(cfg.QueueCapacity)
	flood := NewFloodMap(cfg.FloodTimeout)
	return &Proxy{
		Queue:   queue,
		Flood:   flood,
		Server:  NewServer(cfg.Root, queue, m, mail),
		Pool:    NewWorkerPool(queue, flood, cfg.UploadTimeout, m),
		root:    cfg.Root,
		workers: cfg.Workers,
		metrics: m,
	}
}

// Start runs the startup recovery scan (§4.7.4) and launches the
// configured number of worker goroutines. The caller is responsible for
// serving p.Server.NewRouter().
func (p *Proxy) Start() error {
	if err := Recover(p.root, p.Queue, p.metrics); err != nil {
		return err
	}
	p.Pool.Start(p.workers)
	return nil
}

// Stop halts the worker pool.
func (p *Proxy) Stop() {
	p.Pool.Stop()
}
