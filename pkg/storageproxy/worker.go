package storageproxy

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/marmos91/mediastorage/internal/logger"
	"github.com/marmos91/mediastorage/internal/telemetry"
	"github.com/marmos91/mediastorage/pkg/apiclient"
	"github.com/marmos91/mediastorage/pkg/metrics"
	"github.com/marmos91/mediastorage/pkg/wire"
)

// stagedMeta is the on-disk descriptor written alongside a staged upload,
// the full record shape the source's `add_entity` serializes verbatim
// into the `.meta` sidecar.
type stagedMeta struct {
	UID      string              `json:"uid"`
	Keys     wire.KeysOutput     `json:"keys"`
	Physical wire.PhysicalInput  `json:"physical"`
	Policy   *wire.PoliciesInput `json:"policy,omitempty"`
	Meta     map[string]any      `json:"meta,omitempty"`
}

// clientFactory returns (and caches) an apiclient.Client for a target;
// all workers of a pool share one so connections are reused across them.
type clientFactory struct {
	timeout time.Duration

	mu      sync.Mutex
	clients map[string]*apiclient.Client
}

func newClientFactory(timeout time.Duration) *clientFactory {
	return &clientFactory{timeout: timeout, clients: map[string]*apiclient.Client{}}
}

func (f *clientFactory) get(host string, port int) *apiclient.Client {
	key := targetKey(host, port)
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[key]
	if !ok {
		c = apiclient.New(host, port, f.timeout)
		f.clients[key] = c
	}
	return c
}

// WorkerPool drives N goroutines that dequeue Entry values and relay them
// to their upstream target, per §4.7.2. Grounded on filesystem.py's
// `_Uploader.run`: check the flood map, load the meta and content files,
// call put, and either unlink both files (success, or a terminal
// InvalidRecordError) or re-enqueue and mark the target flooded (any
// other error).
type WorkerPool struct {
	queue   *Queue
	flood   *FloodMap
	clients *clientFactory
	metrics *metrics.StorageProxyMetrics

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWorkerPool wires a WorkerPool around queue and flood, using timeout
// as the HTTP client timeout of every relay call (§4.7.2's "long
// timeout"). m may be nil.
func NewWorkerPool(queue *Queue, flood *FloodMap, timeout time.Duration, m *metrics.StorageProxyMetrics) *WorkerPool {
	return &WorkerPool{
		queue:   queue,
		flood:   flood,
		clients: newClientFactory(timeout),
		metrics: m,
		stopCh:  make(chan struct{}),
	}
}

// Start launches n worker goroutines.
func (p *WorkerPool) Start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

// Stop signals every worker to exit after its current entry and waits
// for them to finish.
func (p *WorkerPool) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *WorkerPool) run() {
	defer p.wg.Done()
	for {
		entry, ok := p.queue.Dequeue(p.stopCh)
		if !ok {
			return
		}
		p.process(entry)
	}
}

func (p *WorkerPool) process(entry Entry) {
	host, port := entry.Target.Host, entry.Target.Port

	if p.flood.Flooded(host, port) {
		logger.Debug("target flooded, re-queueing", "host", host, "port", port)
		if !p.queue.TryEnqueue(entry) {
			logger.Warn("queue full while re-queueing flooded entry", "host", host, "port", port)
		}
		return
	}

	metaBytes, err := os.ReadFile(entry.MetaPath)
	if err != nil {
		logger.Error("unable to read staged meta file, dropping entry", "path", entry.MetaPath, "error", err)
		return
	}
	var meta stagedMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		logger.Error("unable to parse staged meta file, dropping entry", "path", entry.MetaPath, "error", err)
		return
	}

	content, err := os.Open(entry.ContentPath)
	if err != nil {
		logger.Error("unable to open staged content file, dropping entry", "path", entry.ContentPath, "error", err)
		return
	}

	ctx, span := telemetry.StartUploadSpan(context.Background(), telemetry.SpanUploadRelay, meta.UID)
	defer span.End()

	client := p.clients.get(host, port)
	header := wire.PutHeader{
		UID:      &meta.UID,
		Keys:     &wire.KeysInput{Read: meta.Keys.Read, Write: meta.Keys.Write},
		Physical: meta.Physical,
		Policy:   meta.Policy,
		Meta:     meta.Meta,
	}

	_, err = client.Put(ctx, header, content)
	// Close before unlinking unconditionally: Windows-family filesystems
	// refuse to unlink a file with an open handle (§4.7.2).
	content.Close()

	switch {
	case err == nil:
		logger.Info("relayed staged upload", "uid", meta.UID, "host", host, "port", port)
		span.SetAttributes(telemetry.Status("ok"))
		p.metrics.RecordUpload("success")
		p.finish(entry)
	case apiclient.IsConflict(err):
		logger.Error("staged upload rejected as invalid, discarding", "uid", meta.UID, "host", host, "port", port, "error", err)
		span.SetAttributes(telemetry.Status("conflict"))
		p.metrics.RecordUpload("conflict")
		p.finish(entry)
	default:
		logger.Error("relay failed, re-queueing and marking target flooded", "uid", meta.UID, "host", host, "port", port, "error", err)
		span.SetAttributes(telemetry.Status("retry"), telemetry.Flooded(true))
		telemetry.RecordError(ctx, err)
		p.metrics.RecordUpload("retry")
		p.metrics.RecordFloodMark()
		p.flood.Mark(host, port)
		if !p.queue.TryEnqueue(entry) {
			logger.Warn("queue full while re-queueing failed entry", "host", host, "port", port)
		}
	}
}

// finish unlinks both staged files, tolerating either already being gone.
func (p *WorkerPool) finish(entry Entry) {
	for _, path := range []string{entry.ContentPath, entry.MetaPath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("unable to unlink staged file", "path", path, "error", err)
		}
	}
}
