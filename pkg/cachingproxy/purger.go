package cachingproxy

import (
	"os"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/mediastorage/internal/logger"
	"github.com/marmos91/mediastorage/pkg/metrics"
)

// Purger periodically unlinks expired cache entries, grounded on
// cache.py's _Purger thread: sort entries by expiration ascending, unlink
// everything at or before now, and stop at the first still-live entry.
type Purger struct {
	cache    *Cache
	interval time.Duration
	metrics  *metrics.CachingProxyMetrics

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPurger returns a Purger for cache, ticking every interval. m may be
// nil.
func NewPurger(cache *Cache, interval time.Duration, m *metrics.CachingProxyMetrics) *Purger {
	return &Purger{cache: cache, interval: interval, metrics: m}
}

// Start begins the purge loop in a background goroutine.
func (p *Purger) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.run()
}

// Stop halts the purge loop and waits for it to exit.
func (p *Purger) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()
	close(stopCh)
	<-doneCh
}

func (p *Purger) run() {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.purgeOnce(time.Now().Unix())
		}
	}
}

// purgeOnce sorts the live entries by expiration and unlinks every one
// that is due, stopping at the first entry still in the future, matching
// _Purger.run's for/else loop exactly.
func (p *Purger) purgeOnce(now int64) {
	p.cache.mu.Lock()
	sort.Slice(p.cache.entries, func(i, j int) bool {
		return p.cache.entries[i].expiration < p.cache.entries[j].expiration
	})

	cut := len(p.cache.entries)
	for i, e := range p.cache.entries {
		if e.expiration > now {
			cut = i
			break
		}
	}
	expired := p.cache.entries[:cut]
	remaining := append([]entry(nil), p.cache.entries[cut:]...)
	p.cache.entries = remaining
	p.cache.mu.Unlock()

	p.metrics.SetCacheEntries(len(remaining))

	for _, e := range expired {
		root := p.cache.cfg.Root
		if err := os.Remove(e.contentPath(root)); err != nil && !os.IsNotExist(err) {
			logger.Error("unable to purge cached content", "uid", e.uid, "error", err)
		}
		if err := os.Remove(e.metaPath(root)); err != nil && !os.IsNotExist(err) {
			logger.Error("unable to purge cached meta", "uid", e.uid, "error", err)
		}
	}
	p.metrics.AddEntriesPurged(len(expired))
}
