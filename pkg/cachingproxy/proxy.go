package cachingproxy

import (
	"time"

	"github.com/marmos91/mediastorage/internal/mailer"
	"github.com/marmos91/mediastorage/pkg/metrics"
)

// Proxy is the caching proxy's composition root: a Cache, its Purger, and
// the HTTP Server fronting both, started and stopped together. Grounded
// on cache.py's module-level setup() (_clear_pool then start the purger
// thread), lifted into an object per spec.md §9's "reformulate global
// mutable state as an object owned by the composition root" guidance.
type Proxy struct {
	Cache  *Cache
	Purger *Purger
	Server *Server
}

// New constructs a Proxy from cfg, wiring its Cache, Purger and Server.
// m and mail may be nil, in which case the proxy runs without metrics or
// alerting respectively.
func New(cfg Config, requestTimeout time.Duration, m *metrics.CachingProxyMetrics, mail *mailer.Mailer) *Proxy {
	cache := NewCache(cfg, m)
	return &Proxy{
		Cache:  cache,
		Purger: NewPurger(cache, cfg.PurgeInterval, m),
		Server: NewServer(cache, requestTimeout, mail),
	}
}

// Start clears any leftover cache files from a previous run and starts
// the purger. The caller is responsible for serving p.Server.NewRouter().
func (p *Proxy) Start() error {
	if err := p.Cache.ClearPool(); err != nil {
		return err
	}
	p.Purger.Start()
	return nil
}

// Stop halts the purger.
func (p *Proxy) Stop() {
	p.Purger.Stop()
}
