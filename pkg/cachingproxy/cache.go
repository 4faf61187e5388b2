// Package cachingproxy implements C7: a local disk cache in front of a
// storage server, re-using the storage server's own wire format for
// metadata and an apiclient.Client to fetch what it doesn't have cached
// (§4.6). Grounded on
// _examples/original_source/caching_proxy/media_storage_proxy/cache.go
// and cache.py's {contentfile, metafile} pairing-per-uid layout, adapted
// onto this module's recordstore-free, file-backed design.
package cachingproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/marmos91/mediastorage/internal/logger"
	"github.com/marmos91/mediastorage/internal/telemetry"
	"github.com/marmos91/mediastorage/pkg/apiclient"
	"github.com/marmos91/mediastorage/pkg/metrics"
	"github.com/marmos91/mediastorage/pkg/wire"
)

// MetaExtension is the suffix a cache entry's metadata sibling file uses,
// per cache.py's storage_metadata_extension-derived _EXTENSION_METADATA.
const MetaExtension = ".meta"

// cachedMeta is the on-disk metadata sidecar format: the describe view
// stamped with the read key it was fetched under, matching _download's
// `meta['keys'] = {'read': read_key}` step.
type cachedMeta struct {
	wire.DescribeView
	Keys struct {
		Read string `json:"read"`
	} `json:"keys"`
}

// entry is one cache record: the expiration epoch and the uid/target
// pair it governs. Cache is an ordered-by-expiration collection of these,
// protected by a single mutex (§4.6).
type entry struct {
	expiration int64
	target     string // "<host>_<port>"
	uid        string
}

func (e entry) contentPath(root string) string {
	return filepath.Join(root, e.target, e.uid)
}

func (e entry) metaPath(root string) string {
	return e.contentPath(root) + MetaExtension
}

// Config configures a Cache.
type Config struct {
	Root           string
	MinCacheTime   int64
	MaxCacheTime   int64
	RequestTimeout time.Duration
	PurgeInterval  time.Duration
}

// Cache is the caching proxy's core: an ordered collection of cache
// entries keyed by expiration, a single mutex protecting it (released
// across network fetches per §4.6.1's concurrency note), and a
// singleflight group coalescing concurrent downloads for the same uid —
// the documented improvement over the source's behavior spec.md §4.6.1
// calls for.
type Cache struct {
	cfg     Config
	metrics *metrics.CachingProxyMetrics

	mu      sync.Mutex
	entries []entry

	downloads singleflight.Group
}

// NewCache returns a Cache rooted at cfg.Root. The caller should invoke
// ClearPool once at startup and Start to begin the purger. m may be nil,
// in which case no metrics are recorded.
func NewCache(cfg Config, m *metrics.CachingProxyMetrics) *Cache {
	return &Cache{cfg: cfg, metrics: m}
}

// ClearPool removes every file under the cache root, matching cache.py's
// module-level _clear_pool startup hook.
func (c *Cache) ClearPool() error {
	entries, err := os.ReadDir(c.cfg.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cachingproxy: read cache root: %w", err)
	}
	for _, e := range entries {
		path := filepath.Join(c.cfg.Root, e.Name())
		logger.Info("unlinking old cached entry", "path", path)
		if err := os.RemoveAll(path); err != nil {
			logger.Error("unable to unlink cached entry", "path", path, "error", err)
		}
	}
	return nil
}

// targetDir returns "<host>_<port>" the way the source's "%(host)s_%(port)i"
// format string does.
func targetDir(host string, port int) string {
	return fmt.Sprintf("%s_%d", host, port)
}

// Retrieve implements §4.6.1's `_retrieve`: it ensures the uid's content
// and meta files exist locally (downloading if not), checks the presented
// read key against the cached meta, and returns the meta plus, if
// wantContent is true, an open handle to the cached content.
func (c *Cache) Retrieve(ctx context.Context, client *apiclient.Client, host string, port int, uid, readKey string, wantContent bool) (*cachedMeta, io.ReadCloser, error) {
	ctx, span := telemetry.StartCacheOpSpan(ctx, telemetry.SpanCacheLookup, uid)
	defer span.End()

	target := targetDir(host, port)
	if err := os.MkdirAll(filepath.Join(c.cfg.Root, target), 0o700); err != nil {
		return nil, nil, fmt.Errorf("cachingproxy: create target dir: %w", err)
	}

	e := entry{target: target, uid: uid}
	contentPath := e.contentPath(c.cfg.Root)
	metaPath := e.metaPath(c.cfg.Root)

	hit := fileExists(contentPath) && fileExists(metaPath)
	span.SetAttributes(telemetry.CacheHit(hit))

	if !hit {
		c.metrics.RecordMiss()
		start := time.Now()
		downloadCtx, downloadSpan := telemetry.StartCacheOpSpan(ctx, telemetry.SpanCacheDownload, uid, telemetry.CacheSource(fmt.Sprintf("%s:%d", host, port)))
		_, err, _ := c.downloads.Do(target+"/"+uid, func() (any, error) {
			return nil, c.download(downloadCtx, client, host, port, uid, readKey, contentPath, metaPath)
		})
		if err != nil {
			downloadSpan.SetAttributes(telemetry.Status("error"))
			telemetry.RecordError(downloadCtx, err)
			downloadSpan.End()
			c.metrics.RecordDownload("error", time.Since(start).Seconds())
			return nil, nil, err
		}
		downloadSpan.SetAttributes(telemetry.Status("ok"))
		downloadSpan.End()
		c.metrics.RecordDownload("ok", time.Since(start).Seconds())
	} else {
		c.metrics.RecordHit()
	}

	meta, err := readMeta(metaPath)
	if err != nil {
		return nil, nil, fmt.Errorf("cachingproxy: read cached meta: %w", err)
	}
	if meta.Keys.Read != readKey {
		return nil, nil, ErrPermission
	}

	if !wantContent {
		return meta, nil, nil
	}
	f, err := os.Open(contentPath)
	if err != nil {
		return nil, nil, fmt.Errorf("cachingproxy: open cached content: %w", err)
	}
	return meta, f, nil
}

// ErrPermission is returned by Retrieve when the presented read key does
// not match the cached record's.
var ErrPermission = fmt.Errorf("cachingproxy: read key does not grant access")

// download implements §4.6.2: it streams the blob and the describe
// response from the upstream storage server into contentPath/metaPath,
// stamps the presented read key into the cached meta, and records an
// expiration entry.
func (c *Cache) download(ctx context.Context, client *apiclient.Client, host string, port int, uid, readKey, contentPath, metaPath string) error {
	result, err := client.Get(ctx, wire.GetRequest{UID: uid, Keys: &wire.KeysInput{Read: &readKey}}, nil)
	if err != nil {
		return fmt.Errorf("cachingproxy: download blob: %w", err)
	}
	defer result.Body.Close()

	cf, err := os.Create(contentPath)
	if err != nil {
		return fmt.Errorf("cachingproxy: create content file: %w", err)
	}
	if _, err := io.Copy(cf, result.Body); err != nil {
		cf.Close()
		os.Remove(contentPath)
		return fmt.Errorf("cachingproxy: write content file: %w", err)
	}
	if err := cf.Close(); err != nil {
		os.Remove(contentPath)
		return fmt.Errorf("cachingproxy: close content file: %w", err)
	}

	view, err := client.Describe(ctx, wire.DescribeRequest{UID: uid, Keys: &wire.KeysInput{Read: &readKey}})
	if err != nil {
		os.Remove(contentPath)
		return fmt.Errorf("cachingproxy: describe record: %w", err)
	}

	meta := cachedMeta{DescribeView: view}
	meta.Keys.Read = readKey
	data, err := json.Marshal(meta)
	if err != nil {
		os.Remove(contentPath)
		return fmt.Errorf("cachingproxy: encode cached meta: %w", err)
	}
	if err := os.WriteFile(metaPath, data, 0o600); err != nil {
		os.Remove(contentPath)
		return fmt.Errorf("cachingproxy: write meta file: %w", err)
	}

	ttl := ttlFromMeta(view.Meta)
	expiration := time.Now().Unix() + clamp(ttl, c.cfg.MinCacheTime, c.cfg.MaxCacheTime)

	c.mu.Lock()
	c.entries = append(c.entries, entry{expiration: expiration, target: targetDir(host, port), uid: uid})
	n := len(c.entries)
	c.mu.Unlock()
	c.metrics.SetCacheEntries(n)
	return nil
}

// ttlFromMeta reads the "_cache:ttl" meta attribute §4.6.2 names, defaulting
// to 0 when absent or not numeric; download clamps the result up to
// MinCacheTime.
func ttlFromMeta(meta map[string]any) int64 {
	raw, ok := meta["_cache:ttl"]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

func clamp(v, min, max int64) int64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func readMeta(path string) (*cachedMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m cachedMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
