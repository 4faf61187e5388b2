package storageproxy

import (
	"strconv"
	"sync"
	"time"
)

// FloodMap tracks, per upstream target, the epoch before which a worker
// should skip it (§4.7.3). Grounded on filesystem.py's module-level
// `_flooded_servers` dict guarded by `_flood_lock`: an independent mutex
// from the queue's, held only briefly.
type FloodMap struct {
	mu      sync.Mutex
	timeout time.Duration
	retry   map[string]time.Time
}

// NewFloodMap returns a FloodMap whose marks expire after timeout.
func NewFloodMap(timeout time.Duration) *FloodMap {
	return &FloodMap{timeout: timeout, retry: map[string]time.Time{}}
}

func targetKey(host string, port int) string {
	return host + ":" + strconv.Itoa(port)
}

// Flooded reports whether host:port is currently marked flooded,
// lazily clearing the mark if it has expired (§4.7.3: "cleaned lazily
// on observation").
func (f *FloodMap) Flooded(host string, port int) bool {
	key := targetKey(host, port)
	f.mu.Lock()
	defer f.mu.Unlock()
	until, ok := f.retry[key]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(f.retry, key)
		return false
	}
	return true
}

// Mark records host:port as flooded for the configured timeout.
func (f *FloodMap) Mark(host string, port int) {
	key := targetKey(host, port)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retry[key] = time.Now().Add(f.timeout)
}
