// Package family implements C4, the process-wide mapping from an optional
// family name to the fsbackend.Backend instance that stores its blobs.
package family

import (
	"sort"
	"sync"

	"github.com/marmos91/mediastorage/pkg/fsbackend"
)

// Router maps family names to backends. The empty string is the null
// family: it MUST be registered before the router is used, and it is the
// fallback target for any name with no explicit registration.
type Router struct {
	mu       sync.RWMutex
	backends map[string]fsbackend.Backend
}

// NewRouter returns a Router with null registered against backend.
func NewRouter(null fsbackend.Backend) *Router {
	return &Router{
		backends: map[string]fsbackend.Backend{"": null},
	}
}

// Register adds or replaces the backend for name. Passing "" replaces the
// null entry.
func (r *Router) Register(name string, backend fsbackend.Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = backend
}

// Resolve returns the backend registered for name, falling back to the
// null entry when name has no registration of its own.
func (r *Router) Resolve(name string) fsbackend.Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.backends[name]; ok {
		return b
	}
	return r.backends[""]
}

// Names returns every registered family name except the null entry, sorted
// for deterministic output (§4.3.7's list/families endpoint unions this
// with the record store's distinct physical.family values).
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
