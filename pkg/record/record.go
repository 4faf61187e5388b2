// Package record defines the authoritative record schema shared by the
// storage server, the caching proxy, and the storage proxy (see §3.1 of the
// design spec), plus the deterministic blob path derivation of §3.2.
package record

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Keys holds the per-record access secrets for the read and write facets.
// A nil value means the corresponding facet is world-accessible (anonymous).
type Keys struct {
	Read  *string `json:"read"`
	Write *string `json:"write"`
}

// Format describes the MIME type and current on-disk compression of a blob.
type Format struct {
	Mime string  `json:"mime"`
	Comp *string `json:"comp"`
}

// Policy captures a delete-or-compress predicate. An empty Policy (all
// fields nil) means "never" for delete, or "no pending compression" for
// compress.
type Policy struct {
	Fixed     *float64 `json:"fixed,omitempty"`
	Stale     *float64 `json:"stale,omitempty"`
	StaleTime *float64 `json:"staleTime,omitempty"`
	// Comp is only meaningful on the compression policy: the target
	// algorithm once the predicate fires.
	Comp *string `json:"comp,omitempty"`
}

// IsEmpty reports whether the policy has no predicate set at all, i.e.
// "never" (delete) or "no pending compression" (compress).
func (p Policy) IsEmpty() bool {
	return p.Fixed == nil && p.Stale == nil && p.StaleTime == nil && p.Comp == nil
}

// Physical holds placement and timing metadata for a record's blob.
type Physical struct {
	Family *string `json:"family"`
	Ctime  float64 `json:"ctime"`
	Atime  int64   `json:"atime"`
	// MinRes is never serialized back to clients (§3.1); it is retained so
	// that path resolution is stable even if the server's configured
	// resolution later changes.
	MinRes int    `json:"-"`
	Format Format `json:"format"`
}

// Stats tracks read-driven counters.
type Stats struct {
	Accesses int64 `json:"accesses"`
}

// Policies groups the two policy predicates a record carries.
type Policies struct {
	Delete   Policy `json:"delete"`
	Compress Policy `json:"compress"`
}

// Record is the authoritative description of one stored entity (§3.1).
type Record struct {
	UID      string                 `json:"uid"`
	Keys     Keys                   `json:"keys"`
	Physical Physical               `json:"physical"`
	Policy   Policies               `json:"policy"`
	Stats    Stats                  `json:"stats"`
	Meta     map[string]interface{} `json:"meta"`
}

// NewUID generates a UUID-v1 hex identifier, the default uid for records
// whose client did not supply one.
func NewUID() (string, error) {
	u, err := uuid.NewUUID()
	if err != nil {
		return "", fmt.Errorf("record: generate uuid: %w", err)
	}
	return strings.ReplaceAll(u.String(), "-", ""), nil
}

// NewKeySecret generates a 6-12 character URL-safe random secret used to
// fill in an absent key facet at put time (§4.3.1 step 1).
func NewKeySecret() (string, error) {
	// 9 raw bytes base64url-encodes to 12 characters with no padding,
	// comfortably inside the 6-12 character range the spec allows.
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("record: generate key secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// RefreshStaleTime recomputes staleTime = atime + stale unconditionally,
// per the design note in spec.md §9 (the source only did this on some
// paths; this implementation does it on every access and every update).
func (p *Policy) RefreshStaleTime(atime int64) {
	if p.Stale == nil {
		p.StaleTime = nil
		return
	}
	st := float64(atime) + *p.Stale
	p.StaleTime = &st
}

// Touch updates atime, increments the access counter, and refreshes
// staleTime on both policies — the mutation a successful get performs
// (§3.1 Lifecycle, §8 invariant on get).
func (r *Record) Touch(now time.Time) {
	r.Physical.Atime = now.Unix()
	r.Stats.Accesses++
	r.Policy.Delete.RefreshStaleTime(r.Physical.Atime)
	r.Policy.Compress.RefreshStaleTime(r.Physical.Atime)
}

// FamilyName returns the record's family, or "" for the null/generic family.
func (r *Record) FamilyName() string {
	if r.Physical.Family == nil {
		return ""
	}
	return *r.Physical.Family
}
