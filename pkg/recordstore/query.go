package recordstore

import (
	"context"
	"encoding/binary"
	"math"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/mediastorage/pkg/record"
)

// defaultQueryLimit caps unbounded queries (spec.md §4.3.6: "capped at a
// configured limit"); pkg/server passes the configured value, this
// is only the floor for callers that don't.
const defaultQueryLimit = 1000

// Query returns records matching f, sorted ascending by ctime, returning at
// most f.Limit of them (or defaultQueryLimit if unset).
//
// The ctime index is the scan order: f.CtimeMin/CtimeMax bound the range
// iterated, and every other constraint (family, mime, atime, accesses,
// meta) is evaluated in memory against each candidate as it's decoded. This
// mirrors how the source's document store would execute the same query —
// an index-bounded range scan plus predicate filtering — without requiring
// a secondary index per queryable field.
func (s *BadgerStore) Query(ctx context.Context, f Filter) ([]*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	lowerBound := 0.0
	if f.CtimeMin != nil {
		lowerBound = *f.CtimeMin
	} else {
		lowerBound = -plusInf
	}
	upper := plusInf
	if f.CtimeMax != nil {
		upper = *f.CtimeMax
	}

	var results []*record.Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		start := indexKey(prefixCtimeIdx, lowerBound, "")
		prefix := []byte(prefixCtimeIdx)
		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			if len(results) >= limit {
				break
			}
			key := it.Item().Key()
			uid, ctime, ok := decodeCtimeIdxKey(key)
			if !ok {
				continue
			}
			if ctime > upper {
				break
			}

			rec, err := getRecord(txn, uid)
			if err != nil {
				continue // index/record drift; reconciler's job, not query's
			}
			if matches(rec, f) {
				results = append(results, rec)
			}
		}
		return nil
	})
	return results, err
}

func decodeCtimeIdxKey(key []byte) (uid string, ctime float64, ok bool) {
	rest := key[len(prefixCtimeIdx):]
	if len(rest) < 9 {
		return "", 0, false
	}
	ctime = decodeOrderedFloat64(rest[:8])
	uid = string(rest[9:])
	return uid, ctime, true
}

func decodeOrderedFloat64(b []byte) float64 {
	bits := binary.BigEndian.Uint64(b)
	if bits&(1<<63) != 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}

func matches(rec *record.Record, f Filter) bool {
	if f.AtimeMin != nil && rec.Physical.Atime < *f.AtimeMin {
		return false
	}
	if f.AtimeMax != nil && rec.Physical.Atime > *f.AtimeMax {
		return false
	}
	if f.AccessesMin != nil && rec.Stats.Accesses < *f.AccessesMin {
		return false
	}
	if f.AccessesMax != nil && rec.Stats.Accesses > *f.AccessesMax {
		return false
	}
	if f.Family != nil && rec.FamilyName() != *f.Family {
		return false
	}
	if f.Mime != nil && !matchMime(f.Mime.Value, rec.Physical.Format.Mime) {
		return false
	}
	for _, mf := range f.Meta {
		v, present := rec.Meta[mf.Key]
		if !present || !mf.Clause.match(v) {
			return false
		}
	}
	return true
}

// matchMime implements spec.md §4.3.6: a value containing "/" is an exact
// match; otherwise it's a prefix match against the type super-class.
func matchMime(query, actual string) bool {
	if strings.Contains(query, "/") {
		return actual == query
	}
	return strings.HasPrefix(actual, query+"/")
}
