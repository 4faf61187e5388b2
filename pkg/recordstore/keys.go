package recordstore

import (
	"encoding/binary"
	"math"
)

// Badger key prefixes. Everything the store persists lives under one of
// these namespaces inside a single badger.DB, prefix-partitioned rather
// than split across one DB per concern.
const (
	prefixRecord      = "r/"  // r/<uid> -> JSON-encoded record.Record
	prefixCtimeIdx    = "ic/" // ic/<ordered-ctime>/<uid> -> nil
	prefixDeleteDue   = "id/" // id/<ordered-due>/<uid> -> nil
	prefixCompressDue = "ix/" // ix/<ordered-due>/<uid> -> nil
	prefixFamily      = "if/" // if/<family>/<uid> -> nil
)

func keyRecord(uid string) []byte {
	return append([]byte(prefixRecord), uid...)
}

func keyCtimeIdx(ctime float64, uid string) []byte {
	return indexKey(prefixCtimeIdx, ctime, uid)
}

func keyDeleteDue(due float64, uid string) []byte {
	return indexKey(prefixDeleteDue, due, uid)
}

func keyCompressDue(due float64, uid string) []byte {
	return indexKey(prefixCompressDue, due, uid)
}

func keyFamily(family, uid string) []byte {
	b := append([]byte(prefixFamily), family...)
	b = append(b, '/')
	return append(b, uid...)
}

func indexKey(prefix string, ordered float64, uid string) []byte {
	b := make([]byte, 0, len(prefix)+8+1+len(uid))
	b = append(b, prefix...)
	b = append(b, encodeOrderedFloat64(ordered)...)
	b = append(b, '/')
	b = append(b, uid...)
	return b
}

// encodeOrderedFloat64 maps a float64 to an 8-byte big-endian key that
// sorts, byte-for-byte, in the same order as the floats themselves. Positive
// values flip the sign bit so they sort after negatives; negative values
// have every bit inverted so their magnitude order reverses into key order.
func encodeOrderedFloat64(f float64) []byte {
	bits := math.Float64bits(f)
	if f >= 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, bits)
	return buf
}

// plusInf stands in for an absent fixed/staleTime trigger so that
// min(fixed, staleTime) with one side unset behaves as "never due" from
// that side, without special-casing nil at every call site.
const plusInf = math.MaxFloat64

// dueEpoch returns the earliest absolute epoch at which a policy fires, or
// plusInf if it never will (§4.5.1/§4.5.2: "fixed < now OR staleTime <
// now" is exactly "min(fixed, staleTime) < now" once both default to +Inf).
func dueEpoch(fixed, staleTime *float64) float64 {
	due := plusInf
	if fixed != nil && *fixed < due {
		due = *fixed
	}
	if staleTime != nil && *staleTime < due {
		due = *staleTime
	}
	return due
}
