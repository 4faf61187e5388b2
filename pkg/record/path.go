package record

import (
	"fmt"
	"time"
)

// ResolvePath derives the deterministic blob path for r:
//
//	YYYY/MM/DD/HH/MM_bucket/uid
//
// where MM_bucket = tm_min - (tm_min mod minRes), computed in UTC. The path
// is a pure function of ctime, uid and minRes; none of those fields is ever
// mutated after creation, so the mapping never drifts (§8 invariant).
func (r *Record) ResolvePath() string {
	return ResolvePath(r.Physical.Ctime, r.UID, r.Physical.MinRes)
}

// ResolvePath is the free-standing form of Record.ResolvePath, usable before
// a Record is fully assembled (e.g. while computing a staged write target).
func ResolvePath(ctime float64, uid string, minRes int) string {
	t := time.Unix(int64(ctime), 0).UTC()
	bucket := t.Minute()
	if minRes > 0 {
		bucket -= bucket % minRes
	}
	return fmt.Sprintf("%04d/%02d/%02d/%02d/%02d/%s",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), bucket, uid)
}
