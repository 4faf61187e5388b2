package record

import (
	"fmt"
	"testing"
	"time"
)

func TestResolvePathDeterministic(t *testing.T) {
	// 2024-03-05T14:37:00Z
	ctime := float64(1709649420)
	p1 := ResolvePath(ctime, "abc123", 15)
	p2 := ResolvePath(ctime, "abc123", 15)
	if p1 != p2 {
		t.Fatalf("resolve path is not deterministic: %q vs %q", p1, p2)
	}
	want := "2024/03/05/14/30/abc123"
	if p1 != want {
		t.Fatalf("got %q, want %q", p1, want)
	}
}

func TestResolvePathBucketRounding(t *testing.T) {
	cases := []struct {
		minute int
		minRes int
		bucket int
	}{
		{minute: 0, minRes: 10, bucket: 0},
		{minute: 9, minRes: 10, bucket: 0},
		{minute: 10, minRes: 10, bucket: 10},
		{minute: 59, minRes: 15, bucket: 45},
		{minute: 7, minRes: 0, bucket: 7},
	}
	const baseDay = 1704067200 // 2024-01-01T00:00:00Z
	for _, c := range cases {
		ctime := float64(baseDay + c.minute*60)
		got := ResolvePath(ctime, "u", c.minRes)
		want := fmt.Sprintf("2024/01/01/00/%02d/u", c.bucket)
		if got != want {
			t.Fatalf("minute=%d minRes=%d: got %q, want %q", c.minute, c.minRes, got, want)
		}
	}
}

func TestTouchRefreshesStaleTime(t *testing.T) {
	stale := 60.0
	r := &Record{
		Policy: Policies{
			Delete: Policy{Stale: &stale},
		},
	}
	r.Touch(time.Unix(1000, 0))
	if r.Stats.Accesses != 1 {
		t.Fatalf("expected accesses=1, got %d", r.Stats.Accesses)
	}
	if r.Physical.Atime != 1000 {
		t.Fatalf("expected atime=1000, got %d", r.Physical.Atime)
	}
	if r.Policy.Delete.StaleTime == nil || *r.Policy.Delete.StaleTime != 1060 {
		t.Fatalf("expected staleTime=1060, got %v", r.Policy.Delete.StaleTime)
	}
}

func TestUnpackPolicyClearVsNoChange(t *testing.T) {
	if !(&RawPolicy{}).IsEmpty() {
		t.Fatalf("empty RawPolicy should report IsEmpty")
	}
	var nilPolicy *RawPolicy
	if !nilPolicy.IsEmpty() {
		t.Fatalf("nil RawPolicy should report IsEmpty")
	}
	fixed := 30.0
	p := UnpackPolicy(&RawPolicy{Fixed: &fixed}, 100)
	if p.Fixed == nil || *p.Fixed != 130 {
		t.Fatalf("expected fixed=130, got %v", p.Fixed)
	}
}
