package recordstore

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/mediastorage/pkg/record"
)

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestRecord(uid string, ctime float64, family, mime string) *record.Record {
	fam := family
	return &record.Record{
		UID: uid,
		Physical: record.Physical{
			Family: &fam,
			Ctime:  ctime,
			Atime:  int64(ctime),
			MinRes: 15,
			Format: record.Format{Mime: mime},
		},
		Meta: map[string]interface{}{},
	}
}

func TestInsertGetDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec := newTestRecord("uid1", 1000, "photos", "image/png")
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := s.Insert(ctx, rec); !errorCodeIs(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate insert, got %v", err)
	}

	got, err := s.Get(ctx, "uid1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Physical.Ctime != 1000 {
		t.Fatalf("ctime mismatch: got %v", got.Physical.Ctime)
	}

	if err := s.Delete(ctx, "uid1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "uid1"); err != nil {
		t.Fatalf("delete of absent record should be a no-op, got %v", err)
	}
	if _, err := s.Get(ctx, "uid1"); !errorCodeIs(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestUpdateRefreshesIndexes(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec := newTestRecord("uid1", 1000, "photos", "image/png")
	fixed := 5000.0
	rec.Policy.Delete.Fixed = &fixed
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	due, err := s.DueForDeletion(ctx, 5001, 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 || due[0].UID != "uid1" {
		t.Fatalf("expected uid1 due for deletion, got %v", due)
	}

	rec.Policy.Delete.Fixed = nil
	if err := s.Update(ctx, rec); err != nil {
		t.Fatalf("update: %v", err)
	}

	due, err = s.DueForDeletion(ctx, 5001, 10)
	if err != nil {
		t.Fatalf("due after clear: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected no records due after clearing policy, got %v", due)
	}
}

func TestQueryFiltersByFamilyMimeAndCtime(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	must(t, s.Insert(ctx, newTestRecord("uid1", 100, "photos", "image/png")))
	must(t, s.Insert(ctx, newTestRecord("uid2", 200, "videos", "video/mp4")))
	must(t, s.Insert(ctx, newTestRecord("uid3", 300, "photos", "image/jpeg")))

	family := "photos"
	results, err := s.Query(ctx, Filter{Family: &family})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 photos records, got %d", len(results))
	}
	if results[0].UID != "uid1" || results[1].UID != "uid3" {
		t.Fatalf("expected ascending ctime order, got %v, %v", results[0].UID, results[1].UID)
	}

	mime := MimeFilter{Value: "image"}
	results, err = s.Query(ctx, Filter{Mime: &mime})
	if err != nil {
		t.Fatalf("query mime: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 image/* records, got %d", len(results))
	}

	min := 150.0
	results, err = s.Query(ctx, Filter{CtimeMin: &min})
	if err != nil {
		t.Fatalf("query ctime min: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 records with ctime >= 150, got %d", len(results))
	}
}

func TestQueryMetaLiteralClause(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec := newTestRecord("uid1", 100, "photos", "image/png")
	rec.Meta["album"] = "vacation"
	must(t, s.Insert(ctx, rec))

	rec2 := newTestRecord("uid2", 200, "photos", "image/png")
	rec2.Meta["album"] = "work"
	must(t, s.Insert(ctx, rec2))

	results, err := s.Query(ctx, Filter{Meta: []MetaFilter{{Key: "album", Clause: LiteralClause{Value: "vacation"}}}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 1 || results[0].UID != "uid1" {
		t.Fatalf("expected only uid1 to match, got %v", results)
	}
}

func TestWalkByCtimePaginates(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		must(t, s.Insert(ctx, newTestRecord(string(rune('a'+i)), float64(i), "", "application/octet-stream")))
	}

	var pages [][]string
	err := s.WalkByCtime(ctx, 2, func(batch []*record.Record) error {
		var uids []string
		for _, r := range batch {
			uids = append(uids, r.UID)
		}
		pages = append(pages, uids)
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages of size <=2, got %d", len(pages))
	}
	if len(pages[0]) != 2 || len(pages[2]) != 1 {
		t.Fatalf("unexpected page sizes: %v", pages)
	}
}

func TestFamilies(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	must(t, s.Insert(ctx, newTestRecord("uid1", 100, "photos", "image/png")))
	must(t, s.Insert(ctx, newTestRecord("uid2", 200, "videos", "video/mp4")))
	must(t, s.Insert(ctx, newTestRecord("uid3", 300, "photos", "image/jpeg")))

	families, err := s.Families(ctx)
	if err != nil {
		t.Fatalf("families: %v", err)
	}
	seen := map[string]bool{}
	for _, f := range families {
		seen[f] = true
	}
	if !seen["photos"] || !seen["videos"] {
		t.Fatalf("expected photos and videos, got %v", families)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func errorCodeIs(err error, code ErrorCode) bool {
	var se *StoreError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == code
}
