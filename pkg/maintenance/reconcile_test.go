package maintenance

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRecordReconcilerDropsRecordWithMissingBlob(t *testing.T) {
	store := newTestStore(t)
	router := newTestRouter(t)
	ctx := context.Background()

	intact := putBlobAndRecord(t, store, router, "intact", []byte("still here"))
	orphanRecord := putBlobAndRecord(t, store, router, "orphanrecord", []byte("gone"))

	backend := router.Resolve(orphanRecord.FamilyName())
	if err := backend.Unlink(backend.ResolvePath(orphanRecord), false); err != nil {
		t.Fatalf("remove blob: %v", err)
	}

	r := NewRecordReconciler(store, router, AlwaysOpen, time.Second, nil)
	processed, err := r.cycle(ctx)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if !processed {
		t.Fatal("expected the walk to retrieve at least one record")
	}

	if _, err := store.Get(ctx, orphanRecord.UID); err == nil {
		t.Fatal("expected orphaned record to be dropped")
	}
	if _, err := store.Get(ctx, intact.UID); err != nil {
		t.Fatal("expected intact record to survive")
	}
}

func TestRecordReconcilerReportsNoProgressOnEmptyStore(t *testing.T) {
	store := newTestStore(t)
	router := newTestRouter(t)

	r := NewRecordReconciler(store, router, AlwaysOpen, time.Second, nil)
	processed, err := r.cycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if processed {
		t.Fatal("an empty store must report no progress")
	}
}

func TestFileReconcilerUnlinksOrphanedFile(t *testing.T) {
	store := newTestStore(t)
	router := newTestRouter(t)
	ctx := context.Background()

	kept := putBlobAndRecord(t, store, router, "keepme", []byte("content"))
	backend := router.Resolve(kept.FamilyName())

	// Construct an orphan blob under the same backend root but with no
	// corresponding record: reuse the kept record's directory structure
	// with a uid that was never inserted.
	fakeRec := *kept
	fakeRec.UID = "orphanfile"
	orphanPath := backend.ResolvePath(&fakeRec)
	if err := backend.Put(orphanPath, strings.NewReader("orphan bytes"), false); err != nil {
		t.Fatalf("put orphan: %v", err)
	}

	f := NewFileReconciler(store, router, AlwaysOpen, time.Second, nil)
	if _, err := f.cycle(ctx); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	if backend.FileExists(orphanPath) {
		t.Fatal("expected orphaned file to be unlinked")
	}
	if !backend.FileExists(backend.ResolvePath(kept)) {
		t.Fatal("expected the file with a matching record to survive")
	}
}
