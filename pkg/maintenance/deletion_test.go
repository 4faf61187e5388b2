package maintenance

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/marmos91/mediastorage/pkg/family"
	"github.com/marmos91/mediastorage/pkg/fsbackend"
	"github.com/marmos91/mediastorage/pkg/record"
	"github.com/marmos91/mediastorage/pkg/recordstore"
)

func f64(v float64) *float64 { return &v }

func newTestStore(t *testing.T) *recordstore.BadgerStore {
	t.Helper()
	store, err := recordstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestRouter(t *testing.T) *family.Router {
	t.Helper()
	return family.NewRouter(fsbackend.NewLocalBackend(t.TempDir()))
}

func putBlobAndRecord(t *testing.T, store *recordstore.BadgerStore, router *family.Router, uid string, content []byte) *record.Record {
	t.Helper()
	rec := &record.Record{
		UID: uid,
		Physical: record.Physical{
			Ctime:  float64(time.Now().Unix()),
			Atime:  time.Now().Unix(),
			MinRes: 15,
			Format: record.Format{Mime: "application/octet-stream"},
		},
	}
	backend := router.Resolve(rec.FamilyName())
	path := backend.ResolvePath(rec)
	if err := backend.Put(path, bytes.NewReader(content), false); err != nil {
		t.Fatalf("put blob: %v", err)
	}
	if err := store.Insert(context.Background(), rec); err != nil {
		t.Fatalf("insert record: %v", err)
	}
	return rec
}

func TestDeletionLoopCycleDropsDueRecordAndBlob(t *testing.T) {
	store := newTestStore(t)
	router := newTestRouter(t)
	ctx := context.Background()

	rec := putBlobAndRecord(t, store, router, "dueuid", []byte("hello"))
	rec.Policy.Delete = record.Policy{Fixed: f64(float64(time.Now().Add(-time.Hour).Unix()))}
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("update: %v", err)
	}

	d := NewDeletionLoop(store, router, AlwaysOpen, time.Second, nil)
	processed, err := d.cycle(ctx)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if !processed {
		t.Fatal("expected the due record to be processed")
	}

	if _, err := store.Get(ctx, rec.UID); err == nil {
		t.Fatal("expected record to be dropped")
	}

	backend := router.Resolve(rec.FamilyName())
	if backend.FileExists(backend.ResolvePath(rec)) {
		t.Fatal("expected blob to be unlinked")
	}
}

func TestDeletionLoopCycleIgnoresNotDueRecords(t *testing.T) {
	store := newTestStore(t)
	router := newTestRouter(t)
	ctx := context.Background()

	rec := putBlobAndRecord(t, store, router, "notdue", []byte("hello"))
	rec.Policy.Delete = record.Policy{Fixed: f64(float64(time.Now().Add(time.Hour).Unix()))}
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("update: %v", err)
	}

	d := NewDeletionLoop(store, router, AlwaysOpen, time.Second, nil)
	processed, err := d.cycle(ctx)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if processed {
		t.Fatal("a future-dated policy must not be processed yet")
	}
	if _, err := store.Get(ctx, rec.UID); err != nil {
		t.Fatal("record must still exist")
	}
}

func TestDeletionLoopToleratesAlreadyMissingBlob(t *testing.T) {
	store := newTestStore(t)
	router := newTestRouter(t)
	ctx := context.Background()

	rec := putBlobAndRecord(t, store, router, "blobgone", []byte("hello"))
	rec.Policy.Delete = record.Policy{Fixed: f64(float64(time.Now().Add(-time.Hour).Unix()))}
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("update: %v", err)
	}

	backend := router.Resolve(rec.FamilyName())
	if err := backend.Unlink(backend.ResolvePath(rec), false); err != nil {
		t.Fatalf("pre-remove blob: %v", err)
	}

	d := NewDeletionLoop(store, router, AlwaysOpen, time.Second, nil)
	processed, err := d.cycle(ctx)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if !processed {
		t.Fatal("a missing blob must not block the record from being dropped")
	}
	if _, err := store.Get(ctx, rec.UID); err == nil {
		t.Fatal("expected record to be dropped despite the missing blob")
	}
}
