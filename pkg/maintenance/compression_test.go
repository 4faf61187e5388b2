package maintenance

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"testing"
	"time"

	"github.com/marmos91/mediastorage/pkg/record"
)

func strPtr(s string) *string { return &s }

func TestCompressionLoopCompressesDueRecord(t *testing.T) {
	store := newTestStore(t)
	router := newTestRouter(t)
	ctx := context.Background()

	payload := []byte("the quick brown fox jumps over the lazy dog, repeatedly, to give gzip something to chew on")
	rec := putBlobAndRecord(t, store, router, "compressme", payload)
	rec.Policy.Compress = record.Policy{
		Fixed: f64(float64(time.Now().Add(-time.Hour).Unix())),
		Comp:  strPtr("gzip"),
	}
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("update: %v", err)
	}

	c := NewCompressionLoop(store, router, t.TempDir(), AlwaysOpen, time.Second, nil)
	processed, err := c.cycle(ctx)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if !processed {
		t.Fatal("expected the due record to be processed")
	}

	got, err := store.Get(ctx, rec.UID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Policy.Compress.Comp != nil || got.Policy.Compress.Fixed != nil {
		t.Fatal("expected compression policy to be cleared")
	}
	if got.Physical.Format.Comp == nil || *got.Physical.Format.Comp != "gzip" {
		t.Fatalf("expected format.comp to be gzip, got %v", got.Physical.Format.Comp)
	}

	backend := router.Resolve(got.FamilyName())
	blob, err := backend.Get(backend.ResolvePath(got))
	if err != nil {
		t.Fatalf("get blob: %v", err)
	}
	defer blob.Close()

	gr, err := gzip.NewReader(blob)
	if err != nil {
		t.Fatalf("the stored blob is not valid gzip: %v", err)
	}
	defer gr.Close()
	roundtripped, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("read gzip: %v", err)
	}
	if !bytes.Equal(roundtripped, payload) {
		t.Fatal("decompressed content does not match the original payload")
	}
}

func TestCompressionLoopClearsPolicyWhenAlreadyAtTarget(t *testing.T) {
	store := newTestStore(t)
	router := newTestRouter(t)
	ctx := context.Background()

	rec := putBlobAndRecord(t, store, router, "alreadydone", []byte("doesn't matter"))
	rec.Physical.Format.Comp = strPtr("gzip")
	rec.Policy.Compress = record.Policy{
		Fixed: f64(float64(time.Now().Add(-time.Hour).Unix())),
		Comp:  strPtr("gzip"),
	}
	if err := store.Update(ctx, rec); err != nil {
		t.Fatalf("update: %v", err)
	}

	c := NewCompressionLoop(store, router, t.TempDir(), AlwaysOpen, time.Second, nil)
	processed, err := c.cycle(ctx)
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if !processed {
		t.Fatal("expected the already-compressed record to still be processed (policy clear)")
	}

	got, err := store.Get(ctx, rec.UID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Policy.Compress.IsEmpty() {
		t.Fatal("expected compression policy to be cleared")
	}
}
