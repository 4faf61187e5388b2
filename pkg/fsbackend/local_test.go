package fsbackend

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/mediastorage/pkg/record"
)

func TestResolvePathMatchesRecord(t *testing.T) {
	b := NewLocalBackend(t.TempDir())
	rec := &record.Record{UID: "abc123", Physical: record.Physical{Ctime: 1709649420, MinRes: 15}}

	got := b.ResolvePath(rec)
	want := rec.ResolvePath()
	if got != want {
		t.Fatalf("ResolvePath = %q, want %q", got, want)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	b := NewLocalBackend(t.TempDir())
	payload := []byte("blob contents")

	if err := b.Put("2024/01/02/03/00/uid1", bytes.NewReader(payload), false); err != nil {
		t.Fatalf("put: %v", err)
	}

	r, err := b.Get("2024/01/02/03/00/uid1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer r.Close()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round-trip mismatch: got %q want %q", got, payload)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	b := NewLocalBackend(t.TempDir())
	_, err := b.Get("nope/uid")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStagedPutNotVisibleUntilMadePermanent(t *testing.T) {
	b := NewLocalBackend(t.TempDir())
	path := "2024/01/02/03/00/uid2"

	if err := b.Put(path, bytes.NewReader([]byte("staged")), true); err != nil {
		t.Fatalf("staged put: %v", err)
	}
	if b.FileExists(path) {
		t.Fatalf("staged write should not be visible at final path")
	}

	if err := b.MakePermanent(path); err != nil {
		t.Fatalf("make permanent: %v", err)
	}
	if !b.FileExists(path) {
		t.Fatalf("expected file visible after MakePermanent")
	}
}

func TestUnlinkPruneRemovesEmptyAncestors(t *testing.T) {
	root := t.TempDir()
	b := NewLocalBackend(root)
	path := "2024/01/02/03/00/uid3"

	if err := b.Put(path, bytes.NewReader([]byte("x")), false); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := b.Unlink(path, true); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if b.FileExists(path) {
		t.Fatalf("expected file removed")
	}
	if _, err := os.Stat(filepath.Join(root, "2024")); !os.IsNotExist(err) {
		t.Fatalf("expected empty ancestor directories pruned, stat err = %v", err)
	}
}

func TestUnlinkPruneStopsAtNonEmptySibling(t *testing.T) {
	root := t.TempDir()
	b := NewLocalBackend(root)

	if err := b.Put("2024/01/02/03/00/uid4", bytes.NewReader([]byte("x")), false); err != nil {
		t.Fatalf("put sibling: %v", err)
	}
	if err := b.Put("2024/01/02/03/05/uid5", bytes.NewReader([]byte("y")), false); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := b.Unlink("2024/01/02/03/05/uid5", true); err != nil {
		t.Fatalf("unlink: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "2024/01/02/03")); err != nil {
		t.Fatalf("expected hour directory to survive because a sibling bucket is non-empty: %v", err)
	}
}

func TestWalkGroupsFilesByDirectory(t *testing.T) {
	b := NewLocalBackend(t.TempDir())
	if err := b.Put("a/b/uid1", bytes.NewReader([]byte("1")), false); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := b.Put("a/b/uid2", bytes.NewReader([]byte("2")), false); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := b.Put("a/c/uid3", bytes.NewReader([]byte("3")), false); err != nil {
		t.Fatalf("put: %v", err)
	}

	seen := map[string][]string{}
	if err := b.Walk(func(subpath string, filenames []string) error {
		seen[subpath] = filenames
		return nil
	}); err != nil {
		t.Fatalf("walk: %v", err)
	}

	if len(seen["a/b"]) != 2 {
		t.Fatalf("expected 2 files under a/b, got %v", seen["a/b"])
	}
	if len(seen["a/c"]) != 1 {
		t.Fatalf("expected 1 file under a/c, got %v", seen["a/c"])
	}
}
