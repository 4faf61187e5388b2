package family

import (
	"testing"

	"github.com/marmos91/mediastorage/pkg/fsbackend"
)

func TestResolveFallsBackToNull(t *testing.T) {
	null := fsbackend.NewLocalBackend(t.TempDir())
	photos := fsbackend.NewLocalBackend(t.TempDir())

	r := NewRouter(null)
	r.Register("photos", photos)

	if r.Resolve("photos") != fsbackend.Backend(photos) {
		t.Fatalf("expected photos backend for registered family")
	}
	if r.Resolve("unknown") != fsbackend.Backend(null) {
		t.Fatalf("expected null backend fallback for unregistered family")
	}
	if r.Resolve("") != fsbackend.Backend(null) {
		t.Fatalf("expected null backend for empty family name")
	}
}

func TestNamesExcludesNull(t *testing.T) {
	null := fsbackend.NewLocalBackend(t.TempDir())
	r := NewRouter(null)
	r.Register("photos", fsbackend.NewLocalBackend(t.TempDir()))
	r.Register("videos", fsbackend.NewLocalBackend(t.TempDir()))

	names := r.Names()
	if len(names) != 2 || names[0] != "photos" || names[1] != "videos" {
		t.Fatalf("expected sorted [photos videos], got %v", names)
	}
}
