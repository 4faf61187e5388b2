// Package fsbackend defines the pluggable filesystem contract that the
// storage server persists blobs through, and a local-disk implementation of
// it. Every family (pkg/family) routes to one Backend instance; nothing
// above this package knows whether a given family is backed by local disk,
// network storage, or anything else, as long as it satisfies Backend.
package fsbackend

import (
	"io"

	"github.com/marmos91/mediastorage/pkg/record"
)

// StagingSuffix marks a blob written with Put(..., staged=true) as not yet
// visible at its final path. MakePermanent renames it into place.
const StagingSuffix = ".temp"

// Backend is the contract every filesystem implementation must satisfy.
// Implementations must be safe for concurrent use; the server issues
// concurrent Put/Get/Unlink calls against distinct and occasionally
// identical paths without external locking (spec §5's concurrency model).
type Backend interface {
	// ResolvePath derives the on-disk path for a record. It is a pure
	// function of the record's physical fields and has no side effects.
	ResolvePath(rec *record.Record) string

	// Get opens the blob at path for sequential reading. Returns
	// ErrNotFound (via OpError) if no blob exists at path.
	Get(path string) (io.ReadCloser, error)

	// Put streams src to path. When staged is true, the data is written
	// under a staging suffix and is not visible at path until
	// MakePermanent is called; this lets concurrent readers of the
	// eventual path never observe a partially-written file.
	Put(path string, src io.Reader, staged bool) error

	// MakePermanent atomically renames path+StagingSuffix to path.
	MakePermanent(path string) error

	// Unlink removes the blob at path. When prune is true, parent
	// directories are walked upward and removed while empty, stopping
	// at the first non-empty ancestor or the backend root. Callers must
	// only set prune once now−ctime exceeds twice the family's minute
	// resolution, so that a sibling write landing in the same bucket
	// cannot race the directory's removal.
	Unlink(path string, prune bool) error

	// FileExists reports whether a blob exists at path.
	FileExists(path string) bool

	// Walk lazily enumerates every file under the backend root,
	// invoking yield once per directory with its relative subpath and
	// the file names it directly contains. Walk stops and returns the
	// first non-nil error yield produces.
	Walk(yield func(subpath string, filenames []string) error) error
}
