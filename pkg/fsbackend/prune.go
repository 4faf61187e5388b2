package fsbackend

import (
	"errors"
	"path/filepath"
)

// pruneUpward removes dir and its ancestors while each is empty, stopping
// at the first non-empty directory or at root. rmdir is expected to return
// ErrNotEmpty (via errors.Is) when the directory still holds entries, in
// which case pruning stops without error — a concurrent write landing in
// the same bucket is not a failure, it's the race this function exists to
// tolerate.
//
// Shared across Backend implementations so each one only has to supply its
// own single-directory removal primitive.
func pruneUpward(root, path string, rmdir func(dir string) error) error {
	dir := filepath.Dir(path)
	root = filepath.Clean(root)

	for {
		dir = filepath.Clean(dir)
		if dir == root || dir == "." || dir == string(filepath.Separator) {
			return nil
		}

		if err := rmdir(dir); err != nil {
			if errors.Is(err, ErrNotEmpty) {
				return nil
			}
			return err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}
