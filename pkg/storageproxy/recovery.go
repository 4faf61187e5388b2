package storageproxy

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/marmos91/mediastorage/internal/logger"
	"github.com/marmos91/mediastorage/internal/telemetry"
	"github.com/marmos91/mediastorage/pkg/metrics"
	"github.com/marmos91/mediastorage/pkg/wire"
)

// Recover scans root for "<host>_<port>" subdirectories, unlinks any
// unfinished or orphaned staged files, shuffles the surviving
// (content, meta) pairs, and enqueues them onto queue. Grounded on
// filesystem.py's `_populate_pool` (§4.7.4). m may be nil.
func Recover(root string, queue *Queue, m *metrics.StorageProxyMetrics) error {
	_, span := telemetry.StartUploadSpan(context.Background(), telemetry.SpanUploadRecover, "")
	defer span.End()

	dirs, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("storageproxy: read staging root: %w", err)
	}

	var entries []Entry
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		host, port, ok := parseTargetDirName(d.Name())
		if !ok {
			logger.Warn("directory does not name a server address, skipping", "name", d.Name())
			continue
		}
		dirPath := filepath.Join(root, d.Name())
		found, err := recoverDir(dirPath)
		if err != nil {
			logger.Error("failed to scan staging directory", "path", dirPath, "error", err)
			continue
		}
		for _, e := range found {
			e.Target = wire.ServerRef{Host: host, Port: port}
			entries = append(entries, e)
		}
	}

	rand.Shuffle(len(entries), func(i, j int) {
		entries[i], entries[j] = entries[j], entries[i]
	})
	for _, e := range entries {
		queue.Enqueue(e)
	}
	m.AddRecoveredJobs(len(entries))
	m.SetQueueDepth(queue.Depth())
	span.SetAttributes(telemetry.QueueDepth(len(entries)))
	logger.Info("startup recovery scan complete", "recovered", len(entries))
	return nil
}

// parseTargetDirName reverses targetDirName's "<host>_<port>" format,
// splitting on the last underscore the way the source's
// `directory.rsplit('_', 1)` does (a hostname may itself contain '_').
func parseTargetDirName(name string) (host string, port int, ok bool) {
	i := strings.LastIndex(name, "_")
	if i < 0 {
		return "", 0, false
	}
	host = name[:i]
	p, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return "", 0, false
	}
	return host, p, true
}

// recoverDir applies §4.7.4's three rules to one target directory:
// unlink any ".part" file outright, unlink any extensionless file
// missing its ".meta" sibling, and return the surviving pairs.
func recoverDir(dirPath string) ([]Entry, error) {
	files, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(files))
	for _, f := range files {
		names[f.Name()] = true
	}

	var entries []Entry
	for name := range names {
		switch {
		case strings.HasSuffix(name, PartExtension):
			path := filepath.Join(dirPath, name)
			logger.Info("unlinking partial staged upload", "path", path)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logger.Warn("unable to unlink partial upload", "path", path, "error", err)
			}
		case strings.Contains(name, "."):
			// Any other dotted name (a .meta file on its own, or stray
			// data) is handled when we reach its content counterpart, or
			// ignored if it has none.
			continue
		default:
			metaName := name + MetaExtension
			if !names[metaName] {
				path := filepath.Join(dirPath, name)
				logger.Info("unlinking metadata-less staged entity", "path", path)
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					logger.Warn("unable to unlink metadata-missing file", "path", path, "error", err)
				}
				continue
			}
			entries = append(entries, Entry{
				ContentPath: filepath.Join(dirPath, name),
				MetaPath:    filepath.Join(dirPath, metaName),
			})
		}
	}
	return entries, nil
}
