package maintenance

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/marmos91/mediastorage/internal/logger"
	"github.com/marmos91/mediastorage/pkg/compression"
	"github.com/marmos91/mediastorage/pkg/family"
	"github.com/marmos91/mediastorage/pkg/fsbackend"
	"github.com/marmos91/mediastorage/pkg/metrics"
	"github.com/marmos91/mediastorage/pkg/record"
	"github.com/marmos91/mediastorage/pkg/recordstore"
)

const compressionBatchSize = 250

// CompressionLoop implements §4.5.2: records whose compress policy has
// fired have their blob rewritten through the target codec, then the
// policy is cleared. Grounded on maintainence.py's
// CompressionMaintainer._process_record.
type CompressionLoop struct {
	Store   recordstore.Store
	Router  *family.Router
	TempDir string

	loop *loop
}

func NewCompressionLoop(store recordstore.Store, router *family.Router, tempDir string, window Window, sleepPeriod time.Duration, m *metrics.MaintenanceMetrics) *CompressionLoop {
	c := &CompressionLoop{Store: store, Router: router, TempDir: tempDir}
	c.loop = newLoop("compression", window, sleepPeriod, c.cycle, m)
	return c
}

func (c *CompressionLoop) Start() { c.loop.Start() }
func (c *CompressionLoop) Stop()  { c.loop.Stop() }

func (c *CompressionLoop) cycle(ctx context.Context) (bool, error) {
	due, err := c.Store.DueForCompression(ctx, float64(time.Now().Unix()), compressionBatchSize)
	if err != nil {
		return false, err
	}

	processed := false
	for _, rec := range due {
		if c.processRecord(ctx, rec) {
			processed = true
		}
	}
	return processed, nil
}

func (c *CompressionLoop) processRecord(ctx context.Context, rec *record.Record) bool {
	logger.Info("compressing record", "uid", rec.UID)

	current := rec.Physical.Format.Comp
	target := rec.Policy.Compress.Comp

	if equalAlgorithm(current, target) {
		logger.Debug("blob already compressed in target format", "uid", rec.UID)
		rec.Policy.Compress = record.Policy{}
		if err := c.Store.Update(ctx, rec); err != nil {
			logger.Error("unable to clear compression policy; will retry", "uid", rec.UID, "error", err)
			return false
		}
		return true
	}

	backend := c.Router.Resolve(rec.FamilyName())
	oldPath := backend.ResolvePath(rec)

	blob, err := backend.Get(oldPath)
	if err != nil {
		logger.Warn("unable to read blob for compression", "uid", rec.UID, "error", err)
		return false
	}
	defer blob.Close()

	stream, discard, err := recodeStream(blob, current, target, c.TempDir)
	if err != nil {
		logger.Error("unable to recode blob", "uid", rec.UID, "error", err)
		return false
	}
	defer discard()

	oldFormat := rec.Physical.Format
	rec.Physical.Format.Comp = target
	newPath := backend.ResolvePath(rec)

	if err := backend.Put(newPath, stream, true); err != nil {
		logger.Warn("unable to write recompressed blob; backing out with no consequences",
			"uid", rec.UID, "error", err)
		rec.Physical.Format = oldFormat
		return false
	}
	if err := backend.MakePermanent(newPath); err != nil {
		logger.Warn("unable to make recompressed blob permanent; backing out",
			"uid", rec.UID, "error", err)
		rec.Physical.Format = oldFormat
		return false
	}

	rec.Policy.Compress = record.Policy{}
	if err := c.Store.Update(ctx, rec); err != nil {
		logger.Error("unable to persist record after writing compressed blob; old blob will be served, new blob replaces it on a later attempt",
			"uid", rec.UID, "error", err)
		return false
	}

	if newPath != oldPath {
		if err := backend.Unlink(oldPath, false); err != nil && !errors.Is(err, fsbackend.ErrNotFound) {
			logger.Error("unable to unlink superseded blob; space not recoverable without manual cleanup",
				"uid", rec.UID, "family", rec.FamilyName(), "path", oldPath, "error", err)
		}
	}
	return true
}

func equalAlgorithm(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// recodeStream streams src through the inverse of current (if set) and then
// through target (if set; a nil target means "store uncompressed"),
// returning the result as a Reader plus a discard function the caller must
// invoke once it is done consuming the result.
func recodeStream(src io.Reader, current, target *string, tempDir string) (io.Reader, func(), error) {
	var spools []*compression.SpooledBuffer
	discard := func() {
		for _, s := range spools {
			s.Discard()
		}
	}

	stream := src
	if current != nil {
		decoder, err := compression.Decompressor(compression.Algorithm(*current))
		if err != nil {
			return nil, discard, err
		}
		decoded, err := decoder.Transform(stream, tempDir)
		if err != nil {
			return nil, discard, err
		}
		spools = append(spools, decoded)
		r, err := decoded.Reader()
		if err != nil {
			return nil, discard, err
		}
		stream = r
	}

	if target == nil {
		return stream, discard, nil
	}

	encoder, err := compression.Compressor(compression.Algorithm(*target))
	if err != nil {
		return nil, discard, err
	}
	encoded, err := encoder.Transform(stream, tempDir)
	if err != nil {
		return nil, discard, err
	}
	spools = append(spools, encoded)
	r, err := encoded.Reader()
	if err != nil {
		return nil, discard, err
	}
	return r, discard, nil
}
