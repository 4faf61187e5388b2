package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/mediastorage/internal/logger"
	"github.com/marmos91/mediastorage/pkg/family"
	"github.com/marmos91/mediastorage/pkg/fsbackend"
	"github.com/marmos91/mediastorage/pkg/metrics"
	"github.com/marmos91/mediastorage/pkg/record"
	"github.com/marmos91/mediastorage/pkg/recordstore"
)

// deletionBatchSize bounds how many due records a single query pulls per
// pass; the source queried its whole backlog in one go, but a badger
// iterator prefers bounded pages.
const deletionBatchSize = 250

// DeletionLoop implements §4.5.1: records whose delete policy has fired
// lose both their blob and their record. Grounded on maintainence.py's
// DeletionMaintainer._process_record.
type DeletionLoop struct {
	Store  recordstore.Store
	Router *family.Router

	loop *loop
}

// NewDeletionLoop constructs a deletion loop gated by window, sleeping for
// sleepPeriod between drained cycles.
func NewDeletionLoop(store recordstore.Store, router *family.Router, window Window, sleepPeriod time.Duration, m *metrics.MaintenanceMetrics) *DeletionLoop {
	d := &DeletionLoop{Store: store, Router: router}
	d.loop = newLoop("deletion", window, sleepPeriod, d.cycle, m)
	return d
}

func (d *DeletionLoop) Start() { d.loop.Start() }
func (d *DeletionLoop) Stop()  { d.loop.Stop() }

func (d *DeletionLoop) cycle(ctx context.Context) (bool, error) {
	due, err := d.Store.DueForDeletion(ctx, float64(time.Now().Unix()), deletionBatchSize)
	if err != nil {
		return false, err
	}

	processed := false
	for _, rec := range due {
		if d.processRecord(ctx, rec) {
			processed = true
		}
	}
	return processed, nil
}

// processRecord unlinks rec's blob (tolerating a blob that is already gone)
// then drops rec. Any other unlink failure leaves rec in place so the next
// cycle retries it, matching the source's "unable to unlink; don't drop"
// behavior.
func (d *DeletionLoop) processRecord(ctx context.Context, rec *record.Record) bool {
	logger.Info("unlinking record for deletion", "uid", rec.UID)

	backend := d.Router.Resolve(rec.FamilyName())
	path := backend.ResolvePath(rec)
	if err := backend.Unlink(path, true); err != nil && !errors.Is(err, fsbackend.ErrNotFound) {
		logger.Warn("unable to unlink record's blob; deferring drop to a later cycle",
			"uid", rec.UID, "error", err)
		return false
	}

	if err := d.Store.Delete(ctx, rec.UID); err != nil {
		logger.Error("unable to drop record after unlinking its blob", "uid", rec.UID, "error", err)
		return false
	}
	return true
}
