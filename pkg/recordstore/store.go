// Package recordstore implements C3, the indexed record store: a thin,
// range-and-predicate-query layer over badger/v4 that persists
// pkg/record.Record values and maintains the secondary indexes the server
// pipeline and maintenance loops need (§4.3.6, §4.5.1, §4.5.2, §4.5.3).
package recordstore

import (
	"context"
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/mediastorage/internal/logger"
	"github.com/marmos91/mediastorage/pkg/record"
)

// Store is the contract the server pipeline and maintenance loops use.
// spec.md §1 treats the record store as an external collaborator: "any
// indexed key-value store with range and predicate queries suffices".
// Store is that seam; BadgerStore is this module's concrete choice.
type Store interface {
	Insert(ctx context.Context, rec *record.Record) error
	Get(ctx context.Context, uid string) (*record.Record, error)
	Update(ctx context.Context, rec *record.Record) error
	Delete(ctx context.Context, uid string) error
	Query(ctx context.Context, f Filter) ([]*record.Record, error)
	DueForDeletion(ctx context.Context, now float64, limit int) ([]*record.Record, error)
	DueForCompression(ctx context.Context, now float64, limit int) ([]*record.Record, error)
	WalkByCtime(ctx context.Context, pageSize int, fn func([]*record.Record) error) error
	Families(ctx context.Context) ([]string, error)
	Close() error
}

// BadgerStore is the Store implementation backing every component in this
// module: one badger.DB, prefix-partitioned keyspaces, transactional
// read-modify-write via db.Update/db.View.
type BadgerStore struct {
	db *badger.DB
}

// Open opens (creating if absent) a badger database at path.
func Open(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(badgerLogAdapter{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("recordstore: open badger at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Insert persists rec, failing with ErrConflict if a record with the same
// uid already exists.
func (s *BadgerStore) Insert(ctx context.Context, rec *record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyRecord(rec.UID)); err == nil {
			return conflict(rec.UID)
		} else if err != badger.ErrKeyNotFound {
			return fmt.Errorf("recordstore: insert %s: %w", rec.UID, err)
		}
		return putRecord(txn, rec, nil)
	})
}

// Get loads the record for uid, failing with ErrNotFound if absent.
func (s *BadgerStore) Get(ctx context.Context, uid string) (*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec *record.Record
	err := s.db.View(func(txn *badger.Txn) error {
		r, err := getRecord(txn, uid)
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	return rec, err
}

// Update replaces the stored record for rec.UID, which must already exist,
// and refreshes every secondary index to match the new field values.
func (s *BadgerStore) Update(ctx context.Context, rec *record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		prev, err := getRecord(txn, rec.UID)
		if err != nil {
			return err
		}
		return putRecord(txn, rec, prev)
	})
}

// Delete removes the record for uid and all of its secondary index entries.
// Deleting a uid that doesn't exist is a no-op, matching §4.3.5's
// "if the blob is absent, returns 404 but still removes the record" — the
// store side of that operation must not itself fail on a missing record.
func (s *BadgerStore) Delete(ctx context.Context, uid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		prev, err := getRecord(txn, uid)
		if err != nil {
			if se, ok := err.(*StoreError); ok && se.Code == ErrNotFound {
				return nil
			}
			return err
		}
		return deleteRecord(txn, prev)
	})
}

// Families returns the distinct non-null physical.family values known to
// the store (§4.3.7's list/families, before the family router's own
// registered names are unioned in).
func (s *BadgerStore) Families(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixFamily)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := it.Item().Key()[len(prefix):]
			if idx := indexOf(rest, '/'); idx > 0 {
				seen[string(rest[:idx])] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	families := make([]string, 0, len(seen))
	for f := range seen {
		families = append(families, f)
	}
	return families, nil
}

func indexOf(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

func getRecord(txn *badger.Txn, uid string) (*record.Record, error) {
	item, err := txn.Get(keyRecord(uid))
	if err == badger.ErrKeyNotFound {
		return nil, notFound(uid)
	} else if err != nil {
		return nil, fmt.Errorf("recordstore: get %s: %w", uid, err)
	}
	var rec record.Record
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, fmt.Errorf("recordstore: decode %s: %w", uid, err)
	}
	return &rec, nil
}

// putRecord writes rec and its secondary index entries, removing prev's
// stale index entries first when prev is non-nil (an update rather than an
// insert).
func putRecord(txn *badger.Txn, rec *record.Record, prev *record.Record) error {
	if prev != nil {
		if err := deleteIndexes(txn, prev); err != nil {
			return err
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("recordstore: encode %s: %w", rec.UID, err)
	}
	if err := txn.Set(keyRecord(rec.UID), data); err != nil {
		return fmt.Errorf("recordstore: set %s: %w", rec.UID, err)
	}
	return setIndexes(txn, rec)
}

func deleteRecord(txn *badger.Txn, rec *record.Record) error {
	if err := deleteIndexes(txn, rec); err != nil {
		return err
	}
	if err := txn.Delete(keyRecord(rec.UID)); err != nil {
		return fmt.Errorf("recordstore: delete %s: %w", rec.UID, err)
	}
	return nil
}

func setIndexes(txn *badger.Txn, rec *record.Record) error {
	if err := txn.Set(keyCtimeIdx(rec.Physical.Ctime, rec.UID), nil); err != nil {
		return err
	}
	if due := dueEpoch(rec.Policy.Delete.Fixed, rec.Policy.Delete.StaleTime); due != plusInf {
		if err := txn.Set(keyDeleteDue(due, rec.UID), nil); err != nil {
			return err
		}
	}
	if due := dueEpoch(rec.Policy.Compress.Fixed, rec.Policy.Compress.StaleTime); due != plusInf {
		if err := txn.Set(keyCompressDue(due, rec.UID), nil); err != nil {
			return err
		}
	}
	if err := txn.Set(keyFamily(rec.FamilyName(), rec.UID), nil); err != nil {
		return err
	}
	return nil
}

func deleteIndexes(txn *badger.Txn, rec *record.Record) error {
	if err := txn.Delete(keyCtimeIdx(rec.Physical.Ctime, rec.UID)); err != nil && err != badger.ErrKeyNotFound {
		return err
	}
	if due := dueEpoch(rec.Policy.Delete.Fixed, rec.Policy.Delete.StaleTime); due != plusInf {
		if err := txn.Delete(keyDeleteDue(due, rec.UID)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
	}
	if due := dueEpoch(rec.Policy.Compress.Fixed, rec.Policy.Compress.StaleTime); due != plusInf {
		if err := txn.Delete(keyCompressDue(due, rec.UID)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
	}
	if err := txn.Delete(keyFamily(rec.FamilyName(), rec.UID)); err != nil && err != badger.ErrKeyNotFound {
		return err
	}
	return nil
}

// badgerLogAdapter routes badger's internal logging through this module's
// slog-based logger instead of badger's default stderr logger.
type badgerLogAdapter struct{}

func (badgerLogAdapter) Errorf(f string, args ...interface{})   { logger.Error(fmt.Sprintf(f, args...)) }
func (badgerLogAdapter) Warningf(f string, args ...interface{}) { logger.Warn(fmt.Sprintf(f, args...)) }
func (badgerLogAdapter) Infof(f string, args ...interface{})    { logger.Info(fmt.Sprintf(f, args...)) }
func (badgerLogAdapter) Debugf(f string, args ...interface{})   { logger.Debug(fmt.Sprintf(f, args...)) }
