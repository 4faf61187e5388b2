package recordstore

import (
	"context"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/mediastorage/pkg/record"
)

// WalkByCtime feeds the record→file reconciler (§4.5.3): it walks every
// record in ascending ctime order, pageSize at a time, invoking fn once per
// page. fn's error stops the walk and is returned to the caller.
func (s *BadgerStore) WalkByCtime(ctx context.Context, pageSize int, fn func([]*record.Record) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if pageSize <= 0 {
		pageSize = 250
	}

	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixCtimeIdx)
		page := make([]*record.Record, 0, pageSize)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			uid, _, ok := decodeCtimeIdxKey(it.Item().Key())
			if !ok {
				continue
			}
			rec, err := getRecord(txn, uid)
			if err != nil {
				continue
			}
			page = append(page, rec)
			if len(page) == pageSize {
				if err := fn(page); err != nil {
					return err
				}
				page = page[:0]
			}
		}
		if len(page) > 0 {
			return fn(page)
		}
		return nil
	})
}
