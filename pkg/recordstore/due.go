package recordstore

import (
	"context"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/mediastorage/pkg/record"
)

// DueForDeletion returns up to limit records whose delete policy has fired
// (fixed < now OR staleTime < now, per §4.5.1), ordered by due time.
func (s *BadgerStore) DueForDeletion(ctx context.Context, now float64, limit int) ([]*record.Record, error) {
	return s.dueQuery(ctx, prefixDeleteDue, now, limit)
}

// DueForCompression returns up to limit records whose compress policy has
// fired (fixed < now OR staleTime < now, per §4.5.2), ordered by due time.
func (s *BadgerStore) DueForCompression(ctx context.Context, now float64, limit int) ([]*record.Record, error) {
	return s.dueQuery(ctx, prefixCompressDue, now, limit)
}

func (s *BadgerStore) dueQuery(ctx context.Context, prefix string, now float64, limit int) ([]*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	var out []*record.Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		rawPrefix := []byte(prefix)
		for it.Seek(rawPrefix); it.ValidForPrefix(rawPrefix); it.Next() {
			if len(out) >= limit {
				break
			}
			key := it.Item().Key()[len(prefix):]
			if len(key) < 9 {
				continue
			}
			due := decodeOrderedFloat64(key[:8])
			if due >= now {
				break
			}
			uid := string(key[9:])

			rec, err := getRecord(txn, uid)
			if err != nil {
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}
