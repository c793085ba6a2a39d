package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/noctua-systems/noctua/core"
	"github.com/noctua-systems/noctua/storage"
)

// RecallRepository implements storage.RecallRepository for BadgerDB.
type RecallRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.RecallRepository = (*RecallRepository)(nil)

// NewRecallRepository creates a new RecallRepository.
func NewRecallRepository(backend *Backend) (*RecallRepository, error) {
	idSeq, err := backend.GetSequence(recallItemIDSeq)
	if err != nil {
		return nil, err
	}

	return &RecallRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *RecallRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *RecallRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddRecallItems adds recall items to storage.
func (r *RecallRepository) AddRecallItems(ctx context.Context, items ...*core.RecallItem) ([]*core.RecallItem, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, item := range items {
			nextID, err := nextSequenceID(r.idSeq)
			if err != nil {
				return err
			}
			item.Id = nextID

			item.CreatedAt = time.Now().UTC()
			item.UpdatedAt = item.CreatedAt

			key := makeRecordKey(recallItemPrefix, item.Id)
			value := storage.MarshalRecallItem(item)
			if err := tx.Set(key, value); err != nil {
				return err
			}

			ownerKey := makeRecallOwnerKey(item.OwnerId, item.Id)
			if err := tx.Set(ownerKey, storage.MarshalID(item.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return items, err
}

// UpdateRecallItems updates existing recall items.
func (r *RecallRepository) UpdateRecallItems(ctx context.Context, items ...*core.RecallItem) ([]*core.RecallItem, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, item := range items {
			key := makeRecordKey(recallItemPrefix, item.Id)

			old, err := readRecallItem(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}

			item.UpdatedAt = time.Now().UTC()

			value := storage.MarshalRecallItem(item)
			if err := tx.Set(key, value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return items, err
}

// GetRecallItem retrieves a recall item by ID.
func (r *RecallRepository) GetRecallItem(ctx context.Context, id core.ID) (*core.RecallItem, error) {
	var result *core.RecallItem
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRecordKey(recallItemPrefix, id)
		var err error
		result, err = readRecallItem(tx, key)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetRecallItemsByOwner retrieves an owner's recall items with the given
// status, up to limit. A zero status matches all items.
func (r *RecallRepository) GetRecallItemsByOwner(ctx context.Context, owner core.ID, status core.RecallStatus, limit int) ([]*core.RecallItem, error) {
	var results []*core.RecallItem
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeIndexKey(recallOwnerPrefix, uint64(owner))
		ids, err := scanIndexIDs(tx, prefix)
		if err != nil {
			return err
		}

		for _, id := range ids {
			if len(results) >= limit {
				break
			}
			item, err := readRecallItem(tx, makeRecordKey(recallItemPrefix, id))
			if err != nil {
				return err
			}
			if item == nil {
				continue
			}
			if status != 0 && item.Status != status {
				continue
			}
			results = append(results, item)
		}
		return nil
	}, false)

	return results, err
}

// PutMemoryStrength creates or replaces the scheduling state of an item
// and maintains the due-time index.
func (r *RecallRepository) PutMemoryStrength(ctx context.Context, strength *core.MemoryStrength) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeStrengthKey(strength.ItemId)

		// Drop the old due-index row when rescheduling
		old, err := readMemoryStrength(tx, key)
		if err != nil {
			return err
		}
		if old != nil {
			oldDueKey := makeRecallDueKey(old.OwnerId, old.NextReviewAt, old.ItemId)
			if err := tx.Delete(oldDueKey); err != nil {
				return err
			}
		}

		strength.UpdatedAt = time.Now().UTC()

		value := storage.MarshalMemoryStrength(strength)
		if err := tx.Set(key, value); err != nil {
			return err
		}

		dueKey := makeRecallDueKey(strength.OwnerId, strength.NextReviewAt, strength.ItemId)
		if err := tx.Set(dueKey, storage.MarshalID(strength.ItemId)); err != nil {
			return err
		}

		return tx.Commit()
	}, true)
}

// GetMemoryStrength retrieves the scheduling state of an item.
func (r *RecallRepository) GetMemoryStrength(ctx context.Context, itemID core.ID) (*core.MemoryStrength, error) {
	var result *core.MemoryStrength
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readMemoryStrength(tx, makeStrengthKey(itemID))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetDueStrengths retrieves an owner's scheduling rows with
// NextReviewAt <= now, soonest first.
func (r *RecallRepository) GetDueStrengths(ctx context.Context, owner core.ID, now time.Time, limit int) ([]*core.MemoryStrength, error) {
	var results []*core.MemoryStrength
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		startKey := makeIndexKey(recallDuePrefix, uint64(owner))
		endKey := makePartialRecallDueKey(owner, now.Add(1*time.Microsecond))
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		defer iter.Close()

		count := 0
		for iter.Seek(startKey); iter.Valid() && count < limit; iter.Next() {
			key := iter.Item().Key()
			if slices.Compare(key, endKey) >= 0 {
				break
			}
			if len(key) < len(startKey) || slices.Compare(key[:len(startKey)], startKey) != 0 {
				break
			}

			var itemID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				itemID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			strength, err := readMemoryStrength(tx, makeStrengthKey(itemID))
			if err != nil {
				return err
			}
			if strength != nil {
				results = append(results, strength)
				count++
			}
		}
		return nil
	}, false)

	return results, err
}

// Helper methods

// readRecallItem reads a recall item from the transaction.
func readRecallItem(tx *badger.Txn, key []byte) (*core.RecallItem, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var recallItem *core.RecallItem
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		recallItem, unmarshalErr = storage.UnmarshalRecallItem(val)
		return unmarshalErr
	})
	return recallItem, err
}

// readMemoryStrength reads scheduling state from the transaction.
func readMemoryStrength(tx *badger.Txn, key []byte) (*core.MemoryStrength, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var strength *core.MemoryStrength
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		strength, unmarshalErr = storage.UnmarshalMemoryStrength(val)
		return unmarshalErr
	})
	return strength, err
}
