package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/noctua-systems/noctua/core"
	"github.com/noctua-systems/noctua/storage"
)

// CaptureRepository implements storage.CaptureRepository for BadgerDB.
type CaptureRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.CaptureRepository = (*CaptureRepository)(nil)

// NewCaptureRepository creates a new CaptureRepository.
func NewCaptureRepository(backend *Backend) (*CaptureRepository, error) {
	idSeq, err := backend.GetSequence(captureIDSeq)
	if err != nil {
		return nil, err
	}

	return &CaptureRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *CaptureRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *CaptureRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddCaptures adds one or more captures to storage.
func (r *CaptureRepository) AddCaptures(ctx context.Context, captures ...*core.Capture) ([]*core.Capture, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, capture := range captures {
			nextID, err := nextSequenceID(r.idSeq)
			if err != nil {
				return err
			}
			capture.Id = nextID

			capture.CreatedAt = time.Now().UTC()
			capture.UpdatedAt = capture.CreatedAt

			key := makeRecordKey(capturePrefix, capture.Id)
			value := storage.MarshalCapture(capture)
			if err := tx.Set(key, value); err != nil {
				return err
			}

			dateKey := makeCaptureDateKey(capture.OwnerId, capture.CreatedAt, capture.Id)
			if err := tx.Set(dateKey, storage.MarshalID(capture.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return captures, err
}

// UpdateCaptures updates existing captures.
func (r *CaptureRepository) UpdateCaptures(ctx context.Context, captures ...*core.Capture) ([]*core.Capture, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, capture := range captures {
			key := makeRecordKey(capturePrefix, capture.Id)

			old, err := readCapture(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}

			capture.UpdatedAt = time.Now().UTC()

			value := storage.MarshalCapture(capture)
			if err := tx.Set(key, value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return captures, err
}

// GetCapture retrieves a single capture by ID.
func (r *CaptureRepository) GetCapture(ctx context.Context, id core.ID) (*core.Capture, error) {
	var result *core.Capture
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRecordKey(capturePrefix, id)
		var err error
		result, err = readCapture(tx, key)
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

// GetCaptures retrieves multiple captures by their IDs.
func (r *CaptureRepository) GetCaptures(ctx context.Context, ids ...core.ID) ([]*core.Capture, error) {
	var result []*core.Capture
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeRecordKey(capturePrefix, id)
			capture, err := readCapture(tx, key)
			if err != nil {
				return err
			}
			if capture != nil {
				result = append(result, capture)
			}
		}
		return nil
	}, false)
	return result, err
}

// TransitionStatus moves a capture from one status to another.
// The current status is checked inside the write transaction, so a
// capture that already moved on (or failed) is left untouched.
func (r *CaptureRepository) TransitionStatus(ctx context.Context, id core.ID, from, to core.CaptureStatus) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRecordKey(capturePrefix, id)
		capture, err := readCapture(tx, key)
		if err != nil {
			return err
		}
		if capture == nil {
			return storage.ErrNotFound
		}
		if capture.Status != from {
			return storage.ErrStatusConflict
		}

		capture.Status = to
		capture.UpdatedAt = time.Now().UTC()

		if err := tx.Set(key, storage.MarshalCapture(capture)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// MarkFailed sets a capture to the failed status with the given reason.
func (r *CaptureRepository) MarkFailed(ctx context.Context, id core.ID, reason string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRecordKey(capturePrefix, id)
		capture, err := readCapture(tx, key)
		if err != nil {
			return err
		}
		if capture == nil {
			return storage.ErrNotFound
		}

		capture.Status = core.StatusFailed
		capture.ErrorReason = reason
		capture.UpdatedAt = time.Now().UTC()

		if err := tx.Set(key, storage.MarshalCapture(capture)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetRecentCaptures retrieves the most recent captures for an owner, newest first.
func (r *CaptureRepository) GetRecentCaptures(ctx context.Context, owner core.ID, limit int) ([]*core.Capture, error) {
	var results []*core.Capture
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true

		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek to the last possible key for this owner
		startKey := makePartialCaptureDateKey(owner, time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC))
		ownerPrefix := makeIndexKey(captureDatePrefix, uint64(owner))

		count := 0
		for iter.Seek(startKey); iter.Valid() && count < limit; iter.Next() {
			key := iter.Item().Key()
			if len(key) < len(ownerPrefix) || slices.Compare(key[:len(ownerPrefix)], ownerPrefix) != 0 {
				break
			}

			var captureID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				captureID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			capture, err := readCapture(tx, makeRecordKey(capturePrefix, captureID))
			if err != nil {
				return err
			}
			if capture != nil {
				results = append(results, capture)
				count++
			}
		}
		return nil
	}, false)

	return results, err
}

// Helper methods

// nextSequenceID draws the next ID from a sequence, skipping the zero
// value BadgerDB sequences return on first use.
func nextSequenceID(seq *badger.Sequence) (core.ID, error) {
	nextID, err := seq.Next()
	if err != nil {
		return 0, err
	}
	if nextID == 0 {
		nextID, err = seq.Next()
		if err != nil {
			return 0, err
		}
	}
	return core.ID(nextID), nil
}

// readCapture reads a capture from the transaction.
func readCapture(tx *badger.Txn, key []byte) (*core.Capture, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var capture *core.Capture
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		capture, unmarshalErr = storage.UnmarshalCapture(val)
		return unmarshalErr
	})
	return capture, err
}
