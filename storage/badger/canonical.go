package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/noctua-systems/noctua/core"
	"github.com/noctua-systems/noctua/storage"
)

// CanonicalRepository implements storage.CanonicalRepository for BadgerDB.
type CanonicalRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.CanonicalRepository = (*CanonicalRepository)(nil)

// NewCanonicalRepository creates a new CanonicalRepository.
func NewCanonicalRepository(backend *Backend) (*CanonicalRepository, error) {
	idSeq, err := backend.GetSequence(canonicalIDSeq)
	if err != nil {
		return nil, err
	}

	return &CanonicalRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *CanonicalRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *CanonicalRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddCanonicalChunks adds canonical chunks to storage.
func (r *CanonicalRepository) AddCanonicalChunks(ctx context.Context, canonicals ...*core.CanonicalChunk) ([]*core.CanonicalChunk, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, canonical := range canonicals {
			nextID, err := nextSequenceID(r.idSeq)
			if err != nil {
				return err
			}
			canonical.Id = nextID
			canonical.CreatedAt = time.Now().UTC()

			key := makeRecordKey(canonicalPrefix, canonical.Id)
			value := storage.MarshalCanonicalChunk(canonical)
			if err := tx.Set(key, value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return canonicals, err
}

// UpdateCanonicalChunks updates existing canonical chunks.
func (r *CanonicalRepository) UpdateCanonicalChunks(ctx context.Context, canonicals ...*core.CanonicalChunk) ([]*core.CanonicalChunk, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, canonical := range canonicals {
			key := makeRecordKey(canonicalPrefix, canonical.Id)

			old, err := readCanonicalChunk(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}

			value := storage.MarshalCanonicalChunk(canonical)
			if err := tx.Set(key, value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return canonicals, err
}

// GetCanonicalChunk retrieves a canonical chunk by ID.
func (r *CanonicalRepository) GetCanonicalChunk(ctx context.Context, id core.ID) (*core.CanonicalChunk, error) {
	var result *core.CanonicalChunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRecordKey(canonicalPrefix, id)
		var err error
		result, err = readCanonicalChunk(tx, key)
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

// GetCanonicalChunksBatch retrieves up to limit canonical chunks in key
// order, starting after afterID.
func (r *CanonicalRepository) GetCanonicalChunksBatch(ctx context.Context, afterID core.ID, limit int) ([]*core.CanonicalChunk, error) {
	var results []*core.CanonicalChunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(canonicalPrefix + ":")
		afterKey := makeRecordKey(canonicalPrefix, afterID)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		count := 0
		for iter.Seek(afterKey); iter.Valid() && count < limit; iter.Next() {
			if slices.Compare(iter.Item().Key(), afterKey) == 0 && afterID != 0 {
				continue
			}

			var canonical *core.CanonicalChunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				canonical, err = storage.UnmarshalCanonicalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if canonical != nil {
				results = append(results, canonical)
				count++
			}
		}
		return nil
	}, false)

	return results, err
}

// AddLinks records chunk-to-canonical links.
func (r *CanonicalRepository) AddLinks(ctx context.Context, links ...*core.CanonicalLink) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, link := range links {
			link.CreatedAt = time.Now().UTC()

			key := makeCanonicalLinkKey(link.ChunkId)
			value := storage.MarshalCanonicalLink(link)
			if err := tx.Set(key, value); err != nil {
				return err
			}

			revKey := makeCanonicalRevLinkKey(link.CanonicalId, link.ChunkId)
			if err := tx.Set(revKey, storage.MarshalID(link.ChunkId)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetLinkForChunk retrieves the link for a chunk.
func (r *CanonicalRepository) GetLinkForChunk(ctx context.Context, chunkID core.ID) (*core.CanonicalLink, error) {
	var result *core.CanonicalLink
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCanonicalLinkKey(chunkID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			result, unmarshalErr = storage.UnmarshalCanonicalLink(val)
			return unmarshalErr
		})
	}, false)
	return result, err
}

// GetLinksByCanonical retrieves all links pointing at a canonical chunk.
func (r *CanonicalRepository) GetLinksByCanonical(ctx context.Context, canonicalID core.ID) ([]*core.CanonicalLink, error) {
	var results []*core.CanonicalLink
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeIndexKey(canonicalRevLinkPrefix, uint64(canonicalID))
		chunkIDs, err := scanIndexIDs(tx, prefix)
		if err != nil {
			return err
		}

		for _, chunkID := range chunkIDs {
			item, err := tx.Get(makeCanonicalLinkKey(chunkID))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					continue
				}
				return err
			}
			var link *core.CanonicalLink
			if err := item.Value(func(val []byte) error {
				var unmarshalErr error
				link, unmarshalErr = storage.UnmarshalCanonicalLink(val)
				return unmarshalErr
			}); err != nil {
				return err
			}
			// A chunk re-linked elsewhere leaves a stale reverse row behind
			if link != nil && link.CanonicalId == canonicalID {
				results = append(results, link)
			}
		}
		return nil
	}, false)

	return results, err
}

// readCanonicalChunk reads a canonical chunk from the transaction.
func readCanonicalChunk(tx *badger.Txn, key []byte) (*core.CanonicalChunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var canonical *core.CanonicalChunk
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		canonical, unmarshalErr = storage.UnmarshalCanonicalChunk(val)
		return unmarshalErr
	})
	return canonical, err
}
