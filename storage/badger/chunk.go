package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/noctua-systems/noctua/core"
	"github.com/noctua-systems/noctua/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	idSeq, err := backend.GetSequence(chunkIDSeq)
	if err != nil {
		return nil, err
	}

	return &ChunkRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *ChunkRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *ChunkRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// FindSimilar delegates to the backend.
func (r *ChunkRepository) FindSimilar(ctx context.Context, owner core.ID, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	return r.backend.FindSimilarChunks(ctx, owner, vector, minSimilarity, limit)
}

// AddChunks adds one or more chunks to storage.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			nextID, err := nextSequenceID(r.idSeq)
			if err != nil {
				return err
			}
			chunk.Id = nextID

			chunk.CreatedAt = time.Now().UTC()
			chunk.UpdatedAt = chunk.CreatedAt

			key := makeRecordKey(chunkPrefix, chunk.Id)
			value := storage.MarshalChunk(chunk)
			if err := tx.Set(key, value); err != nil {
				return err
			}

			captureKey := makeChunkCaptureKey(chunk.CaptureId, chunk.Id)
			if err := tx.Set(captureKey, storage.MarshalID(chunk.Id)); err != nil {
				return err
			}

			dateKey := makeChunkDateKey(chunk.OwnerId, chunk.CreatedAt, chunk.Id)
			if err := tx.Set(dateKey, storage.MarshalID(chunk.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return chunks, err
}

// UpdateChunks updates existing chunks. Content and ownership are treated
// as immutable, so index rows are not rewritten.
func (r *ChunkRepository) UpdateChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			key := makeRecordKey(chunkPrefix, chunk.Id)

			old, err := readChunk(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}

			chunk.UpdatedAt = time.Now().UTC()

			value := storage.MarshalChunk(chunk)
			if err := tx.Set(key, value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return chunks, err
}

// GetChunk retrieves a single chunk by ID.
func (r *ChunkRepository) GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error) {
	var result *core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRecordKey(chunkPrefix, id)
		var err error
		result, err = readChunk(tx, key)
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

// GetChunks retrieves multiple chunks by their IDs.
func (r *ChunkRepository) GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	var result []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeRecordKey(chunkPrefix, id)
			chunk, err := readChunk(tx, key)
			if err != nil {
				return err
			}
			if chunk != nil {
				result = append(result, chunk)
			}
		}
		return nil
	}, false)
	return result, err
}

// GetChunksByCapture retrieves all chunks of a capture ordered by Seq.
func (r *ChunkRepository) GetChunksByCapture(ctx context.Context, captureID core.ID) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeIndexKey(chunkCapturePrefix, uint64(captureID))
		ids, err := scanIndexIDs(tx, prefix)
		if err != nil {
			return err
		}

		for _, id := range ids {
			chunk, err := readChunk(tx, makeRecordKey(chunkPrefix, id))
			if err != nil {
				return err
			}
			if chunk != nil {
				results = append(results, chunk)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.Chunk) int {
		return a.Seq - b.Seq
	})
	return results, nil
}

// GetChunksByDateRange retrieves an owner's chunks created within a time
// range, newest first, up to limit results. The cap lives in the index
// scan so a large history is never loaded to serve a bounded batch.
func (r *ChunkRepository) GetChunksByDateRange(ctx context.Context, owner core.ID, start, end time.Time, limit int) ([]*core.Chunk, error) {
	if start.Equal(end) {
		end = start.Add(1 * time.Microsecond)
	}

	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		startKey := makePartialChunkDateKey(owner, start)
		endKey := makePartialChunkDateKey(owner, end)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(endKey); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if slices.Compare(key, startKey) < 0 {
				break
			}
			if limit > 0 && len(results) >= limit {
				break
			}

			var chunkID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				chunkID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			chunk, err := readChunk(tx, makeRecordKey(chunkPrefix, chunkID))
			if err != nil {
				return err
			}
			if chunk != nil {
				results = append(results, chunk)
			}
		}
		return nil
	}, false)

	return results, err
}

// GetChunksBatch retrieves up to limit chunks in key order, starting after
// afterID.
func (r *ChunkRepository) GetChunksBatch(ctx context.Context, afterID core.ID, limit int) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(chunkPrefix + ":")
		afterKey := makeRecordKey(chunkPrefix, afterID)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		count := 0
		for iter.Seek(afterKey); iter.Valid() && count < limit; iter.Next() {
			// Skip the cursor position itself
			if slices.Compare(iter.Item().Key(), afterKey) == 0 && afterID != 0 {
				continue
			}

			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if chunk != nil {
				results = append(results, chunk)
				count++
			}
		}
		return nil
	}, false)

	return results, err
}

// LinkConcept associates a chunk with a concept.
func (r *ChunkRepository) LinkConcept(ctx context.Context, conceptID, chunkID core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeChunkConceptKey(conceptID, chunkID)
		if err := tx.Set(key, storage.MarshalID(chunkID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetChunkIDsByConcept retrieves IDs of chunks associated with a concept.
func (r *ChunkRepository) GetChunkIDsByConcept(ctx context.Context, conceptID core.ID) ([]core.ID, error) {
	var ids []core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeIndexKey(chunkConceptPrefix, uint64(conceptID))
		var err error
		ids, err = scanIndexIDs(tx, prefix)
		return err
	}, false)
	return ids, err
}

// LinkContext associates chunks with a context group.
func (r *ChunkRepository) LinkContext(ctx context.Context, contextID core.ID, chunkIDs ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunkID := range chunkIDs {
			key := makeChunkContextKey(contextID, chunkID)
			if err := tx.Set(key, storage.MarshalID(chunkID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetChunkIDsByContext retrieves IDs of chunks in a context group.
func (r *ChunkRepository) GetChunkIDsByContext(ctx context.Context, contextID core.ID) ([]core.ID, error) {
	var ids []core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeIndexKey(chunkContextPrefix, uint64(contextID))
		var err error
		ids, err = scanIndexIDs(tx, prefix)
		return err
	}, false)
	return ids, err
}

// readChunk reads a chunk from the transaction.
func readChunk(tx *badger.Txn, key []byte) (*core.Chunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		chunk, unmarshalErr = storage.UnmarshalChunk(val)
		return unmarshalErr
	})
	return chunk, err
}
