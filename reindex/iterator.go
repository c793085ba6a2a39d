package reindex

import (
	"context"

	"github.com/noctua-systems/noctua/core"
	"github.com/noctua-systems/noctua/storage"
)

// DefaultBatchSize is the default number of records fetched per batch.
const DefaultBatchSize = 100

// ChunkIterator pages through every chunk in the store in stable
// iteration order.
type ChunkIterator struct {
	repo      storage.ChunkRepository
	batchSize int
}

// NewChunkIterator creates an iterator over all chunks.
func NewChunkIterator(repo storage.ChunkRepository, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ChunkIterator{repo: repo, batchSize: batchSize}
}

// ForEach calls fn for each batch of chunks. Iteration stops on the first
// error from fn; context cancellation is checked between batches.
func (it *ChunkIterator) ForEach(ctx context.Context, fn func([]*core.Chunk) error) error {
	var afterID core.ID
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := it.repo.GetChunksBatch(ctx, afterID, it.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}
		afterID = batch[len(batch)-1].Id
	}
}

// CanonicalIterator pages through every canonical chunk in the store in
// stable iteration order.
type CanonicalIterator struct {
	repo      storage.CanonicalRepository
	batchSize int
}

// NewCanonicalIterator creates an iterator over all canonical chunks.
func NewCanonicalIterator(repo storage.CanonicalRepository, batchSize int) *CanonicalIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &CanonicalIterator{repo: repo, batchSize: batchSize}
}

// ForEach calls fn for each batch of canonical chunks. Iteration stops on
// the first error from fn; context cancellation is checked between batches.
func (it *CanonicalIterator) ForEach(ctx context.Context, fn func([]*core.CanonicalChunk) error) error {
	var afterID core.ID
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := it.repo.GetCanonicalChunksBatch(ctx, afterID, it.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}
		afterID = batch[len(batch)-1].Id
	}
}
