package reindex

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noctua-systems/noctua/ai/mock"
	"github.com/noctua-systems/noctua/core"
	"github.com/noctua-systems/noctua/storage/badger"
)

func setupStore(t *testing.T) (*badger.Repositories, func()) {
	t.Helper()

	repos, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)

	return repos, func() {
		repos.Close()
		backend.Close()
	}
}

func TestChunkIterator_Batches(t *testing.T) {
	repos, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 7; i++ {
		_, err := repos.Chunks.AddChunks(ctx, &core.Chunk{
			CaptureId:   1,
			OwnerId:     1,
			Content:     "chunk content",
			EmbedStatus: core.EmbedPending,
		})
		require.NoError(t, err)
	}

	iterator := NewChunkIterator(repos.Chunks, 3)
	seen := make(map[core.ID]bool)
	batches := 0
	err := iterator.ForEach(ctx, func(batch []*core.Chunk) error {
		batches++
		assert.LessOrEqual(t, len(batch), 3)
		for _, chunk := range batch {
			assert.False(t, seen[chunk.Id], "chunk %d delivered twice", chunk.Id)
			seen[chunk.Id] = true
		}
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 7)
	assert.Equal(t, 3, batches)
}

func TestChunkIterator_StopsOnError(t *testing.T) {
	repos, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := repos.Chunks.AddChunks(ctx, &core.Chunk{
			CaptureId: 1, OwnerId: 1, Content: "c", EmbedStatus: core.EmbedPending,
		})
		require.NoError(t, err)
	}

	calls := 0
	iterator := NewChunkIterator(repos.Chunks, 2)
	err := iterator.ForEach(ctx, func(batch []*core.Chunk) error {
		calls++
		return errors.New("stop")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestReindexer_Run(t *testing.T) {
	repos, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()
	var chunkIDs []core.ID
	for i := 0; i < 5; i++ {
		stored, err := repos.Chunks.AddChunks(ctx, &core.Chunk{
			CaptureId:   1,
			OwnerId:     1,
			Content:     "note content",
			EmbedStatus: core.EmbedPending,
		})
		require.NoError(t, err)
		chunkIDs = append(chunkIDs, stored[0].Id)
	}

	canonicals, err := repos.Canonicals.AddCanonicalChunks(ctx, &core.CanonicalChunk{
		OwnerId: 1,
		Text:    "canonical text",
	})
	require.NoError(t, err)

	var progress bytes.Buffer
	reindexer, err := NewReindexer(repos.Chunks, repos.Canonicals, mock.NewMockEmbedder(), nil, &progress)
	require.NoError(t, err)

	require.NoError(t, reindexer.Run(ctx))

	for _, id := range chunkIDs {
		chunk, err := repos.Chunks.GetChunk(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, core.EmbedCompleted, chunk.EmbedStatus)
		require.NotEmpty(t, chunk.Vector)

		var sumSquares float64
		for _, v := range chunk.Vector {
			sumSquares += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-5)
	}

	canonical, err := repos.Canonicals.GetCanonicalChunk(ctx, canonicals[0].Id)
	require.NoError(t, err)
	assert.NotEmpty(t, canonical.Vector)

	assert.Contains(t, progress.String(), "Reindex complete")
}

func TestReindexer_EmptyStore(t *testing.T) {
	repos, cleanup := setupStore(t)
	defer cleanup()

	var progress bytes.Buffer
	reindexer, err := NewReindexer(repos.Chunks, repos.Canonicals, mock.NewMockEmbedder(), nil, &progress)
	require.NoError(t, err)

	require.NoError(t, reindexer.Run(context.Background()))
	assert.Contains(t, progress.String(), "0 chunks")
}

func TestNewReindexer_Validation(t *testing.T) {
	repos, cleanup := setupStore(t)
	defer cleanup()

	_, err := NewReindexer(nil, repos.Canonicals, mock.NewMockEmbedder(), nil, nil)
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)

	_, err = NewReindexer(repos.Chunks, nil, mock.NewMockEmbedder(), nil, nil)
	assert.ErrorIs(t, err, ErrCanonicalRepositoryRequired)

	_, err = NewReindexer(repos.Chunks, repos.Canonicals, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}
