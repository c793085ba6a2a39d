package graph

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noctua-systems/noctua/ai/mock"
	"github.com/noctua-systems/noctua/core"
	"github.com/noctua-systems/noctua/storage/badger"
)

func setupExtractor(t *testing.T, completer *mock.MockCompleter) (*Extractor, *badger.Repositories, func()) {
	t.Helper()

	repos, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)

	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), completer)

	extractor, err := NewExtractor(repos.Chunks, repos.Canonicals, repos.Concepts, nil, provider)
	require.NoError(t, err)

	cleanup := func() {
		repos.Close()
		backend.Close()
	}
	return extractor, repos, cleanup
}

// seedCanonical stores a chunk, a canonical chunk and the link between
// them, mirroring the dedup engine's output.
func seedCanonical(t *testing.T, repos *badger.Repositories, owner core.ID, text string) (*core.CanonicalChunk, *core.Chunk) {
	t.Helper()
	ctx := context.Background()

	chunks, err := repos.Chunks.AddChunks(ctx, &core.Chunk{
		CaptureId:   1,
		OwnerId:     owner,
		Content:     text,
		EmbedStatus: core.EmbedCompleted,
		Vector:      mock.BasisVector(0, 8),
	})
	require.NoError(t, err)

	canonicals, err := repos.Canonicals.AddCanonicalChunks(ctx, &core.CanonicalChunk{
		OwnerId: owner,
		Text:    text,
		Vector:  mock.BasisVector(0, 8),
	})
	require.NoError(t, err)

	err = repos.Canonicals.AddLinks(ctx, &core.CanonicalLink{
		ChunkId:     chunks[0].Id,
		CanonicalId: canonicals[0].Id,
		Similarity:  1.0,
	})
	require.NoError(t, err)

	return canonicals[0], chunks[0]
}

const validExtraction = `{
	"concepts": [
		{"name": "Ada Lovelace", "description": "Early computing pioneer", "category": "person"},
		{"name": "Analytical Engine", "description": "Mechanical general-purpose computer", "category": "artifact"}
	],
	"relations": [
		{"source": "Ada Lovelace", "target": "Analytical Engine", "relation": "wrote programs for"},
		{"source": "Ada Lovelace", "target": "Ada Lovelace", "relation": "is"},
		{"source": "Ada Lovelace", "target": "Charles Babbage", "relation": "worked with"}
	]
}`

func TestExtract_PersistsConceptsAndRelations(t *testing.T) {
	completer := mock.NewMockCompleter(validExtraction)
	extractor, repos, cleanup := setupExtractor(t, completer)
	defer cleanup()

	ctx := context.Background()
	canonical, chunk := seedCanonical(t, repos, 1, "Ada Lovelace wrote programs for the Analytical Engine.")

	err := extractor.Extract(ctx, ExtractPayload{CanonicalId: canonical.Id, OwnerId: 1})
	require.NoError(t, err)

	ada, err := repos.Concepts.FindConceptByName(ctx, 1, "Ada Lovelace")
	require.NoError(t, err)
	assert.Equal(t, "person", ada.Category)

	engine, err := repos.Concepts.FindConceptByName(ctx, 1, "Analytical Engine")
	require.NoError(t, err)

	// Self-relations and relations with unresolved endpoints are dropped.
	relations, err := repos.Concepts.GetRelationsForConcept(ctx, ada.Id)
	require.NoError(t, err)
	require.Len(t, relations, 1)
	assert.Equal(t, engine.Id, relations[0].TargetId)
	assert.Equal(t, "wrote programs for", relations[0].Relation)

	// Both concepts link back to the source chunk.
	for _, conceptID := range []core.ID{ada.Id, engine.Id} {
		ids, err := repos.Chunks.GetChunkIDsByConcept(ctx, conceptID)
		require.NoError(t, err)
		assert.Contains(t, ids, chunk.Id)
	}
}

func TestExtract_RetryBoundOnInvalidResponse(t *testing.T) {
	completer := mock.NewMockCompleter("not json at all {{{")
	extractor, repos, cleanup := setupExtractor(t, completer)
	defer cleanup()

	ctx := context.Background()
	canonical, _ := seedCanonical(t, repos, 1, "some text")

	// Exhausted retries abandon the job without a pipeline-fatal error.
	err := extractor.Extract(ctx, ExtractPayload{CanonicalId: canonical.Id, OwnerId: 1})
	require.NoError(t, err)
	assert.Equal(t, extractAttempts, completer.CallCount())

	concepts, err := repos.Concepts.GetConceptsByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, concepts)
}

func TestExtract_ConceptCap(t *testing.T) {
	response := `{"concepts": [`
	for i := 0; i < 9; i++ {
		if i > 0 {
			response += ","
		}
		response += fmt.Sprintf(`{"name": "concept %d", "description": "d", "category": "topic"}`, i)
	}
	response += `], "relations": []}`

	extractor, repos, cleanup := setupExtractor(t, mock.NewMockCompleter(response))
	defer cleanup()

	ctx := context.Background()
	canonical, _ := seedCanonical(t, repos, 1, "dense text")

	require.NoError(t, extractor.Extract(ctx, ExtractPayload{CanonicalId: canonical.Id, OwnerId: 1}))

	concepts, err := repos.Concepts.GetConceptsByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, concepts, maxConcepts)
}

func TestExtract_ChunkFallbackSource(t *testing.T) {
	completer := mock.NewMockCompleter(`{"concepts": [{"name": "Badger", "description": "kv store", "category": "artifact"}], "relations": []}`)
	extractor, repos, cleanup := setupExtractor(t, completer)
	defer cleanup()

	ctx := context.Background()
	chunks, err := repos.Chunks.AddChunks(ctx, &core.Chunk{
		CaptureId:   1,
		OwnerId:     1,
		Content:     "Badger is an embedded key-value store.",
		EmbedStatus: core.EmbedCompleted,
		Vector:      mock.BasisVector(0, 8),
	})
	require.NoError(t, err)

	// No canonical row exists; the raw chunk is the source.
	err = extractor.Extract(ctx, ExtractPayload{ChunkId: chunks[0].Id, OwnerId: 1})
	require.NoError(t, err)

	concept, err := repos.Concepts.FindConceptByName(ctx, 1, "Badger")
	require.NoError(t, err)

	ids, err := repos.Chunks.GetChunkIDsByConcept(ctx, concept.Id)
	require.NoError(t, err)
	assert.Contains(t, ids, chunks[0].Id)
}

func TestExtract_NoSource(t *testing.T) {
	extractor, _, cleanup := setupExtractor(t, mock.NewMockCompleter("{}"))
	defer cleanup()

	err := extractor.Extract(context.Background(), ExtractPayload{OwnerId: 1})
	assert.ErrorIs(t, err, ErrNoSource)
}
