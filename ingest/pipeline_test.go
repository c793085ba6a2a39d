package ingest

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noctua-systems/noctua/ai/mock"
	"github.com/noctua-systems/noctua/core"
	"github.com/noctua-systems/noctua/extract"
	"github.com/noctua-systems/noctua/queue"
	"github.com/noctua-systems/noctua/storage"
	"github.com/noctua-systems/noctua/storage/badger"
)

// testProvider builds a mock provider whose completer answers tagging
// calls with JSON and summarization calls with plain text.
func testProvider() *mock.MockProvider {
	completer := mock.NewMockCompleter("")
	completer.CompleteFunc = func(ctx context.Context, systemPrompt, userContent string, jsonMode bool) (string, error) {
		if jsonMode {
			return `{"topics": ["testing"], "importance": 7}`, nil
		}
		return "A short summary.", nil
	}
	return mock.NewMockProviderWithServices(mock.NewMockEmbedder(), completer).(*mock.MockProvider)
}

func setupPipeline(t *testing.T, registry *extract.Registry) (*Pipeline, *badger.Repositories, *queue.Broker, func()) {
	t.Helper()

	repos, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)

	broker, err := queue.NewBroker(queue.WithRetryPolicy(1, time.Millisecond))
	require.NoError(t, err)

	if registry == nil {
		registry = extract.NewRegistry()
	}

	pipeline, err := NewPipeline(repos.Captures, repos.Chunks, registry, broker, testProvider())
	require.NoError(t, err)

	cleanup := func() {
		broker.Release()
		repos.Close()
		backend.Close()
	}
	return pipeline, repos, broker, cleanup
}

func TestNewPipeline_Validation(t *testing.T) {
	repos, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	defer repos.Close()

	broker, err := queue.NewBroker()
	require.NoError(t, err)
	defer broker.Release()

	registry := extract.NewRegistry()
	provider := testProvider()

	_, err = NewPipeline(nil, repos.Chunks, registry, broker, provider)
	assert.ErrorIs(t, err, ErrCaptureRepositoryRequired)

	_, err = NewPipeline(repos.Captures, nil, registry, broker, provider)
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)

	_, err = NewPipeline(repos.Captures, repos.Chunks, nil, broker, provider)
	assert.ErrorIs(t, err, ErrRegistryRequired)

	_, err = NewPipeline(repos.Captures, repos.Chunks, registry, nil, provider)
	assert.ErrorIs(t, err, ErrBrokerRequired)

	_, err = NewPipeline(repos.Captures, repos.Chunks, registry, broker, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)
}

func TestSubmit_Validation(t *testing.T) {
	pipeline, _, _, cleanup := setupPipeline(t, nil)
	defer cleanup()

	ctx := context.Background()

	_, err := pipeline.Submit(ctx, Request{Kind: core.KindText, Content: "hello"})
	assert.ErrorIs(t, err, ErrOwnerRequired)

	_, err = pipeline.Submit(ctx, Request{OwnerId: 1, Kind: core.KindText})
	assert.ErrorIs(t, err, ErrEmptySubmission)
}

func TestSubmit_ProcessesTextCapture(t *testing.T) {
	pipeline, repos, broker, cleanup := setupPipeline(t, nil)
	defer cleanup()

	ctx := context.Background()
	capture, err := pipeline.Submit(ctx, Request{
		OwnerId: 1,
		Kind:    core.KindText,
		Title:   "standup notes",
		Content: "The team agreed to ship the beta on Friday after the retro.",
	})
	require.NoError(t, err)
	assert.Equal(t, core.StatusQueued, capture.Status)

	broker.Wait()

	final, err := repos.Captures.GetCapture(ctx, capture.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, final.Status)
	assert.Empty(t, final.ErrorReason)
	assert.Equal(t, "A short summary.", final.Summary)

	chunks, err := repos.Chunks.GetChunksByCapture(ctx, capture.Id)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.Equal(t, core.EmbedCompleted, chunk.EmbedStatus)
		assert.NotEmpty(t, chunk.Vector)
		assert.Equal(t, []string{"testing"}, chunk.Topics)
		assert.Equal(t, 7, chunk.Importance)
	}
}

func TestSubmit_LinksContextGroup(t *testing.T) {
	pipeline, repos, broker, cleanup := setupPipeline(t, nil)
	defer cleanup()

	ctx := context.Background()
	capture, err := pipeline.Submit(ctx, Request{
		OwnerId:   1,
		Kind:      core.KindText,
		Content:   "Context-grouped note.",
		ContextId: 42,
	})
	require.NoError(t, err)

	broker.Wait()

	ids, err := repos.Chunks.GetChunkIDsByContext(ctx, 42)
	require.NoError(t, err)
	require.NotEmpty(t, ids)

	chunks, err := repos.Chunks.GetChunksByCapture(ctx, capture.Id)
	require.NoError(t, err)
	assert.Len(t, ids, len(chunks))
}

func TestProcessCapture_ExtractionFailureEndsFailed(t *testing.T) {
	registry := extract.NewRegistry()
	registry.Register(core.KindText, extract.ExtractorFunc(
		func(ctx context.Context, src extract.Source) (extract.Extraction, error) {
			return extract.Extraction{}, errors.New("unreadable input")
		}))

	pipeline, repos, broker, cleanup := setupPipeline(t, registry)
	defer cleanup()

	ctx := context.Background()
	capture, err := pipeline.Submit(ctx, Request{
		OwnerId: 1,
		Kind:    core.KindText,
		Content: "whatever",
	})
	require.NoError(t, err)

	broker.Wait()

	final, err := repos.Captures.GetCapture(ctx, capture.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, final.Status)
	assert.NotEmpty(t, final.ErrorReason)
}

// failingChunkRepo simulates storage write failures during chunk insert.
// The first failures consecutive AddChunks calls fail, then calls pass
// through; a negative failures fails every call.
type failingChunkRepo struct {
	storage.ChunkRepository
	failures int
	calls    int
}

func (r *failingChunkRepo) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	r.calls++
	if r.calls <= r.failures || r.failures < 0 {
		return nil, errors.New("transient disk hiccup")
	}
	return r.ChunkRepository.AddChunks(ctx, chunks...)
}

func TestProcessCapture_TransientChunkInsertRecovers(t *testing.T) {
	repos, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	defer repos.Close()

	broker, err := queue.NewBroker(queue.WithRetryPolicy(3, time.Millisecond))
	require.NoError(t, err)
	defer broker.Release()

	flaky := &failingChunkRepo{ChunkRepository: repos.Chunks, failures: 1}
	pipeline, err := NewPipeline(repos.Captures, flaky, extract.NewRegistry(), broker, testProvider())
	require.NoError(t, err)

	ctx := context.Background()
	capture, err := pipeline.Submit(ctx, Request{
		OwnerId: 1,
		Kind:    core.KindText,
		Content: "a note that survives one storage blip",
	})
	require.NoError(t, err)

	broker.Wait()

	// The queue retried past the blip; the capture must not be failed.
	final, err := repos.Captures.GetCapture(ctx, capture.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, final.Status)
	assert.Empty(t, final.ErrorReason)

	// The retry resumed at chunk persistence without re-splitting.
	chunks, err := repos.Chunks.GetChunksByCapture(ctx, capture.Id)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
	assert.Equal(t, 2, flaky.calls)
}

func TestProcessCapture_ChunkInsertFailureEndsFailed(t *testing.T) {
	repos, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	defer repos.Close()

	broker, err := queue.NewBroker(queue.WithRetryPolicy(1, time.Millisecond))
	require.NoError(t, err)
	defer broker.Release()

	pipeline, err := NewPipeline(
		repos.Captures,
		&failingChunkRepo{ChunkRepository: repos.Chunks, failures: -1},
		extract.NewRegistry(),
		broker,
		testProvider(),
	)
	require.NoError(t, err)

	ctx := context.Background()
	capture, err := pipeline.Submit(ctx, Request{
		OwnerId: 1,
		Kind:    core.KindText,
		Content: "note that will not fit",
	})
	require.NoError(t, err)

	broker.Wait()

	// The exhaustion hook, not the handler, finalizes the failure.
	final, err := repos.Captures.GetCapture(ctx, capture.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, final.Status)
	assert.NotEmpty(t, final.ErrorReason)
}

func TestSubmit_EnqueueFailureEndsFailed(t *testing.T) {
	pipeline, repos, broker, cleanup := setupPipeline(t, nil)
	defer cleanup()

	// A released broker rejects submissions, simulating a queue outage
	// at enqueue time.
	broker.Release()

	ctx := context.Background()
	_, err := pipeline.Submit(ctx, Request{
		OwnerId: 1,
		Kind:    core.KindText,
		Content: "never processed",
	})
	require.Error(t, err)

	captures, err := repos.Captures.GetRecentCaptures(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, captures, 1)
	assert.Equal(t, core.StatusFailed, captures[0].Status)
	assert.NotEmpty(t, captures[0].ErrorReason)
}

func TestProcessCapture_TerminalCaptureIsNoop(t *testing.T) {
	pipeline, repos, broker, cleanup := setupPipeline(t, nil)
	defer cleanup()

	ctx := context.Background()
	capture, err := pipeline.Submit(ctx, Request{
		OwnerId: 1,
		Kind:    core.KindText,
		Content: "already done",
	})
	require.NoError(t, err)
	broker.Wait()

	// Redelivery of the job for a completed capture must not reprocess.
	before, err := repos.Chunks.GetChunksByCapture(ctx, capture.Id)
	require.NoError(t, err)

	require.NoError(t, pipeline.processCapture(ctx, capture.Id))

	after, err := repos.Chunks.GetChunksByCapture(ctx, capture.Id)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestEmbedWorker_NormalizesVector(t *testing.T) {
	repos, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	defer repos.Close()

	broker, err := queue.NewBroker(queue.WithRetryPolicy(1, time.Millisecond))
	require.NoError(t, err)
	defer broker.Release()

	// A model emitting non-unit vectors must not leak raw magnitudes
	// into the store, or similarity scores stop meaning cosine.
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{2, 0, 0, 0}, nil
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockCompleter(""))

	pipeline, err := NewPipeline(repos.Captures, repos.Chunks, extract.NewRegistry(), broker, provider)
	require.NoError(t, err)

	ctx := context.Background()
	stored, err := repos.Chunks.AddChunks(ctx, &core.Chunk{
		CaptureId:   1,
		OwnerId:     1,
		Content:     "scaled embedding",
		EmbedStatus: core.EmbedPending,
	})
	require.NoError(t, err)

	err = pipeline.handleEmbedChunk(ctx, []byte(`{"chunk_id": `+intString(stored[0].Id)+`}`))
	require.NoError(t, err)

	chunk, err := repos.Chunks.GetChunk(ctx, stored[0].Id)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0}, chunk.Vector)
}

func TestEmbedWorker_MissingChunkIsError(t *testing.T) {
	pipeline, _, _, cleanup := setupPipeline(t, nil)
	defer cleanup()

	err := pipeline.handleEmbedChunk(context.Background(), []byte(`{"chunk_id": 9999}`))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTagger_ModelFailureDropsTags(t *testing.T) {
	repos, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	defer repos.Close()

	broker, err := queue.NewBroker(queue.WithRetryPolicy(1, time.Millisecond))
	require.NoError(t, err)
	defer broker.Release()

	completer := mock.NewMockCompleter("")
	completer.CompleteFunc = func(ctx context.Context, systemPrompt, userContent string, jsonMode bool) (string, error) {
		return "", errors.New("model unavailable")
	}
	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), completer)

	pipeline, err := NewPipeline(repos.Captures, repos.Chunks, extract.NewRegistry(), broker, provider)
	require.NoError(t, err)

	ctx := context.Background()
	stored, err := repos.Chunks.AddChunks(ctx, &core.Chunk{
		CaptureId:   1,
		OwnerId:     1,
		Content:     "untagged",
		EmbedStatus: core.EmbedPending,
	})
	require.NoError(t, err)

	err = pipeline.handleTagChunk(ctx, []byte(`{"chunk_id": `+intString(stored[0].Id)+`}`))
	require.NoError(t, err)

	chunk, err := repos.Chunks.GetChunk(ctx, stored[0].Id)
	require.NoError(t, err)
	assert.Empty(t, chunk.Topics)
	assert.Zero(t, chunk.Importance)
}

func intString(id core.ID) string {
	return strconv.FormatUint(uint64(id), 10)
}
