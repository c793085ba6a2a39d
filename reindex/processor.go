package reindex

import (
	"context"
	"fmt"
	"time"

	"github.com/noctua-systems/noctua/ai"
	"github.com/noctua-systems/noctua/core"
	"github.com/noctua-systems/noctua/retry"
	"github.com/noctua-systems/noctua/storage"
)

// ChunkProcessor re-embeds batches of chunks and persists the vectors.
type ChunkProcessor struct {
	repo           storage.ChunkRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewChunkProcessor creates a batch processor for chunks.
func NewChunkProcessor(repo storage.ChunkRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *ChunkProcessor {
	return &ChunkProcessor{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process embeds a batch of chunks and updates them in storage.
// Vectors are normalized so dot-product similarity stays cosine.
func (p *ChunkProcessor) Process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	var embeddings [][]float32
	err := retry.Do(ctx, func() error {
		var err error
		embeddings, err = p.embedder.EmbedTexts(ctx, texts)
		return err
	}, p.maxRetries, p.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("generating embeddings after %d attempts: %w", p.maxRetries, err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(embeddings))
	}

	for i := range chunks {
		chunks[i].Vector = ai.NormalizeVector(embeddings[i])
		chunks[i].EmbedStatus = core.EmbedCompleted
	}

	if _, err := p.repo.UpdateChunks(ctx, chunks...); err != nil {
		return fmt.Errorf("updating chunks: %w", err)
	}
	return nil
}

// CanonicalProcessor re-embeds batches of canonical chunks.
type CanonicalProcessor struct {
	repo           storage.CanonicalRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewCanonicalProcessor creates a batch processor for canonical chunks.
func NewCanonicalProcessor(repo storage.CanonicalRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *CanonicalProcessor {
	return &CanonicalProcessor{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process embeds a batch of canonical chunks and updates them in storage.
func (p *CanonicalProcessor) Process(ctx context.Context, canonicals []*core.CanonicalChunk) error {
	if len(canonicals) == 0 {
		return nil
	}

	texts := make([]string, len(canonicals))
	for i, canonical := range canonicals {
		texts[i] = canonical.Text
	}

	var embeddings [][]float32
	err := retry.Do(ctx, func() error {
		var err error
		embeddings, err = p.embedder.EmbedTexts(ctx, texts)
		return err
	}, p.maxRetries, p.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("generating embeddings after %d attempts: %w", p.maxRetries, err)
	}
	if len(embeddings) != len(canonicals) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(canonicals), len(embeddings))
	}

	for i := range canonicals {
		canonicals[i].Vector = ai.NormalizeVector(embeddings[i])
	}

	if _, err := p.repo.UpdateCanonicalChunks(ctx, canonicals...); err != nil {
		return fmt.Errorf("updating canonical chunks: %w", err)
	}
	return nil
}
