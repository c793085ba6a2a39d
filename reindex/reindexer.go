// Package reindex re-embeds every stored chunk and canonical chunk with
// the currently configured embedding model. Used after a model change,
// when existing vectors are no longer comparable with new ones.
package reindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/noctua-systems/noctua/ai"
	"github.com/noctua-systems/noctua/core"
	"github.com/noctua-systems/noctua/storage"
)

var (
	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrCanonicalRepositoryRequired is returned when a canonical repository is not provided.
	ErrCanonicalRepositoryRequired = errors.New("canonical repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")
)

// Config holds configuration for a reindexing run.
type Config struct {
	// BatchSize is the number of records processed per batch.
	BatchSize int

	// ReportInterval is how often progress is reported, in records.
	ReportInterval int

	// MaxRetries is the retry bound for embedding calls.
	MaxRetries int

	// RetryDelay is the base delay for retry backoff.
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reindexer orchestrates the re-embedding of all chunks and canonical
// chunks in a store.
type Reindexer struct {
	chunks     storage.ChunkRepository
	canonicals storage.CanonicalRepository
	config     *Config
	progress   io.Writer

	chunkProc     *ChunkProcessor
	canonicalProc *CanonicalProcessor
}

// NewReindexer creates a reindexer writing progress to the given writer,
// typically os.Stderr.
func NewReindexer(
	chunks storage.ChunkRepository,
	canonicals storage.CanonicalRepository,
	embedder ai.Embedder,
	config *Config,
	progress io.Writer,
) (*Reindexer, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if canonicals == nil {
		return nil, ErrCanonicalRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reindexer{
		chunks:        chunks,
		canonicals:    canonicals,
		config:        config,
		progress:      progress,
		chunkProc:     NewChunkProcessor(chunks, embedder, config.MaxRetries, config.RetryDelay),
		canonicalProc: NewCanonicalProcessor(canonicals, embedder, config.MaxRetries, config.RetryDelay),
	}, nil
}

// Run re-embeds every chunk, then every canonical chunk.
func (r *Reindexer) Run(ctx context.Context) error {
	fmt.Fprintf(r.progress, "Starting reindex (batch size: %d)\n", r.config.BatchSize)

	chunkTracker := NewProgressTracker(r.progress, "chunks", r.config.ReportInterval)
	chunkTracker.Start()

	iterator := NewChunkIterator(r.chunks, r.config.BatchSize)
	err := iterator.ForEach(ctx, func(batch []*core.Chunk) error {
		if err := r.chunkProc.Process(ctx, batch); err != nil {
			return fmt.Errorf("processing chunk batch: %w", err)
		}
		chunkTracker.Increment(len(batch))
		return nil
	})
	if err != nil {
		return err
	}
	chunkTracker.Finish()

	canonicalTracker := NewProgressTracker(r.progress, "canonical chunks", r.config.ReportInterval)
	canonicalTracker.Start()

	canonicalIterator := NewCanonicalIterator(r.canonicals, r.config.BatchSize)
	err = canonicalIterator.ForEach(ctx, func(batch []*core.CanonicalChunk) error {
		if err := r.canonicalProc.Process(ctx, batch); err != nil {
			return fmt.Errorf("processing canonical batch: %w", err)
		}
		canonicalTracker.Increment(len(batch))
		return nil
	})
	if err != nil {
		return err
	}
	canonicalTracker.Finish()

	fmt.Fprintf(r.progress, "Reindex complete: %d chunks, %d canonical chunks in %s\n",
		chunkTracker.Count(), canonicalTracker.Count(), chunkTracker.Elapsed().Round(time.Second))
	return nil
}
