// Package dedup collapses near-duplicate chunks into canonical units so
// retrieval does not return redundant hits and downstream consumers
// operate on consolidated text. Clustering is additive and tolerant of
// repeated invocation: a run only considers chunks that have no canonical
// representative yet.
package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/noctua-systems/noctua/ai"
	"github.com/noctua-systems/noctua/core"
	"github.com/noctua-systems/noctua/graph"
	"github.com/noctua-systems/noctua/queue"
	"github.com/noctua-systems/noctua/retry"
	"github.com/noctua-systems/noctua/storage"
)

// JobDedupOwner is the job name for a per-owner dedup run.
const JobDedupOwner = "dedup-owner"

// OwnerPayload is the payload of a dedup run job.
type OwnerPayload struct {
	OwnerId core.ID `json:"owner_id"`
}

const (
	// defaultBatchSize caps how many chunks one run will cluster.
	defaultBatchSize = 200

	// defaultThreshold is the similarity floor for cluster membership.
	// Intentionally permissive: the goal is "everything plausibly
	// related", the LLM synthesis step reconciles the members.
	defaultThreshold = 0.50

	// defaultTopK caps the neighbor set per cluster seed.
	defaultTopK = 20

	// synthesisInputLimit bounds the combined member text sent to the LLM.
	synthesisInputLimit = 6000

	synthesisAttempts  = 3
	synthesisBaseDelay = 500 * time.Millisecond
)

const synthesisSystemPrompt = `You merge near-duplicate notes into one canonical text.
Given several overlapping text fragments, write a single consolidated
version that preserves every distinct fact across them. Do not add
information. Return only the consolidated text.`

var (
	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrCanonicalRepositoryRequired is returned when a canonical repository is not provided.
	ErrCanonicalRepositoryRequired = errors.New("canonical repository required")

	// ErrBrokerRequired is returned when a queue broker is not provided.
	ErrBrokerRequired = errors.New("queue broker required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")
)

// Engine runs owner-scoped deduplication passes. Concurrent runs for the
// same owner can both claim an overlapping chunk; the resulting extra
// canonical rows are an accepted tradeoff for running without locks.
type Engine struct {
	chunks     storage.ChunkRepository
	canonicals storage.CanonicalRepository
	broker     *queue.Broker
	provider   ai.Provider

	batchSize int
	threshold float32
	topK      int
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithBatchSize caps how many chunks one run will cluster. Default 200.
func WithBatchSize(size int) Option {
	return func(e *Engine) error {
		if size < 1 {
			size = 1
		}
		e.batchSize = size
		return nil
	}
}

// WithThreshold sets the similarity floor for cluster membership.
// Default 0.50.
func WithThreshold(threshold float32) Option {
	return func(e *Engine) error {
		e.threshold = threshold
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates a dedup engine and registers its handler on the
// broker's dedup queue.
func NewEngine(
	chunks storage.ChunkRepository,
	canonicals storage.CanonicalRepository,
	broker *queue.Broker,
	provider ai.Provider,
	opts ...Option,
) (*Engine, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if canonicals == nil {
		return nil, ErrCanonicalRepositoryRequired
	}
	if broker == nil {
		return nil, ErrBrokerRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	e := &Engine{
		chunks:     chunks,
		canonicals: canonicals,
		broker:     broker,
		provider:   provider,
		batchSize:  defaultBatchSize,
		threshold:  defaultThreshold,
		topK:       defaultTopK,
		logger:     slog.Default().With("component", "dedup"),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	broker.Handle(queue.Dedup, JobDedupOwner, e.handleRun)

	return e, nil
}

func (e *Engine) handleRun(ctx context.Context, payload []byte) error {
	var msg OwnerPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding dedup payload: %w", err)
	}
	return e.Run(ctx, msg.OwnerId)
}

// Run clusters the owner's unclustered embedded chunks, up to the batch
// cap. The candidate fetch is bounded to the newest batchSize chunks;
// older stragglers are covered because every completed embedding enqueues
// another run. A failed LLM call aborts only that cluster; the chunks
// stay unclustered and the next run retries them.
func (e *Engine) Run(ctx context.Context, owner core.ID) error {
	candidates, err := e.chunks.GetChunksByDateRange(ctx, owner, time.Unix(0, 0).UTC(), time.Now().UTC(), e.batchSize)
	if err != nil {
		return fmt.Errorf("loading chunks for owner %d: %w", owner, err)
	}

	processed := make(map[core.ID]bool)
	clustered := 0

	for _, seed := range candidates {
		if clustered >= e.batchSize {
			break
		}
		if processed[seed.Id] {
			continue
		}
		if seed.EmbedStatus != core.EmbedCompleted || len(seed.Vector) == 0 {
			// Not embedded yet; the embed worker fires another run
			// once the vector lands.
			continue
		}

		linked, err := e.isLinked(ctx, seed.Id)
		if err != nil {
			return err
		}
		if linked {
			processed[seed.Id] = true
			continue
		}

		matches, err := e.chunks.FindSimilar(ctx, owner, seed.Vector, e.threshold, e.topK)
		if err != nil {
			return fmt.Errorf("similarity search for chunk %d: %w", seed.Id, err)
		}

		cluster := make([]*core.SearchResult, 0, len(matches))
		for _, match := range matches {
			if processed[match.Chunk.Id] {
				continue
			}
			linked, err := e.isLinked(ctx, match.Chunk.Id)
			if err != nil {
				return err
			}
			if linked {
				processed[match.Chunk.Id] = true
				continue
			}
			cluster = append(cluster, match)
		}
		if len(cluster) == 0 {
			continue
		}

		for _, member := range cluster {
			processed[member.Chunk.Id] = true
		}
		clustered += len(cluster)

		if err := e.canonicalize(ctx, owner, cluster); err != nil {
			if isStorageError(err) {
				return err
			}
			e.logger.Warn("cluster canonicalization failed",
				"owner", owner,
				"seed", seed.Id,
				"size", len(cluster),
				"err", err)
		}
	}

	return nil
}

// canonicalize synthesizes, embeds and persists one canonical chunk plus
// the link rows for every cluster member, then enqueues graph extraction.
func (e *Engine) canonicalize(ctx context.Context, owner core.ID, cluster []*core.SearchResult) error {
	canonicalText := cluster[0].Chunk.Content
	if len(cluster) > 1 {
		synthesized, err := e.synthesize(ctx, cluster)
		if err != nil {
			return fmt.Errorf("synthesizing canonical text: %w", err)
		}
		canonicalText = synthesized
	}

	vector, err := e.provider.Embedder().EmbedText(ctx, canonicalText)
	if err != nil {
		return fmt.Errorf("embedding canonical text: %w", err)
	}

	canonical := &core.CanonicalChunk{
		OwnerId: owner,
		Text:    canonicalText,
		Vector:  ai.NormalizeVector(vector),
	}
	stored, err := e.canonicals.AddCanonicalChunks(ctx, canonical)
	if err != nil {
		return storageError(fmt.Errorf("storing canonical chunk: %w", err))
	}
	canonical = stored[0]

	links := make([]*core.CanonicalLink, len(cluster))
	for i, member := range cluster {
		links[i] = &core.CanonicalLink{
			ChunkId:     member.Chunk.Id,
			CanonicalId: canonical.Id,
			Similarity:  member.Score,
		}
	}
	if err := e.canonicals.AddLinks(ctx, links...); err != nil {
		return storageError(fmt.Errorf("storing canonical links: %w", err))
	}

	err = e.broker.Enqueue(ctx, queue.KnowledgeGraph, graph.JobExtract, graph.ExtractPayload{
		CanonicalId: canonical.Id,
		OwnerId:     owner,
	})
	if err != nil {
		// The canonical rows are persisted; graph extraction is
		// enrichment and can be re-triggered.
		e.logger.Warn("enqueueing graph extraction", "canonical", canonical.Id, "err", err)
	}

	e.logger.Info("cluster canonicalized",
		"owner", owner,
		"canonical", canonical.Id,
		"members", len(links))
	return nil
}

// synthesize asks the LLM for one consolidated text preserving all key
// information across the cluster members, with bounded input and retries.
func (e *Engine) synthesize(ctx context.Context, cluster []*core.SearchResult) (string, error) {
	var input strings.Builder
	for i, member := range cluster {
		fragment := member.Chunk.Content
		if input.Len()+len(fragment) > synthesisInputLimit {
			remaining := synthesisInputLimit - input.Len()
			if remaining <= 0 {
				break
			}
			// The byte cut can land inside a multibyte rune; drop the
			// partial tail so the prompt stays valid UTF-8.
			fragment = strings.ToValidUTF8(fragment[:remaining], "")
		}
		fmt.Fprintf(&input, "Fragment %d:\n%s\n\n", i+1, fragment)
	}

	var result string
	err := retry.Do(ctx, func() error {
		response, err := e.provider.Completer().Complete(ctx, synthesisSystemPrompt, input.String(), false)
		if err != nil {
			return err
		}
		response = strings.TrimSpace(response)
		if response == "" {
			return errors.New("empty synthesis response")
		}
		result = response
		return nil
	}, synthesisAttempts, synthesisBaseDelay)
	if err != nil {
		return "", err
	}
	return result, nil
}

// isLinked reports whether a chunk already has a canonical representative.
func (e *Engine) isLinked(ctx context.Context, chunkID core.ID) (bool, error) {
	_, err := e.canonicals.GetLinkForChunk(ctx, chunkID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("checking link for chunk %d: %w", chunkID, err)
}

// markedStorageError distinguishes persistence failures, which abort the
// whole run, from per-cluster LLM failures, which do not.
type markedStorageError struct{ err error }

func (m markedStorageError) Error() string { return m.err.Error() }
func (m markedStorageError) Unwrap() error { return m.err }

func storageError(err error) error { return markedStorageError{err: err} }

func isStorageError(err error) bool {
	var marked markedStorageError
	return errors.As(err, &marked)
}
