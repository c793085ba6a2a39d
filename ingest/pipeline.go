// Package ingest implements the asynchronous capture ingestion pipeline:
// extraction, chunking, and the fan-out of embedding, topic tagging and
// summarization jobs. Stages communicate only by enqueueing the next job;
// a capture's Status field is the user-visible progress indicator.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/noctua-systems/noctua/ai"
	"github.com/noctua-systems/noctua/chunk"
	"github.com/noctua-systems/noctua/core"
	"github.com/noctua-systems/noctua/dedup"
	"github.com/noctua-systems/noctua/extract"
	"github.com/noctua-systems/noctua/queue"
	"github.com/noctua-systems/noctua/storage"
)

// Job names registered on the pipeline queues.
const (
	JobProcessCapture   = "process-capture"
	JobEmbedChunk       = "embed-chunk"
	JobTagChunk         = "tag-chunk"
	JobSummarizeCapture = "summarize-capture"
)

type capturePayload struct {
	CaptureId core.ID `json:"capture_id"`
}

type chunkPayload struct {
	ChunkId core.ID `json:"chunk_id"`
}

// Request describes one content submission.
type Request struct {
	OwnerId   core.ID
	Kind      core.ContentKind
	Title     string
	Content   string  // inline content; empty for locator-based kinds
	Source    string  // URL or file key; empty for inline content
	ContextId core.ID // optional grouping; 0 means none
}

// Pipeline orchestrates capture ingestion. Submit persists a capture and
// enqueues its processing job; the registered handlers carry the capture
// through extraction, chunking, embedding, tagging and summarization.
type Pipeline struct {
	captures storage.CaptureRepository
	chunks   storage.ChunkRepository
	registry *extract.Registry
	strategy chunk.Strategy
	broker   *queue.Broker
	provider ai.Provider
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithStrategy sets the chunking strategy. Default is chunk.StrategyBalanced.
func WithStrategy(strategy chunk.Strategy) Option {
	return func(p *Pipeline) error {
		p.strategy = strategy
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an ingestion pipeline and registers its handlers on
// the broker's ingestion, embeddings, topic-tagging and summarization queues.
func NewPipeline(
	captures storage.CaptureRepository,
	chunks storage.ChunkRepository,
	registry *extract.Registry,
	broker *queue.Broker,
	provider ai.Provider,
	opts ...Option,
) (*Pipeline, error) {
	if captures == nil {
		return nil, ErrCaptureRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	if broker == nil {
		return nil, ErrBrokerRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	p := &Pipeline{
		captures: captures,
		chunks:   chunks,
		registry: registry,
		strategy: chunk.StrategyBalanced,
		broker:   broker,
		provider: provider,
		logger:   slog.Default().With("component", "ingest"),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	broker.Handle(queue.Ingestion, JobProcessCapture, p.handleProcessCapture)
	broker.Handle(queue.Embeddings, JobEmbedChunk, p.handleEmbedChunk)
	broker.Handle(queue.TopicTagging, JobTagChunk, p.handleTagChunk)
	broker.Handle(queue.Summarization, JobSummarizeCapture, p.handleSummarize)
	broker.OnExhausted(queue.Ingestion, p.onIngestionExhausted)

	return p, nil
}

// Submit persists a new capture in the queued state and enqueues its
// processing job. The call returns once the job is accepted; processing
// is asynchronous and progress is observable through the capture status.
func (p *Pipeline) Submit(ctx context.Context, req Request) (*core.Capture, error) {
	if req.OwnerId == 0 {
		return nil, ErrOwnerRequired
	}
	if strings.TrimSpace(req.Content) == "" && strings.TrimSpace(req.Source) == "" {
		return nil, ErrEmptySubmission
	}

	capture := &core.Capture{
		OwnerId:   req.OwnerId,
		Kind:      req.Kind,
		Title:     req.Title,
		RawText:   req.Content,
		Status:    core.StatusQueued,
		Source:    req.Source,
		ContextId: req.ContextId,
	}

	stored, err := p.captures.AddCaptures(ctx, capture)
	if err != nil {
		return nil, fmt.Errorf("storing capture: %w", err)
	}
	capture = stored[0]

	err = p.broker.Enqueue(ctx, queue.Ingestion, JobProcessCapture, capturePayload{CaptureId: capture.Id})
	if err != nil {
		p.failCapture(ctx, capture.Id, fmt.Sprintf("enqueueing processing job: %v", err))
		return nil, fmt.Errorf("enqueueing capture %d: %w", capture.Id, err)
	}

	p.logger.Info("capture submitted",
		"capture", capture.Id,
		"owner", capture.OwnerId,
		"kind", capture.Kind.String())
	return capture, nil
}

func (p *Pipeline) handleProcessCapture(ctx context.Context, payload []byte) error {
	var msg capturePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding capture payload: %w", err)
	}
	return p.processCapture(ctx, msg.CaptureId)
}

// processCapture runs the synchronous stages of ingestion: extraction,
// chunk persistence and downstream fan-out. Only unrecoverable content
// failures (extraction, chunking) mark the capture failed immediately;
// storage and enqueue errors propagate to the queue's retry policy, and
// the exhaustion hook flips the capture to failed once the budget is
// spent. The job is idempotent across redeliveries: an already-processed
// capture resumes at chunk persistence, existing chunks are not re-split.
func (p *Pipeline) processCapture(ctx context.Context, id core.ID) error {
	capture, err := p.captures.GetCapture(ctx, id)
	if err != nil {
		return fmt.Errorf("loading capture %d: %w", id, err)
	}

	// At-least-once delivery: a redelivered job for a finished capture
	// is a no-op.
	if capture.Status.Terminal() {
		p.logger.Debug("capture already terminal", "capture", id, "status", capture.Status.String())
		return nil
	}

	if capture.Status != core.StatusProcessed {
		err = p.captures.TransitionStatus(ctx, id, core.StatusQueued, core.StatusProcessingDownload)
		if err != nil && !errors.Is(err, storage.ErrStatusConflict) {
			return fmt.Errorf("transitioning capture %d: %w", id, err)
		}

		extraction, err := p.registry.Extract(ctx, capture.Kind, extract.Source{
			Data:    []byte(capture.RawText),
			Locator: capture.Source,
		})
		if err != nil {
			// No usable content will ever come out of this capture;
			// retrying cannot help.
			p.failCapture(ctx, id, fmt.Sprintf("extraction failed: %v", err))
			return fmt.Errorf("extracting capture %d: %w", id, err)
		}

		capture.RawText = extraction.Text
		if capture.Title == "" && extraction.Title != "" {
			capture.Title = extraction.Title
		}
		capture.Status = core.StatusProcessed
		if _, err := p.captures.UpdateCaptures(ctx, capture); err != nil {
			return fmt.Errorf("updating capture %d: %w", id, err)
		}
	}

	stored, err := p.chunks.GetChunksByCapture(ctx, id)
	if err != nil {
		return fmt.Errorf("loading chunks for capture %d: %w", id, err)
	}
	if len(stored) == 0 {
		pieces, err := chunk.Split(capture.RawText, p.strategy)
		if err != nil {
			p.failCapture(ctx, id, fmt.Sprintf("chunking failed: %v", err))
			return fmt.Errorf("chunking capture %d: %w", id, err)
		}

		chunks := make([]*core.Chunk, len(pieces))
		for i, piece := range pieces {
			chunks[i] = &core.Chunk{
				CaptureId:     capture.Id,
				OwnerId:       capture.OwnerId,
				Seq:           piece.Seq,
				Content:       piece.Content,
				TokenEstimate: piece.TokenEstimate,
				EmbedStatus:   core.EmbedPending,
			}
		}
		stored, err = p.chunks.AddChunks(ctx, chunks...)
		if err != nil {
			return fmt.Errorf("storing chunks for capture %d: %w", id, err)
		}
	}

	if capture.ContextId != 0 {
		ids := make([]core.ID, len(stored))
		for i, c := range stored {
			ids[i] = c.Id
		}
		if err := p.chunks.LinkContext(ctx, capture.ContextId, ids...); err != nil {
			return fmt.Errorf("linking context for capture %d: %w", id, err)
		}
	}

	// The child handlers skip work already done, so re-running the
	// fan-out after a partial failure is safe.
	for _, c := range stored {
		payload := chunkPayload{ChunkId: c.Id}
		if err := p.broker.Enqueue(ctx, queue.Embeddings, JobEmbedChunk, payload); err != nil {
			return fmt.Errorf("enqueueing embedding for chunk %d: %w", c.Id, err)
		}
		if err := p.broker.Enqueue(ctx, queue.TopicTagging, JobTagChunk, payload); err != nil {
			return fmt.Errorf("enqueueing tagging for chunk %d: %w", c.Id, err)
		}
	}

	if len(stored) > 0 {
		err := p.broker.Enqueue(ctx, queue.Summarization, JobSummarizeCapture, capturePayload{CaptureId: id})
		if err != nil {
			return fmt.Errorf("enqueueing summarization for capture %d: %w", id, err)
		}
	}

	// Fan-out without fan-in: the capture is completed once its children
	// are enqueued, bounding user-visible latency to extraction plus
	// chunking. The embed worker performs the same flip opportunistically,
	// so a conflict here only means it won the race.
	err = p.captures.TransitionStatus(ctx, id, core.StatusProcessed, core.StatusCompleted)
	if err != nil && !errors.Is(err, storage.ErrStatusConflict) {
		return fmt.Errorf("completing capture %d: %w", id, err)
	}

	p.logger.Info("capture processed", "capture", id, "chunks", len(stored))
	return nil
}

// onIngestionExhausted flips the owning capture to failed after a
// processing job has exhausted its retries, so the failure is visible
// without log access.
func (p *Pipeline) onIngestionExhausted(ctx context.Context, job queue.Job, jobErr error) {
	var msg capturePayload
	if err := json.Unmarshal(job.Payload, &msg); err != nil || msg.CaptureId == 0 {
		return
	}

	capture, err := p.captures.GetCapture(ctx, msg.CaptureId)
	if err != nil || capture.Status.Terminal() {
		return
	}
	p.failCapture(ctx, msg.CaptureId, fmt.Sprintf("processing failed: %v", jobErr))
}

func (p *Pipeline) failCapture(ctx context.Context, id core.ID, reason string) {
	if err := p.captures.MarkFailed(ctx, id, reason); err != nil {
		p.logger.Error("marking capture failed", "capture", id, "err", err)
	}
}

// enqueueDedup triggers a per-owner dedup run. The trigger is redundant
// across sibling chunks, so a failed enqueue is only logged.
func (p *Pipeline) enqueueDedup(ctx context.Context, owner core.ID) {
	err := p.broker.Enqueue(ctx, queue.Dedup, dedup.JobDedupOwner, dedup.OwnerPayload{OwnerId: owner})
	if err != nil {
		p.logger.Warn("enqueueing dedup run", "owner", owner, "err", err)
	}
}
