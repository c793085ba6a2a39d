package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/noctua-systems/noctua/ai"
	"github.com/noctua-systems/noctua/core"
	"github.com/noctua-systems/noctua/storage"
)

// handleEmbedChunk computes and persists a chunk's embedding vector, then
// opportunistically completes the parent capture and triggers a per-owner
// dedup run. The handler is idempotent under redelivery.
func (p *Pipeline) handleEmbedChunk(ctx context.Context, payload []byte) error {
	var msg chunkPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding chunk payload: %w", err)
	}

	chunk, err := p.chunks.GetChunk(ctx, msg.ChunkId)
	if err != nil {
		return fmt.Errorf("loading chunk %d: %w", msg.ChunkId, err)
	}

	if chunk.EmbedStatus == core.EmbedCompleted && len(chunk.Vector) > 0 {
		p.logger.Debug("chunk already embedded", "chunk", chunk.Id)
		return nil
	}

	vector, err := p.provider.Embedder().EmbedText(ctx, chunk.Content)
	if err != nil {
		return fmt.Errorf("embedding chunk %d: %w", chunk.Id, err)
	}

	// Unit-length vectors keep dot-product similarity equal to cosine,
	// whatever scale the model emits.
	chunk.Vector = ai.NormalizeVector(vector)
	chunk.EmbedStatus = core.EmbedCompleted
	if _, err := p.chunks.UpdateChunks(ctx, chunk); err != nil {
		return fmt.Errorf("persisting embedding for chunk %d: %w", chunk.Id, err)
	}

	// Flip the parent to completed only if it is still in the processed
	// state. A conflict means the pipeline already completed it or a
	// later stage failed it; neither is clobbered.
	err = p.captures.TransitionStatus(ctx, chunk.CaptureId, core.StatusProcessed, core.StatusCompleted)
	if err != nil && !errors.Is(err, storage.ErrStatusConflict) && !errors.Is(err, storage.ErrNotFound) {
		p.logger.Warn("completing capture after embedding", "capture", chunk.CaptureId, "err", err)
	}

	p.enqueueDedup(ctx, chunk.OwnerId)

	return nil
}
