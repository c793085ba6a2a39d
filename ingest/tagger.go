package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noctua-systems/noctua/ai"
)

const taggingSystemPrompt = `You label text segments for a personal knowledge base.
Return ONLY a JSON object of the form:
{"topics": ["topic1", "topic2"], "importance": 5}
- topics: 1 to 5 short lowercase topic labels.
- importance: integer 1-10 rating how worth remembering the text is.`

const maxTopics = 5

type tagResponse struct {
	Topics     []string `json:"topics"`
	Importance int      `json:"importance"`
}

// handleTagChunk asks the LLM for topic labels and an importance score.
// Tagging is best-effort enrichment: a model or parse failure drops the
// tags and the chunk stays usable for retrieval.
func (p *Pipeline) handleTagChunk(ctx context.Context, payload []byte) error {
	var msg chunkPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding chunk payload: %w", err)
	}

	chunk, err := p.chunks.GetChunk(ctx, msg.ChunkId)
	if err != nil {
		return fmt.Errorf("loading chunk %d: %w", msg.ChunkId, err)
	}

	if len(chunk.Topics) > 0 && chunk.Importance != 0 {
		return nil
	}

	response, err := p.provider.Completer().Complete(ctx, taggingSystemPrompt, chunk.Content, true)
	if err != nil {
		p.logger.Warn("tagging completion failed", "chunk", chunk.Id, "err", err)
		return nil
	}

	var tags tagResponse
	if err := json.Unmarshal([]byte(ai.CleanJSONResponse(response)), &tags); err != nil {
		p.logger.Warn("tagging response unparseable", "chunk", chunk.Id, "err", err)
		return nil
	}

	topics := make([]string, 0, maxTopics)
	for _, topic := range tags.Topics {
		topic = strings.ToLower(strings.TrimSpace(topic))
		if topic == "" {
			continue
		}
		topics = append(topics, topic)
		if len(topics) == maxTopics {
			break
		}
	}
	if len(topics) == 0 {
		p.logger.Warn("tagging produced no topics", "chunk", chunk.Id)
		return nil
	}

	importance := tags.Importance
	if importance < 1 {
		importance = 1
	} else if importance > 10 {
		importance = 10
	}

	chunk.Topics = topics
	chunk.Importance = importance
	if _, err := p.chunks.UpdateChunks(ctx, chunk); err != nil {
		return fmt.Errorf("persisting tags for chunk %d: %w", chunk.Id, err)
	}

	return nil
}
