package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const summarySystemPrompt = `You summarize captured content for a personal knowledge base.
Write a concise summary of 2-4 sentences capturing the key facts and
conclusions. Return only the summary text.`

// summaryInputLimit bounds how much raw text is sent for summarization.
const summaryInputLimit = 6000

// handleSummarize generates and persists a short summary for a capture.
// Summarization is best-effort enrichment: a model failure drops the
// summary and the capture is otherwise unaffected.
func (p *Pipeline) handleSummarize(ctx context.Context, payload []byte) error {
	var msg capturePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding capture payload: %w", err)
	}

	capture, err := p.captures.GetCapture(ctx, msg.CaptureId)
	if err != nil {
		return fmt.Errorf("loading capture %d: %w", msg.CaptureId, err)
	}

	if capture.Summary != "" {
		return nil
	}

	input := capture.RawText
	if len(input) > summaryInputLimit {
		input = input[:summaryInputLimit]
	}

	response, err := p.provider.Completer().Complete(ctx, summarySystemPrompt, input, false)
	if err != nil {
		p.logger.Warn("summarization failed", "capture", capture.Id, "err", err)
		return nil
	}

	summary := strings.TrimSpace(response)
	if summary == "" {
		return nil
	}

	capture.Summary = summary
	if _, err := p.captures.UpdateCaptures(ctx, capture); err != nil {
		return fmt.Errorf("persisting summary for capture %d: %w", capture.Id, err)
	}

	return nil
}
