package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer runs chat completions against an LLM.
// It is the single contract used by canonical-text synthesis, knowledge-graph
// extraction, topic tagging, summarization and recall question generation.
// The model is an unreliable external dependency: callers requiring
// structured output must validate and retry with a bound.
// Implementations must be thread-safe for concurrent use.
type Completer interface {
	// Complete sends a system prompt plus user content and returns the raw
	// model response. When jsonMode is true the model is instructed to emit
	// JSON only; callers still have to parse and validate the result.
	Complete(ctx context.Context, systemPrompt, userContent string, jsonMode bool) (string, error)
}

// UsageRecorder receives usage accounting from AI calls.
// Recording is best-effort: implementations must never block a call path,
// and callers ignore recording errors.
type UsageRecorder interface {
	// RecordUsage records one accounting event.
	RecordUsage(ctx context.Context, u Usage) error
}

// Usage is one accounting event from an embedding or completion call.
type Usage struct {
	// Operation names the call site, e.g. "embed" or "complete".
	Operation string

	// Model is the model identifier used for the call.
	Model string

	// TokensEstimated is the estimated token count of the input.
	TokensEstimated int

	// CostEstimate is the estimated cost in USD. Zero when unknown.
	CostEstimate float64
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and Completer instances,
// ensuring they share configuration and resources appropriately.
type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Completer returns the chat completion service.
	// The returned Completer is safe for concurrent use.
	Completer() Completer

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
