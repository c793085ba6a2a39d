// Package graph extracts knowledge-graph concepts and relations from
// canonicalized text. Concepts are deduplicated per (owner, name);
// relations are directed, typed and unique per endpoint pair.
package graph

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
	"github.com/noctua-systems/noctua/queue"
	"github.com/noctua-systems/noctua/retry"
	"github.com/noctua-systems/noctua/storage"
)

// JobExtract is the job name for a graph extraction run.
const JobExtract = "extract"

// ExtractPayload is the payload of a graph extraction job. CanonicalId
// is the preferred source; ChunkId is accepted as a fallback for chunks
// that have no canonical representative yet.
type ExtractPayload struct {
	CanonicalId core.ID `json:"canonical_id,omitempty"`
	ChunkId     core.ID `json:"chunk_id,omitempty"`
	OwnerId     core.ID `json:"owner_id"`
}

const (
	// maxConcepts caps how many concepts one extraction may produce.
	maxConcepts = 7

	extractAttempts  = 3
	extractBaseDelay = time.Second
)

const extractSystemPrompt = `You extract knowledge-graph data from text.
Return ONLY a JSON object of the form:
{"concepts": [{"name": "...", "description": "...", "category": "..."}],
 "relations": [{"source": "...", "target": "...", "relation": "..."}]}
- concepts: at most 7 entries; name is a short noun phrase, category one
  of person, place, organization, topic, event, artifact, other.
- relations: directed edges between concept names from the concepts list;
  relation is a short verb phrase like "works at" or "part of".`

var (
	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrCanonicalRepositoryRequired is returned when a canonical repository is not provided.
	ErrCanonicalRepositoryRequired = errors.New("canonical repository required")

	// ErrConceptRepositoryRequired is returned when a concept repository is not provided.
	ErrConceptRepositoryRequired = errors.New("concept repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrNoSource is returned when a payload names neither a canonical
	// chunk nor a chunk.
	ErrNoSource = errors.New("extraction payload has no source")

	errInvalidExtraction = errors.New("invalid extraction response")
)

type conceptEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type relationEntry struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}

type extractionResponse struct {
	Concepts  []conceptEntry  `json:"concepts"`
	Relations []relationEntry `json:"relations"`
}

// Extractor turns canonical text into concept and relation rows.
type Extractor struct {
	chunks     storage.ChunkRepository
	canonicals storage.CanonicalRepository
	concepts   storage.ConceptRepository
	provider   ai.Provider
	logger     *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewExtractor creates a graph extractor and registers its handler on the
// broker's knowledge-graph queue. A nil broker skips registration, for
// callers that drive extraction directly.
func NewExtractor(
	chunks storage.ChunkRepository,
	canonicals storage.CanonicalRepository,
	concepts storage.ConceptRepository,
	broker *queue.Broker,
	provider ai.Provider,
	opts ...Option,
) (*Extractor, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if canonicals == nil {
		return nil, ErrCanonicalRepositoryRequired
	}
	if concepts == nil {
		return nil, ErrConceptRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	e := &Extractor{
		chunks:     chunks,
		canonicals: canonicals,
		concepts:   concepts,
		provider:   provider,
		logger:     slog.Default().With("component", "graph"),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if broker != nil {
		broker.Handle(queue.KnowledgeGraph, JobExtract, e.handleExtract)
	}

	return e, nil
}

func (e *Extractor) handleExtract(ctx context.Context, payload []byte) error {
	var msg ExtractPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding graph payload: %w", err)
	}
	return e.Extract(ctx, msg)
}

// Extract resolves the source text, asks the LLM for concepts and
// relations, and persists the graph rows. Retries on malformed model
// output are bounded; exhausting them abandons this extraction without
// surfacing a job failure, since graph data is enrichment.
func (e *Extractor) Extract(ctx context.Context, payload ExtractPayload) error {
	text, chunkIDs, err := e.resolveSource(ctx, payload)
	if err != nil {
		return err
	}

	response, err := e.complete(ctx, text)
	if err != nil {
		e.logger.Warn("graph extraction abandoned",
			"canonical", payload.CanonicalId,
			"chunk", payload.ChunkId,
			"err", err)
		return nil
	}

	conceptIDs := make(map[string]core.ID, len(response.Concepts))
	for _, entry := range response.Concepts {
		concept := &core.Concept{
			OwnerId:     payload.OwnerId,
			Name:        entry.Name,
			Category:    entry.Category,
			Description: entry.Description,
		}
		stored, err := e.concepts.UpsertConcept(ctx, concept)
		if err != nil {
			return fmt.Errorf("upserting concept %q: %w", entry.Name, err)
		}
		conceptIDs[entry.Name] = stored.Id

		for _, chunkID := range chunkIDs {
			if err := e.chunks.LinkConcept(ctx, stored.Id, chunkID); err != nil {
				return fmt.Errorf("linking concept %q to chunk %d: %w", entry.Name, chunkID, err)
			}
		}
	}

	for _, entry := range response.Relations {
		sourceID, ok := conceptIDs[entry.Source]
		if !ok {
			continue
		}
		targetID, ok := conceptIDs[entry.Target]
		if !ok {
			continue
		}
		if sourceID == targetID {
			continue
		}

		relation := &core.ConceptRelation{
			OwnerId:  payload.OwnerId,
			SourceId: sourceID,
			TargetId: targetID,
			Relation: entry.Relation,
		}
		if _, err := e.concepts.UpsertRelation(ctx, relation); err != nil {
			return fmt.Errorf("upserting relation %q -> %q: %w", entry.Source, entry.Target, err)
		}
	}

	e.logger.Info("graph extracted",
		"owner", payload.OwnerId,
		"concepts", len(response.Concepts),
		"relations", len(response.Relations))
	return nil
}

// resolveSource returns the text to extract from plus the chunk IDs that
// concept links should attach to. Canonical text is preferred; a chunk
// without a canonical row falls back to its raw content.
func (e *Extractor) resolveSource(ctx context.Context, payload ExtractPayload) (string, []core.ID, error) {
	if payload.CanonicalId != 0 {
		canonical, err := e.canonicals.GetCanonicalChunk(ctx, payload.CanonicalId)
		if err != nil {
			return "", nil, fmt.Errorf("loading canonical chunk %d: %w", payload.CanonicalId, err)
		}

		links, err := e.canonicals.GetLinksByCanonical(ctx, payload.CanonicalId)
		if err != nil {
			return "", nil, fmt.Errorf("loading links for canonical %d: %w", payload.CanonicalId, err)
		}
		chunkIDs := make([]core.ID, len(links))
		for i, link := range links {
			chunkIDs[i] = link.ChunkId
		}
		return canonical.Text, chunkIDs, nil
	}

	if payload.ChunkId == 0 {
		return "", nil, ErrNoSource
	}

	if link, err := e.canonicals.GetLinkForChunk(ctx, payload.ChunkId); err == nil {
		canonical, err := e.canonicals.GetCanonicalChunk(ctx, link.CanonicalId)
		if err == nil {
			return canonical.Text, []core.ID{payload.ChunkId}, nil
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", nil, fmt.Errorf("loading link for chunk %d: %w", payload.ChunkId, err)
	}

	chunk, err := e.chunks.GetChunk(ctx, payload.ChunkId)
	if err != nil {
		return "", nil, fmt.Errorf("loading chunk %d: %w", payload.ChunkId, err)
	}
	return chunk.Content, []core.ID{chunk.Id}, nil
}

// complete runs the extraction prompt with bounded retries on malformed
// output. The backoff grows linearly with the attempt number.
func (e *Extractor) complete(ctx context.Context, text string) (*extractionResponse, error) {
	var result *extractionResponse
	err := retry.Do(ctx, func() error {
		raw, err := e.provider.Completer().Complete(ctx, extractSystemPrompt, text, true)
		if err != nil {
			return err
		}

		parsed, err := parseExtraction(raw)
		if err != nil {
			return err
		}
		result = parsed
		return nil
	}, extractAttempts, extractBaseDelay)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// parseExtraction validates the model response against the expected
// schema: at least one concept, non-empty names, concept count capped.
func parseExtraction(raw string) (*extractionResponse, error) {
	var response extractionResponse
	if err := json.Unmarshal([]byte(ai.CleanJSONResponse(raw)), &response); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidExtraction, err)
	}

	if len(response.Concepts) == 0 {
		return nil, fmt.Errorf("%w: no concepts", errInvalidExtraction)
	}

	concepts := make([]conceptEntry, 0, maxConcepts)
	for _, entry := range response.Concepts {
		entry.Name = strings.TrimSpace(entry.Name)
		if entry.Name == "" {
			return nil, fmt.Errorf("%w: concept with empty name", errInvalidExtraction)
		}
		if entry.Category == "" {
			entry.Category = "other"
		}
		concepts = append(concepts, entry)
		if len(concepts) == maxConcepts {
			break
		}
	}
	response.Concepts = concepts

	relations := make([]relationEntry, 0, len(response.Relations))
	for _, entry := range response.Relations {
		entry.Source = strings.TrimSpace(entry.Source)
		entry.Target = strings.TrimSpace(entry.Target)
		entry.Relation = strings.TrimSpace(entry.Relation)
		if entry.Source == "" || entry.Target == "" || entry.Relation == "" {
			continue
		}
		relations = append(relations, entry)
	}
	response.Relations = relations

	return &response, nil
}
