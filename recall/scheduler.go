// Package recall implements spaced-repetition memory scheduling: explicit
// flashcard activation, predictive suggestion from recent chunks, due-item
// scans and the review-driven strength update.
package recall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/noctua-systems/noctua/ai"
	"github.com/noctua-systems/noctua/core"
	"github.com/noctua-systems/noctua/queue"
	"github.com/noctua-systems/noctua/storage"
)

// Job names on the recall queue.
const (
	JobActivate = "activate"
	JobSuggest  = "suggest"
)

// ActivatePayload is the payload of an explicit activation job.
type ActivatePayload struct {
	OwnerId core.ID `json:"owner_id"`
	Content string  `json:"content"`
	ChunkId core.ID `json:"chunk_id,omitempty"`
}

// SuggestPayload is the payload of a predictive suggestion scan.
type SuggestPayload struct {
	OwnerId core.ID `json:"owner_id"`
}

// Spaced-repetition tuning. Quality ratings run 0-5; anything below
// forgotQuality resets the interval.
const (
	initialStrength     = 1.0
	initialIntervalDays = 1.0
	forgotQuality       = 3
	minStrength         = 0.3
	maxStrength         = 3.0

	// groundingThreshold is deliberately high: grounding context must be
	// about the question, not merely related.
	groundingThreshold = 0.75
	groundingLimit     = 3

	// dueBatchSize caps one due scan, the supply side of a review queue.
	dueBatchSize = 5

	// suggestWindow is how far back the predictive scan looks.
	suggestWindow = 24 * time.Hour

	// maxFacts caps how many suggestions one scan may produce.
	maxFacts = 3

	// suggestInputLimit bounds the recent text sent to the LLM.
	suggestInputLimit = 6000
)

const questionSystemPrompt = `You write flashcards for spaced repetition.
Given source text, return ONLY a JSON object of the form:
{"question": "...", "answer": "..."}
The question must be answerable from the text alone; the answer must be
short and factual.`

const suggestSystemPrompt = `You pick facts worth remembering long-term.
Given a day of someone's captured notes, return ONLY a JSON object of the
form: {"facts": ["...", "..."]}
List 1 to 3 concrete, durable facts. Ignore trivial chatter, logistics
and anything only relevant today. Return {"facts": []} if nothing
qualifies.`

var (
	// ErrRecallRepositoryRequired is returned when a recall repository is not provided.
	ErrRecallRepositoryRequired = errors.New("recall repository required")

	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrEmptyContent is returned when an activation has no source text.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidQuality is returned for a review rating outside 0-5.
	ErrInvalidQuality = errors.New("quality must be between 0 and 5")

	// ErrNotActive is returned when reviewing an item that has no
	// scheduling state.
	ErrNotActive = errors.New("recall item is not active")
)

type questionResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type factsResponse struct {
	Facts []string `json:"facts"`
}

// Scheduler owns the recall lifecycle for all owners.
type Scheduler struct {
	recalls  storage.RecallRepository
	chunks   storage.ChunkRepository
	provider ai.Provider
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithClock overrides the time source used for scheduling.
// Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) error {
		if now != nil {
			s.now = now
		}
		return nil
	}
}

// NewScheduler creates a recall scheduler and registers its handlers on
// the broker's recall queue. A nil broker skips registration.
func NewScheduler(
	recalls storage.RecallRepository,
	chunks storage.ChunkRepository,
	broker *queue.Broker,
	provider ai.Provider,
	opts ...Option,
) (*Scheduler, error) {
	if recalls == nil {
		return nil, ErrRecallRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Scheduler{
		recalls:  recalls,
		chunks:   chunks,
		provider: provider,
		now:      time.Now,
		logger:   slog.Default().With("component", "recall"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if broker != nil {
		broker.Handle(queue.Recall, JobActivate, s.handleActivate)
		broker.Handle(queue.Recall, JobSuggest, s.handleSuggest)
	}

	return s, nil
}

func (s *Scheduler) handleActivate(ctx context.Context, payload []byte) error {
	var msg ActivatePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding activate payload: %w", err)
	}
	_, err := s.Activate(ctx, msg.OwnerId, msg.Content, msg.ChunkId)
	return err
}

func (s *Scheduler) handleSuggest(ctx context.Context, payload []byte) error {
	var msg SuggestPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding suggest payload: %w", err)
	}
	_, err := s.Suggest(ctx, msg.OwnerId)
	return err
}

// Activate turns content the user marked as a recall target into an
// active flashcard: question/answer generation, grounding-context lookup,
// and initial scheduling state. Question generation is best-effort; on
// failure the raw content becomes the question.
func (s *Scheduler) Activate(ctx context.Context, owner core.ID, content string, chunkID core.ID) (*core.RecallItem, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	question, answer := s.generateCard(ctx, content)

	item := &core.RecallItem{
		OwnerId:    owner,
		Question:   question,
		Answer:     answer,
		SourceText: content,
		Status:     core.RecallActive,
		ChunkId:    chunkID,
		ContextIds: s.grounding(ctx, owner, question),
	}
	stored, err := s.recalls.AddRecallItems(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("storing recall item: %w", err)
	}
	item = stored[0]

	now := s.now().UTC()
	strength := &core.MemoryStrength{
		ItemId:       item.Id,
		OwnerId:      owner,
		Strength:     initialStrength,
		IntervalDays: initialIntervalDays,
		NextReviewAt: now.Add(24 * time.Hour),
	}
	if err := s.recalls.PutMemoryStrength(ctx, strength); err != nil {
		return nil, fmt.Errorf("storing memory strength for item %d: %w", item.Id, err)
	}

	s.logger.Info("recall item activated", "owner", owner, "item", item.Id)
	return item, nil
}

// generateCard asks the LLM for a question/answer pair, falling back to
// the raw content as the question when generation or parsing fails.
func (s *Scheduler) generateCard(ctx context.Context, content string) (question, answer string) {
	response, err := s.provider.Completer().Complete(ctx, questionSystemPrompt, content, true)
	if err != nil {
		s.logger.Warn("card generation failed", "err", err)
		return content, ""
	}

	var card questionResponse
	if err := json.Unmarshal([]byte(ai.CleanJSONResponse(response)), &card); err != nil || strings.TrimSpace(card.Question) == "" {
		s.logger.Warn("card response unparseable", "err", err)
		return content, ""
	}
	return strings.TrimSpace(card.Question), strings.TrimSpace(card.Answer)
}

// grounding finds up to three chunks strongly related to the question.
// Grounding is enrichment; failures leave the item without context.
func (s *Scheduler) grounding(ctx context.Context, owner core.ID, question string) []core.ID {
	vector, err := s.provider.Embedder().EmbedText(ctx, question)
	if err != nil {
		s.logger.Warn("embedding recall question", "err", err)
		return nil
	}

	matches, err := s.chunks.FindSimilar(ctx, owner, ai.NormalizeVector(vector), groundingThreshold, groundingLimit)
	if err != nil {
		s.logger.Warn("grounding search", "err", err)
		return nil
	}

	ids := make([]core.ID, len(matches))
	for i, match := range matches {
		ids[i] = match.Chunk.Id
	}
	return ids
}

// Suggest scans the owner's last day of chunks and creates suggested
// recall items for facts the LLM judges worth remembering. Suggested
// items are not reviewable until promoted.
func (s *Scheduler) Suggest(ctx context.Context, owner core.ID) ([]*core.RecallItem, error) {
	now := s.now().UTC()
	chunks, err := s.chunks.GetChunksByDateRange(ctx, owner, now.Add(-suggestWindow), now, 0)
	if err != nil {
		return nil, fmt.Errorf("loading recent chunks for owner %d: %w", owner, err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	var input strings.Builder
	for _, chunk := range chunks {
		if input.Len()+len(chunk.Content) > suggestInputLimit {
			break
		}
		input.WriteString(chunk.Content)
		input.WriteString("\n\n")
	}

	response, err := s.provider.Completer().Complete(ctx, suggestSystemPrompt, input.String(), true)
	if err != nil {
		return nil, fmt.Errorf("extracting facts for owner %d: %w", owner, err)
	}

	var facts factsResponse
	if err := json.Unmarshal([]byte(ai.CleanJSONResponse(response)), &facts); err != nil {
		return nil, fmt.Errorf("parsing facts response: %w", err)
	}

	items := make([]*core.RecallItem, 0, maxFacts)
	for _, fact := range facts.Facts {
		fact = strings.TrimSpace(fact)
		if fact == "" {
			continue
		}
		items = append(items, &core.RecallItem{
			OwnerId:    owner,
			Question:   fact,
			SourceText: fact,
			Status:     core.RecallSuggested,
		})
		if len(items) == maxFacts {
			break
		}
	}
	if len(items) == 0 {
		return nil, nil
	}

	stored, err := s.recalls.AddRecallItems(ctx, items...)
	if err != nil {
		return nil, fmt.Errorf("storing suggested items: %w", err)
	}

	s.logger.Info("recall items suggested", "owner", owner, "count", len(stored))
	return stored, nil
}

// Promote moves a suggested item to active and gives it initial
// scheduling state, the external promotion path for suggestions.
func (s *Scheduler) Promote(ctx context.Context, itemID core.ID) (*core.RecallItem, error) {
	item, err := s.recalls.GetRecallItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("loading recall item %d: %w", itemID, err)
	}
	if item.Status == core.RecallActive {
		return item, nil
	}

	item.Status = core.RecallActive
	updated, err := s.recalls.UpdateRecallItems(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("updating recall item %d: %w", itemID, err)
	}
	item = updated[0]

	now := s.now().UTC()
	strength := &core.MemoryStrength{
		ItemId:       item.Id,
		OwnerId:      item.OwnerId,
		Strength:     initialStrength,
		IntervalDays: initialIntervalDays,
		NextReviewAt: now.Add(24 * time.Hour),
	}
	if err := s.recalls.PutMemoryStrength(ctx, strength); err != nil {
		return nil, fmt.Errorf("storing memory strength for item %d: %w", itemID, err)
	}
	return item, nil
}

// DueItems returns the owner's recall items due for review, soonest
// first, capped to a small batch. The scan mutates nothing.
func (s *Scheduler) DueItems(ctx context.Context, owner core.ID) ([]*core.RecallItem, error) {
	due, err := s.recalls.GetDueStrengths(ctx, owner, s.now().UTC(), dueBatchSize)
	if err != nil {
		return nil, fmt.Errorf("scanning due strengths for owner %d: %w", owner, err)
	}

	items := make([]*core.RecallItem, 0, len(due))
	for _, strength := range due {
		item, err := s.recalls.GetRecallItem(ctx, strength.ItemId)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("loading due item %d: %w", strength.ItemId, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// SubmitReview recomputes an item's scheduling state from a 0-5 quality
// rating, SM-2 style. A rating below 3 counts as forgotten: the interval
// resets to one day and strength drops. A passing rating grows strength
// slightly and multiplies the interval by strength times a quality-scaled
// factor, so easy recalls space out much faster than hard ones.
func (s *Scheduler) SubmitReview(ctx context.Context, itemID core.ID, quality int) (*core.MemoryStrength, error) {
	if quality < 0 || quality > 5 {
		return nil, ErrInvalidQuality
	}

	strength, err := s.recalls.GetMemoryStrength(ctx, itemID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: item %d", ErrNotActive, itemID)
		}
		return nil, fmt.Errorf("loading memory strength for item %d: %w", itemID, err)
	}

	if quality < forgotQuality {
		strength.IntervalDays = initialIntervalDays
		strength.Strength = math.Max(minStrength, strength.Strength-0.3)
	} else {
		strength.Strength = math.Min(maxStrength, strength.Strength+0.05*float64(quality-2))
		factor := 1.2 + 0.3*float64(quality-3)
		strength.IntervalDays = math.Ceil(strength.IntervalDays * strength.Strength * factor)
	}
	strength.ReviewCount++
	strength.NextReviewAt = s.now().UTC().Add(time.Duration(strength.IntervalDays * 24 * float64(time.Hour)))

	if err := s.recalls.PutMemoryStrength(ctx, strength); err != nil {
		return nil, fmt.Errorf("storing memory strength for item %d: %w", itemID, err)
	}
	return strength, nil
}
