// Package retrieval runs owner-scoped semantic search over chunks and
// reranks candidates by a weighted blend of similarity, recency and
// importance. The scoring function is a stable contract consumed by chat
// prompt construction.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/noctua-systems/noctua/ai"
	"github.com/noctua-systems/noctua/core"
	"github.com/noctua-systems/noctua/storage"
)

const (
	// Reranking weights. These and the decay window are load-bearing
	// for result parity; do not tune casually.
	similarityWeight = 0.6
	recencyWeight    = 0.25
	importanceWeight = 0.15

	// recencyWindowDays is the linear decay window: a chunk this old or
	// older contributes zero recency.
	recencyWindowDays = 30

	// defaultImportance substitutes for chunks the tagger has not scored.
	defaultImportance = 5

	defaultMinSimilarity = 0.3
	defaultCandidates    = 50
	defaultLimit         = 10
)

var (
	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrCaptureRepositoryRequired is returned when a capture repository is not provided.
	ErrCaptureRepositoryRequired = errors.New("capture repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrEmptyQuery is returned when the search query is empty.
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// Options narrows a search.
type Options struct {
	// CaptureId restricts results to chunks of one capture. 0 means all.
	CaptureId core.ID

	// MinSimilarity is the candidate floor. 0 means the default.
	MinSimilarity float32

	// Limit caps the reranked result count. 0 means the default.
	Limit int
}

// Retriever embeds queries and returns reranked chunk results.
type Retriever struct {
	chunks   storage.ChunkRepository
	captures storage.CaptureRepository
	provider ai.Provider
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithClock overrides the time source used for recency scoring.
// Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Retriever) error {
		if now != nil {
			r.now = now
		}
		return nil
	}
}

// NewRetriever creates a retriever.
func NewRetriever(
	chunks storage.ChunkRepository,
	captures storage.CaptureRepository,
	provider ai.Provider,
	opts ...Option,
) (*Retriever, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if captures == nil {
		return nil, ErrCaptureRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	r := &Retriever{
		chunks:   chunks,
		captures: captures,
		provider: provider,
		now:      time.Now,
		logger:   slog.Default().With("component", "retrieval"),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Search embeds the query, gathers similar chunks for the owner and
// returns them reranked, best first.
func (r *Retriever) Search(ctx context.Context, owner core.ID, query string, opts Options) ([]*core.RankedResult, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}

	minSimilarity := opts.MinSimilarity
	if minSimilarity == 0 {
		minSimilarity = defaultMinSimilarity
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	vector, err := r.provider.Embedder().EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := r.chunks.FindSimilar(ctx, owner, ai.NormalizeVector(vector), minSimilarity, defaultCandidates)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	now := r.now().UTC()
	ranked := make([]*core.RankedResult, 0, len(matches))
	for _, match := range matches {
		if opts.CaptureId != 0 && match.Chunk.CaptureId != opts.CaptureId {
			continue
		}
		ranked = append(ranked, &core.RankedResult{
			Chunk:      match.Chunk,
			Similarity: match.Score,
			Score:      Score(match.Score, now.Sub(match.Chunk.CreatedAt), match.Chunk.Importance),
		})
	}

	slices.SortFunc(ranked, func(a, b *core.RankedResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// GroupByKind partitions results by their capture's content kind for
// presentation. Unknown kinds fall back to the "text" group.
func (r *Retriever) GroupByKind(ctx context.Context, results []*core.RankedResult) (map[string][]*core.RankedResult, error) {
	captureIDs := make([]core.ID, 0, len(results))
	seen := make(map[core.ID]bool)
	for _, result := range results {
		if !seen[result.Chunk.CaptureId] {
			seen[result.Chunk.CaptureId] = true
			captureIDs = append(captureIDs, result.Chunk.CaptureId)
		}
	}

	captures, err := r.captures.GetCaptures(ctx, captureIDs...)
	if err != nil {
		return nil, fmt.Errorf("loading captures: %w", err)
	}
	kinds := make(map[core.ID]core.ContentKind, len(captures))
	for _, capture := range captures {
		kinds[capture.Id] = capture.Kind
	}

	groups := make(map[string][]*core.RankedResult)
	for _, result := range results {
		group := groupName(kinds[result.Chunk.CaptureId])
		groups[group] = append(groups[group], result)
	}
	return groups, nil
}

// groupName maps a content kind to its presentation group.
func groupName(kind core.ContentKind) string {
	switch kind {
	case core.KindPDF:
		return "pdf"
	case core.KindURL:
		return "url"
	case core.KindImage:
		return "image"
	case core.KindText:
		return "text"
	default:
		return "text"
	}
}

// Score blends similarity, recency and importance into one ranking value:
//
//	score = 0.6*similarity + 0.25*recency + 0.15*importance
//
// where recency decays linearly to zero over 30 days and an unset
// importance counts as 5 of 10.
func Score(similarity float32, age time.Duration, importance int) float64 {
	daysOld := age.Hours() / 24
	recency := 1 - daysOld/recencyWindowDays
	if recency < 0 {
		recency = 0
	}

	if importance == 0 {
		importance = defaultImportance
	}

	return similarityWeight*float64(similarity) +
		recencyWeight*recency +
		importanceWeight*float64(importance)/10
}
