// Package extract defines the content extraction contract used by the
// ingestion pipeline. Each core.ContentKind is bound to exactly one
// Extractor through a Registry, so adding a content kind is a single
// registration point rather than string comparisons scattered through
// the pipeline.
package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/noctua-systems/noctua/core"
)

var (
	// ErrNoExtractor indicates no extractor is registered for a content kind.
	ErrNoExtractor = errors.New("no extractor registered for content kind")

	// ErrEmptyExtraction indicates an extractor returned no text.
	// The pipeline treats this as fatal for the capture.
	ErrEmptyExtraction = errors.New("extraction produced no text")
)

// Source is the raw input handed to an extractor: either inline bytes
// or a locator (file key or URL) to fetch from.
type Source struct {
	Data    []byte
	Locator string
}

// Extraction is the result of a successful extraction.
type Extraction struct {
	Text  string
	Title string // optional; empty when the source carries no title
}

// Extractor turns raw captured content into text.
// Implementations must return non-empty text on success and an error on
// unrecoverable failure. PDF/OCR/transcription codecs are external
// collaborators implementing this same contract.
type Extractor interface {
	Extract(ctx context.Context, src Source) (Extraction, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, src Source) (Extraction, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, src Source) (Extraction, error) {
	return f(ctx, src)
}

// Registry maps content kinds to extractors.
// The zero value is unusable; use NewRegistry, which pre-registers the
// built-in text and URL extractors.
type Registry struct {
	extractors map[core.ContentKind]Extractor
}

// NewRegistry creates a registry with the built-in extractors registered.
func NewRegistry() *Registry {
	r := &Registry{
		extractors: make(map[core.ContentKind]Extractor),
	}
	r.Register(core.KindText, ExtractorFunc(extractText))
	r.Register(core.KindURL, NewURLExtractor(nil))
	return r
}

// Register binds an extractor to a content kind, replacing any previous
// binding. External collaborators (PDF, OCR, transcription) register here.
func (r *Registry) Register(kind core.ContentKind, extractor Extractor) {
	r.extractors[kind] = extractor
}

// Extract resolves the extractor for the kind and runs it.
// An unresolvable kind or an empty extraction is an error.
func (r *Registry) Extract(ctx context.Context, kind core.ContentKind, src Source) (Extraction, error) {
	extractor, ok := r.extractors[kind]
	if !ok {
		return Extraction{}, fmt.Errorf("%w: %s", ErrNoExtractor, kind)
	}

	result, err := extractor.Extract(ctx, src)
	if err != nil {
		return Extraction{}, err
	}
	if result.Text == "" {
		return Extraction{}, fmt.Errorf("%w: kind %s", ErrEmptyExtraction, kind)
	}
	return result, nil
}
