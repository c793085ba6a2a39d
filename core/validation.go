package core

import "fmt"

// ValidateCapture validates a Capture according to domain rules.
//
// Validation rules:
//   - OwnerId must be set
//   - Kind must be a known ContentKind
//   - Status must be a known CaptureStatus
//
// NOT validated (populated by the pipeline):
//   - RawText, Title, Summary (empty until extraction/summarization)
//   - ErrorReason (only meaningful for failed captures)
//   - ID (0 is valid from database sequences)
func ValidateCapture(capture *Capture) error {
	if capture == nil {
		return fmt.Errorf("%w: capture is nil", ErrInvalidCapture)
	}
	if capture.OwnerId == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidCapture, ErrMissingOwner)
	}
	if capture.Kind < KindText || capture.Kind > KindDocument {
		return fmt.Errorf("%w: %w: value %d", ErrInvalidCapture, ErrInvalidContentKind, capture.Kind)
	}
	if capture.Status < StatusQueued || capture.Status > StatusFailed {
		return fmt.Errorf("%w: %w: value %d", ErrInvalidCapture, ErrInvalidStatus, capture.Status)
	}
	return nil
}

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Content must not be empty
//   - OwnerId and CaptureId must be set
//
// NOT validated (populated by workers):
//   - Vector, Topics, Importance (empty until workers run)
//   - ID (0 is valid from database sequences)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if chunk.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}
	if chunk.OwnerId == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrMissingOwner)
	}
	if chunk.CaptureId == 0 {
		return fmt.Errorf("%w: capture reference is required", ErrInvalidChunk)
	}
	return nil
}

// ValidateConcept validates a Concept according to domain rules.
func ValidateConcept(concept *Concept) error {
	if concept == nil {
		return fmt.Errorf("%w: concept is nil", ErrInvalidConcept)
	}
	if concept.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConcept, ErrEmptyConceptName)
	}
	if concept.OwnerId == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConcept, ErrMissingOwner)
	}
	return nil
}

// ValidateRelation validates a ConceptRelation according to domain rules.
//
// Validation rules:
//   - Source and target must both resolve to concept IDs
//   - Self-relations are rejected
//   - Relation type must not be empty
func ValidateRelation(relation *ConceptRelation) error {
	if relation == nil {
		return fmt.Errorf("%w: relation is nil", ErrInvalidRelation)
	}
	if relation.SourceId == 0 || relation.TargetId == 0 {
		return fmt.Errorf("%w: both endpoints are required", ErrInvalidRelation)
	}
	if relation.SourceId == relation.TargetId {
		return fmt.Errorf("%w: %w", ErrInvalidRelation, ErrSelfRelation)
	}
	if relation.Relation == "" {
		return fmt.Errorf("%w: relation type cannot be empty", ErrInvalidRelation)
	}
	return nil
}

// ValidateRecallItem validates a RecallItem according to domain rules.
func ValidateRecallItem(item *RecallItem) error {
	if item == nil {
		return fmt.Errorf("%w: item is nil", ErrInvalidRecallItem)
	}
	if item.OwnerId == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRecallItem, ErrMissingOwner)
	}
	if item.Question == "" && item.SourceText == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecallItem, ErrEmptyContent)
	}
	if item.Status != RecallSuggested && item.Status != RecallActive {
		return fmt.Errorf("%w: %w: value %d", ErrInvalidRecallItem, ErrInvalidStatus, item.Status)
	}
	return nil
}
