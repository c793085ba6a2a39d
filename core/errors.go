package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidCapture indicates a Capture failed validation.
	ErrInvalidCapture = errors.New("invalid capture")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidConcept indicates a Concept failed validation.
	ErrInvalidConcept = errors.New("invalid concept")

	// ErrInvalidRelation indicates a ConceptRelation failed validation.
	ErrInvalidRelation = errors.New("invalid concept relation")

	// ErrInvalidRecallItem indicates a RecallItem failed validation.
	ErrInvalidRecallItem = errors.New("invalid recall item")

	// ErrEmptyContent indicates a content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrMissingOwner indicates the OwnerId field is zero.
	ErrMissingOwner = errors.New("owner is required")

	// ErrInvalidContentKind indicates an unrecognized ContentKind value.
	ErrInvalidContentKind = errors.New("invalid content kind")

	// ErrInvalidStatus indicates an invalid lifecycle status value.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrSelfRelation indicates a relation whose source equals its target.
	ErrSelfRelation = errors.New("relation source and target must differ")

	// ErrEmptyConceptName indicates the concept Name field is empty.
	ErrEmptyConceptName = errors.New("concept name cannot be empty")
)
