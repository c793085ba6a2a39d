package ingest

import "errors"

var (
	// ErrCaptureRepositoryRequired is returned when a capture repository is not provided.
	ErrCaptureRepositoryRequired = errors.New("capture repository required")

	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrRegistryRequired is returned when an extractor registry is not provided.
	ErrRegistryRequired = errors.New("extractor registry required")

	// ErrBrokerRequired is returned when a queue broker is not provided.
	ErrBrokerRequired = errors.New("queue broker required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrOwnerRequired is returned when a submission has no owner.
	ErrOwnerRequired = errors.New("owner required")

	// ErrEmptySubmission is returned when a submission carries neither
	// inline content nor a source locator.
	ErrEmptySubmission = errors.New("submission has no content or source")
)
