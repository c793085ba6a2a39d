// Package ai defines the abstract interfaces for AI services used by the
// ingestion and consolidation pipeline: text embedding, chat completion and
// usage accounting. Concrete implementations live in subpackages (openai for
// OpenAI-compatible endpoints, mock for tests).
package ai
