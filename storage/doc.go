// Package storage provides the storage abstraction layer for noctua.
//
// This package defines repository interfaces that decouple storage
// implementation from business logic. It allows for different storage
// backends (BadgerDB, in-memory, etc.) to be used interchangeably.
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - CaptureRepository: captures and their status transitions
//   - ChunkRepository: chunks, vector search, concept/context indexes
//   - CanonicalRepository: canonical chunks and the chunk link map
//   - ConceptRepository: knowledge-graph concepts and relations
//   - RecallRepository: recall items and spaced-repetition state
//
// Public constructors in backend packages return these interfaces so
// consumers never couple to BadgerDB specifics; internal constructors may
// return concrete types.
//
// # Usage
//
// Create repositories against a shared backend:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	chunks, err := badger.NewChunkRepository(backend)
//
// Use in tests with in-memory storage:
//
//	backend, err := badger.OpenBackend("", true)
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context. Pass context.Background()
// for operations without specific timeout requirements.
package storage
