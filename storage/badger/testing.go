package badger

import (
	"errors"

	"github.com/noctua-systems/noctua/storage"
)

// Repositories bundles all repositories sharing one backend.
type Repositories struct {
	Captures   storage.CaptureRepository
	Chunks     storage.ChunkRepository
	Canonicals storage.CanonicalRepository
	Concepts   storage.ConceptRepository
	Recall     storage.RecallRepository

	backend *Backend

	captures   *CaptureRepository
	chunks     *ChunkRepository
	canonicals *CanonicalRepository
	concepts   *ConceptRepository
	recall     *RecallRepository
}

// OpenRepositories creates all repositories against a shared backend.
// Closing the bundle closes the repositories but not the backend.
func OpenRepositories(backend *Backend) (*Repositories, error) {
	captures, err := NewCaptureRepository(backend)
	if err != nil {
		return nil, err
	}
	chunks, err := NewChunkRepository(backend)
	if err != nil {
		captures.Close()
		return nil, err
	}
	canonicals, err := NewCanonicalRepository(backend)
	if err != nil {
		chunks.Close()
		captures.Close()
		return nil, err
	}
	concepts, err := NewConceptRepository(backend)
	if err != nil {
		canonicals.Close()
		chunks.Close()
		captures.Close()
		return nil, err
	}
	recall, err := NewRecallRepository(backend)
	if err != nil {
		concepts.Close()
		canonicals.Close()
		chunks.Close()
		captures.Close()
		return nil, err
	}

	return &Repositories{
		Captures:   captures,
		Chunks:     chunks,
		Canonicals: canonicals,
		Concepts:   concepts,
		Recall:     recall,
		backend:    backend,
		captures:   captures,
		chunks:     chunks,
		canonicals: canonicals,
		concepts:   concepts,
		recall:     recall,
	}, nil
}

// Close releases the repositories' sequences.
func (r *Repositories) Close() error {
	return errors.Join(
		r.recall.Close(),
		r.concepts.Close(),
		r.canonicals.Close(),
		r.chunks.Close(),
		r.captures.Close(),
	)
}

// NewMemoryRepositories creates in-memory repositories for testing.
// Caller must close both the bundle and the backend when done.
func NewMemoryRepositories() (*Repositories, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, err
	}

	repos, err := OpenRepositories(backend)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}

	return repos, backend, nil
}
