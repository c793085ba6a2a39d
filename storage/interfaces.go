package storage

import (
	"context"
	"time"

	"github.com/noctua-systems/noctua/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the repository and releases resources.
	Close() error
}

// CaptureRepository provides operations for managing captures.
type CaptureRepository interface {
	Repository

	// AddCaptures adds one or more captures to storage.
	// Generates sequence IDs and sets CreatedAt/UpdatedAt timestamps.
	// Returns the captures with generated IDs and timestamps populated.
	AddCaptures(ctx context.Context, captures ...*core.Capture) ([]*core.Capture, error)

	// UpdateCaptures updates existing captures.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any capture doesn't exist.
	UpdateCaptures(ctx context.Context, captures ...*core.Capture) ([]*core.Capture, error)

	// GetCapture retrieves a single capture by ID.
	// Returns ErrNotFound if the capture doesn't exist.
	GetCapture(ctx context.Context, id core.ID) (*core.Capture, error)

	// GetCaptures retrieves multiple captures by their IDs.
	// Returns only the captures that exist (no error for missing captures).
	GetCaptures(ctx context.Context, ids ...core.ID) ([]*core.Capture, error)

	// TransitionStatus moves a capture from one status to another.
	// Returns ErrStatusConflict if the current status is not `from`,
	// ErrNotFound if the capture doesn't exist. The check and the write
	// happen in one transaction.
	TransitionStatus(ctx context.Context, id core.ID, from, to core.CaptureStatus) error

	// MarkFailed sets a capture to the failed status with the given reason.
	MarkFailed(ctx context.Context, id core.ID, reason string) error

	// GetRecentCaptures retrieves the most recent captures for an owner,
	// newest first, up to limit.
	GetRecentCaptures(ctx context.Context, owner core.ID, limit int) ([]*core.Capture, error)
}

// ChunkRepository provides operations for managing chunks and their indexes.
type ChunkRepository interface {
	Repository

	// AddChunks adds one or more chunks to storage.
	// Generates sequence IDs and sets CreatedAt/UpdatedAt timestamps.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// UpdateChunks updates existing chunks.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any chunk doesn't exist.
	UpdateChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// GetChunk retrieves a single chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error)

	// GetChunks retrieves multiple chunks by their IDs.
	// Returns only the chunks that exist.
	GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)

	// GetChunksByCapture retrieves all chunks of a capture ordered by Seq.
	GetChunksByCapture(ctx context.Context, captureID core.ID) ([]*core.Chunk, error)

	// GetChunksByDateRange retrieves an owner's chunks created within a
	// time range, where start <= CreatedAt < end, newest first, up to
	// limit results. A limit <= 0 returns the whole range.
	GetChunksByDateRange(ctx context.Context, owner core.ID, start, end time.Time, limit int) ([]*core.Chunk, error)

	// GetChunksBatch retrieves up to limit chunks in stable iteration
	// order, starting after afterID (zero starts from the beginning).
	// Pass the last ID of the previous batch to continue. Used for
	// full-store iteration.
	GetChunksBatch(ctx context.Context, afterID core.ID, limit int) ([]*core.Chunk, error)

	// FindSimilar finds an owner's embedded chunks similar to the given vector.
	// Returns chunks with similarity >= minSimilarity, up to limit results,
	// ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, owner core.ID, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)

	// LinkConcept associates a chunk with a concept. Inserting an existing
	// association is a no-op.
	LinkConcept(ctx context.Context, conceptID, chunkID core.ID) error

	// GetChunkIDsByConcept retrieves IDs of chunks associated with a concept.
	GetChunkIDsByConcept(ctx context.Context, conceptID core.ID) ([]core.ID, error)

	// LinkContext associates chunks with a context group.
	LinkContext(ctx context.Context, contextID core.ID, chunkIDs ...core.ID) error

	// GetChunkIDsByContext retrieves IDs of chunks in a context group.
	GetChunkIDsByContext(ctx context.Context, contextID core.ID) ([]core.ID, error)
}

// CanonicalRepository provides operations for canonical chunks and the
// chunk-to-canonical link map.
type CanonicalRepository interface {
	Repository

	// AddCanonicalChunks adds canonical chunks to storage.
	// Generates sequence IDs and sets CreatedAt timestamps.
	AddCanonicalChunks(ctx context.Context, canonicals ...*core.CanonicalChunk) ([]*core.CanonicalChunk, error)

	// UpdateCanonicalChunks updates existing canonical chunks.
	// Returns ErrNotFound if any canonical chunk doesn't exist.
	UpdateCanonicalChunks(ctx context.Context, canonicals ...*core.CanonicalChunk) ([]*core.CanonicalChunk, error)

	// GetCanonicalChunk retrieves a canonical chunk by ID.
	// Returns ErrNotFound if it doesn't exist.
	GetCanonicalChunk(ctx context.Context, id core.ID) (*core.CanonicalChunk, error)

	// GetCanonicalChunksBatch retrieves up to limit canonical chunks in
	// stable iteration order, starting after afterID (zero starts from
	// the beginning).
	GetCanonicalChunksBatch(ctx context.Context, afterID core.ID, limit int) ([]*core.CanonicalChunk, error)

	// AddLinks records chunk-to-canonical links. Links are append-only;
	// a chunk holds at most one link and re-linking overwrites it.
	AddLinks(ctx context.Context, links ...*core.CanonicalLink) error

	// GetLinkForChunk retrieves the link for a chunk.
	// Returns ErrNotFound if the chunk has no canonical representative.
	GetLinkForChunk(ctx context.Context, chunkID core.ID) (*core.CanonicalLink, error)

	// GetLinksByCanonical retrieves all links pointing at a canonical chunk.
	GetLinksByCanonical(ctx context.Context, canonicalID core.ID) ([]*core.CanonicalLink, error)
}

// ConceptRepository provides operations for the knowledge graph.
type ConceptRepository interface {
	Repository

	// UpsertConcept creates or updates a concept keyed by (owner, name).
	// The ID is content-based (IDFromContent of the concept tuple). On
	// update, Category and Description are overwritten last-writer-wins.
	UpsertConcept(ctx context.Context, concept *core.Concept) (*core.Concept, error)

	// GetConcept retrieves a single concept by ID.
	// Returns ErrNotFound if the concept doesn't exist.
	GetConcept(ctx context.Context, id core.ID) (*core.Concept, error)

	// GetConcepts retrieves multiple concepts by their IDs.
	// Returns only the concepts that exist.
	GetConcepts(ctx context.Context, ids ...core.ID) ([]*core.Concept, error)

	// FindConceptByName finds an owner's concept by name.
	// Returns ErrNotFound if no matching concept exists.
	FindConceptByName(ctx context.Context, owner core.ID, name string) (*core.Concept, error)

	// GetConceptsByOwner retrieves all concepts belonging to an owner.
	GetConceptsByOwner(ctx context.Context, owner core.ID) ([]*core.Concept, error)

	// UpsertRelation records a directed relation between two concepts.
	// The ID is content-based on (source, target, relation); inserting an
	// existing relation is a no-op. Returns true when a new relation was
	// created.
	UpsertRelation(ctx context.Context, relation *core.ConceptRelation) (bool, error)

	// GetRelationsForConcept retrieves relations whose source is the given
	// concept.
	GetRelationsForConcept(ctx context.Context, conceptID core.ID) ([]*core.ConceptRelation, error)
}

// RecallRepository provides operations for recall items and their
// spaced-repetition scheduling state.
type RecallRepository interface {
	Repository

	// AddRecallItems adds recall items to storage.
	// Generates sequence IDs and sets CreatedAt/UpdatedAt timestamps.
	AddRecallItems(ctx context.Context, items ...*core.RecallItem) ([]*core.RecallItem, error)

	// UpdateRecallItems updates existing recall items.
	// Returns ErrNotFound if any item doesn't exist.
	UpdateRecallItems(ctx context.Context, items ...*core.RecallItem) ([]*core.RecallItem, error)

	// GetRecallItem retrieves a recall item by ID.
	// Returns ErrNotFound if the item doesn't exist.
	GetRecallItem(ctx context.Context, id core.ID) (*core.RecallItem, error)

	// GetRecallItemsByOwner retrieves an owner's recall items with the
	// given status, up to limit. A zero status matches all items.
	GetRecallItemsByOwner(ctx context.Context, owner core.ID, status core.RecallStatus, limit int) ([]*core.RecallItem, error)

	// PutMemoryStrength creates or replaces the scheduling state of an item
	// and maintains the due-time index.
	PutMemoryStrength(ctx context.Context, strength *core.MemoryStrength) error

	// GetMemoryStrength retrieves the scheduling state of an item.
	// Returns ErrNotFound if the item has no scheduling state.
	GetMemoryStrength(ctx context.Context, itemID core.ID) (*core.MemoryStrength, error)

	// GetDueStrengths retrieves an owner's scheduling rows with
	// NextReviewAt <= now, soonest first, up to limit.
	GetDueStrengths(ctx context.Context, owner core.ID, now time.Time, limit int) ([]*core.MemoryStrength, error)
}
