// Package noctua is a personal knowledge base: captured content flows
// through an asynchronous pipeline of extraction, chunking, embedding,
// deduplication and knowledge-graph extraction, and is consumed through
// semantic retrieval and spaced-repetition recall.
package noctua

import (
	"io"
	"log/slog"

	"github.com/noctua-systems/noctua/ai"
	"github.com/noctua-systems/noctua/ai/openai"
	"github.com/noctua-systems/noctua/dedup"
	"github.com/noctua-systems/noctua/extract"
	"github.com/noctua-systems/noctua/graph"
	"github.com/noctua-systems/noctua/ingest"
	"github.com/noctua-systems/noctua/queue"
	"github.com/noctua-systems/noctua/recall"
	"github.com/noctua-systems/noctua/reindex"
	"github.com/noctua-systems/noctua/retrieval"
	"github.com/noctua-systems/noctua/storage"
	"github.com/noctua-systems/noctua/storage/badger"
)

// Database bundles the storage backend, AI provider and job broker, and
// hands out the pipeline components wired against them.
type Database struct {
	backend  *badger.Backend
	repos    *badger.Repositories
	provider ai.Provider
	broker   *queue.Broker
	registry *extract.Registry
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	provider ai.Provider
	inMemory bool
}

// WithAIConfig sets the AI service configuration.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithProvider injects an AI provider, bypassing the OpenAI-compatible
// default. Intended for tests.
func WithProvider(provider ai.Provider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithInMemory opens the store in memory instead of on disk.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// NewDatabase opens the store at filePath and wires the provider and
// broker. Close releases everything.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	repos, err := badger.OpenRepositories(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			repos.Close()
			backend.Close()
			return nil, err
		}
	}

	broker, err := queue.NewBroker()
	if err != nil {
		provider.Close()
		repos.Close()
		backend.Close()
		return nil, err
	}

	return &Database{
		backend:  backend,
		repos:    repos,
		provider: provider,
		broker:   broker,
		registry: extract.NewRegistry(),
		logger:   slog.Default(),
	}, nil
}

// Close drains the broker and releases the provider, repositories and
// backend.
func (db *Database) Close() error {
	db.broker.Wait()
	db.broker.Release()

	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	if err := db.repos.Close(); err != nil {
		db.logger.Error("error closing repositories", "err", err)
		return err
	}

	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Broker returns the job broker.
func (db *Database) Broker() *queue.Broker {
	return db.broker
}

// ExtractorRegistry returns the content extractor registry, the
// registration point for additional content kinds.
func (db *Database) ExtractorRegistry() *extract.Registry {
	return db.registry
}

// CaptureRepository returns the capture store.
func (db *Database) CaptureRepository() storage.CaptureRepository {
	return db.repos.Captures
}

// ChunkRepository returns the chunk store.
func (db *Database) ChunkRepository() storage.ChunkRepository {
	return db.repos.Chunks
}

// CanonicalRepository returns the canonical chunk store.
func (db *Database) CanonicalRepository() storage.CanonicalRepository {
	return db.repos.Canonicals
}

// ConceptRepository returns the knowledge-graph store.
func (db *Database) ConceptRepository() storage.ConceptRepository {
	return db.repos.Concepts
}

// RecallRepository returns the spaced-repetition store.
func (db *Database) RecallRepository() storage.RecallRepository {
	return db.repos.Recall
}

// NewIngestionPipeline creates the ingestion pipeline and registers its
// queue handlers.
func (db *Database) NewIngestionPipeline(opts ...ingest.Option) (*ingest.Pipeline, error) {
	return ingest.NewPipeline(db.repos.Captures, db.repos.Chunks, db.registry, db.broker, db.provider, opts...)
}

// NewDedupEngine creates the deduplication engine and registers its
// queue handler.
func (db *Database) NewDedupEngine(opts ...dedup.Option) (*dedup.Engine, error) {
	return dedup.NewEngine(db.repos.Chunks, db.repos.Canonicals, db.broker, db.provider, opts...)
}

// NewGraphExtractor creates the knowledge-graph extractor and registers
// its queue handler.
func (db *Database) NewGraphExtractor(opts ...graph.Option) (*graph.Extractor, error) {
	return graph.NewExtractor(db.repos.Chunks, db.repos.Canonicals, db.repos.Concepts, db.broker, db.provider, opts...)
}

// NewRetriever creates a semantic retriever.
func (db *Database) NewRetriever(opts ...retrieval.Option) (*retrieval.Retriever, error) {
	return retrieval.NewRetriever(db.repos.Chunks, db.repos.Captures, db.provider, opts...)
}

// NewRecallScheduler creates the recall scheduler and registers its
// queue handlers.
func (db *Database) NewRecallScheduler(opts ...recall.Option) (*recall.Scheduler, error) {
	return recall.NewScheduler(db.repos.Recall, db.repos.Chunks, db.broker, db.provider, opts...)
}

// NewReindexer creates a reindexer using the provider's embedder.
func (db *Database) NewReindexer(config *reindex.Config, progress io.Writer) (*reindex.Reindexer, error) {
	return reindex.NewReindexer(db.repos.Chunks, db.repos.Canonicals, db.provider.Embedder(), config, progress)
}
