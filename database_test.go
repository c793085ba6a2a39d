package noctua

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noctua-systems/noctua/ai"
	"github.com/noctua-systems/noctua/ai/mock"
)

func testProvider() ai.Provider {
	return mock.NewMockProviderWithServices(mock.NewMockEmbedder(), mock.NewMockCompleter(""))
}

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		db, err := NewDatabase(tmpDir, WithProvider(testProvider()))
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		// Verify components are initialized
		assert.NotNil(t, db.CaptureRepository())
		assert.NotNil(t, db.ChunkRepository())
		assert.NotNil(t, db.CanonicalRepository())
		assert.NotNil(t, db.ConceptRepository())
		assert.NotNil(t, db.RecallRepository())
		assert.NotNil(t, db.Broker())
		assert.NotNil(t, db.ExtractorRegistry())
		assert.NotNil(t, db.backend)
		assert.NotNil(t, db.logger)
	})

	t.Run("in-memory database", func(t *testing.T) {
		db, err := NewDatabase("", WithInMemory(), WithProvider(testProvider()))
		require.NoError(t, err)
		require.NotNil(t, db)
		assert.NoError(t, db.Close())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// Try to create a database at a file path instead of directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		db, err := NewDatabase(tmpFile, WithProvider(testProvider()))
		assert.Error(t, err)
		assert.Nil(t, db)
	})
}

func TestDatabase_Close(t *testing.T) {
	db, err := NewDatabase(t.TempDir(), WithProvider(testProvider()))
	require.NoError(t, err)
	require.NotNil(t, db)

	err = db.Close()
	assert.NoError(t, err)
}

func TestDatabase_FactoryMethods(t *testing.T) {
	db, err := NewDatabase("", WithInMemory(), WithProvider(testProvider()))
	require.NoError(t, err)
	require.NotNil(t, db)
	defer db.Close()

	t.Run("can create ingestion pipeline", func(t *testing.T) {
		pipeline, err := db.NewIngestionPipeline()
		require.NoError(t, err)
		require.NotNil(t, pipeline)
	})

	t.Run("can create dedup engine", func(t *testing.T) {
		engine, err := db.NewDedupEngine()
		require.NoError(t, err)
		require.NotNil(t, engine)
	})

	t.Run("can create graph extractor", func(t *testing.T) {
		extractor, err := db.NewGraphExtractor()
		require.NoError(t, err)
		require.NotNil(t, extractor)
	})

	t.Run("can create retriever", func(t *testing.T) {
		retriever, err := db.NewRetriever()
		require.NoError(t, err)
		require.NotNil(t, retriever)
	})

	t.Run("can create recall scheduler", func(t *testing.T) {
		scheduler, err := db.NewRecallScheduler()
		require.NoError(t, err)
		require.NotNil(t, scheduler)
	})

	t.Run("can create reindexer", func(t *testing.T) {
		var progress bytes.Buffer
		reindexer, err := db.NewReindexer(nil, &progress)
		require.NoError(t, err)
		require.NotNil(t, reindexer)
	})
}
