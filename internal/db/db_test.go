package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rag-lab/server/internal/domain"
	"github.com/rag-lab/server/internal/vectorstore"
	"github.com/rag-lab/server/internal/vectorstore/storetest"
)

// setupTestDB connects to the database named by RAG_LAB_TEST_DATABASE_URL,
// skipping the test when it is unset. Tables are dropped and migrated afresh.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	url := os.Getenv("RAG_LAB_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("RAG_LAB_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := New(ctx, url, PoolOptions{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	_, err = db.pool.Exec(ctx,
		`DROP TABLE IF EXISTS chunk_vectors, chunks, documents, collections, schema_migrations CASCADE`)
	require.NoError(t, err)

	applied, err := db.Migrate(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, applied)
	return db
}

func TestPoolOptions_Apply(t *testing.T) {
	t.Run("zero options keep defaults", func(t *testing.T) {
		cfg, err := pgxpool.ParseConfig("postgres://postgres@localhost:5432/rag_lab")
		require.NoError(t, err)

		PoolOptions{}.apply(cfg)

		assert.EqualValues(t, DefaultMaxConns, cfg.MaxConns)
		assert.Equal(t, DefaultMaxConnLifetime, cfg.MaxConnLifetime)
		assert.Equal(t, DefaultMaxConnIdleTime, cfg.MaxConnIdleTime)
	})

	t.Run("configured values win", func(t *testing.T) {
		cfg, err := pgxpool.ParseConfig("postgres://postgres@localhost:5432/rag_lab")
		require.NoError(t, err)

		PoolOptions{MaxConns: 3, MaxConnLifetime: 10 * time.Minute, MaxConnIdleTime: time.Minute}.apply(cfg)

		assert.EqualValues(t, 3, cfg.MaxConns)
		assert.Equal(t, 10*time.Minute, cfg.MaxConnLifetime)
		assert.Equal(t, time.Minute, cfg.MaxConnIdleTime)
	})
}

func TestNew_InvalidConnString(t *testing.T) {
	_, err := New(context.Background(), "postgres://%zz", PoolOptions{})

	assert.ErrorContains(t, err, "failed to parse connection string")
}

func TestDB_Migrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	applied, err := db.Migrate(context.Background())

	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestDB_Metadata(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	c := &domain.Collection{ID: uuid.NewString(), Name: "Reports"}
	require.NoError(t, db.CreateCollection(ctx, c))
	assert.False(t, c.CreatedAt.IsZero())

	d := &domain.Document{ID: uuid.NewString(), CollectionID: c.ID, FileName: "x_report.pdf", OriginalName: "report.pdf", Size: 10, MimeType: "application/pdf"}
	require.NoError(t, db.CreateDocument(ctx, d))

	chunks := []domain.Chunk{
		{ID: uuid.NewString(), DocumentID: d.ID, Index: 0, Content: "alpha", TokenEstimate: 2},
		{ID: uuid.NewString(), DocumentID: d.ID, Index: 1, Content: "beta", TokenEstimate: 1},
	}
	require.NoError(t, db.InsertChunks(ctx, chunks))

	n, err := db.CountChunks(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats, err := db.CollectionStats(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CollectionStats{Documents: 1, Chunks: 2, Embeddings: 2}, stats)

	docs, err := db.ListDocuments(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.True(t, docs[0].Embedded)

	collections, err := db.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, collections, 1)
	assert.Equal(t, 1, collections[0].DocumentCount)

	require.NoError(t, db.RenameCollection(ctx, c.ID, "Quarterly"))
	got, err := db.GetCollection(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly", got.Name)

	require.NoError(t, db.DeleteCollection(ctx, c.ID))
	_, err = db.GetDocument(ctx, d.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	n, err = db.CountChunks(ctx, d.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDB_InsertChunksIsAtomic(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	c := &domain.Collection{ID: uuid.NewString(), Name: "Reports"}
	require.NoError(t, db.CreateCollection(ctx, c))
	d := &domain.Document{ID: uuid.NewString(), CollectionID: c.ID, FileName: "f", OriginalName: "f"}
	require.NoError(t, db.CreateDocument(ctx, d))

	err := db.InsertChunks(ctx, []domain.Chunk{
		{ID: uuid.NewString(), DocumentID: d.ID, Index: 0, Content: "a"},
		{ID: uuid.NewString(), DocumentID: d.ID, Index: 0, Content: "b"},
	})
	require.Error(t, err)

	n, err := db.CountChunks(ctx, d.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestVectorStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) vectorstore.Store {
		db := setupTestDB(t)
		v, err := NewVectorStore(context.Background(), db)
		require.NoError(t, err)
		require.Equal(t, vectorstore.Uninitialized, v.State())
		return v
	})
}

func TestVectorStore_DiscoversExistingIndex(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	v, err := NewVectorStore(ctx, db)
	require.NoError(t, err)
	require.NoError(t, v.Upsert(ctx, []vectorstore.Row{
		{ChunkID: "a", DocumentID: "d", CollectionID: "c", Content: "x", Vector: []float32{1, 2, 3, 4}},
	}))

	reopened, err := NewVectorStore(ctx, db)
	require.NoError(t, err)

	assert.Equal(t, vectorstore.Ready, reopened.State())
	assert.Equal(t, 4, reopened.Dimensions())
}
