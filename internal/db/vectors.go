package db

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/rag-lab/server/internal/domain"
	"github.com/rag-lab/server/internal/vectorstore"
)

// VectorStore keeps chunk vectors in a pgvector column with an HNSW index
// and searches with the Euclidean distance operator.
type VectorStore struct {
	db *DB

	mu        sync.RWMutex
	state     vectorstore.State
	dimension int
}

var _ vectorstore.Store = (*VectorStore)(nil)

// NewVectorStore looks up the chunk_vectors table in the catalog and, if it
// exists, reads its dimensionality from the column type.
func NewVectorStore(ctx context.Context, db *DB) (*VectorStore, error) {
	v := &VectorStore{db: db}

	var dim *int
	err := db.pool.QueryRow(ctx,
		`SELECT a.atttypmod
		 FROM pg_attribute a
		 WHERE a.attrelid = to_regclass('chunk_vectors') AND a.attname = 'embedding'`,
	).Scan(&dim)
	if errors.Is(err, pgx.ErrNoRows) {
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up vector index: %w", err)
	}
	if dim != nil && *dim > 0 {
		v.dimension = *dim
		v.state = vectorstore.Ready
	}
	return v, nil
}

// State reports whether the index has been created.
func (v *VectorStore) State() vectorstore.State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// Dimensions returns the index dimensionality, or 0 before the first upsert.
func (v *VectorStore) Dimensions() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.dimension
}

// ensureIndex creates the table and its indexes. Callers hold mu.
func (v *VectorStore) ensureIndex(ctx context.Context, dim int) error {
	if v.state == vectorstore.Ready {
		return nil
	}

	err := pgx.BeginFunc(ctx, v.db.pool, func(tx pgx.Tx) error {
		stmts := []string{
			`CREATE EXTENSION IF NOT EXISTS vector`,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunk_vectors (
				chunk_id      TEXT PRIMARY KEY,
				document_id   TEXT NOT NULL,
				collection_id TEXT NOT NULL,
				content       TEXT NOT NULL,
				embedding     vector(%d) NOT NULL
			)`, dim),
			`CREATE INDEX IF NOT EXISTS idx_chunk_vectors_collection ON chunk_vectors (collection_id)`,
			`CREATE INDEX IF NOT EXISTS idx_chunk_vectors_document ON chunk_vectors (document_id)`,
			`CREATE INDEX IF NOT EXISTS idx_chunk_vectors_embedding ON chunk_vectors USING hnsw (embedding vector_l2_ops)`,
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	v.state = vectorstore.Ready
	v.dimension = dim
	return nil
}

// Upsert inserts rows, creating the index on first use.
func (v *VectorStore) Upsert(ctx context.Context, rows []vectorstore.Row) error {
	if len(rows) == 0 {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	dim, err := vectorstore.CheckRows(rows, v.dimension)
	if err != nil {
		return err
	}
	if err := v.ensureIndex(ctx, dim); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(
			`INSERT INTO chunk_vectors (chunk_id, document_id, collection_id, content, embedding)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (chunk_id) DO UPDATE SET
			     document_id = EXCLUDED.document_id,
			     collection_id = EXCLUDED.collection_id,
			     content = EXCLUDED.content,
			     embedding = EXCLUDED.embedding`,
			r.ChunkID, r.DocumentID, r.CollectionID, r.Content, pgvector.NewVector(r.Vector),
		)
	}

	return pgx.BeginFunc(ctx, v.db.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for _, r := range rows {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to upsert vector for chunk %s: %w", r.ChunkID, err)
			}
		}
		return br.Close()
	})
}

// Search finds the nearest vectors of a collection.
func (v *VectorStore) Search(ctx context.Context, query []float32, collectionID string, limit int) ([]vectorstore.Result, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.state != vectorstore.Ready {
		return []vectorstore.Result{}, nil
	}
	if len(query) != v.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), v.dimension)
	}
	// LIMIT NULL returns every row.
	var lim any
	if limit > 0 {
		lim = limit
	}

	rows, err := v.db.pool.Query(ctx,
		`SELECT chunk_id, document_id, content, embedding <-> $1 AS distance
		 FROM chunk_vectors
		 WHERE collection_id = $2
		 ORDER BY embedding <-> $1
		 LIMIT $3`,
		pgvector.NewVector(query), collectionID, lim,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}
	defer rows.Close()

	results := make([]vectorstore.Result, 0)
	for rows.Next() {
		var r vectorstore.Result
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Content, &r.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// DeleteByDocument removes the vectors of a document.
func (v *VectorStore) DeleteByDocument(ctx context.Context, documentID string) error {
	return v.deleteWhere(ctx, `DELETE FROM chunk_vectors WHERE document_id = $1`, documentID)
}

// DeleteByCollection removes the vectors of a collection.
func (v *VectorStore) DeleteByCollection(ctx context.Context, collectionID string) error {
	return v.deleteWhere(ctx, `DELETE FROM chunk_vectors WHERE collection_id = $1`, collectionID)
}

func (v *VectorStore) deleteWhere(ctx context.Context, query, arg string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.state != vectorstore.Ready {
		return nil
	}
	if _, err := v.db.pool.Exec(ctx, query, arg); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	return nil
}
