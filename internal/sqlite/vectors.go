package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rag-lab/server/internal/domain"
	"github.com/rag-lab/server/internal/vectorstore"
)

// VectorStore keeps chunk vectors as little-endian float32 blobs and
// searches them by brute force.
type VectorStore struct {
	db *sql.DB

	mu        sync.RWMutex
	state     vectorstore.State
	dimension int
}

var _ vectorstore.Store = (*VectorStore)(nil)

// NewVectorStore discovers whether the vector index already exists.
func NewVectorStore(ctx context.Context, s *Store) (*VectorStore, error) {
	v := &VectorStore{db: s.db}

	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'vector_index'`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up vector index: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT dimensions FROM vector_index LIMIT 1`).Scan(&v.dimension); err != nil {
		return nil, fmt.Errorf("reading vector index dimensions: %w", err)
	}
	v.state = vectorstore.Ready
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

// ensureIndex creates the vector tables. Callers hold mu.
func (v *VectorStore) ensureIndex(ctx context.Context, dim int) error {
	if v.state == vectorstore.Ready {
		return nil
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chunk_vectors (
			chunk_id      TEXT PRIMARY KEY,
			document_id   TEXT NOT NULL,
			collection_id TEXT NOT NULL,
			content       TEXT NOT NULL,
			embedding     BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_vectors_collection ON chunk_vectors(collection_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_vectors_document ON chunk_vectors(document_id)`,
		`CREATE TABLE IF NOT EXISTS vector_index (dimensions INTEGER NOT NULL)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating vector index: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO vector_index (dimensions) VALUES (?)`, dim); err != nil {
		return fmt.Errorf("recording vector index dimensions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vector index: %w", err)
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

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunk_vectors (chunk_id, document_id, collection_id, content, embedding)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			document_id = excluded.document_id,
			collection_id = excluded.collection_id,
			content = excluded.content,
			embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("preparing vector upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.ChunkID, r.DocumentID, r.CollectionID, r.Content, encodeVector(r.Vector)); err != nil {
			return fmt.Errorf("upserting vector for chunk %s: %w", r.ChunkID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing vectors: %w", err)
	}
	return nil
}

// Search ranks every vector of the collection by Euclidean distance.
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

	rows, err := v.db.QueryContext(ctx, `
		SELECT chunk_id, document_id, content, embedding
		FROM chunk_vectors WHERE collection_id = ?`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	results := make([]vectorstore.Result, 0)
	for rows.Next() {
		var (
			r    vectorstore.Result
			blob []byte
		)
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Content, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}
		vec := decodeVector(blob)
		if len(vec) != len(query) {
			continue
		}
		r.Distance = vectorstore.L2Distance(query, vec)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vectorstore.Rank(results, limit), nil
}

// DeleteByDocument removes the vectors of a document.
func (v *VectorStore) DeleteByDocument(ctx context.Context, documentID string) error {
	return v.deleteWhere(ctx, `DELETE FROM chunk_vectors WHERE document_id = ?`, documentID)
}

// DeleteByCollection removes the vectors of a collection.
func (v *VectorStore) DeleteByCollection(ctx context.Context, collectionID string) error {
	return v.deleteWhere(ctx, `DELETE FROM chunk_vectors WHERE collection_id = ?`, collectionID)
}

func (v *VectorStore) deleteWhere(ctx context.Context, query, arg string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.state != vectorstore.Ready {
		return nil
	}
	if _, err := v.db.ExecContext(ctx, query, arg); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	return nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec
}
