package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rag-lab/server/internal/domain"
)

// CreateCollection creates a new collection record
func (db *DB) CreateCollection(ctx context.Context, c *domain.Collection) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO collections (id, name) VALUES ($1, $2)
		 RETURNING created_at, updated_at`,
		c.ID, c.Name,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// GetCollection retrieves a collection with its document count
func (db *DB) GetCollection(ctx context.Context, id string) (*domain.Collection, error) {
	var c domain.Collection
	err := db.pool.QueryRow(ctx,
		`SELECT c.id, c.name, c.created_at, c.updated_at,
		        (SELECT COUNT(*) FROM documents d WHERE d.collection_id = c.id)
		 FROM collections c WHERE c.id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt, &c.DocumentCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("collection %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return &c, nil
}

// ListCollections lists every collection, newest first
func (db *DB) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT c.id, c.name, c.created_at, c.updated_at, COUNT(d.id)
		 FROM collections c
		 LEFT JOIN documents d ON d.collection_id = c.id
		 GROUP BY c.id
		 ORDER BY c.created_at DESC, c.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	collections := make([]domain.Collection, 0)
	for rows.Next() {
		var c domain.Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt, &c.DocumentCount); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// RenameCollection updates a collection's name
func (db *DB) RenameCollection(ctx context.Context, id, name string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE collections SET name = $1, updated_at = NOW() WHERE id = $2`,
		name, id,
	)
	if err != nil {
		return fmt.Errorf("failed to rename collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("collection %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteCollection deletes a collection; documents and chunks cascade
func (db *DB) DeleteCollection(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM collections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("collection %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// CreateDocument creates a new document record
func (db *DB) CreateDocument(ctx context.Context, d *domain.Document) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO documents (id, collection_id, file_name, original_name, size, mime_type)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		d.ID, d.CollectionID, d.FileName, d.OriginalName, d.Size, d.MimeType,
	).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by id
func (db *DB) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	err := db.pool.QueryRow(ctx,
		`SELECT id, collection_id, file_name, original_name, size, mime_type, created_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.CollectionID, &d.FileName, &d.OriginalName, &d.Size, &d.MimeType, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &d, nil
}

// ListDocuments lists a collection's documents with their chunk counts
func (db *DB) ListDocuments(ctx context.Context, collectionID string) ([]domain.DocumentStatus, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT d.id, d.collection_id, d.file_name, d.original_name, d.size, d.mime_type, d.created_at,
		        COUNT(c.id)
		 FROM documents d
		 LEFT JOIN chunks c ON c.document_id = d.id
		 WHERE d.collection_id = $1
		 GROUP BY d.id
		 ORDER BY d.created_at DESC, d.id`,
		collectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]domain.DocumentStatus, 0)
	for rows.Next() {
		var d domain.DocumentStatus
		if err := rows.Scan(&d.ID, &d.CollectionID, &d.FileName, &d.OriginalName,
			&d.Size, &d.MimeType, &d.CreatedAt, &d.ChunkCount); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.Embedded = d.ChunkCount > 0
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument deletes a document; its chunks cascade
func (db *DB) DeleteDocument(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// CountChunks counts a document's chunks
func (db *DB) CountChunks(ctx context.Context, documentID string) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = $1`, documentID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// DeleteChunks deletes every chunk of a document
func (db *DB) DeleteChunks(ctx context.Context, documentID string) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// InsertChunks inserts multiple chunks in a single transaction
func (db *DB) InsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	now := time.Now().UTC()
	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, c := range chunks {
			createdAt := c.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}
			batch.Queue(
				`INSERT INTO chunks (id, document_id, chunk_index, content, token_estimate, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				c.ID, c.DocumentID, c.Index, c.Content, c.TokenEstimate, createdAt,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for i := range chunks {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to insert chunk %d: %w", i, err)
			}
		}
		return br.Close()
	})
}

// ListChunks lists a document's chunks in index order
func (db *DB) ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, document_id, chunk_index, content, token_estimate, created_at
		 FROM chunks WHERE document_id = $1 ORDER BY chunk_index`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]domain.Chunk, 0)
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &c.TokenEstimate, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// CollectionStats counts a collection's documents and chunks
func (db *DB) CollectionStats(ctx context.Context, collectionID string) (domain.CollectionStats, error) {
	var stats domain.CollectionStats
	err := db.pool.QueryRow(ctx,
		`SELECT
		    (SELECT COUNT(*) FROM documents WHERE collection_id = $1),
		    (SELECT COUNT(*) FROM chunks c JOIN documents d ON d.id = c.document_id WHERE d.collection_id = $1)`,
		collectionID,
	).Scan(&stats.Documents, &stats.Chunks)
	if err != nil {
		return stats, fmt.Errorf("failed to get collection stats: %w", err)
	}
	stats.Embeddings = stats.Chunks
	return stats, nil
}
