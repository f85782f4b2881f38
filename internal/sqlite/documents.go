package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rag-lab/server/internal/domain"
)

// ==================== Documents ====================

// CreateDocument inserts a document row.
func (s *Store) CreateDocument(ctx context.Context, d *domain.Document) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, collection_id, file_name, original_name, size, mime_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.CollectionID, d.FileName, d.OriginalName, d.Size, d.MimeType, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	err := s.db.QueryRowContext(ctx, `
		SELECT id, collection_id, file_name, original_name, size, mime_type, created_at
		FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.CollectionID, &d.FileName, &d.OriginalName, &d.Size, &d.MimeType, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}
	return &d, nil
}

// ListDocuments returns the documents of a collection with their chunk
// counts, newest first.
func (s *Store) ListDocuments(ctx context.Context, collectionID string) ([]domain.DocumentStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.collection_id, d.file_name, d.original_name, d.size, d.mime_type, d.created_at,
		       COUNT(c.id)
		FROM documents d
		LEFT JOIN chunks c ON c.document_id = d.id
		WHERE d.collection_id = ?
		GROUP BY d.id
		ORDER BY d.created_at DESC, d.id`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := make([]domain.DocumentStatus, 0)
	for rows.Next() {
		var d domain.DocumentStatus
		if err := rows.Scan(&d.ID, &d.CollectionID, &d.FileName, &d.OriginalName,
			&d.Size, &d.MimeType, &d.CreatedAt, &d.ChunkCount); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		d.Embedded = d.ChunkCount > 0
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and its chunks.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return expectOne(res, "document", id)
}

// ==================== Chunks ====================

// CountChunks returns how many chunks a document has.
func (s *Store) CountChunks(ctx context.Context, documentID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = ?`, documentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// DeleteChunks removes every chunk of a document.
func (s *Store) DeleteChunks(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// InsertChunks inserts all chunks in one transaction; either every row is
// written or none is.
func (s *Store) InsertChunks(ctx context.Context, chunks []domain.Chunk) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, content, token_estimate, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err = stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Index, c.Content, c.TokenEstimate, createdAt); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}
	return nil
}

// ListChunks returns a document's chunks in index order.
func (s *Store) ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, token_estimate, created_at
		FROM chunks WHERE document_id = ? ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]domain.Chunk, 0)
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &c.TokenEstimate, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// CollectionStats counts the documents and chunks of a collection.
func (s *Store) CollectionStats(ctx context.Context, collectionID string) (domain.CollectionStats, error) {
	var stats domain.CollectionStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM documents WHERE collection_id = ?),
			(SELECT COUNT(*) FROM chunks c JOIN documents d ON d.id = c.document_id WHERE d.collection_id = ?)`,
		collectionID, collectionID,
	).Scan(&stats.Documents, &stats.Chunks)
	if err != nil {
		return stats, fmt.Errorf("querying collection stats: %w", err)
	}
	stats.Embeddings = stats.Chunks
	return stats, nil
}
