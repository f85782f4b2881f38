package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/rag-lab/server/internal/domain"
	"github.com/rag-lab/server/internal/vectorstore"
)

// Catalog is the metadata store behind a Library.
type Catalog interface {
	CreateCollection(ctx context.Context, c *domain.Collection) error
	GetCollection(ctx context.Context, id string) (*domain.Collection, error)
	ListCollections(ctx context.Context) ([]domain.Collection, error)
	RenameCollection(ctx context.Context, id, name string) error
	DeleteCollection(ctx context.Context, id string) error

	CreateDocument(ctx context.Context, d *domain.Document) error
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	ListDocuments(ctx context.Context, collectionID string) ([]domain.DocumentStatus, error)
	DeleteDocument(ctx context.Context, id string) error

	CollectionStats(ctx context.Context, collectionID string) (domain.CollectionStats, error)
}

// Library manages collections and their uploaded files. Deletes cascade to
// the upload directory and the vector store.
type Library struct {
	catalog    Catalog
	vectors    vectorstore.Store
	uploadsDir string
	logger     *log.Logger
}

// NewLibrary creates a Library storing files under uploadsDir.
func NewLibrary(catalog Catalog, vectors vectorstore.Store, uploadsDir string, logger *log.Logger) *Library {
	return &Library{
		catalog:    catalog,
		vectors:    vectors,
		uploadsDir: uploadsDir,
		logger:     logger,
	}
}

// CreateCollection adds a collection and its upload directory.
func (l *Library) CreateCollection(ctx context.Context, name string) (*domain.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is required", domain.ErrValidation)
	}

	c := &domain.Collection{ID: uuid.NewString(), Name: name}
	if err := l.catalog.CreateCollection(ctx, c); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(l.uploadsDir, c.ID), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	l.logger.Info().Str("collection_id", c.ID).Str("name", c.Name).Msg("collection created")
	return c, nil
}

// ListCollections returns every collection with its document count.
func (l *Library) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	return l.catalog.ListCollections(ctx)
}

// RenameCollection changes a collection's name.
func (l *Library) RenameCollection(ctx context.Context, id, name string) (*domain.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is required", domain.ErrValidation)
	}
	if err := l.catalog.RenameCollection(ctx, id, name); err != nil {
		return nil, err
	}
	return l.catalog.GetCollection(ctx, id)
}

// DeleteCollection removes a collection, its documents, files and vectors.
func (l *Library) DeleteCollection(ctx context.Context, id string) error {
	if err := l.catalog.DeleteCollection(ctx, id); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(l.uploadsDir, id)); err != nil {
		return fmt.Errorf("failed to remove upload directory: %w", err)
	}
	if err := l.vectors.DeleteByCollection(ctx, id); err != nil {
		return fmt.Errorf("failed to delete collection vectors: %w", err)
	}

	l.logger.Info().Str("collection_id", id).Msg("collection deleted")
	return nil
}

// StoreDocument saves an uploaded file into the collection and records it.
func (l *Library) StoreDocument(ctx context.Context, collectionID, originalName, mimeType string, r io.Reader) (*domain.Document, error) {
	if _, err := l.catalog.GetCollection(ctx, collectionID); err != nil {
		return nil, err
	}

	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return nil, fmt.Errorf("%w: file name is required", domain.ErrValidation)
	}

	id := uuid.NewString()
	doc := &domain.Document{
		ID:           id,
		CollectionID: collectionID,
		FileName:     id + "_" + base,
		OriginalName: base,
		MimeType:     mimeType,
	}

	dir := filepath.Join(l.uploadsDir, collectionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	path := filepath.Join(dir, doc.FileName)

	size, err := writeFile(path, r)
	if err != nil {
		return nil, err
	}
	doc.Size = size

	if err := l.catalog.CreateDocument(ctx, doc); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	l.logger.Info().
		Str("document_id", doc.ID).
		Str("collection_id", collectionID).
		Str("name", doc.OriginalName).
		Int64("size", doc.Size).
		Msg("document stored")
	return doc, nil
}

func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	return n, nil
}

// GetDocument returns a document by id.
func (l *Library) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	return l.catalog.GetDocument(ctx, id)
}

// ListDocuments returns a collection's documents with their chunk counts.
func (l *Library) ListDocuments(ctx context.Context, collectionID string) ([]domain.DocumentStatus, error) {
	return l.catalog.ListDocuments(ctx, collectionID)
}

// DeleteDocument removes a document's file, row, chunks and vectors. Deleting
// an unknown document is a no-op.
func (l *Library) DeleteDocument(ctx context.Context, id string) error {
	doc, err := l.catalog.GetDocument(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	path := filepath.Join(l.uploadsDir, doc.CollectionID, doc.FileName)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	if err := l.catalog.DeleteDocument(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err := l.vectors.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document vectors: %w", err)
	}

	l.logger.Info().Str("document_id", id).Msg("document deleted")
	return nil
}

// Stats counts what has been ingested into a collection.
func (l *Library) Stats(ctx context.Context, collectionID string) (domain.CollectionStats, error) {
	return l.catalog.CollectionStats(ctx, collectionID)
}
