// Package rag answers questions from a collection's embedded chunks.
package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/rag-lab/server/internal/domain"
	"github.com/rag-lab/server/internal/vectorstore"
)

// DefaultTopK is the number of chunks retrieved per query when none is set.
const DefaultTopK = 5

// UnknownDocument names hits whose document no longer exists.
const UnknownDocument = "Unknown document"

// Embedder embeds a single query text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DocumentLookup resolves document ids to their metadata.
type DocumentLookup interface {
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
}

// Retriever handles retrieval using vector similarity search
type Retriever struct {
	embedder  Embedder
	vectors   vectorstore.Store
	documents DocumentLookup
	topK      int
}

// NewRetriever creates a new retriever
func NewRetriever(embedder Embedder, vectors vectorstore.Store, documents DocumentLookup, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		embedder:  embedder,
		vectors:   vectors,
		documents: documents,
		topK:      topK,
	}
}

// TopK returns the default search limit.
func (r *Retriever) TopK() int { return r.topK }

// Search embeds query and returns the nearest chunks of the collection,
// nearest first, each named after its document. A limit <= 0 uses TopK.
func (r *Retriever) Search(ctx context.Context, query, collectionID string, limit int) ([]domain.SearchHit, error) {
	if limit <= 0 {
		limit = r.topK
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	results, err := r.vectors.Search(ctx, vector, collectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(results))
	names := make(map[string]string)
	for _, res := range results {
		name, ok := names[res.DocumentID]
		if !ok {
			name, err = r.documentName(ctx, res.DocumentID)
			if err != nil {
				return nil, err
			}
			names[res.DocumentID] = name
		}
		hits = append(hits, domain.SearchHit{
			ChunkID:      res.ChunkID,
			DocumentID:   res.DocumentID,
			DocumentName: name,
			Content:      res.Content,
			Distance:     res.Distance,
		})
	}
	return hits, nil
}

func (r *Retriever) documentName(ctx context.Context, id string) (string, error) {
	doc, err := r.documents.GetDocument(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return UnknownDocument, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up document: %w", err)
	}
	return doc.OriginalName, nil
}
