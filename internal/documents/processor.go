// Package documents ingests uploaded documents into the chunk and vector
// stores and manages the collections they belong to.
package documents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/rag-lab/server/internal/chunker"
	"github.com/rag-lab/server/internal/domain"
	"github.com/rag-lab/server/internal/vectorstore"
)

// MetadataStore is the part of the metadata store the ingestion pipeline uses.
type MetadataStore interface {
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	CountChunks(ctx context.Context, documentID string) (int, error)
	DeleteChunks(ctx context.Context, documentID string) error
	// InsertChunks writes every chunk or none.
	InsertChunks(ctx context.Context, chunks []domain.Chunk) error
}

// Extractor returns the full text of a stored document.
type Extractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Embedder embeds many texts in one call, preserving order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Splitter breaks text into chunks.
type Splitter interface {
	Split(text string) []chunker.Piece
}

// Processor handles document ingestion: extract, chunk, embed, store.
type Processor struct {
	store     MetadataStore
	extractor Extractor
	embedder  Embedder
	vectors   vectorstore.Store
	splitter  Splitter
	logger    *log.Logger
	locks     *keyedMutex
}

// NewProcessor creates a new document processor
func NewProcessor(
	store MetadataStore,
	extractor Extractor,
	embedder Embedder,
	vectors vectorstore.Store,
	splitter Splitter,
	logger *log.Logger,
) *Processor {
	if splitter == nil {
		splitter = chunker.New()
	}
	return &Processor{
		store:     store,
		extractor: extractor,
		embedder:  embedder,
		vectors:   vectors,
		splitter:  splitter,
		logger:    logger,
		locks:     newKeyedMutex(),
	}
}

// EmbedDocument (re)builds the chunks and vectors of a document. Existing
// chunks and vectors are replaced. Concurrent calls for the same document
// run one at a time.
func (p *Processor) EmbedDocument(ctx context.Context, documentID string) (*domain.IngestResult, error) {
	unlock := p.locks.Lock(documentID)
	defer unlock()

	start := time.Now()

	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	existing, err := p.store.CountChunks(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to count existing chunks: %w", err)
	}
	if existing > 0 {
		if err := p.store.DeleteChunks(ctx, documentID); err != nil {
			return nil, fmt.Errorf("failed to delete existing chunks: %w", err)
		}
		p.logger.Debug().Str("document_id", documentID).Int("chunks", existing).Msg("removed previous chunks")
	}
	// Vectors may outlive their chunk rows after a failed run.
	if err := p.vectors.DeleteByDocument(ctx, documentID); err != nil {
		return nil, fmt.Errorf("failed to delete existing vectors: %w", err)
	}

	text, err := p.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("document %s: %w", doc.OriginalName, domain.ErrEmptyContent)
	}

	pieces := p.splitter.Split(text)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("document %s: %w", doc.OriginalName, domain.ErrNoChunksProduced)
	}

	contents := make([]string, len(pieces))
	for i, piece := range pieces {
		contents[i] = piece.Content
	}
	vectors, err := p.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(pieces) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d chunks", domain.ErrUpstream, len(vectors), len(pieces))
	}

	chunks := make([]domain.Chunk, len(pieces))
	rows := make([]vectorstore.Row, len(pieces))
	for i, piece := range pieces {
		id := uuid.NewString()
		chunks[i] = domain.Chunk{
			ID:            id,
			DocumentID:    doc.ID,
			Index:         i,
			Content:       piece.Content,
			TokenEstimate: piece.TokenEstimate,
		}
		rows[i] = vectorstore.Row{
			ChunkID:      id,
			DocumentID:   doc.ID,
			CollectionID: doc.CollectionID,
			Content:      piece.Content,
			Vector:       vectors[i],
		}
	}

	if err := p.store.InsertChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to insert chunks: %w", err)
	}
	if err := p.vectors.Upsert(ctx, rows); err != nil {
		return nil, fmt.Errorf("failed to store vectors: %w", err)
	}

	result := &domain.IngestResult{
		DocumentID:    doc.ID,
		ChunksCreated: len(chunks),
	}
	if len(vectors) > 0 {
		result.Dimensions = len(vectors[0])
	}

	p.logger.Info().
		Str("document_id", doc.ID).
		Str("collection_id", doc.CollectionID).
		Str("name", doc.OriginalName).
		Int("chunks", result.ChunksCreated).
		Int("dimensions", result.Dimensions).
		Dur("elapsed", time.Since(start)).
		Msg("document embedded")

	return result, nil
}
