package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/rag-lab/server/internal/domain"
	"github.com/rag-lab/server/internal/llm"
)

// NoResultsAnswer is returned when the collection has nothing relevant.
const NoResultsAnswer = "No relevant documents were found in this collection. Make sure your documents are uploaded and embedded before querying."

// Service runs the full query pipeline: embed, search, generate.
type Service struct {
	retriever *Retriever
	generator llm.Generator
	logger    *log.Logger
}

// NewService creates a query service.
func NewService(retriever *Retriever, generator llm.Generator, logger *log.Logger) *Service {
	return &Service{
		retriever: retriever,
		generator: generator,
		logger:    logger,
	}
}

// Search exposes the retrieval step on its own.
func (s *Service) Search(ctx context.Context, query, collectionID string, limit int) ([]domain.SearchHit, error) {
	return s.retriever.Search(ctx, query, collectionID, limit)
}

// Query answers query from the collection's chunks, citing the documents
// they came from.
func (s *Service) Query(ctx context.Context, query, collectionID string) (*domain.Answer, error) {
	start := time.Now()

	hits, err := s.retriever.Search(ctx, query, collectionID, 0)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		s.logger.Info().Str("collection_id", collectionID).Msg("no chunks matched query")
		return &domain.Answer{Answer: NoResultsAnswer, Sources: []domain.Source{}}, nil
	}

	answer, err := s.generator.Generate(ctx, BuildSystemPrompt(hits), query)
	if err != nil {
		if errors.Is(err, domain.ErrGeneration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	if strings.TrimSpace(answer) == "" {
		return nil, fmt.Errorf("%w: %s returned an empty response", domain.ErrGeneration, s.generator.Model())
	}

	sources := Sources(hits)
	s.logger.Info().
		Str("collection_id", collectionID).
		Int("chunks", len(hits)).
		Int("sources", len(sources)).
		Str("model", s.generator.Model()).
		Dur("elapsed", time.Since(start)).
		Msg("query answered")

	return &domain.Answer{Answer: answer, Sources: sources}, nil
}
