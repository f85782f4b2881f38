// Package embeddings turns text into vectors through an Ollama server.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/phuslu/log"

	"github.com/rag-lab/server/internal/domain"
	"github.com/rag-lab/server/internal/ollama"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "nomic-embed-text"

// Health reasons reported to callers.
const (
	ReasonUnreachable   = "Cannot connect to Ollama. Is it running? (Ollama serve)"
	ReasonNotResponding = "Ollama is not responding"
)

// TextEmbedder generates text embeddings using Ollama
type TextEmbedder struct {
	client *ollama.Client
	model  string
	logger *log.Logger
}

// NewTextEmbedder creates a new text embedder
func NewTextEmbedder(client *ollama.Client, model string, logger *log.Logger) *TextEmbedder {
	if model == "" {
		model = DefaultModel
	}
	return &TextEmbedder{
		client: client,
		model:  model,
		logger: logger,
	}
}

// Model returns the embedding model name.
func (e *TextEmbedder) Model() string {
	return e.model
}

// Embed generates an embedding for the given text
func (e *TextEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embed(ctx, &ollama.EmbedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, &domain.UpstreamError{
			Service:    "ollama",
			StatusCode: http.StatusOK,
			Body:       "empty embedding returned",
		}
	}
	return resp.Embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in a single request.
// Vectors come back in input order.
func (e *TextEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embed(ctx, &ollama.EmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to embed batch of %d texts: %w", len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, &domain.UpstreamError{
			Service:    "ollama",
			StatusCode: http.StatusOK,
			Body:       fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings)),
		}
	}

	e.logger.Debug().
		Str("model", e.model).
		Int("texts", len(texts)).
		Int("dimensions", len(resp.Embeddings[0])).
		Msg("embedded batch")

	return resp.Embeddings, nil
}

// Health checks that the server is reachable and has every required model.
// An empty list checks the embedding model only. Problems are reported in
// the returned status, never as an error.
func (e *TextEmbedder) Health(ctx context.Context, required ...string) domain.HealthStatus {
	if len(required) == 0 {
		required = []string{e.model}
	}

	models, err := e.client.ListModels(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Str("base_url", e.client.BaseURL()).Msg("ollama health check failed")
		if errors.Is(err, domain.ErrUpstream) {
			return domain.HealthStatus{Available: false, Reason: ReasonNotResponding}
		}
		return domain.HealthStatus{Available: false, Reason: ReasonUnreachable}
	}

	missing := ollama.MissingModels(ollama.ModelNames(models), required)
	if len(missing) > 0 {
		return domain.HealthStatus{
			Available: false,
			Reason:    fmt.Sprintf("Missing models: %s. Run: ollama pull <model_name>", strings.Join(missing, ", ")),
			Missing:   missing,
		}
	}

	return domain.HealthStatus{Available: true, Models: required}
}
