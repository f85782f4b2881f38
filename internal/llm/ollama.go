package llm

import (
	"context"
	"fmt"

	"github.com/rag-lab/server/internal/domain"
	"github.com/rag-lab/server/internal/ollama"
)

// Ollama generates with the /api/chat endpoint of a local or cloud server.
type Ollama struct {
	client *ollama.Client
	model  string
}

var _ Generator = (*Ollama)(nil)

// NewOllama creates an Ollama generator.
func NewOllama(client *ollama.Client, model string) *Ollama {
	if model == "" {
		model = DefaultOllamaModel
	}
	return &Ollama{client: client, model: model}
}

// Model returns the chat model name.
func (o *Ollama) Model() string {
	return o.model
}

// Generate sends the system prompt and user message as one chat request.
func (o *Ollama) Generate(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.Chat(ctx, &ollama.ChatRequest{
		Model: o.model,
		Messages: []ollama.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: ollama chat failed: %w", domain.ErrGeneration, err)
	}
	if resp.Message == nil {
		return "", fmt.Errorf("%w: ollama returned no message", domain.ErrGeneration)
	}
	return nonEmpty("ollama", resp.Message.Content)
}
