package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	"github.com/rag-lab/server/internal/domain"
)

// DefaultGeminiModel is used when no Gemini model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini generates with the Google Gen AI SDK.
type Gemini struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

var _ Generator = (*Gemini)(nil)

// NewGemini creates a Gemini generator.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{client: client, model: model, maxTokens: outputTokenLimit(cfg.MaxTokens)}, nil
}

// outputTokenLimit converts a configured token limit to the SDK's int32,
// clamping values that do not fit. Non-positive values mean no limit.
func outputTokenLimit(n int) int32 {
	switch {
	case n <= 0:
		return 0
	case n > math.MaxInt32:
		return math.MaxInt32
	}
	return int32(n)
}

// Model returns the Gemini model name.
func (g *Gemini) Model() string {
	return g.model
}

// Generate runs one GenerateContent call with the system prompt as the
// system instruction.
func (g *Gemini) Generate(ctx context.Context, system, user string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}
	if g.maxTokens > 0 {
		config.MaxOutputTokens = g.maxTokens
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(user, genai.RoleUser)}, config)
	if err != nil {
		return "", fmt.Errorf("%w: Gemini API call failed: %w", domain.ErrGeneration, err)
	}

	var text strings.Builder
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand == nil || cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part != nil {
					text.WriteString(part.Text)
				}
			}
			break
		}
	}
	return nonEmpty("gemini", text.String())
}
