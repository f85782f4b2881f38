// Package llm adapts chat-completion backends to a single non-streaming
// Generate call.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/rag-lab/server/internal/domain"
	"github.com/rag-lab/server/internal/ollama"
)

// Generator produces one completion for a system prompt and a user message.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
	Model() string
}

// Providers.
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// DefaultOllamaModel is the chat model used against Ollama cloud when none is set.
const DefaultOllamaModel = "gpt-oss:20b-cloud"

// Config selects and configures a generation backend.
type Config struct {
	Provider  string
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// New builds the Generator named by cfg.Provider.
func New(ctx context.Context, cfg Config, logger *log.Logger) (Generator, error) {
	var (
		g   Generator
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = ollama.CloudBaseURL
		}
		client := ollama.NewClient(baseURL, ollama.WithAPIKey(cfg.APIKey), ollama.WithTimeout(cfg.Timeout))
		g = NewOllama(client, cfg.Model)
	case ProviderAnthropic:
		g, err = NewAnthropic(cfg)
	case ProviderGemini:
		g, err = NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("provider", cfg.Provider).
		Str("model", g.Model()).
		Msg("generation backend configured")
	return g, nil
}

// nonEmpty turns a blank completion into a generation error.
func nonEmpty(provider, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s returned an empty response", domain.ErrGeneration, provider)
	}
	return text, nil
}
