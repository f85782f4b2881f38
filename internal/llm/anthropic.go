package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rag-lab/server/internal/domain"
)

// DefaultAnthropicModel is used when no Claude model is configured.
const DefaultAnthropicModel = "claude-sonnet-4-5"

// Anthropic generates with the Claude Messages API.
type Anthropic struct {
	messages  *anthropic.MessageService
	model     string
	maxTokens int64
}

var _ Generator = (*Anthropic)(nil)

// NewAnthropic creates a Claude generator.
func NewAnthropic(cfg Config) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Anthropic{
		messages:  &client.Messages,
		model:     model,
		maxTokens: int64(maxTokens),
	}, nil
}

// Model returns the Claude model name.
func (a *Anthropic) Model() string {
	return a.model
}

// Generate sends one Messages request with the system prompt set.
func (a *Anthropic) Generate(ctx context.Context, system, user string) (string, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: Claude API call failed: %w", domain.ErrGeneration, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return nonEmpty("anthropic", text.String())
}
