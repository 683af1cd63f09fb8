package semantic

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/sashabaranov/go-openai"
)

// OpenAIGateway talks to the OpenAI chat completions API or any compatible server.
type OpenAIGateway struct {
	client     *openai.Client
	cfg        Config
	provider   string
	requireKey bool
}

func NewOpenAIGateway(cfg Config) *OpenAIGateway {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	return &OpenAIGateway{
		client:     openai.NewClientWithConfig(config),
		cfg:        cfg,
		provider:   ProviderOpenAI,
		requireKey: true,
	}
}

// NewOllamaGateway uses the OpenAI-compatible endpoint Ollama serves under /v1.
func NewOllamaGateway(cfg Config) *OpenAIGateway {
	cfg.BaseURL = ollamaBaseURL(cfg.BaseURL)
	if cfg.APIKey == "" {
		cfg.APIKey = "ollama" // ignored by ollama, required by the client
	}
	g := NewOpenAIGateway(cfg)
	g.provider = ProviderOllama
	g.requireKey = false
	return g
}

func (g *OpenAIGateway) IsAvailable(ctx context.Context) Availability {
	missing := g.cfg.missing(g.requireKey)
	return Availability{
		Available: len(missing) == 0,
		Provider:  g.provider,
		Model:     g.cfg.Model,
		Missing:   missing,
	}
}

func (g *OpenAIGateway) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "semantic.OpenAIGateway.Complete")
	defer span.End()

	if avail := g.IsAvailable(ctx); !avail.Available {
		return "", unavailableError(avail)
	}

	ctx, cancel := g.cfg.withTimeout(ctx)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: g.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0,
	}
	if g.cfg.MaxTokens > 0 {
		req.MaxTokens = g.cfg.MaxTokens
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}
