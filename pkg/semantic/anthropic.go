package semantic

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/liushuangls/go-anthropic/v2"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicGateway talks to the Anthropic messages API.
type AnthropicGateway struct {
	client *anthropic.Client
	cfg    Config
}

func NewAnthropicGateway(cfg Config) *AnthropicGateway {
	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicGateway{
		client: anthropic.NewClient(cfg.APIKey, opts...),
		cfg:    cfg,
	}
}

func (g *AnthropicGateway) IsAvailable(ctx context.Context) Availability {
	missing := g.cfg.missing(true)
	return Availability{
		Available: len(missing) == 0,
		Provider:  ProviderAnthropic,
		Model:     g.cfg.Model,
		Missing:   missing,
	}
}

func (g *AnthropicGateway) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "semantic.AnthropicGateway.Complete")
	defer span.End()

	if avail := g.IsAvailable(ctx); !avail.Available {
		return "", unavailableError(avail)
	}

	ctx, cancel := g.cfg.withTimeout(ctx)
	defer cancel()

	maxTokens := g.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	resp, err := g.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model: anthropic.Model(g.cfg.Model),
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(prompt),
				},
			},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for _, content := range resp.Content {
		if content.Text != nil {
			out.WriteString(*content.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("no response content")
	}
	return out.String(), nil
}
