package semantic

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiGateway talks to the Google Gemini API. Without an API key no client is created
// and the gateway reports itself unavailable.
type GeminiGateway struct {
	client *genai.Client
	cfg    Config
}

func NewGeminiGateway(ctx context.Context, cfg Config) (*GeminiGateway, error) {
	g := &GeminiGateway{cfg: cfg}
	if cfg.APIKey == "" {
		return g, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, err
	}
	g.client = client
	return g, nil
}

func (g *GeminiGateway) IsAvailable(ctx context.Context) Availability {
	missing := g.cfg.missing(true)
	return Availability{
		Available: len(missing) == 0 && g.client != nil,
		Provider:  ProviderGemini,
		Model:     g.cfg.Model,
		Missing:   missing,
	}
}

func (g *GeminiGateway) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "semantic.GeminiGateway.Complete")
	defer span.End()

	if avail := g.IsAvailable(ctx); !avail.Available {
		return "", unavailableError(avail)
	}

	ctx, cancel := g.cfg.withTimeout(ctx)
	defer cancel()

	model := g.client.GenerativeModel(g.cfg.Model)
	if g.cfg.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(g.cfg.MaxTokens))
	}
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	var out strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				out.WriteString(string(txt))
			}
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("no response candidates or content")
	}
	return out.String(), nil
}

// Close releases the underlying client.
func (g *GeminiGateway) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
