package semantic

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/models"
)

const defaultOllamaURL = "http://localhost:11434/v1"

// NewGateway builds the gateway for cfg.Provider. An empty or "none" provider yields a
// Disabled gateway so detection can report the missing configuration instead of failing.
func NewGateway(ctx context.Context, cfg Config, logger ectologger.Logger) (Gateway, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	log := logger.WithFields(map[string]any{"provider": provider, "model": cfg.Model})

	var gateway Gateway
	switch provider {
	case "", ProviderNone:
		return Disabled{}, nil
	case ProviderOpenAI:
		gateway = NewOpenAIGateway(cfg)
	case ProviderOllama:
		gateway = NewOllamaGateway(cfg)
	case ProviderAnthropic:
		gateway = NewAnthropicGateway(cfg)
	case ProviderGemini:
		g, err := NewGeminiGateway(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		gateway = g
	default:
		return nil, models.NewValidationError("unsupported LLM provider '%s'", cfg.Provider)
	}

	if avail := gateway.IsAvailable(ctx); !avail.Available {
		log.WithField("missing", avail.Missing).Warn("Semantic gateway configured but unavailable")
	} else {
		log.Info("Semantic gateway ready")
	}
	return gateway, nil
}

func ollamaBaseURL(base string) string {
	if base == "" {
		return defaultOllamaURL
	}
	base = strings.TrimRight(base, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base
}

func unavailableError(avail Availability) error {
	return models.NewExternalUnavailableError(avail.Missing, "semantic gateway '%s' is not configured", avail.Provider)
}
