// Package semantic asks an external language model to confirm or reject candidate payee
// matches. Providers sit behind the narrow Gateway contract.
package semantic

import (
	"context"
	"time"
)

const (
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
)

// Availability describes whether a gateway can take calls and, if not, which
// configuration is missing.
type Availability struct {
	Available bool     `json:"available"`
	Provider  string   `json:"provider"`
	Model     string   `json:"model,omitempty"`
	Missing   []string `json:"missing,omitempty"`
}

// Gateway is an external semantic completion service.
type Gateway interface {
	IsAvailable(ctx context.Context) Availability
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

func (c Config) missing(requireKey bool) []string {
	var missing []string
	if requireKey && c.APIKey == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if c.Model == "" {
		missing = append(missing, "LLM_MODEL")
	}
	return missing
}

func (c Config) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}

// Disabled is the gateway used when no provider is configured.
type Disabled struct {
	Reason []string
}

func (d Disabled) IsAvailable(ctx context.Context) Availability {
	missing := d.Reason
	if len(missing) == 0 {
		missing = []string{"LLM_PROVIDER"}
	}
	return Availability{Provider: ProviderNone, Missing: missing}
}

func (d Disabled) Complete(ctx context.Context, prompt string) (string, error) {
	return "", unavailableError(d.IsAvailable(ctx))
}
