// Package llm provides the text generators used for per-day plan generation:
// Google Gemini and any OpenAI-compatible chat completions endpoint.
package llm

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/tripforge/tripforge/pkg/config"
	"github.com/tripforge/tripforge/pkg/itinerary"
)

// Provider names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Client is a text generator holding resources that must be released.
type Client interface {
	itinerary.TextGenerator
	io.Closer

	// Provider returns the provider name used in metrics.
	Provider() string
}

// APIError is a non-success response from a provider. StatusCode lets the
// retry classifier pick a category from the HTTP status.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error: status=%d %s", e.Provider, e.Status, e.Message)
}

// StatusCode returns the HTTP status of the response.
func (e *APIError) StatusCode() int {
	return e.Status
}

// New builds the client selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig, logger zerolog.Logger) (Client, error) {
	if cfg.APIKey == "" && cfg.Provider != ProviderOpenAI {
		return nil, fmt.Errorf("no API key configured for %s (set %s)", cfg.Provider, config.EnvAPIKey)
	}

	switch cfg.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", cfg.Provider)
	}
}
