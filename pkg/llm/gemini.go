package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/tripforge/tripforge/pkg/config"
)

// GeminiClient generates text with the Google Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger zerolog.Logger
}

// NewGeminiClient creates a new Gemini API client.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig, logger zerolog.Logger) (*GeminiClient, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  cfg.Model,
		logger: logger.With().Str("component", "gemini").Str("model", cfg.Model).Logger(),
	}, nil
}

// Provider returns "gemini".
func (c *GeminiClient) Provider() string {
	return ProviderGemini
}

// GenerateText sends one system and user prompt pair and returns the text of the first candidate.
func (c *GeminiClient) GenerateText(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	// Models are cheap handles; one per call keeps settings from leaking between goroutines.
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(float32(temperature))
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}
	model.ResponseMIMEType = "application/json"
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", convertGeminiError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("generated content is not text")
	}

	if resp.UsageMetadata != nil {
		c.logger.Debug().
			Int32("prompt_tokens", resp.UsageMetadata.PromptTokenCount).
			Int32("completion_tokens", resp.UsageMetadata.CandidatesTokenCount).
			Msg("Gemini generation finished")
	}

	return b.String(), nil
}

// Close closes the underlying Gemini client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// httpCoder matches gax apierror.APIError without importing it.
type httpCoder interface {
	HTTPCode() int
}

// convertGeminiError surfaces the HTTP status of a failed call as an APIError.
func convertGeminiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{Provider: ProviderGemini, Status: gerr.Code, Message: gerr.Message}
	}

	var coder httpCoder
	if errors.As(err, &coder) && coder.HTTPCode() > 0 {
		return &APIError{Provider: ProviderGemini, Status: coder.HTTPCode(), Message: err.Error()}
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return fmt.Errorf("malformed response: generation blocked: %w", err)
	}

	return fmt.Errorf("failed to generate content: %w", err)
}
