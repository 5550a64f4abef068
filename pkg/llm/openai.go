package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tripforge/tripforge/pkg/config"
)

// DefaultOpenAIBaseURL is used when the configuration names no base URL.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// maxErrorBody bounds how much of an error response is kept in APIError.
const maxErrorBody = 2048

// OpenAIClient talks to any OpenAI-compatible chat completions API
// (OpenAI, Groq, Ollama, vLLM, ...).
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewOpenAIClient creates a chat completions client.
func NewOpenAIClient(cfg config.LLMConfig, logger zerolog.Logger) *OpenAIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: logger.With().Str("component", "openai").Str("model", cfg.Model).Logger(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Provider returns "openai".
func (c *OpenAIClient) Provider() string {
	return ProviderOpenAI
}

// GenerateText sends a chat completion request and returns the first choice.
func (c *OpenAIClient) GenerateText(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	reqBody := chatRequest{
		Model:          c.model,
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	if system != "" {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: "system", Content: system})
	}
	reqBody.Messages = append(reqBody.Messages, chatMessage{Role: "user", Content: user})

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(body))
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
			msg = er.Error.Message
		}
		return "", &APIError{Provider: ProviderOpenAI, Status: resp.StatusCode, Message: msg}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no content generated")
	}

	c.logger.Debug().
		Int("prompt_tokens", out.Usage.PromptTokens).
		Int("completion_tokens", out.Usage.CompletionTokens).
		Str("finish_reason", out.Choices[0].FinishReason).
		Msg("Chat completion finished")

	return out.Choices[0].Message.Content, nil
}

// Close releases idle connections.
func (c *OpenAIClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
