package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"

	"github.com/tripforge/tripforge/pkg/config"
	"github.com/tripforge/tripforge/pkg/resilience"
)

type capturedRequest struct {
	mu    sync.Mutex
	auth  string
	path  string
	body  chatRequest
	count int
}

func newChatServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.mu.Lock()
		captured.auth = r.Header.Get("Authorization")
		captured.path = r.URL.Path
		captured.count++
		_ = json.NewDecoder(r.Body).Decode(&captured.body)
		captured.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func newTestClient(baseURL string) *OpenAIClient {
	return NewOpenAIClient(config.LLMConfig{
		Provider:       ProviderOpenAI,
		Model:          "test-model",
		BaseURL:        baseURL + "/v1/",
		APIKey:         "secret",
		RequestTimeout: 5 * time.Second,
	}, zerolog.Nop())
}

func TestOpenAIGenerateText(t *testing.T) {
	srv, captured := newChatServer(t, http.StatusOK, `{
		"choices": [{"message": {"content": "{\"day\": 1}"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 4}
	}`)
	client := newTestClient(srv.URL)

	text, err := client.GenerateText(context.Background(), "You plan trips.", "Plan day 1.", 512, 0.4)
	if err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}
	if text != `{"day": 1}` {
		t.Errorf("unexpected text %q", text)
	}

	captured.mu.Lock()
	defer captured.mu.Unlock()
	if captured.path != "/v1/chat/completions" {
		t.Errorf("unexpected path %s", captured.path)
	}
	if captured.auth != "Bearer secret" {
		t.Errorf("unexpected auth header %q", captured.auth)
	}
	body := captured.body
	if body.Model != "test-model" || body.MaxTokens != 512 || body.Temperature != 0.4 {
		t.Errorf("unexpected request %+v", body)
	}
	if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[1].Content != "Plan day 1." {
		t.Errorf("unexpected messages %+v", body.Messages)
	}
	if body.ResponseFormat["type"] != "json_object" {
		t.Error("expected JSON response format")
	}
}

func TestOpenAIErrorsCarryStatus(t *testing.T) {
	classifier := resilience.NewClassifier()

	tests := []struct {
		name     string
		status   int
		body     string
		wantCat  resilience.Category
		wantText string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error": {"message": "slow down", "type": "requests"}}`, resilience.CategoryRateLimit, "slow down"},
		{"bad key", http.StatusUnauthorized, `{"error": {"message": "Incorrect API key provided"}}`, resilience.CategoryAuth, "Incorrect API key provided"},
		{"overloaded", http.StatusBadGateway, `upstream gone`, resilience.CategoryServer, "upstream gone"},
		{"bad request", http.StatusUnprocessableEntity, `{}`, resilience.CategoryData, "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newChatServer(t, tt.status, tt.body)
			_, err := newTestClient(srv.URL).GenerateText(context.Background(), "", "hi", 0, 0)

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.StatusCode() != tt.status || apiErr.Message != tt.wantText {
				t.Errorf("unexpected error %+v", apiErr)
			}
			if got := classifier.Classify(err, 0); got != tt.wantCat {
				t.Errorf("classified as %s, want %s", got, tt.wantCat)
			}
		})
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv, _ := newChatServer(t, http.StatusOK, `{"choices": []}`)
	if _, err := newTestClient(srv.URL).GenerateText(context.Background(), "", "hi", 0, 0); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestOpenAIHonoursContext(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(srv.URL).GenerateText(ctx, "", "hi", 0, 0)
	if err == nil {
		t.Fatal("expected deadline error")
	}
	if got := resilience.NewClassifier().Classify(err, 0); got != resilience.CategoryTimeout {
		t.Errorf("expected timeout_error, got %s", got)
	}
}

func TestConvertGeminiError(t *testing.T) {
	err := convertGeminiError(fmt.Errorf("rpc: %w", &googleapi.Error{Code: 503, Message: "model overloaded"}))
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 503 || apiErr.Provider != ProviderGemini {
		t.Fatalf("expected gemini APIError with 503, got %v", err)
	}

	blocked := convertGeminiError(&genai.BlockedError{})
	if got := resilience.NewClassifier().Classify(blocked, 0); got != resilience.CategoryData {
		t.Errorf("blocked responses should be data errors, got %s", got)
	}
}

func TestNewRequiresKey(t *testing.T) {
	cfg := config.Default().LLM
	cfg.APIKey = ""
	if _, err := New(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Error("gemini without an API key should fail")
	}

	cfg.Provider = ProviderOpenAI
	client, err := New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("openai-compatible endpoints may run without a key: %v", err)
	}
	if client.Provider() != ProviderOpenAI {
		t.Errorf("unexpected provider %s", client.Provider())
	}
	_ = client.Close()

	cfg.Provider = "claude"
	cfg.APIKey = "k"
	if _, err := New(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Error("unknown providers should fail")
	}
}
