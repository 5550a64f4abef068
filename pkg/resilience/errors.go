package resilience

import (
	"errors"
	"fmt"
	"time"
)

// Category is the classification of a generation failure used for retry decisions.
type Category string

const (
	// CategoryRateLimit indicates the upstream rejected the call because of quota or rate limits.
	CategoryRateLimit Category = "rate_limit"

	// CategoryNetwork indicates a connectivity failure (refused, reset, DNS).
	CategoryNetwork Category = "network_error"

	// CategoryAuth indicates rejected credentials. Never retried.
	CategoryAuth Category = "auth_error"

	// CategoryData indicates a malformed request or an unusable response.
	CategoryData Category = "data_error"

	// CategoryServer indicates a 5xx-style upstream failure.
	CategoryServer Category = "server_error"

	// CategoryTimeout indicates the call exceeded its deadline.
	CategoryTimeout Category = "timeout_error"

	// CategoryUnknown is the fallback when nothing else matches.
	CategoryUnknown Category = "unknown_error"

	// CategoryCircuitOpen is synthetic: raised by the manager without consulting the classifier.
	CategoryCircuitOpen Category = "circuit_open"
)

// Categories lists the classifiable categories in a stable order.
func Categories() []Category {
	return []Category{
		CategoryRateLimit,
		CategoryNetwork,
		CategoryAuth,
		CategoryData,
		CategoryServer,
		CategoryTimeout,
		CategoryUnknown,
	}
}

// ParseCategory converts a string to a known Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown error category: %q", s)
}

// ErrCircuitOpen is matched by errors.Is for every CircuitOpenError.
var ErrCircuitOpen = errors.New("circuit open")

// GenerationError is a classified failure with call context.
type GenerationError struct {
	// Category is the classification used for retry logic.
	Category Category `json:"category"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Module is the logical module (breaker key) the call belonged to.
	Module string `json:"module,omitempty"`

	// Operation describes what was being attempted.
	Operation string `json:"operation,omitempty"`

	// StatusCode is the upstream status code, when one was available.
	StatusCode int `json:"status_code,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Module != "" {
		return fmt.Sprintf("[%s] module=%s: %s", e.Category, e.Module, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Category, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is reports equality on category and code so callers can match on templates.
func (e *GenerationError) Is(target error) bool {
	t, ok := target.(*GenerationError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// NewGenerationError creates a classified error.
func NewGenerationError(category Category, message string, err error) *GenerationError {
	return &GenerationError{
		Category: category,
		Message:  message,
		Err:      err,
	}
}

// WithModule adds module context to an error.
func (e *GenerationError) WithModule(module string) *GenerationError {
	e.Module = module
	return e
}

// WithOperation adds operation context to an error.
func (e *GenerationError) WithOperation(operation string) *GenerationError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *GenerationError) WithCode(code string) *GenerationError {
	e.Code = code
	return e
}

// WithStatus records the upstream status code.
func (e *GenerationError) WithStatus(status int) *GenerationError {
	e.StatusCode = status
	return e
}

// WithDetail adds a detail field to the error context.
func (e *GenerationError) WithDetail(key string, value interface{}) *GenerationError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// CircuitOpenError is returned when a module's breaker rejects a call.
type CircuitOpenError struct {
	Module     string
	OpenedAt   time.Time
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for module %s (retry after %s)", e.Module, e.RetryAfter.Round(time.Millisecond))
}

// Is makes errors.Is(err, ErrCircuitOpen) succeed.
func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// CategoryOf returns the category carried by err, or CategoryUnknown.
func CategoryOf(err error) Category {
	if errors.Is(err, ErrCircuitOpen) {
		return CategoryCircuitOpen
	}
	var e *GenerationError
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryUnknown
}

// IsAuth returns true if the error is classified as an auth failure.
func IsAuth(err error) bool {
	return CategoryOf(err) == CategoryAuth
}

// IsRateLimited returns true if the error is classified as rate limiting.
func IsRateLimited(err error) bool {
	return CategoryOf(err) == CategoryRateLimit
}

// IsRetryable returns true if the error's category has retries in the default table.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	c := CategoryOf(err)
	if c == CategoryCircuitOpen {
		return false
	}
	return DefaultPolicies().Lookup(c).MaxRetries > 0
}

// Common error codes.
const (
	ErrCodeEmptyResponse   = "EMPTY_RESPONSE"
	ErrCodeMalformedJSON   = "MALFORMED_JSON"
	ErrCodeIncompleteEntry = "INCOMPLETE_ENTRY"
	ErrCodePromptBuild     = "PROMPT_BUILD_FAILED"
	ErrCodeUpstream        = "UPSTREAM_ERROR"
)
