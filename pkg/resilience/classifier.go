package resilience

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
)

// StatusCoder is implemented by errors that carry an upstream status code.
type StatusCoder interface {
	StatusCode() int
}

// keywordRule maps a set of lowercase substrings to a category.
type keywordRule struct {
	category Category
	patterns []string
}

// timeoutKeywords are checked before any other rule.
var timeoutKeywords = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
}

// defaultKeywordRules are evaluated in order; the first match wins.
var defaultKeywordRules = []keywordRule{
	{
		category: CategoryRateLimit,
		patterns: []string{"rate limit", "rate_limit", "ratelimit", "429", "quota", "too many requests", "resource exhausted", "resource_exhausted"},
	},
	{
		category: CategoryAuth,
		patterns: []string{"unauthorized", "unauthenticated", "forbidden", "invalid api key", "api key not valid", "authentication", "permission denied", "401", "403"},
	},
	{
		category: CategoryNetwork,
		patterns: []string{"connection refused", "connection reset", "connection closed", "no such host", "network is unreachable", "broken pipe", "unexpected eof", "dns", "dial tcp"},
	},
	{
		category: CategoryServer,
		patterns: []string{"internal server error", "bad gateway", "service unavailable", "overloaded", "500", "502", "503"},
	},
	{
		category: CategoryData,
		patterns: []string{"invalid json", "malformed", "unmarshal", "cannot parse", "failed to parse", "validation", "bad request", "invalid argument", "400"},
	},
}

// Classifier maps failures to categories. The zero value is not usable; use NewClassifier.
type Classifier struct {
	rules []keywordRule
}

// NewClassifier creates a classifier with the default keyword table.
func NewClassifier() *Classifier {
	return &Classifier{rules: defaultKeywordRules}
}

// Classify returns the category for err. statusCode may be 0 when unknown; a code carried
// by the error chain is used in that case.
func (c *Classifier) Classify(err error, statusCode int) Category {
	if err == nil && statusCode == 0 {
		return CategoryUnknown
	}

	if isTimeout(err) {
		return CategoryTimeout
	}

	// Errors classified at the source keep their category.
	var genErr *GenerationError
	if errors.As(err, &genErr) && genErr.Category != "" && genErr.Category != CategoryUnknown {
		return genErr.Category
	}

	if err != nil {
		msg := strings.ToLower(err.Error())
		for _, kw := range timeoutKeywords {
			if strings.Contains(msg, kw) {
				return CategoryTimeout
			}
		}
		for _, rule := range c.rules {
			for _, p := range rule.patterns {
				if strings.Contains(msg, p) {
					return rule.category
				}
			}
		}
	}

	if statusCode == 0 {
		statusCode = statusFromError(err)
	}

	return categoryForStatus(statusCode)
}

// ClassifyError classifies err using only what the error chain exposes.
func (c *Classifier) ClassifyError(err error) Category {
	return c.Classify(err, 0)
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) && genErr.Category == CategoryTimeout {
		return true
	}
	return false
}

func statusFromError(err error) int {
	if err == nil {
		return 0
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.StatusCode
	}
	return 0
}

func categoryForStatus(code int) Category {
	switch {
	case code == 401 || code == 403:
		return CategoryAuth
	case code == 429:
		return CategoryRateLimit
	case code >= 400 && code < 500:
		return CategoryData
	case code >= 500 && code < 600:
		return CategoryServer
	default:
		return CategoryUnknown
	}
}
