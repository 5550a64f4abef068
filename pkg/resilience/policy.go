package resilience

import (
	"fmt"
	"time"
)

// BackoffStrategy selects how the delay grows between attempts.
type BackoffStrategy string

const (
	// BackoffExponential doubles the delay on every attempt.
	BackoffExponential BackoffStrategy = "exponential"

	// BackoffLinear grows the delay by one base step per attempt.
	BackoffLinear BackoffStrategy = "linear"

	// BackoffAdaptive is exponential with a per-category multiplier on the base.
	BackoffAdaptive BackoffStrategy = "adaptive"
)

// RetryPolicy describes how one error category is retried.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt. Zero disables retrying.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// BaseDelay is the delay unit used by the strategy.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`

	// MaxDelay caps every computed delay.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`

	// Strategy selects the growth function.
	Strategy BackoffStrategy `json:"strategy" yaml:"strategy"`
}

// Validate checks a single policy.
func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got: %d", p.MaxRetries)
	}
	if p.MaxRetries == 0 {
		return nil
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("max delay %s is below base delay %s", p.MaxDelay, p.BaseDelay)
	}
	switch p.Strategy {
	case BackoffExponential, BackoffLinear, BackoffAdaptive:
	default:
		return fmt.Errorf("invalid backoff strategy: %q", p.Strategy)
	}
	return nil
}

// PolicyTable maps categories to retry policies. It is built once and read-only afterwards.
type PolicyTable map[Category]RetryPolicy

// DefaultPolicies returns the built-in retry table.
func DefaultPolicies() PolicyTable {
	return PolicyTable{
		CategoryRateLimit: {MaxRetries: 5, BaseDelay: 5 * time.Second, MaxDelay: 120 * time.Second, Strategy: BackoffExponential},
		CategoryNetwork:   {MaxRetries: 4, BaseDelay: 2 * time.Second, MaxDelay: 60 * time.Second, Strategy: BackoffAdaptive},
		CategoryAuth:      {MaxRetries: 0},
		CategoryData:      {MaxRetries: 2, BaseDelay: 1 * time.Second, MaxDelay: 30 * time.Second, Strategy: BackoffLinear},
		CategoryServer:    {MaxRetries: 3, BaseDelay: 3 * time.Second, MaxDelay: 90 * time.Second, Strategy: BackoffExponential},
		CategoryTimeout:   {MaxRetries: 3, BaseDelay: 2 * time.Second, MaxDelay: 45 * time.Second, Strategy: BackoffAdaptive},
		CategoryUnknown:   {MaxRetries: 2, BaseDelay: 1 * time.Second, MaxDelay: 30 * time.Second, Strategy: BackoffExponential},
	}
}

// Lookup returns the policy for c, falling back to the unknown_error policy.
func (t PolicyTable) Lookup(c Category) RetryPolicy {
	if p, ok := t[c]; ok {
		return p
	}
	if p, ok := t[CategoryUnknown]; ok {
		return p
	}
	return RetryPolicy{}
}

// With returns a copy of the table with overrides applied.
func (t PolicyTable) With(overrides map[Category]RetryPolicy) PolicyTable {
	out := make(PolicyTable, len(t)+len(overrides))
	for c, p := range t {
		out[c] = p
	}
	for c, p := range overrides {
		out[c] = p
	}
	return out
}

// Validate checks every policy in the table. Auth failures must never be retried.
func (t PolicyTable) Validate() error {
	for c, p := range t {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid policy for %s: %w", c, err)
		}
	}
	if p, ok := t[CategoryAuth]; ok && p.MaxRetries != 0 {
		return fmt.Errorf("auth_error must not be retried, got max_retries=%d", p.MaxRetries)
	}
	return nil
}
