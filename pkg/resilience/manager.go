package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HardAttemptLimit bounds attempts per Execute regardless of policy.
const HardAttemptLimit = 10

// Operation is one attempt at a guarded call.
type Operation func(ctx context.Context) (interface{}, error)

// Result is what callers of Execute see. Errors never escape as panics or raw returns.
type Result struct {
	Success  bool
	Data     interface{}
	Err      error
	Attempts int
	Category Category
}

// MetricsRecorder receives retry-manager measurements.
type MetricsRecorder interface {
	RecordGenerationAttempt(module, outcome string)
	RecordGenerationRetry(module, category string)
	RecordGenerationError(category string)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Manager runs operations under per-module circuit breakers with classified retries.
type Manager struct {
	policies    PolicyTable
	breakers    *BreakerRegistry
	classifier  *Classifier
	maxAttempts int
	sleep       SleepFunc
	logger      zerolog.Logger
	metrics     MetricsRecorder
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger.With().Str("component", "retry-manager").Logger()
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(rec MetricsRecorder) ManagerOption {
	return func(m *Manager) {
		m.metrics = rec
	}
}

// WithSleeper replaces the backoff sleep. Tests use it to avoid real waits.
func WithSleeper(fn SleepFunc) ManagerOption {
	return func(m *Manager) {
		m.sleep = fn
	}
}

// WithMaxAttempts lowers the hard attempt limit. Values above HardAttemptLimit are clamped.
func WithMaxAttempts(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 && n < HardAttemptLimit {
			m.maxAttempts = n
		}
	}
}

// WithClassifier replaces the default classifier.
func WithClassifier(c *Classifier) ManagerOption {
	return func(m *Manager) {
		m.classifier = c
	}
}

// NewManager creates a retry manager. breakers is normally shared by the whole process.
func NewManager(policies PolicyTable, breakers *BreakerRegistry, opts ...ManagerOption) *Manager {
	if policies == nil {
		policies = DefaultPolicies()
	}
	if breakers == nil {
		breakers = NewBreakerRegistry(DefaultBreakerConfig())
	}
	m := &Manager{
		policies:    policies,
		breakers:    breakers,
		classifier:  NewClassifier(),
		maxAttempts: HardAttemptLimit,
		sleep:       contextSleep,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Breakers returns the registry used by the manager.
func (m *Manager) Breakers() *BreakerRegistry {
	return m.breakers
}

// Policies returns the retry table used by the manager.
func (m *Manager) Policies() PolicyTable {
	return m.policies
}

// Execute runs op for module. An open breaker fails fast without calling op. Otherwise op
// is retried per the policy of each failure's category, and the breaker is charged once
// when retries are exhausted.
func (m *Manager) Execute(ctx context.Context, module string, op Operation) Result {
	span := trace.SpanFromContext(ctx)
	cb := m.breakers.Get(module)

	if !cb.Allow() {
		openErr := cb.openError()
		m.recordAttempt(module, "rejected")
		span.AddEvent("circuit.rejected", trace.WithAttributes(
			attribute.String("module", module),
		))
		m.logger.Debug().
			Str("module", module).
			Dur("retry_after", openErr.RetryAfter).
			Msg("Circuit open, call rejected")
		return Result{Err: openErr, Category: CategoryCircuitOpen}
	}

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return Result{Err: err, Attempts: attempt, Category: m.classifier.ClassifyError(err)}
		}

		attempt++
		data, err := op(ctx)
		if err == nil {
			cb.RecordSuccess()
			m.recordAttempt(module, "success")
			if attempt > 1 {
				m.logger.Info().
					Str("module", module).
					Int("attempts", attempt).
					Msg("Call succeeded after retry")
			}
			return Result{Success: true, Data: data, Attempts: attempt}
		}

		category := m.classifier.ClassifyError(err)
		policy := m.policies.Lookup(category)
		m.recordAttempt(module, "failure")
		if m.metrics != nil {
			m.metrics.RecordGenerationError(string(category))
		}

		// A cancelled caller never charges the breaker.
		if ctx.Err() != nil {
			m.logger.Debug().
				Err(err).
				Str("module", module).
				Int("attempts", attempt).
				Msg("Call interrupted by cancellation")
			return Result{Err: err, Attempts: attempt, Category: category}
		}

		limit := policy.MaxRetries + 1
		if limit > m.maxAttempts {
			limit = m.maxAttempts
		}

		if attempt >= limit {
			cb.RecordFailure()
			span.AddEvent("retry.exhausted", trace.WithAttributes(
				attribute.String("module", module),
				attribute.String("error.category", string(category)),
				attribute.Int("attempts", attempt),
			))
			m.logger.Warn().
				Err(err).
				Str("module", module).
				Str("category", string(category)).
				Int("attempts", attempt).
				Msg("Call failed, retries exhausted")
			return Result{
				Err:      exhausted(module, category, attempt, err),
				Attempts: attempt,
				Category: category,
			}
		}

		delay := policy.Delay(attempt-1, category)
		if m.metrics != nil {
			m.metrics.RecordGenerationRetry(module, string(category))
		}
		span.AddEvent("retry.scheduled", trace.WithAttributes(
			attribute.String("module", module),
			attribute.String("error.category", string(category)),
			attribute.Int("attempt", attempt),
			attribute.Int64("delay_ms", delay.Milliseconds()),
		))
		m.logger.Debug().
			Err(err).
			Str("module", module).
			Str("category", string(category)).
			Int("attempt", attempt).
			Int("max_attempts", limit).
			Dur("delay", delay).
			Msg("Retrying after failure")

		if serr := m.sleep(ctx, delay); serr != nil {
			return Result{Err: fmt.Errorf("retry wait interrupted: %w", serr), Attempts: attempt, Category: category}
		}
	}
}

func (m *Manager) recordAttempt(module, outcome string) {
	if m.metrics != nil {
		m.metrics.RecordGenerationAttempt(module, outcome)
	}
}

func exhausted(module string, category Category, attempts int, err error) error {
	return NewGenerationError(category, "retries exhausted", err).
		WithModule(module).
		WithDetail("attempts", attempts)
}

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
