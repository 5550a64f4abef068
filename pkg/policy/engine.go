package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage"
	"github.com/open-policy-agent/opa/storage/inmem"
	"github.com/rs/zerolog"

	"github.com/tripforge/tripforge/pkg/itinerary"
)

// Engine reviews assembled plans against compiled Rego policies.
type Engine struct {
	mu              sync.RWMutex
	policies        map[string]*compiledPolicy
	store           storage.Store
	logger          zerolog.Logger
	loader          *Loader
	paths           []string
	builtinPolicies []Policy
}

// compiledPolicy represents a compiled Rego policy.
type compiledPolicy struct {
	policy   *Policy
	module   *ast.Module
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithoutBuiltins skips the built-in policies.
func WithoutBuiltins() Option {
	return func(e *Engine) {
		e.builtinPolicies = nil
	}
}

// NewEngine creates a policy engine loaded with the built-in policies.
func NewEngine(logger zerolog.Logger, opts ...Option) (*Engine, error) {
	e := &Engine{
		policies:        make(map[string]*compiledPolicy),
		store:           inmem.New(),
		logger:          logger.With().Str("component", "policy-engine").Logger(),
		builtinPolicies: GetBuiltinPolicies(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.loader = NewLoader(e.logger)

	if err := e.loadBuiltinPolicies(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load built-in policies: %w", err)
	}

	return e, nil
}

// Review evaluates every enabled policy against one variant.
// A policy that fails to evaluate is skipped and reported in the returned error;
// violations from the other policies are still returned.
func (e *Engine) Review(ctx context.Context, input *PolicyInput) ([]itinerary.Violation, error) {
	if input == nil || input.Plan == nil {
		return nil, nil
	}

	startTime := time.Now()
	e.mu.RLock()
	compiled := make([]*compiledPolicy, 0, len(e.policies))
	for _, cp := range e.policies {
		if cp.policy.Enabled {
			compiled = append(compiled, cp)
		}
	}
	e.mu.RUnlock()

	sort.Slice(compiled, func(i, j int) bool {
		return compiled[i].policy.Name < compiled[j].policy.Name
	})

	var violations []itinerary.Violation
	var errs []error
	for _, cp := range compiled {
		found, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			if ctx.Err() != nil {
				return violations, ctx.Err()
			}
			e.logger.Error().Err(err).
				Str("policy", cp.policy.Name).
				Str("request_id", input.RequestID).
				Msg("Policy evaluation failed")
			errs = append(errs, fmt.Errorf("policy %s: %w", cp.policy.Name, err))
			continue
		}
		violations = append(violations, found...)
	}

	e.logger.Debug().
		Str("request_id", input.RequestID).
		Str("variant", input.Variant.Name).
		Int("policies", len(compiled)).
		Int("violations", len(violations)).
		Dur("duration", time.Since(startTime)).
		Msg("Plan review completed")

	return violations, errors.Join(errs...)
}

// evaluatePolicy evaluates a single compiled policy.
func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input *PolicyInput) ([]itinerary.Violation, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []itinerary.Violation
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		denySet, ok := result.Expressions[0].Value.([]interface{})
		if !ok {
			continue
		}
		for _, d := range denySet {
			violations = append(violations, createViolation(cp.policy, d))
		}
	}

	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].Day != violations[j].Day {
			return violations[i].Day < violations[j].Day
		}
		return violations[i].Message < violations[j].Message
	})
	return violations, nil
}

// createViolation converts one deny entry. Entries are either a message string
// or an object with message and optional severity and day.
func createViolation(policy *Policy, result interface{}) itinerary.Violation {
	violation := itinerary.Violation{
		Policy:   policy.Name,
		Severity: string(policy.Severity),
	}

	switch v := result.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if sev, ok := v["severity"].(string); ok && Severity(sev).Valid() {
			violation.Severity = sev
		}
		violation.Day = intValue(v["day"])
	default:
		violation.Message = fmt.Sprintf("%v", result)
	}

	return violation
}

func intValue(v interface{}) int {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// compilePolicy parses a policy and prepares its deny query.
func (e *Engine) compilePolicy(ctx context.Context, policy *Policy) (*compiledPolicy, error) {
	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	if module == nil || module.Package == nil {
		return nil, fmt.Errorf("policy %s has no package", policy.Name)
	}

	if !policy.Severity.Valid() {
		policy.Severity = SeverityWarning
	}

	r := rego.New(
		rego.Module(policy.Name, policy.Rego),
		rego.Store(e.store),
		rego.Query(module.Package.Path.String()+".deny"),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare query: %w", err)
	}

	e.logger.Debug().
		Str("policy", policy.Name).
		Msg("Policy compiled successfully")

	return &compiledPolicy{
		policy:   policy,
		module:   module,
		query:    query,
		compiled: time.Now(),
	}, nil
}

// loadBuiltinPolicies compiles the built-in policies. Callers hold no lock or the write lock.
func (e *Engine) loadBuiltinPolicies(ctx context.Context) error {
	for i := range e.builtinPolicies {
		p := e.builtinPolicies[i]
		cp, err := e.compilePolicy(ctx, &p)
		if err != nil {
			return fmt.Errorf("failed to compile built-in policy %s: %w", p.Name, err)
		}
		e.policies[p.Name] = cp
	}

	e.logger.Debug().
		Int("count", len(e.builtinPolicies)).
		Msg("Built-in policies loaded")

	return nil
}

// LoadPolicies loads .rego and .json policies from files or directories.
// A user policy replaces a built-in one of the same name. Nothing is applied
// unless every policy compiles.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	policies, err := e.loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	if err := e.apply(ctx, policies); err != nil {
		return err
	}

	e.mu.Lock()
	e.paths = append([]string(nil), paths...)
	e.mu.Unlock()

	e.logger.Info().
		Int("count", len(policies)).
		Msg("Policies loaded successfully")

	return nil
}

// apply compiles user policies and swaps them in, dropping user policies
// that no longer exist.
func (e *Engine) apply(ctx context.Context, policies []Policy) error {
	compiled := make(map[string]*compiledPolicy, len(policies))
	for i := range policies {
		cp, err := e.compilePolicy(ctx, &policies[i])
		if err != nil {
			e.logger.Error().Err(err).
				Str("policy", policies[i].Name).
				Msg("Failed to compile policy")
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
		compiled[policies[i].Name] = cp
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for name, cp := range e.policies {
		if !cp.policy.Builtin {
			delete(e.policies, name)
		}
	}
	if len(e.policies) < len(e.builtinPolicies) {
		if err := e.loadBuiltinPolicies(ctx); err != nil {
			return err
		}
	}
	for name, cp := range compiled {
		e.policies[name] = cp
	}
	return nil
}

// Watch reloads user policies when files under the loaded paths change.
// It stops when ctx is done.
func (e *Engine) Watch(ctx context.Context) error {
	e.mu.RLock()
	paths := append([]string(nil), e.paths...)
	e.mu.RUnlock()

	if len(paths) == 0 {
		return nil
	}

	return e.loader.Watch(ctx, paths, func(policies []Policy) error {
		return e.apply(ctx, policies)
	})
}

// Close stops watching policy files.
func (e *Engine) Close() error {
	return e.loader.StopWatching()
}

// GetPolicy returns a policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp, exists := e.policies[name]
	if !exists {
		return nil, fmt.Errorf("policy not found: %s", name)
	}

	p := *cp.policy
	return &p, nil
}

// ListPolicies returns all loaded policies sorted by name.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, cp := range e.policies {
		policies = append(policies, *cp.policy)
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].Name < policies[j].Name })

	return policies
}

// Summaries describes every loaded policy.
func (e *Engine) Summaries() []PolicySummary {
	policies := e.ListPolicies()
	out := make([]PolicySummary, len(policies))
	for i, p := range policies {
		out[i] = PolicySummary{
			Name:        p.Name,
			Description: p.Description,
			Severity:    p.Severity,
			Enabled:     p.Enabled,
			Builtin:     p.Builtin,
		}
		if src, ok := p.Metadata["source"].(string); ok {
			out[i].Source = src
		}
	}
	return out
}

// ReloadPolicies re-reads user policies from the paths last loaded.
func (e *Engine) ReloadPolicies(ctx context.Context) error {
	e.mu.RLock()
	paths := append([]string(nil), e.paths...)
	e.mu.RUnlock()

	e.loader.ClearCache()
	policies, err := e.loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to reload policies: %w", err)
	}
	return e.apply(ctx, policies)
}

// EnablePolicy enables a policy by name.
func (e *Engine) EnablePolicy(name string) error {
	return e.setEnabled(name, true)
}

// DisablePolicy disables a policy by name.
func (e *Engine) DisablePolicy(name string) error {
	return e.setEnabled(name, false)
}

func (e *Engine) setEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, exists := e.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}

	cp.policy.Enabled = enabled
	e.logger.Info().Str("policy", name).Bool("enabled", enabled).Msg("Policy state changed")

	return nil
}
