package resilience

import (
	"sort"
	"sync"
	"time"
)

// CircuitState is the state of a module's circuit breaker.
type CircuitState int

const (
	// StateClosed allows all calls.
	StateClosed CircuitState = iota
	// StateOpen rejects calls until the recovery timeout elapses.
	StateOpen
	// StateHalfOpen allows a bounded number of probe calls.
	StateHalfOpen
)

// String returns the state name.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig holds the thresholds shared by every breaker in a registry.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens a closed breaker.
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`

	// RecoveryTimeout is how long an open breaker waits before probing.
	RecoveryTimeout time.Duration `json:"recovery_timeout" yaml:"recovery_timeout"`

	// SuccessThreshold is the number of half-open successes that closes the breaker.
	SuccessThreshold int `json:"success_threshold" yaml:"success_threshold"`
}

// DefaultBreakerConfig returns the default thresholds (5 failures, 60s, 3 successes).
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 3,
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	d := DefaultBreakerConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = d.RecoveryTimeout
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	return c
}

// BreakerSnapshot is a point-in-time copy of a breaker's state.
type BreakerSnapshot struct {
	Module          string       `json:"module"`
	State           CircuitState `json:"-"`
	StateName       string       `json:"state"`
	FailureCount    int          `json:"failure_count"`
	SuccessCount    int          `json:"success_count"`
	LastFailureTime time.Time    `json:"last_failure_time,omitempty"`
}

// StateChangeFunc observes breaker transitions. It is called outside the breaker lock.
type StateChangeFunc func(module string, from, to CircuitState)

// CircuitBreaker is the state machine for one module.
type CircuitBreaker struct {
	module string
	config BreakerConfig
	now    func() time.Time

	mu              sync.Mutex
	state           CircuitState
	failureCount    int
	successCount    int
	lastFailureTime time.Time

	onChange StateChangeFunc
}

func newCircuitBreaker(module string, cfg BreakerConfig, now func() time.Time, onChange StateChangeFunc) *CircuitBreaker {
	return &CircuitBreaker{
		module:   module,
		config:   cfg,
		now:      now,
		state:    StateClosed,
		onChange: onChange,
	}
}

// Allow reports whether a call may proceed. An open breaker whose recovery timeout has
// elapsed moves to half-open here.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	from := cb.state
	allowed := false

	switch cb.state {
	case StateClosed:
		allowed = true
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) >= cb.config.RecoveryTimeout {
			cb.state = StateHalfOpen
			cb.successCount = 0
			allowed = true
		}
	case StateHalfOpen:
		allowed = cb.successCount < cb.config.SuccessThreshold
	}

	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return allowed
}

// RecordSuccess registers a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	from := cb.state

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.state = StateClosed
			cb.failureCount = 0
			cb.successCount = 0
		}
	}

	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

// RecordFailure registers a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	from := cb.state
	now := cb.now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.state = StateOpen
			cb.lastFailureTime = now
		}
	case StateHalfOpen:
		cb.failureCount++
		cb.state = StateOpen
		cb.lastFailureTime = now
		cb.successCount = 0
	case StateOpen:
		cb.lastFailureTime = now
	}

	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

// RetryAfter returns the remaining wait before an open breaker will probe.
func (cb *CircuitBreaker) RetryAfter() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return 0
	}
	remaining := cb.config.RecoveryTimeout - cb.now().Sub(cb.lastFailureTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// State returns the current state without triggering transitions.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Snapshot returns a copy of the breaker's counters.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerSnapshot{
		Module:          cb.module,
		State:           cb.state,
		StateName:       cb.state.String(),
		FailureCount:    cb.failureCount,
		SuccessCount:    cb.successCount,
		LastFailureTime: cb.lastFailureTime,
	}
}

func (cb *CircuitBreaker) openError() *CircuitOpenError {
	snap := cb.Snapshot()
	return &CircuitOpenError{
		Module:     cb.module,
		OpenedAt:   snap.LastFailureTime,
		RetryAfter: cb.RetryAfter(),
	}
}

func (cb *CircuitBreaker) notify(from, to CircuitState) {
	if from != to && cb.onChange != nil {
		cb.onChange(cb.module, from, to)
	}
}

// BreakerRegistry holds one breaker per module name for the process lifetime.
type BreakerRegistry struct {
	config BreakerConfig
	now    func() time.Time

	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	hooks    []StateChangeFunc
}

// RegistryOption configures a BreakerRegistry.
type RegistryOption func(*BreakerRegistry)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *BreakerRegistry) {
		r.now = now
	}
}

// WithStateChangeHook registers an observer for every breaker transition.
func WithStateChangeHook(fn StateChangeFunc) RegistryOption {
	return func(r *BreakerRegistry) {
		r.hooks = append(r.hooks, fn)
	}
}

// NewBreakerRegistry creates an empty registry.
func NewBreakerRegistry(cfg BreakerConfig, opts ...RegistryOption) *BreakerRegistry {
	r := &BreakerRegistry{
		config:   cfg.withDefaults(),
		now:      time.Now,
		breakers: make(map[string]*CircuitBreaker),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the breaker for module, creating it on first use.
func (r *BreakerRegistry) Get(module string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[module]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[module]; ok {
		return cb
	}
	cb = newCircuitBreaker(module, r.config, r.now, r.dispatch)
	r.breakers[module] = cb
	return cb
}

// Snapshots returns the state of every known breaker ordered by module.
func (r *BreakerRegistry) Snapshots() []BreakerSnapshot {
	r.mu.RLock()
	list := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		list = append(list, cb)
	}
	r.mu.RUnlock()

	out := make([]BreakerSnapshot, 0, len(list))
	for _, cb := range list {
		out = append(out, cb.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
	return out
}

// Reset drops the breaker for module. The next Get starts closed.
func (r *BreakerRegistry) Reset(module string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.breakers, module)
}

func (r *BreakerRegistry) dispatch(module string, from, to CircuitState) {
	r.mu.RLock()
	hooks := make([]StateChangeFunc, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.RUnlock()

	for _, h := range hooks {
		h(module, from, to)
	}
}
