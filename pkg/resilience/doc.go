// Package resilience guards calls to unreliable generation dependencies.
//
// It provides four pieces that are used together by the retry Manager:
//
//  1. Classifier - maps an error (and optional status code) to a Category
//  2. PolicyTable - static retry policy per Category
//  3. Backoff - exponential, linear and adaptive delay functions
//  4. BreakerRegistry - one CircuitBreaker per logical module, shared process-wide
//
// # Usage
//
//	breakers := resilience.NewBreakerRegistry(resilience.DefaultBreakerConfig())
//	mgr := resilience.NewManager(resilience.DefaultPolicies(), breakers,
//	    resilience.WithLogger(logger))
//
//	res := mgr.Execute(ctx, "attraction_plan", func(ctx context.Context) (interface{}, error) {
//	    return gen.GenerateText(ctx, system, user, 2048, 0.7)
//	})
//	if !res.Success {
//	    // res.Err is a *GenerationError or a *CircuitOpenError
//	}
//
// # Classification
//
// Timeouts are detected first (context deadline, net.Error, keywords), then keyword
// tables per category, then status code ranges: 401/403 auth, 429 rate limit, other
// 4xx data, 5xx server. Anything else is unknown_error.
//
// # Circuit Breakers
//
// CLOSED opens after FailureThreshold consecutive failures. OPEN rejects calls until
// RecoveryTimeout has passed since the last failure, then moves to HALF_OPEN. HALF_OPEN
// admits calls while fewer than SuccessThreshold probes have succeeded; a failure reopens
// it and SuccessThreshold successes close it.
package resilience
