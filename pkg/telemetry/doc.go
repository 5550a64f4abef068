// Package telemetry provides observability for plan generation.
//
// It combines structured logging (zerolog), distributed tracing (OpenTelemetry), metrics
// (Prometheus) and lifecycle events in one Telemetry bundle.
//
// # Usage
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Logging
//
//	logger := tel.Logger.NewComponentLogger("cli").WithRequestID(res.RequestID)
//	logger.WithError(err).Warn("Failed to watch policies")
//
// Library packages take a zerolog.Logger; pass tel.Logger.Zerolog().
//
// # Metrics
//
// *Metrics satisfies the recorder interfaces of the resilience, generation and segment
// packages. All methods are no-ops when metrics are disabled. Exposed series:
//
//   - tripforge_generation_attempts_total{module,outcome}
//   - tripforge_generation_retries_total{module,category}
//   - tripforge_generation_errors_total{category}
//   - tripforge_breaker_state{module}
//   - tripforge_breaker_transitions_total{module,to}
//   - tripforge_day_entries_total{dimension,source}
//   - tripforge_text_generation_duration_seconds{provider}
//   - tripforge_segment_duration_seconds{variant}
//   - tripforge_variants_total{status}
//   - tripforge_plan_duration_seconds
//   - tripforge_active_plans
//
// # Tracing
//
// An enabled Tracer installs its provider globally, so spans started with otel.Tracer in
// other packages join the plan.generate and variant.generate spans started here.
// StartOperation wraps a span, a logger and a timer for one command.
//
// # Events
//
// The EventPublisher delivers plan.started, plan.completed, variant.completed,
// variant.discarded, breaker.opened, breaker.closed, day.fallback and policy.violation
// events to subscribers, in publish order. The plan archive subscribes to persist them.
package telemetry
