package planner

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tripforge/tripforge/pkg/assembly"
	"github.com/tripforge/tripforge/pkg/config"
	"github.com/tripforge/tripforge/pkg/generation"
	"github.com/tripforge/tripforge/pkg/itinerary"
	"github.com/tripforge/tripforge/pkg/resilience"
	"github.com/tripforge/tripforge/pkg/segment"
	"github.com/tripforge/tripforge/pkg/telemetry"
)

// Dependencies are the collaborators of a configured planner. Only Generator is required.
type Dependencies struct {
	Generator itinerary.TextGenerator

	// Provider labels text generation metrics.
	Provider string

	Reference itinerary.ReferenceSource
	Social    itinerary.SocialSource
	Reviewer  Reviewer
	Archive   Archive

	// Telemetry receives logs, metrics, spans and events. Nil disables all of them.
	Telemetry *telemetry.Telemetry

	// Breakers is shared across planners. Nil creates a registry from the configuration
	// observed by Telemetry. A shared registry is observed once by its owner, see
	// BreakerObserver.
	Breakers *resilience.BreakerRegistry

	// Sleeper replaces backoff waits.
	Sleeper resilience.SleepFunc
}

// Build wires the retry manager, generation framework, segment runner and assembly
// engine described by cfg into a Planner.
func Build(cfg *config.Config, deps Dependencies) (*Planner, error) {
	if deps.Generator == nil {
		return nil, fmt.Errorf("a text generator is required")
	}

	policies, err := cfg.ToPolicyTable()
	if err != nil {
		return nil, fmt.Errorf("failed to build retry policies: %w", err)
	}

	tel := deps.Telemetry
	logger := zerolog.Nop()
	if tel != nil {
		logger = tel.Logger.Zerolog()
	}

	breakers := deps.Breakers
	if breakers == nil {
		var regOpts []resilience.RegistryOption
		if tel != nil {
			regOpts = append(regOpts, resilience.WithStateChangeHook(BreakerObserver(tel)))
		}
		breakers = resilience.NewBreakerRegistry(cfg.ToBreakerConfig(), regOpts...)
	}

	managerOpts := []resilience.ManagerOption{
		resilience.WithLogger(logger),
		resilience.WithMaxAttempts(cfg.Resilience.MaxAttempts),
	}
	if deps.Sleeper != nil {
		managerOpts = append(managerOpts, resilience.WithSleeper(deps.Sleeper))
	}
	if tel != nil {
		managerOpts = append(managerOpts, resilience.WithMetrics(tel.Metrics))
	}
	manager := resilience.NewManager(policies, breakers, managerOpts...)

	provider := deps.Provider
	if provider == "" {
		provider = cfg.LLM.Provider
	}
	genOpts := []generation.Option{
		generation.WithLogger(logger),
		generation.WithMaxTokens(cfg.Generation.MaxTokens),
		generation.WithProvider(provider),
	}
	if tel != nil {
		genOpts = append(genOpts,
			generation.WithRecorder(tel.Metrics),
			generation.WithFallbackHook(fallbackPublisher(tel)),
		)
	}
	framework := generation.New(manager, deps.Generator, genOpts...)

	runnerOpts := []segment.RunnerOption{
		segment.WithMaxSegmentDays(cfg.Segmentation.MaxSegmentDays),
		segment.WithLogger(logger),
	}
	if tel != nil {
		runnerOpts = append(runnerOpts, segment.WithRecorder(tel.Metrics))
	}
	runner := segment.NewRunner(framework, deps.Reference, deps.Social, runnerOpts...)

	opts := []Option{
		WithVariants(cfg.ResolvedVariants()),
		WithTimeout(cfg.Generation.Timeout),
		WithMaxParallelVariants(cfg.Generation.MaxParallelVariants),
		WithLogger(logger),
	}
	if deps.Reviewer != nil {
		opts = append(opts, WithReviewer(deps.Reviewer))
	}
	if deps.Archive != nil {
		opts = append(opts, WithArchive(deps.Archive))
	}
	if tel != nil {
		opts = append(opts, WithMetrics(tel.Metrics), WithEvents(tel.Events), WithTracer(tel.Tracer))
	}

	return New(runner, assembly.NewEngine(cfg.ToAssemblyConfig(), logger), opts...), nil
}

// BreakerObserver reports breaker transitions to tel as metrics and events.
func BreakerObserver(tel *telemetry.Telemetry) resilience.StateChangeFunc {
	return func(module string, _, to resilience.CircuitState) {
		tel.ObserveBreaker(module, to.String(), int(to))
	}
}

// fallbackPublisher reports every fallback day as a day.fallback event.
func fallbackPublisher(tel *telemetry.Telemetry) generation.FallbackFunc {
	return func(in generation.SegmentInput, dimension itinerary.Dimension, tripDay int, err error) {
		category := resilience.CategoryOf(err)
		_ = tel.Events.PublishDayFallback(in.Request.ID, in.Variant.Name, dimension.ModuleName(), tripDay, string(category))
	}
}
