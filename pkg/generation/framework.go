package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tripforge/tripforge/pkg/itinerary"
	"github.com/tripforge/tripforge/pkg/resilience"
)

// DefaultMaxTokens is used when neither the spec nor the framework sets a token limit.
const DefaultMaxTokens = 2048

// DimensionSpec describes how one dimension is generated.
type DimensionSpec struct {
	Dimension itinerary.Dimension
	Prompt    PromptBuilder

	// Fallback builds an entry when generation fails. A nil Fallback makes the dimension
	// strict: failed days are left out of the result.
	Fallback FallbackBuilder

	MaxTokens int
}

// DefaultSpec returns the template prompt and reference-cycling fallback for dimension.
func DefaultSpec(dimension itinerary.Dimension) DimensionSpec {
	return DimensionSpec{
		Dimension: dimension,
		Prompt:    TemplatePromptBuilder(dimension),
		Fallback:  DefaultFallback(dimension),
	}
}

// DayRecorder receives per-day outcomes.
type DayRecorder interface {
	RecordDayEntry(dimension, source string)
	ObserveTextGeneration(provider string, d time.Duration)
}

// FallbackFunc observes a day that fell back. tripDay is the day within the whole trip.
type FallbackFunc func(in SegmentInput, dimension itinerary.Dimension, tripDay int, err error)

// SegmentInput is the per-segment context handed to every dimension generator.
type SegmentInput struct {
	Request itinerary.PlanRequest
	Variant itinerary.Variant
	Segment itinerary.Segment

	// Budget is the spend allowed for the whole segment. Zero means unconstrained.
	Budget float64

	Reference []itinerary.Record
	Excerpts  []itinerary.Excerpt
	Used      []string
}

// Framework generates per-day entries for one dimension over one segment.
type Framework struct {
	manager   *resilience.Manager
	generator itinerary.TextGenerator
	provider  string
	specs     map[itinerary.Dimension]DimensionSpec
	maxTokens int
	logger    zerolog.Logger
	recorder  DayRecorder
	onFall    FallbackFunc
	tracer    trace.Tracer
}

// Option configures a Framework.
type Option func(*Framework)

// WithLogger sets the framework's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Framework) {
		f.logger = logger.With().Str("component", "generation").Logger()
	}
}

// WithRecorder sets the per-day metrics recorder.
func WithRecorder(r DayRecorder) Option {
	return func(f *Framework) {
		f.recorder = r
	}
}

// WithFallbackHook registers fn to be called for every fallback entry.
func WithFallbackHook(fn FallbackFunc) Option {
	return func(f *Framework) {
		f.onFall = fn
	}
}

// WithSpec replaces the spec of one dimension.
func WithSpec(spec DimensionSpec) Option {
	return func(f *Framework) {
		f.specs[spec.Dimension] = spec
	}
}

// WithMaxTokens sets the default token limit.
func WithMaxTokens(n int) Option {
	return func(f *Framework) {
		if n > 0 {
			f.maxTokens = n
		}
	}
}

// WithProvider names the text generator in metrics.
func WithProvider(name string) Option {
	return func(f *Framework) {
		f.provider = name
	}
}

// New creates a Framework with default specs for all dimensions.
func New(manager *resilience.Manager, generator itinerary.TextGenerator, opts ...Option) *Framework {
	f := &Framework{
		manager:   manager,
		generator: generator,
		provider:  "unknown",
		specs:     make(map[itinerary.Dimension]DimensionSpec),
		maxTokens: DefaultMaxTokens,
		logger:    zerolog.Nop(),
		tracer:    otel.Tracer("github.com/tripforge/tripforge/pkg/generation"),
	}
	for _, d := range itinerary.Dimensions() {
		f.specs[d] = DefaultSpec(d)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GenerateSegment produces the entries of dimension for every day of in.Segment, numbered
// 1..DayCount. With a fallback every day gets an entry. A cancelled context fails the
// module with no entries.
func (f *Framework) GenerateSegment(ctx context.Context, dimension itinerary.Dimension, in SegmentInput) itinerary.ModuleResult {
	result := itinerary.ModuleResult{Dimension: dimension}

	spec, ok := f.specs[dimension]
	if !ok || spec.Prompt == nil {
		result.Err = fmt.Errorf("no generation spec for dimension %q", dimension)
		return result
	}

	ctx, span := f.tracer.Start(ctx, "generation."+string(dimension), trace.WithAttributes(
		attribute.String("tripforge.dimension", string(dimension)),
		attribute.Int("tripforge.segment", in.Segment.Index),
		attribute.Int("tripforge.days", in.Segment.DayCount),
	))
	defer span.End()

	logger := f.logger.With().
		Str("dimension", string(dimension)).
		Str("variant", in.Variant.Name).
		Int("segment", in.Segment.Index).
		Logger()

	days := in.Segment.DayCount
	dayBudget := 0.0
	if days > 0 && in.Budget > 0 {
		dayBudget = in.Budget / float64(days)
	}

	var lastErr error
	for day := 1; day <= days; day++ {
		if err := ctx.Err(); err != nil {
			return cancelled(dimension, err, span)
		}

		dc := DayContext{
			Request:   in.Request,
			Variant:   in.Variant,
			Dimension: dimension,
			Segment:   in.Segment,
			Day:       day,
			TripDay:   in.Segment.TripDay(day),
			Date:      in.Segment.DateFor(day).Format(itinerary.DateLayout),
			FirstDay:  in.Segment.TripDay(day) == 1,
			LastDay:   in.Segment.TripDay(day) == in.Request.Days,
			DayBudget: dayBudget,
			Reference: in.Reference,
			Excerpts:  in.Excerpts,
			Used:      in.Used,
		}

		entry, err := f.generateDay(ctx, spec, dc)
		if err == nil {
			f.record(dimension, itinerary.SourceGenerated)
			result.Entries = append(result.Entries, entry)
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cancelled(dimension, ctxErr, span)
		}

		lastErr = err
		if spec.Fallback == nil {
			logger.Warn().Err(err).Int("day", day).Msg("Day generation failed, no fallback configured")
			continue
		}

		entry = spec.Fallback(dc)
		entry.Day = day
		entry.Date = dc.Date
		entry.Dimension = dimension
		entry.Source = itinerary.SourceFallback
		logger.Warn().Err(err).Int("day", day).Str("category", string(resilience.CategoryOf(err))).Msg("Using fallback entry")
		span.AddEvent("day.fallback", trace.WithAttributes(attribute.Int("day", day)))
		f.record(dimension, itinerary.SourceFallback)
		if f.onFall != nil {
			f.onFall(in, dimension, dc.TripDay, err)
		}
		result.Entries = append(result.Entries, entry)
	}

	result.Success = len(result.Entries) > 0
	if !result.Success {
		if lastErr == nil {
			lastErr = errors.New("segment has no days")
		}
		result.Err = fmt.Errorf("%s produced no entries: %w", dimension, lastErr)
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
	}

	logger.Debug().
		Int("entries", len(result.Entries)).
		Int("fallback_days", result.FallbackDays()).
		Bool("success", result.Success).
		Msg("Segment dimension generated")
	return result
}

func (f *Framework) generateDay(ctx context.Context, spec DimensionSpec, dc DayContext) (itinerary.DailyEntry, error) {
	prompt, err := spec.Prompt(dc)
	if err != nil {
		return itinerary.DailyEntry{}, resilience.NewGenerationError(resilience.CategoryData, "failed to build prompt", err).
			WithCode(resilience.ErrCodePromptBuild).
			WithModule(spec.Dimension.ModuleName())
	}

	maxTokens := prompt.MaxTokens
	if maxTokens <= 0 {
		maxTokens = spec.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = f.maxTokens
	}
	temperature := prompt.Temperature
	if temperature <= 0 {
		temperature = dc.Variant.Temperature
	}

	res := f.manager.Execute(ctx, spec.Dimension.ModuleName(), func(ctx context.Context) (interface{}, error) {
		start := time.Now()
		text, err := f.generator.GenerateText(ctx, prompt.System, prompt.User, maxTokens, temperature)
		if f.recorder != nil {
			f.recorder.ObserveTextGeneration(f.provider, time.Since(start))
		}
		if err != nil {
			return nil, err
		}
		return text, nil
	})
	if !res.Success {
		return itinerary.DailyEntry{}, res.Err
	}

	// Output that does not parse goes straight to the fallback, without a retry or a
	// breaker charge.
	return ParseEntry(res.Data.(string), spec.Dimension, dc.Day, dc.Date)
}

func (f *Framework) record(dimension itinerary.Dimension, source itinerary.EntrySource) {
	if f.recorder != nil {
		f.recorder.RecordDayEntry(string(dimension), string(source))
	}
}

func cancelled(dimension itinerary.Dimension, err error, span trace.Span) itinerary.ModuleResult {
	err = fmt.Errorf("%s generation cancelled: %w", dimension, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return itinerary.ModuleResult{Dimension: dimension, Err: err}
}
