package segment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tripforge/tripforge/pkg/generation"
	"github.com/tripforge/tripforge/pkg/itinerary"
)

// DimensionGenerator produces one dimension's entries for one segment.
type DimensionGenerator interface {
	GenerateSegment(ctx context.Context, dimension itinerary.Dimension, in generation.SegmentInput) itinerary.ModuleResult
}

// Recorder receives segment timings.
type Recorder interface {
	ObserveSegment(variant string, d time.Duration)
}

// Output is everything a variant's segment loop produced, ready for assembly.
type Output struct {
	Segments []itinerary.Segment

	// Entries holds each dimension's entries numbered by trip day.
	Entries map[itinerary.Dimension][]itinerary.DailyEntry

	// Results holds each dimension's module results in segment order.
	Results map[itinerary.Dimension][]itinerary.ModuleResult

	Reference itinerary.ReferenceData
	Snapshots []Snapshot
	Context   *GenerationContext
}

// FallbackDays counts fallback entries per dimension.
func (o *Output) FallbackDays() map[itinerary.Dimension]int {
	out := make(map[itinerary.Dimension]int)
	for dim, entries := range o.Entries {
		for _, e := range entries {
			if e.Source == itinerary.SourceFallback {
				out[dim]++
			}
		}
	}
	return out
}

// Runner drives the sequential segment loop of one variant.
type Runner struct {
	generator DimensionGenerator
	reference itinerary.ReferenceSource
	social    itinerary.SocialSource
	maxDays   int
	logger    zerolog.Logger
	recorder  Recorder
	tracer    trace.Tracer
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxSegmentDays sets the segment size.
func WithMaxSegmentDays(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxDays = n
		}
	}
}

// WithLogger sets the runner's logger.
func WithLogger(logger zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger.With().Str("component", "segment-runner").Logger()
	}
}

// WithRecorder sets the segment timing recorder.
func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// NewRunner creates a Runner. A nil social source yields no excerpts.
func NewRunner(gen DimensionGenerator, reference itinerary.ReferenceSource, social itinerary.SocialSource, opts ...RunnerOption) *Runner {
	if social == nil {
		social = itinerary.NoExcerpts{}
	}
	r := &Runner{
		generator: gen,
		reference: reference,
		social:    social,
		maxDays:   DefaultMaxSegmentDays,
		logger:    zerolog.Nop(),
		tracer:    otel.Tracer("github.com/tripforge/tripforge/pkg/segment"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run generates every segment of req for variant in order, carrying the generation context
// forward. Module failures are reported in the output, not as an error.
func (r *Runner) Run(ctx context.Context, req itinerary.PlanRequest, variant itinerary.Variant) (*Output, error) {
	segments, err := Split(req.StartDate, req.Days, r.maxDays)
	if err != nil {
		return nil, fmt.Errorf("failed to split trip: %w", err)
	}

	logger := r.logger.With().Str("request_id", req.ID).Str("variant", variant.Name).Logger()

	out := &Output{
		Segments:  segments,
		Entries:   make(map[itinerary.Dimension][]itinerary.DailyEntry),
		Results:   make(map[itinerary.Dimension][]itinerary.ModuleResult),
		Reference: r.fetchReference(ctx, req, logger),
		Context:   NewGenerationContext(req.Days, req.Budget),
	}
	excerpts, err := r.social.FetchSocialExcerpts(ctx, req.Destination)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to fetch social excerpts, continuing without them")
		excerpts = nil
	}

	logger.Info().
		Int("days", req.Days).
		Int("segments", len(segments)).
		Float64("budget", out.Context.RemainingBudget).
		Msg("Starting segment loop")

	for _, seg := range segments {
		start := time.Now()
		results := r.runSegment(ctx, req, variant, seg, out, excerpts)

		snap, err := out.Context.Advance(seg, results)
		if err != nil {
			return out, fmt.Errorf("failed to advance generation context: %w", err)
		}
		out.Snapshots = append(out.Snapshots, snap)

		for _, res := range results {
			out.Results[res.Dimension] = append(out.Results[res.Dimension], res)
			for _, e := range res.Entries {
				e.Day = seg.TripDay(e.Day)
				out.Entries[res.Dimension] = append(out.Entries[res.Dimension], e)
			}
		}

		if r.recorder != nil {
			r.recorder.ObserveSegment(variant.Name, time.Since(start))
		}
		logger.Info().
			Int("segment", seg.Index).
			Int("days", seg.DayCount).
			Float64("spend", snap.Spend).
			Float64("remaining_budget", snap.RemainingBudget).
			Int("remaining_days", snap.RemainingDays).
			Dur("duration", time.Since(start)).
			Msg("Segment completed")
	}

	return out, nil
}

// runSegment runs the four dimension generators of seg concurrently.
func (r *Runner) runSegment(ctx context.Context, req itinerary.PlanRequest, variant itinerary.Variant, seg itinerary.Segment, out *Output, excerpts []itinerary.Excerpt) []itinerary.ModuleResult {
	ctx, span := r.tracer.Start(ctx, "segment.run", trace.WithAttributes(
		attribute.String("tripforge.variant", variant.Name),
		attribute.Int("tripforge.segment", seg.Index),
		attribute.Int("tripforge.offset", seg.Offset),
		attribute.Int("tripforge.days", seg.DayCount),
	))
	defer span.End()

	budget := out.Context.SegmentBudget(seg)
	dims := itinerary.Dimensions()
	results := make([]itinerary.ModuleResult, len(dims))

	var wg sync.WaitGroup
	for i, dim := range dims {
		used := out.Context.UsedFor(dim)
		in := generation.SegmentInput{
			Request:   req,
			Variant:   variant,
			Segment:   seg,
			Budget:    budget,
			Reference: FilterReference(out.Reference[dim], used, seg.Range()),
			Excerpts:  excerpts,
			Used:      used.List(),
		}

		wg.Add(1)
		go func(i int, dim itinerary.Dimension, in generation.SegmentInput) {
			defer wg.Done()
			results[i] = r.generator.GenerateSegment(ctx, dim, in)
		}(i, dim, in)
	}
	wg.Wait()

	return results
}

// fetchReference loads reference records for every dimension once per variant. Failures
// degrade to an empty list.
func (r *Runner) fetchReference(ctx context.Context, req itinerary.PlanRequest, logger zerolog.Logger) itinerary.ReferenceData {
	data := make(itinerary.ReferenceData)
	if r.reference == nil {
		return data
	}
	for _, dim := range itinerary.Dimensions() {
		records, err := r.reference.FetchReferenceData(ctx, dim, req.Destination, req.Range())
		if err != nil {
			logger.Warn().Err(err).Str("dimension", string(dim)).Msg("Failed to fetch reference data, continuing without it")
			continue
		}
		data[dim] = records
	}
	return data
}
