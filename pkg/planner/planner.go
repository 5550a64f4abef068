package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tripforge/tripforge/pkg/assembly"
	"github.com/tripforge/tripforge/pkg/itinerary"
	"github.com/tripforge/tripforge/pkg/policy"
	"github.com/tripforge/tripforge/pkg/segment"
	"github.com/tripforge/tripforge/pkg/stores"
	"github.com/tripforge/tripforge/pkg/telemetry"
)

// DefaultTimeout bounds one plan request when none is configured.
const DefaultTimeout = 600 * time.Second

// ErrNoUsableVariant is returned, alongside the result, when every variant was discarded.
var ErrNoUsableVariant = errors.New("no usable plan variant")

// SegmentRunner runs the segment loop of one variant.
type SegmentRunner interface {
	Run(ctx context.Context, req itinerary.PlanRequest, variant itinerary.Variant) (*segment.Output, error)
}

// Assembler merges a variant's entries into a plan.
type Assembler interface {
	Assemble(in assembly.Input) assembly.Outcome
}

// Tracer starts the plan and variant spans.
type Tracer interface {
	StartPlanSpan(ctx context.Context, requestID, destination string, days int) (context.Context, trace.Span)
	StartVariantSpan(ctx context.Context, requestID, variant string) (context.Context, trace.Span)
}

// Reviewer evaluates guardrail policies against one variant.
type Reviewer interface {
	Review(ctx context.Context, input *policy.PolicyInput) ([]itinerary.Violation, error)
}

// Archive persists requests and their variants.
type Archive interface {
	CreatePlanRequest(ctx context.Context, req *stores.PlanRequest) error
	UpdatePlanRequestStatus(ctx context.Context, id string, status stores.RequestStatus, errMsg *string) error
	SaveVariants(ctx context.Context, variants []*stores.PlanVariant) error
}

// MetricsRecorder receives plan-level measurements.
type MetricsRecorder interface {
	RecordPlanStarted()
	ObservePlan(d time.Duration)
	RecordVariant(status string)
}

// EventSink receives plan lifecycle events.
type EventSink interface {
	PublishPlanStarted(requestID, destination string, days, variants int) error
	PublishPlanCompleted(requestID string, usable int, duration time.Duration) error
	PublishPlanFailed(requestID, reason string) error
	PublishVariantCompleted(requestID, variant, status string, totalCost float64) error
	PublishVariantDiscarded(requestID, variant, reason string) error
	PublishPolicyViolation(requestID, variant, policy, message string) error
}

// Result is the outcome of one plan request.
type Result struct {
	RequestID string                    `json:"request_id"`
	Request   itinerary.PlanRequest     `json:"request"`
	Variants  []itinerary.VariantResult `json:"variants"`
	Duration  time.Duration             `json:"duration"`
}

// Usable counts variants that carry a plan.
func (r *Result) Usable() int {
	n := 0
	for _, v := range r.Variants {
		if v.Usable() {
			n++
		}
	}
	return n
}

// Cheapest returns the usable variant with the lowest total cost, or nil.
func (r *Result) Cheapest() *itinerary.VariantResult {
	var best *itinerary.VariantResult
	for i := range r.Variants {
		v := &r.Variants[i]
		if !v.Usable() {
			continue
		}
		if best == nil || v.Plan.TotalCost.Total < best.Plan.TotalCost.Total {
			best = v
		}
	}
	return best
}

// Planner validates plan requests and generates their variants.
type Planner struct {
	runner      SegmentRunner
	assembler   Assembler
	reviewer    Reviewer
	archive     Archive
	variants    []itinerary.Variant
	timeout     time.Duration
	maxParallel int
	logger      zerolog.Logger
	metrics     MetricsRecorder
	events      EventSink
	tracer      Tracer
}

// Option configures a Planner.
type Option func(*Planner)

// WithVariants replaces the default budget and comfort variants.
func WithVariants(variants []itinerary.Variant) Option {
	return func(p *Planner) {
		if len(variants) > 0 {
			p.variants = variants
		}
	}
}

// WithTimeout bounds each plan request.
func WithTimeout(d time.Duration) Option {
	return func(p *Planner) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMaxParallelVariants limits how many variants generate at once.
func WithMaxParallelVariants(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.maxParallel = n
		}
	}
}

// WithReviewer enables guardrail review of assembled variants.
func WithReviewer(r Reviewer) Option {
	return func(p *Planner) {
		p.reviewer = r
	}
}

// WithArchive persists every request and its variants.
func WithArchive(a Archive) Option {
	return func(p *Planner) {
		p.archive = a
	}
}

// WithLogger sets the planner's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Planner) {
		p.logger = logger.With().Str("component", "planner").Logger()
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(p *Planner) {
		p.metrics = m
	}
}

// WithEvents sets the lifecycle event sink.
func WithEvents(e EventSink) Option {
	return func(p *Planner) {
		p.events = e
	}
}

// WithTracer sets the tracer for plan and variant spans.
func WithTracer(t Tracer) Option {
	return func(p *Planner) {
		if t != nil {
			p.tracer = t
		}
	}
}

// New creates a Planner.
func New(runner SegmentRunner, assembler Assembler, opts ...Option) *Planner {
	p := &Planner{
		runner:      runner,
		assembler:   assembler,
		variants:    itinerary.DefaultVariants(),
		timeout:     DefaultTimeout,
		maxParallel: 2,
		logger:      zerolog.Nop(),
		tracer:      telemetry.GlobalTracer("github.com/tripforge/tripforge/pkg/planner"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Variants returns the variants generated for every request.
func (p *Planner) Variants() []itinerary.Variant {
	return append([]itinerary.Variant(nil), p.variants...)
}

// Plan validates req and generates every variant concurrently under the planner timeout.
// Invalid requests fail before anything is generated or archived. When every variant is
// discarded the result is returned together with ErrNoUsableVariant.
func (p *Planner) Plan(ctx context.Context, req itinerary.PlanRequest) (*Result, error) {
	req = req.WithID()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	logger := p.logger.With().Str("request_id", req.ID).Logger()

	ctx, span := p.tracer.StartPlanSpan(ctx, req.ID, req.Destination, req.Days)
	defer span.End()
	span.SetAttributes(attribute.Int("plan.variants", len(p.variants)))

	p.archiveRequest(ctx, req, logger)
	if p.metrics != nil {
		p.metrics.RecordPlanStarted()
	}
	p.publish(func(e EventSink) error {
		return e.PublishPlanStarted(req.ID, req.Destination, req.Days, len(p.variants))
	})

	logger.Info().
		Str("destination", req.Destination).
		Int("days", req.Days).
		Float64("budget", req.Budget).
		Int("variants", len(p.variants)).
		Str("trace_id", telemetry.TraceID(ctx)).
		Msg("Planning started")

	genCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	results := make([]itinerary.VariantResult, len(p.variants))
	var g errgroup.Group
	g.SetLimit(p.maxParallel)
	for i, variant := range p.variants {
		g.Go(func() error {
			results[i] = p.runVariant(genCtx, req, variant, logger)
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{
		RequestID: req.ID,
		Request:   req,
		Variants:  results,
		Duration:  time.Since(start),
	}

	var planErr error
	switch {
	case errors.Is(genCtx.Err(), context.DeadlineExceeded) && result.Usable() == 0:
		planErr = fmt.Errorf("plan generation timed out after %s: %w", p.timeout, context.DeadlineExceeded)
	case ctx.Err() != nil:
		planErr = fmt.Errorf("plan generation cancelled: %w", ctx.Err())
	case result.Usable() == 0:
		planErr = ErrNoUsableVariant
	}

	p.archiveResult(ctx, result, planErr, logger)
	if p.metrics != nil {
		p.metrics.ObservePlan(result.Duration)
	}

	if planErr != nil {
		telemetry.RecordError(span, planErr)
		p.publish(func(e EventSink) error { return e.PublishPlanFailed(req.ID, planErr.Error()) })
		logger.Error().Err(planErr).Dur("duration", result.Duration).Msg("Planning failed")
		return result, planErr
	}

	telemetry.RecordSuccess(span)
	p.publish(func(e EventSink) error { return e.PublishPlanCompleted(req.ID, result.Usable(), result.Duration) })
	logger.Info().
		Int("usable", result.Usable()).
		Dur("duration", result.Duration).
		Msg("Planning completed")

	return result, nil
}

// runVariant runs the segment loop and assembly of one variant, then reviews it.
func (p *Planner) runVariant(ctx context.Context, req itinerary.PlanRequest, variant itinerary.Variant, logger zerolog.Logger) itinerary.VariantResult {
	ctx, span := p.tracer.StartVariantSpan(ctx, req.ID, variant.Name)
	defer span.End()

	logger = logger.With().Str("variant", variant.Name).Logger()
	result := itinerary.VariantResult{
		ID:      uuid.New().String(),
		Variant: variant,
	}

	out, err := p.runner.Run(ctx, req, variant)
	if err != nil {
		result.Status = itinerary.StatusDiscarded
		result.Reason = err.Error()
	} else {
		outcome := p.assembler.Assemble(assembly.Input{
			Days:      req.Days,
			StartDate: req.StartDate,
			Entries:   out.Entries,
			Reference: out.Reference,
		})
		result.Status = outcome.Status
		result.Plan = outcome.Plan
		result.Reason = outcome.Reason
		result.DegradedDimensions = outcome.DegradedDimensions
		if len(outcome.FallbackDays) > 0 {
			result.FallbackDays = outcome.FallbackDays
		}
	}

	if result.Status == itinerary.StatusDiscarded && ctx.Err() != nil {
		result.Reason = fmt.Sprintf("generation interrupted: %v", ctx.Err())
	}

	if result.Usable() && p.reviewer != nil {
		violations, err := p.reviewer.Review(ctx, policy.NewInput(&req, &result))
		if err != nil {
			logger.Warn().Err(err).Msg("Guardrail review incomplete")
		}
		result.Violations = violations
		for _, v := range violations {
			p.publish(func(e EventSink) error {
				return e.PublishPolicyViolation(req.ID, variant.Name, v.Policy, v.Message)
			})
		}
	}

	if p.metrics != nil {
		p.metrics.RecordVariant(string(result.Status))
	}
	span.SetAttributes(telemetry.AttrStatus.String(string(result.Status)))

	if !result.Usable() {
		telemetry.RecordError(span, errors.New(result.Reason))
		p.publish(func(e EventSink) error { return e.PublishVariantDiscarded(req.ID, variant.Name, result.Reason) })
		logger.Warn().Str("reason", result.Reason).Msg("Variant discarded")
		return result
	}

	p.publish(func(e EventSink) error {
		return e.PublishVariantCompleted(req.ID, variant.Name, string(result.Status), result.Plan.TotalCost.Total)
	})
	logger.Info().
		Str("status", string(result.Status)).
		Float64("total_cost", result.Plan.TotalCost.Total).
		Int("violations", len(result.Violations)).
		Msg("Variant completed")

	return result
}

func (p *Planner) publish(fn func(EventSink) error) {
	if p.events == nil {
		return
	}
	if err := fn(p.events); err != nil {
		p.logger.Debug().Err(err).Msg("Failed to publish event")
	}
}

// archiveRequest stores the pending request. Archive failures never fail a plan.
func (p *Planner) archiveRequest(ctx context.Context, req itinerary.PlanRequest, logger zerolog.Logger) {
	if p.archive == nil {
		return
	}
	raw, err := json.Marshal(req)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to encode plan request")
		return
	}
	rec := &stores.PlanRequest{
		ID:          req.ID,
		Destination: req.Destination,
		StartDate:   req.StartDate.Format(time.DateOnly),
		Days:        req.Days,
		Budget:      req.Budget,
		Status:      stores.RequestStatusPending,
		Request:     string(raw),
	}
	if err := p.archive.CreatePlanRequest(ctx, rec); err != nil {
		logger.Warn().Err(err).Msg("Failed to archive plan request")
	}
}

// archiveResult stores the variants and the final request status. It uses a fresh
// context so a timed-out plan is still recorded.
func (p *Planner) archiveResult(ctx context.Context, result *Result, planErr error, logger zerolog.Logger) {
	if p.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	variants := make([]*stores.PlanVariant, 0, len(result.Variants))
	for _, v := range result.Variants {
		raw, err := json.Marshal(v)
		if err != nil {
			logger.Warn().Err(err).Str("variant", v.Variant.Name).Msg("Failed to encode variant")
			continue
		}
		rec := &stores.PlanVariant{
			ID:         v.ID,
			RequestID:  result.RequestID,
			Name:       v.Variant.Name,
			Status:     string(v.Status),
			Reason:     v.Reason,
			Violations: len(v.Violations),
			Result:     string(raw),
		}
		if v.Plan != nil {
			rec.TotalCost = v.Plan.TotalCost.Total
		}
		variants = append(variants, rec)
	}
	if err := p.archive.SaveVariants(ctx, variants); err != nil {
		logger.Warn().Err(err).Msg("Failed to archive variants")
	}

	status := stores.RequestStatusCompleted
	var errMsg *string
	if planErr != nil {
		status = stores.RequestStatusFailed
		msg := planErr.Error()
		errMsg = &msg
	}
	if err := p.archive.UpdatePlanRequestStatus(ctx, result.RequestID, status, errMsg); err != nil {
		logger.Warn().Err(err).Msg("Failed to update plan request status")
	}
}
