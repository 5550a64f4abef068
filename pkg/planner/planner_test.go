package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/tripforge/tripforge/pkg/assembly"
	"github.com/tripforge/tripforge/pkg/itinerary"
	"github.com/tripforge/tripforge/pkg/policy"
	"github.com/tripforge/tripforge/pkg/segment"
	"github.com/tripforge/tripforge/pkg/stores"
)

func testRequest() itinerary.PlanRequest {
	return itinerary.PlanRequest{
		Destination: "Hanoi",
		StartDate:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Days:        3,
		Budget:      3000,
		Travelers:   2,
	}
}

// stubRunner returns one attraction entry per day unless the variant is listed in fail.
type stubRunner struct {
	mu      sync.Mutex
	calls   []string
	fail    map[string]error
	delay   time.Duration
	block   bool
	active  int
	maxSeen int
}

func (r *stubRunner) Run(ctx context.Context, req itinerary.PlanRequest, variant itinerary.Variant) (*segment.Output, error) {
	r.mu.Lock()
	r.calls = append(r.calls, variant.Name)
	r.active++
	if r.active > r.maxSeen {
		r.maxSeen = r.active
	}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.active--
		r.mu.Unlock()
	}()

	if r.block {
		<-ctx.Done()
		return &segment.Output{Entries: map[itinerary.Dimension][]itinerary.DailyEntry{}}, nil
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if err := r.fail[variant.Name]; err != nil {
		return nil, err
	}

	entries := make([]itinerary.DailyEntry, req.Days)
	for i := range entries {
		entries[i] = itinerary.DailyEntry{Day: i + 1}
	}
	return &segment.Output{
		Entries: map[itinerary.Dimension][]itinerary.DailyEntry{itinerary.DimensionAttractions: entries},
	}, nil
}

// stubAssembler discards inputs without attraction entries and prices plans by day count.
type stubAssembler struct {
	degraded bool
}

func (a stubAssembler) Assemble(in assembly.Input) assembly.Outcome {
	if len(in.Entries[itinerary.DimensionAttractions]) == 0 {
		return assembly.Outcome{Status: itinerary.StatusDiscarded, Reason: "attractions produced no entries"}
	}
	out := assembly.Outcome{
		Status: itinerary.StatusOK,
		Plan:   &itinerary.Plan{TotalCost: itinerary.CostBreakdown{Total: float64(in.Days) * 100}},
	}
	if a.degraded {
		out.Status = itinerary.StatusDegraded
		out.DegradedDimensions = []itinerary.Dimension{itinerary.DimensionDining}
	}
	return out
}

type stubReviewer struct {
	mu     sync.Mutex
	inputs []*policy.PolicyInput
	err    error
}

func (r *stubReviewer) Review(ctx context.Context, input *policy.PolicyInput) ([]itinerary.Violation, error) {
	r.mu.Lock()
	r.inputs = append(r.inputs, input)
	r.mu.Unlock()
	return []itinerary.Violation{{Policy: "budget-overrun", Severity: "error", Message: "over budget"}}, r.err
}

type memArchive struct {
	mu       sync.Mutex
	requests map[string]*stores.PlanRequest
	variants []*stores.PlanVariant
	statuses []stores.RequestStatus
	errMsg   *string
}

func newMemArchive() *memArchive {
	return &memArchive{requests: make(map[string]*stores.PlanRequest)}
}

func (a *memArchive) CreatePlanRequest(ctx context.Context, req *stores.PlanRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests[req.ID] = req
	return nil
}

func (a *memArchive) UpdatePlanRequestStatus(ctx context.Context, id string, status stores.RequestStatus, errMsg *string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.requests[id]; !ok {
		return stores.ErrNotFound
	}
	a.statuses = append(a.statuses, status)
	a.errMsg = errMsg
	return nil
}

func (a *memArchive) SaveVariants(ctx context.Context, variants []*stores.PlanVariant) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.variants = append(a.variants, variants...)
	return nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEvents) add(s string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, s)
	return nil
}

func (e *recordingEvents) count(prefix string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.events {
		if strings.HasPrefix(ev, prefix) {
			n++
		}
	}
	return n
}

func (e *recordingEvents) PublishPlanStarted(requestID, destination string, days, variants int) error {
	return e.add("plan.started")
}

func (e *recordingEvents) PublishPlanCompleted(requestID string, usable int, duration time.Duration) error {
	return e.add("plan.completed")
}

func (e *recordingEvents) PublishPlanFailed(requestID, reason string) error {
	return e.add("plan.failed")
}

func (e *recordingEvents) PublishVariantCompleted(requestID, variant, status string, totalCost float64) error {
	return e.add("variant.completed:" + variant)
}

func (e *recordingEvents) PublishVariantDiscarded(requestID, variant, reason string) error {
	return e.add("variant.discarded:" + variant)
}

func (e *recordingEvents) PublishPolicyViolation(requestID, variant, policy, message string) error {
	return e.add("policy.violation:" + variant)
}

type countingMetrics struct {
	mu       sync.Mutex
	started  int
	observed int
	variants map[string]int
}

func (m *countingMetrics) RecordPlanStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *countingMetrics) ObservePlan(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed++
}

func (m *countingMetrics) RecordVariant(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.variants == nil {
		m.variants = make(map[string]int)
	}
	m.variants[status]++
}

type spanKey struct{}

// recordingTracer records started spans and marks the plan span's context so variant spans
// can be checked for nesting.
type recordingTracer struct {
	mu    sync.Mutex
	spans []string
}

func (r *recordingTracer) StartPlanSpan(ctx context.Context, requestID, destination string, days int) (context.Context, trace.Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, fmt.Sprintf("plan:%s:%s:%d", requestID, destination, days))
	return context.WithValue(ctx, spanKey{}, requestID), trace.SpanFromContext(ctx)
}

func (r *recordingTracer) StartVariantSpan(ctx context.Context, requestID, variant string) (context.Context, trace.Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	parent, _ := ctx.Value(spanKey{}).(string)
	r.spans = append(r.spans, fmt.Sprintf("variant:%s:%s:parent=%s", requestID, variant, parent))
	return ctx, trace.SpanFromContext(ctx)
}

func TestPlanRejectsInvalidRequest(t *testing.T) {
	runner := &stubRunner{}
	archive := newMemArchive()
	p := New(runner, stubAssembler{}, WithArchive(archive))

	req := testRequest()
	req.Days = 0
	if _, err := p.Plan(context.Background(), req); err == nil {
		t.Fatal("expected validation error")
	}
	if len(runner.calls) != 0 || len(archive.requests) != 0 {
		t.Error("invalid requests must not be generated or archived")
	}
}

func TestPlanGeneratesEveryVariant(t *testing.T) {
	runner := &stubRunner{}
	archive := newMemArchive()
	events := &recordingEvents{}
	metrics := &countingMetrics{}
	p := New(runner, stubAssembler{},
		WithArchive(archive),
		WithEvents(events),
		WithMetrics(metrics),
	)

	res, err := p.Plan(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if res.RequestID == "" || res.Request.ID != res.RequestID {
		t.Errorf("expected generated request id, got %q", res.RequestID)
	}
	if len(res.Variants) != 2 || res.Variants[0].Variant.Name != "budget" || res.Variants[1].Variant.Name != "comfort" {
		t.Fatalf("variants out of order: %+v", res.Variants)
	}
	for _, v := range res.Variants {
		if v.ID == "" || v.Status != itinerary.StatusOK || !v.Usable() {
			t.Errorf("unexpected variant %+v", v)
		}
	}
	if res.Usable() != 2 || res.Cheapest() == nil {
		t.Errorf("expected two usable variants")
	}

	stored := archive.requests[res.RequestID]
	if stored == nil || stored.StartDate != "2025-04-01" || stored.Days != 3 {
		t.Fatalf("request not archived: %+v", stored)
	}
	if len(archive.variants) != 2 || archive.variants[0].TotalCost != 300 {
		t.Errorf("variants not archived: %+v", archive.variants)
	}
	if len(archive.statuses) != 1 || archive.statuses[0] != stores.RequestStatusCompleted || archive.errMsg != nil {
		t.Errorf("expected completed status, got %v", archive.statuses)
	}

	if events.count("plan.started") != 1 || events.count("variant.completed") != 2 || events.count("plan.completed") != 1 {
		t.Errorf("unexpected events %v", events.events)
	}
	if metrics.started != 1 || metrics.observed != 1 || metrics.variants["ok"] != 2 {
		t.Errorf("unexpected metrics %+v", metrics)
	}
}

func TestPlanLimitsParallelVariants(t *testing.T) {
	variants := []itinerary.Variant{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}

	tests := []struct {
		limit int
	}{{1}, {2}}
	for _, tt := range tests {
		runner := &stubRunner{delay: 20 * time.Millisecond}
		p := New(runner, stubAssembler{}, WithVariants(variants), WithMaxParallelVariants(tt.limit))

		if _, err := p.Plan(context.Background(), testRequest()); err != nil {
			t.Fatalf("Plan failed: %v", err)
		}
		if runner.maxSeen > tt.limit {
			t.Errorf("limit %d: saw %d concurrent variants", tt.limit, runner.maxSeen)
		}
		if len(runner.calls) != len(variants) {
			t.Errorf("limit %d: expected %d runs, got %d", tt.limit, len(variants), len(runner.calls))
		}
	}
}

func TestPlanRunnerErrorDiscardsOnlyThatVariant(t *testing.T) {
	runner := &stubRunner{fail: map[string]error{"comfort": errors.New("failed to split trip")}}
	events := &recordingEvents{}
	p := New(runner, stubAssembler{}, WithEvents(events))

	res, err := p.Plan(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	comfort := res.Variants[1]
	if comfort.Status != itinerary.StatusDiscarded || comfort.Plan != nil || comfort.Reason != "failed to split trip" {
		t.Errorf("unexpected comfort variant %+v", comfort)
	}
	if res.Variants[0].Status != itinerary.StatusOK {
		t.Errorf("budget variant should be unaffected: %+v", res.Variants[0])
	}
	if events.count("variant.discarded:comfort") != 1 {
		t.Errorf("expected discarded event, got %v", events.events)
	}
}

func TestPlanAllVariantsDiscarded(t *testing.T) {
	boom := errors.New("no segments")
	runner := &stubRunner{fail: map[string]error{"budget": boom, "comfort": boom}}
	archive := newMemArchive()
	events := &recordingEvents{}
	p := New(runner, stubAssembler{}, WithArchive(archive), WithEvents(events))

	res, err := p.Plan(context.Background(), testRequest())
	if !errors.Is(err, ErrNoUsableVariant) {
		t.Fatalf("expected ErrNoUsableVariant, got %v", err)
	}
	if res == nil || len(res.Variants) != 2 || res.Cheapest() != nil {
		t.Fatalf("result should still list the discarded variants: %+v", res)
	}
	if len(archive.statuses) != 1 || archive.statuses[0] != stores.RequestStatusFailed || archive.errMsg == nil {
		t.Errorf("expected failed status with message, got %v", archive.statuses)
	}
	if events.count("plan.failed") != 1 {
		t.Errorf("expected plan.failed event, got %v", events.events)
	}
}

func TestPlanTimeout(t *testing.T) {
	runner := &stubRunner{block: true}
	archive := newMemArchive()
	p := New(runner, stubAssembler{}, WithTimeout(20*time.Millisecond), WithArchive(archive))

	res, err := p.Plan(context.Background(), testRequest())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	for _, v := range res.Variants {
		if v.Status != itinerary.StatusDiscarded || !strings.HasPrefix(v.Reason, "generation interrupted") {
			t.Errorf("unexpected variant after timeout %+v", v)
		}
	}
	if len(archive.statuses) != 1 || archive.statuses[0] != stores.RequestStatusFailed {
		t.Errorf("timed-out plan should still be archived as failed, got %v", archive.statuses)
	}
}

func TestPlanReviewAttachesViolations(t *testing.T) {
	reviewer := &stubReviewer{err: errors.New("policy custom: eval_conflict_error")}
	events := &recordingEvents{}
	p := New(&stubRunner{}, stubAssembler{degraded: true}, WithReviewer(reviewer), WithEvents(events))

	res, err := p.Plan(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	for _, v := range res.Variants {
		if v.Status != itinerary.StatusDegraded {
			t.Errorf("review must not change status, got %s", v.Status)
		}
		if len(v.Violations) != 1 || v.Violations[0].Policy != "budget-overrun" {
			t.Errorf("violations not attached: %+v", v.Violations)
		}
	}

	if len(reviewer.inputs) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(reviewer.inputs))
	}
	for _, in := range reviewer.inputs {
		if in.Budget != 3000 || in.RequestID != res.RequestID || len(in.DegradedDimensions) != 1 {
			t.Errorf("unexpected review input %+v", in)
		}
	}
	if events.count("policy.violation") != 2 {
		t.Errorf("expected violation events, got %v", events.events)
	}
}

func TestPlanSkipsReviewOfDiscardedVariants(t *testing.T) {
	reviewer := &stubReviewer{}
	runner := &stubRunner{fail: map[string]error{"budget": errors.New("boom")}}
	p := New(runner, stubAssembler{}, WithReviewer(reviewer))

	if _, err := p.Plan(context.Background(), testRequest()); err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(reviewer.inputs) != 1 || reviewer.inputs[0].Variant.Name != "comfort" {
		t.Errorf("only the usable variant should be reviewed, got %d reviews", len(reviewer.inputs))
	}
}

func TestPlanStartsPlanAndVariantSpans(t *testing.T) {
	tracer := &recordingTracer{}
	p := New(&stubRunner{}, stubAssembler{}, WithTracer(tracer), WithMaxParallelVariants(1))

	req := testRequest()
	req.ID = "req-7"
	if _, err := p.Plan(context.Background(), req); err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	want := []string{
		"plan:req-7:Hanoi:3",
		"variant:req-7:budget:parent=req-7",
		"variant:req-7:comfort:parent=req-7",
	}
	tracer.mu.Lock()
	defer tracer.mu.Unlock()
	if len(tracer.spans) != len(want) {
		t.Fatalf("spans = %v, want %v", tracer.spans, want)
	}
	for i := range want {
		if tracer.spans[i] != want[i] {
			t.Errorf("span %d = %s, want %s", i, tracer.spans[i], want[i])
		}
	}
}
