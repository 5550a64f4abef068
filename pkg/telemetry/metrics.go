package telemetry

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for tripforge. A Metrics built with metrics disabled is
// a no-op and safe to pass anywhere a recorder is expected.
type Metrics struct {
	config MetricsConfig

	// Retry manager metrics
	generationAttempts *prometheus.CounterVec
	generationRetries  *prometheus.CounterVec
	generationErrors   *prometheus.CounterVec

	// Circuit breaker metrics
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec

	// Generation metrics
	dayEntries        *prometheus.CounterVec
	textGenDuration   *prometheus.HistogramVec
	segmentDuration   *prometheus.HistogramVec
	variants          *prometheus.CounterVec
	planDuration      prometheus.Histogram
	activeGenerations prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		generationAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_attempts_total",
				Help:      "Total number of guarded generation attempts",
			},
			[]string{"module", "outcome"},
		),
		generationRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_retries_total",
				Help:      "Total number of retries scheduled by the retry manager",
			},
			[]string{"module", "category"},
		),
		generationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_errors_total",
				Help:      "Total number of classified generation errors",
			},
			[]string{"category"},
		),

		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"module"},
		),
		breakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_transitions_total",
				Help:      "Total number of circuit breaker transitions",
			},
			[]string{"module", "to"},
		),

		dayEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "day_entries_total",
				Help:      "Total number of daily entries produced",
			},
			[]string{"dimension", "source"},
		),
		textGenDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "text_generation_duration_seconds",
				Help:      "Duration of text generation calls in seconds",
				Buckets:   buckets,
			},
			[]string{"provider"},
		),
		segmentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "segment_duration_seconds",
				Help:      "Duration of one segment across all dimensions in seconds",
				Buckets:   buckets,
			},
			[]string{"variant"},
		),
		variants: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "variants_total",
				Help:      "Total number of assembled plan variants",
			},
			[]string{"status"},
		),
		planDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "plan_duration_seconds",
				Help:      "Duration of whole plan requests in seconds",
				Buckets:   buckets,
			},
		),
		activeGenerations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_plans",
				Help:      "Current number of plan requests being generated",
			},
		),
	}

	registry.MustRegister(
		m.generationAttempts,
		m.generationRetries,
		m.generationErrors,
		m.breakerState,
		m.breakerTransitions,
		m.dayEntries,
		m.textGenDuration,
		m.segmentDuration,
		m.variants,
		m.planDuration,
		m.activeGenerations,
	)

	return m, nil
}

// Retry manager

// RecordGenerationAttempt counts one guarded attempt and its outcome.
func (m *Metrics) RecordGenerationAttempt(module, outcome string) {
	if m.generationAttempts == nil {
		return
	}
	m.generationAttempts.WithLabelValues(module, outcome).Inc()
}

// RecordGenerationRetry counts one scheduled retry.
func (m *Metrics) RecordGenerationRetry(module, category string) {
	if m.generationRetries == nil {
		return
	}
	m.generationRetries.WithLabelValues(module, category).Inc()
}

// RecordGenerationError counts a classified failure.
func (m *Metrics) RecordGenerationError(category string) {
	if m.generationErrors == nil {
		return
	}
	m.generationErrors.WithLabelValues(category).Inc()
}

// Circuit breakers

// RecordBreakerTransition sets the breaker gauge to level and counts the transition.
func (m *Metrics) RecordBreakerTransition(module, to string, level int) {
	if m.breakerState == nil {
		return
	}
	m.breakerState.WithLabelValues(module).Set(float64(level))
	m.breakerTransitions.WithLabelValues(module, to).Inc()
}

// Generation

// RecordDayEntry counts a daily entry by its source (generated or fallback).
func (m *Metrics) RecordDayEntry(dimension, source string) {
	if m.dayEntries == nil {
		return
	}
	m.dayEntries.WithLabelValues(dimension, source).Inc()
}

// ObserveTextGeneration records the latency of one text generation call.
func (m *Metrics) ObserveTextGeneration(provider string, d time.Duration) {
	if m.textGenDuration == nil {
		return
	}
	m.textGenDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveSegment records how long a segment took for a variant.
func (m *Metrics) ObserveSegment(variant string, d time.Duration) {
	if m.segmentDuration == nil {
		return
	}
	m.segmentDuration.WithLabelValues(variant).Observe(d.Seconds())
}

// RecordVariant counts an assembled variant by status.
func (m *Metrics) RecordVariant(status string) {
	if m.variants == nil {
		return
	}
	m.variants.WithLabelValues(status).Inc()
}

// RecordPlanStarted marks a plan request as in flight.
func (m *Metrics) RecordPlanStarted() {
	if m.activeGenerations == nil {
		return
	}
	m.activeGenerations.Inc()
}

// ObservePlan records a finished plan request.
func (m *Metrics) ObservePlan(d time.Duration) {
	if m.planDuration == nil {
		return
	}
	m.planDuration.Observe(d.Seconds())
	m.activeGenerations.Dec()
}

// Registry returns the underlying registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server exposing metrics and returns it so the caller can
// shut it down. It returns nil when metrics are disabled.
func (m *Metrics) StartMetricsServer() *http.Server {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
		}
	}()

	return server
}
