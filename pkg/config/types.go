package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tripforge/tripforge/pkg/assembly"
	"github.com/tripforge/tripforge/pkg/itinerary"
	"github.com/tripforge/tripforge/pkg/resilience"
)

// Config is the tripforge configuration file.
type Config struct {
	Resilience   ResilienceConfig    `yaml:"resilience" json:"resilience"`
	Segmentation SegmentationConfig  `yaml:"segmentation" json:"segmentation"`
	Generation   GenerationConfig    `yaml:"generation" json:"generation"`
	Assembly     assembly.Config     `yaml:"assembly" json:"assembly"`
	Variants     []itinerary.Variant `yaml:"variants" json:"variants" validate:"min=1,dive"`
	LLM          LLMConfig           `yaml:"llm" json:"llm"`
	Reference    ReferenceConfig     `yaml:"reference" json:"reference"`
	Store        StoreConfig         `yaml:"store" json:"store"`
	Policies     PoliciesConfig      `yaml:"policies" json:"policies"`
	Telemetry    TelemetryConfig     `yaml:"telemetry" json:"telemetry"`
}

// ResilienceConfig overrides retry policies and breaker thresholds.
type ResilienceConfig struct {
	// Policies overrides the default retry policy per error category
	// (e.g. "rate_limit"). Categories not listed keep their defaults.
	Policies map[string]resilience.RetryPolicy `yaml:"policies,omitempty" json:"policies,omitempty"`

	Breaker resilience.BreakerConfig `yaml:"breaker" json:"breaker"`

	// MaxAttempts is the hard ceiling on attempts per call, whatever the policy says.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" validate:"min=1,max=10"`
}

// SegmentationConfig controls how long trips are split.
type SegmentationConfig struct {
	MaxSegmentDays int `yaml:"max_segment_days" json:"max_segment_days" validate:"min=1,max=31"`
}

// GenerationConfig controls text generation calls.
type GenerationConfig struct {
	MaxTokens int `yaml:"max_tokens" json:"max_tokens" validate:"min=64"`

	// Temperature applies to variants that leave their own temperature unset.
	Temperature float64 `yaml:"temperature" json:"temperature" validate:"gte=0,lte=2"`

	// Timeout bounds a whole plan request, every variant included.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`

	MaxParallelVariants int `yaml:"max_parallel_variants" json:"max_parallel_variants" validate:"min=1"`
}

// LLMConfig selects and configures the text generator.
type LLMConfig struct {
	// Provider is gemini or openai (any OpenAI-compatible chat completions API).
	Provider string `yaml:"provider" json:"provider" validate:"required,oneof=gemini openai"`

	Model   string `yaml:"model" json:"model" validate:"required"`
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" validate:"omitempty,url"`

	// APIKey is normally supplied through TRIPFORGE_LLM_API_KEY.
	APIKey string `yaml:"api_key,omitempty" json:"-"`

	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout" validate:"gt=0"`
}

// ReferenceConfig locates reference data and excerpt pages.
type ReferenceConfig struct {
	// Dir holds one directory per destination slug with a YAML or JSON file per dimension.
	Dir string `yaml:"dir" json:"dir"`

	// Watch invalidates cached reference data when files under Dir change.
	Watch bool `yaml:"watch" json:"watch"`

	// ExcerptPages maps a destination slug to travel pages scraped for excerpts.
	ExcerptPages map[string][]string `yaml:"excerpt_pages,omitempty" json:"excerpt_pages,omitempty" validate:"omitempty,dive,dive,url"`

	// ExcerptSelector is the CSS selector of excerpt paragraphs.
	ExcerptSelector string `yaml:"excerpt_selector" json:"excerpt_selector"`

	MaxExcerpts int `yaml:"max_excerpts" json:"max_excerpts" validate:"gte=0"`
}

// StoreConfig configures the plan archive.
type StoreConfig struct {
	// Path is the SQLite database file. Empty disables archiving.
	Path string `yaml:"path" json:"path"`
}

// PoliciesConfig configures guardrail review.
type PoliciesConfig struct {
	// Paths lists extra .rego files or directories.
	Paths []string `yaml:"paths,omitempty" json:"paths,omitempty"`

	DisableBuiltin bool `yaml:"disable_builtin" json:"disable_builtin"`

	// Watch reloads policies from Paths when they change.
	Watch bool `yaml:"watch" json:"watch"`
}

// TelemetryConfig is the file form of telemetry.Config.
type TelemetryConfig struct {
	Environment string `yaml:"environment" json:"environment"`

	LogLevel  string `yaml:"log_level" json:"log_level" validate:"oneof=trace debug info warn error fatal"`
	LogFormat string `yaml:"log_format" json:"log_format" validate:"oneof=console json"`
	LogOutput string `yaml:"log_output" json:"log_output"`

	TracingEnabled  bool    `yaml:"tracing_enabled" json:"tracing_enabled"`
	TracingExporter string  `yaml:"tracing_exporter" json:"tracing_exporter" validate:"oneof=otlp stdout none"`
	TracingEndpoint string  `yaml:"tracing_endpoint,omitempty" json:"tracing_endpoint,omitempty"`
	SamplingRate    float64 `yaml:"sampling_rate" json:"sampling_rate" validate:"gte=0,lte=1"`

	MetricsEnabled bool `yaml:"metrics_enabled" json:"metrics_enabled"`

	// MetricsAddress serves /metrics while a command runs. Empty serves nothing.
	MetricsAddress string `yaml:"metrics_address,omitempty" json:"metrics_address,omitempty"`

	EventsEnabled bool `yaml:"events_enabled" json:"events_enabled"`
}

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Path is the dotted field path (e.g., "generation.max_tokens").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// ValidationErrors collects every problem found in one configuration.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("invalid configuration: %s", strings.Join(msgs, "; "))
}
