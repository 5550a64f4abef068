package config

import (
	"fmt"
	"sort"

	"github.com/tripforge/tripforge/pkg/assembly"
	"github.com/tripforge/tripforge/pkg/itinerary"
	"github.com/tripforge/tripforge/pkg/resilience"
	"github.com/tripforge/tripforge/pkg/telemetry"
)

// ToPolicyTable returns the default retry table with the file's overrides applied.
func (c *Config) ToPolicyTable() (resilience.PolicyTable, error) {
	overrides := make(map[resilience.Category]resilience.RetryPolicy, len(c.Resilience.Policies))

	names := make([]string, 0, len(c.Resilience.Policies))
	for name := range c.Resilience.Policies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		category, err := resilience.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		if category == resilience.CategoryCircuitOpen {
			return nil, fmt.Errorf("circuit_open is not a retryable category")
		}
		overrides[category] = c.Resilience.Policies[name]
	}

	table := resilience.DefaultPolicies().With(overrides)
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// ToBreakerConfig returns the breaker thresholds.
func (c *Config) ToBreakerConfig() resilience.BreakerConfig {
	return c.Resilience.Breaker
}

// ToAssemblyConfig returns the assembly settings.
func (c *Config) ToAssemblyConfig() assembly.Config {
	return c.Assembly
}

// ResolvedVariants returns the configured variants with the generation
// temperature filled in where a variant sets none.
func (c *Config) ResolvedVariants() []itinerary.Variant {
	out := make([]itinerary.Variant, len(c.Variants))
	for i, v := range c.Variants {
		if v.Temperature == 0 {
			v.Temperature = c.Generation.Temperature
		}
		out[i] = v
	}
	return out
}

// ToTelemetryConfig expands the telemetry section into a telemetry.Config.
func (c *Config) ToTelemetryConfig(version string) *telemetry.Config {
	tc := telemetry.DefaultConfig()
	t := c.Telemetry

	tc.ServiceVersion = version
	tc.Environment = t.Environment

	tc.Logging.Level = t.LogLevel
	tc.Logging.Format = t.LogFormat
	tc.Logging.Output = t.LogOutput

	tc.Tracing.Enabled = t.TracingEnabled
	tc.Tracing.Exporter = t.TracingExporter
	tc.Tracing.Endpoint = t.TracingEndpoint
	tc.Tracing.SamplingRate = t.SamplingRate

	tc.Metrics.Enabled = t.MetricsEnabled
	if t.MetricsAddress != "" {
		tc.Metrics.ListenAddress = t.MetricsAddress
	}

	tc.Events.Enabled = t.EventsEnabled
	return tc
}
