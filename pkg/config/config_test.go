package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tripforge/tripforge/pkg/resilience"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Generation.Timeout != 600*time.Second {
		t.Errorf("expected 600s timeout, got %s", cfg.Generation.Timeout)
	}
	if cfg.Segmentation.MaxSegmentDays != 10 {
		t.Errorf("expected 10 day segments, got %d", cfg.Segmentation.MaxSegmentDays)
	}
	if len(cfg.Variants) != 2 {
		t.Errorf("expected budget and comfort variants, got %d", len(cfg.Variants))
	}
}

func TestParseOverrides(t *testing.T) {
	data := []byte(`
resilience:
  policies:
    rate_limit: {max_retries: 2, base_delay: 10s, max_delay: 1m, strategy: linear}
  breaker:
    failure_threshold: 3
    recovery_timeout: 30s
    success_threshold: 1
segmentation:
  max_segment_days: 7
assembly:
  min_attractions_per_day: 3
  scarcity_factor: 0.5
  transport_per_day: 20
llm:
  provider: openai
variants:
  - name: backpacker
    style: hostels and night buses
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	table, err := cfg.ToPolicyTable()
	if err != nil {
		t.Fatalf("policy table: %v", err)
	}
	rl := table[resilience.CategoryRateLimit]
	if rl.MaxRetries != 2 || rl.BaseDelay != 10*time.Second || rl.MaxDelay != time.Minute || rl.Strategy != resilience.BackoffLinear {
		t.Errorf("rate_limit override not applied: %+v", rl)
	}
	if table[resilience.CategoryServer] != resilience.DefaultPolicies()[resilience.CategoryServer] {
		t.Error("categories without overrides keep their defaults")
	}

	bc := cfg.ToBreakerConfig()
	if bc.FailureThreshold != 3 || bc.RecoveryTimeout != 30*time.Second || bc.SuccessThreshold != 1 {
		t.Errorf("unexpected breaker config %+v", bc)
	}

	ac := cfg.ToAssemblyConfig()
	if ac.MinAttractionsPerDay != 3 || ac.ScarcityFactor != 0.5 || ac.TransportPerDay != 20 {
		t.Errorf("unexpected assembly config %+v", ac)
	}

	if cfg.Segmentation.MaxSegmentDays != 7 {
		t.Errorf("expected 7, got %d", cfg.Segmentation.MaxSegmentDays)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("switching provider should pick its default model, got %s", cfg.LLM.Model)
	}

	variants := cfg.ResolvedVariants()
	if len(variants) != 1 || variants[0].Name != "backpacker" || variants[0].Temperature != cfg.Generation.Temperature {
		t.Errorf("unexpected variants %+v", variants)
	}
	if cfg.Generation.MaxTokens != 2048 {
		t.Error("untouched sections keep their defaults")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantPath string
	}{
		{"bad provider", "llm: {provider: claude}", "llm.provider"},
		{"segment too long", "segmentation: {max_segment_days: 0}", "segmentation.max_segment_days"},
		{"no variants", "variants: []", "variants"},
		{"negative scarcity", "assembly: {scarcity_factor: -1}", "assembly.scarcity_factor"},
		{"auth retried", "resilience: {policies: {auth_error: {max_retries: 2, base_delay: 1s, max_delay: 2s, strategy: linear}}}", "resilience.policies"},
		{"unknown category", "resilience: {policies: {slow: {max_retries: 1}}}", "resilience.policies"},
		{"bad excerpt url", "reference: {excerpt_pages: {hanoi: [not-a-url]}}", "reference.excerpt_pages"},
		{"duplicate variant", "variants: [{name: a}, {name: a}]", "variants"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			found := false
			for _, ve := range verrs {
				if strings.HasPrefix(ve.Path, tt.wantPath) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected an error at %s, got %v", tt.wantPath, verrs)
			}
		})
	}

	if _, err := Parse([]byte("unknown_section: true")); err == nil {
		t.Error("unknown keys should be rejected")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvGeminiAPIKey: "gemini-key",
		EnvStorePath:    "/tmp/archive.db",
		EnvReferenceDir: "/data/reference",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) string { return env[k] })
	if cfg.LLM.APIKey != "gemini-key" {
		t.Errorf("expected GEMINI_API_KEY fallback, got %q", cfg.LLM.APIKey)
	}
	if cfg.Store.Path != "/tmp/archive.db" || cfg.Reference.Dir != "/data/reference" {
		t.Errorf("path overrides not applied: %+v %+v", cfg.Store, cfg.Reference)
	}

	env[EnvAPIKey] = "explicit"
	env[EnvProvider] = "openai"
	cfg = Default()
	cfg.ApplyEnv(func(k string) string { return env[k] })
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o-mini" || cfg.LLM.APIKey != "explicit" {
		t.Errorf("unexpected llm config %+v", cfg.LLM)
	}
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tripforge.yaml")
	content := "store: {path: archive.db}\nreference: {dir: ref}\npolicies: {paths: [rules]}\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(EnvStorePath, "")
	t.Setenv(EnvReferenceDir, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Path != filepath.Join(dir, "archive.db") {
		t.Errorf("store path not resolved: %s", cfg.Store.Path)
	}
	if cfg.Reference.Dir != filepath.Join(dir, "ref") || cfg.Policies.Paths[0] != filepath.Join(dir, "rules") {
		t.Errorf("paths not resolved: %s %v", cfg.Reference.Dir, cfg.Policies.Paths)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "tripforge.yaml")
	cfg := Default()
	cfg.Generation.Timeout = 90 * time.Second
	if err := cfg.Save(path, false); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := cfg.Save(path, false); err == nil {
		t.Error("save should refuse to overwrite without force")
	}
	if err := cfg.Save(path, true); err != nil {
		t.Errorf("forced save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "timeout: 1m30s") {
		t.Errorf("durations should be written as strings:\n%s", data)
	}
	back, err := Parse(data)
	if err != nil {
		t.Fatalf("parse saved config: %v", err)
	}
	if back.Generation.Timeout != 90*time.Second || len(back.Variants) != 2 {
		t.Errorf("round trip lost values: %+v", back.Generation)
	}
}

func TestToTelemetryConfig(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.LogLevel = "debug"
	cfg.Telemetry.MetricsAddress = ":9100"

	tc := cfg.ToTelemetryConfig("1.2.3")
	if tc.ServiceVersion != "1.2.3" || tc.Logging.Level != "debug" || tc.Metrics.ListenAddress != ":9100" {
		t.Errorf("unexpected telemetry config %+v", tc)
	}
	if err := tc.Validate(); err != nil {
		t.Errorf("converted config should validate: %v", err)
	}
}
