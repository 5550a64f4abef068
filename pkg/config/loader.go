package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/tripforge/tripforge/pkg/assembly"
	"github.com/tripforge/tripforge/pkg/itinerary"
	"github.com/tripforge/tripforge/pkg/resilience"
)

// Environment variables that override file values.
const (
	EnvAPIKey       = "TRIPFORGE_LLM_API_KEY"
	EnvProvider     = "TRIPFORGE_LLM_PROVIDER"
	EnvStorePath    = "TRIPFORGE_STORE_PATH"
	EnvReferenceDir = "TRIPFORGE_REFERENCE_DIR"

	// EnvGeminiAPIKey is read when EnvAPIKey is unset and the provider is gemini.
	EnvGeminiAPIKey = "GEMINI_API_KEY"
)

// Default model per provider, applied when the file names none.
var defaultModels = map[string]string{
	"gemini": "gemini-1.5-flash",
	"openai": "gpt-4o-mini",
}

var configValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report yaml names in field paths.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Resilience: ResilienceConfig{
			Breaker:     resilience.DefaultBreakerConfig(),
			MaxAttempts: resilience.HardAttemptLimit,
		},
		Segmentation: SegmentationConfig{MaxSegmentDays: 10},
		Generation: GenerationConfig{
			MaxTokens:           2048,
			Temperature:         0.7,
			Timeout:             600 * time.Second,
			MaxParallelVariants: 2,
		},
		Assembly: assembly.DefaultConfig(),
		Variants: itinerary.DefaultVariants(),
		LLM: LLMConfig{
			Provider:       "gemini",
			Model:          defaultModels["gemini"],
			RequestTimeout: 120 * time.Second,
		},
		Reference: ReferenceConfig{
			Dir:             "reference",
			ExcerptSelector: "article p",
			MaxExcerpts:     5,
		},
		Store: StoreConfig{Path: "tripforge.db"},
		Telemetry: TelemetryConfig{
			Environment:     "development",
			LogLevel:        "info",
			LogFormat:       "console",
			LogOutput:       "stderr",
			TracingExporter: "stdout",
			SamplingRate:    1.0,
			MetricsEnabled:  true,
			EventsEnabled:   true,
		},
	}
}

// Load reads the file at path on top of the defaults and applies environment overrides.
// An empty path yields the defaults plus the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		cfg.resolvePaths(filepath.Dir(path))
	}

	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		var verrs ValidationErrors
		if errors.As(err, &verrs) {
			for i := range verrs {
				verrs[i].File = path
			}
			return nil, verrs
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML content on top of the defaults without touching the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := decode(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	defaultModel := cfg.LLM.Model

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	// Switching provider without naming a model picks that provider's default.
	if cfg.LLM.Model == defaultModel {
		if m, ok := defaultModels[cfg.LLM.Provider]; ok {
			cfg.LLM.Model = m
		}
	}
	return nil
}

// ApplyEnv overrides file values from getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvProvider); v != "" && v != c.LLM.Provider {
		c.LLM.Provider = v
		if m, ok := defaultModels[v]; ok {
			c.LLM.Model = m
		}
	}
	if v := getenv(EnvAPIKey); v != "" {
		c.LLM.APIKey = v
	} else if c.LLM.APIKey == "" && c.LLM.Provider == "gemini" {
		c.LLM.APIKey = getenv(EnvGeminiAPIKey)
	}
	if v := getenv(EnvStorePath); v != "" {
		c.Store.Path = v
	}
	if v := getenv(EnvReferenceDir); v != "" {
		c.Reference.Dir = v
	}
}

// resolvePaths makes relative file paths relative to the config file's directory.
func (c *Config) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || p == ":memory:" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Reference.Dir = abs(c.Reference.Dir)
	c.Store.Path = abs(c.Store.Path)
	for i, p := range c.Policies.Paths {
		c.Policies.Paths[i] = abs(p)
	}
}

// Validate checks struct tags, retry policy overrides and variant names.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("failed to validate config: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, ValidationError{
				Path:    fieldPath(fe),
				Message: fmt.Sprintf("failed %q validation (value %v)", fe.Tag(), fe.Value()),
			})
		}
	}

	if _, err := c.ToPolicyTable(); err != nil {
		errs = append(errs, ValidationError{Path: "resilience.policies", Message: err.Error()})
	}

	seen := make(map[string]bool, len(c.Variants))
	for _, v := range c.Variants {
		if seen[v.Name] {
			errs = append(errs, ValidationError{Path: "variants", Message: fmt.Sprintf("duplicate variant %q", v.Name)})
		}
		seen[v.Name] = true
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// fieldPath drops the root struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the configuration to path, refusing to overwrite unless force is set.
func (c *Config) Save(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
