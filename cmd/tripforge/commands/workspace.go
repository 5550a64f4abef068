package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tripforge/tripforge/pkg/config"
	"github.com/tripforge/tripforge/pkg/policy"
	"github.com/tripforge/tripforge/pkg/stores"
	"github.com/tripforge/tripforge/pkg/telemetry"
)

// defaultConfigFile is picked up when --config is not given.
const defaultConfigFile = "tripforge.yaml"

// workspace holds what every command needs once the configuration is loaded.
type workspace struct {
	cfg     *config.Config
	tel     *telemetry.Telemetry
	logger  zerolog.Logger
	metrics *http.Server

	// closers run after telemetry has delivered its pending events.
	closers []io.Closer
}

// resolveConfigPath returns the --config value, or the default file when it exists.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	return ""
}

func loadConfig() (*config.Config, error) {
	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Telemetry.LogLevel = "debug"
	}
	log.Debug().Str("config", path).Msg("Configuration loaded")
	return cfg, nil
}

// openWorkspace loads the configuration and starts telemetry.
func openWorkspace() (*workspace, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(cfg.ToTelemetryConfig(buildVersion))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	ws := &workspace{
		cfg:    cfg,
		tel:    tel,
		logger: tel.Logger.Zerolog(),
	}
	if cfg.Telemetry.MetricsEnabled && cfg.Telemetry.MetricsAddress != "" {
		ws.metrics = tel.Metrics.StartMetricsServer()
	}
	return ws, nil
}

// closeLater registers c to be closed by Close.
func (w *workspace) closeLater(c io.Closer) {
	w.closers = append(w.closers, c)
}

// Close flushes telemetry, stops the metrics server and closes registered resources.
func (w *workspace) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if w.metrics != nil {
		if err := w.metrics.Shutdown(ctx); err != nil {
			w.logger.Warn().Err(err).Msg("Failed to stop metrics server")
		}
	}
	if err := w.tel.Shutdown(ctx); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
	for i := len(w.closers) - 1; i >= 0; i-- {
		if err := w.closers[i].Close(); err != nil {
			w.logger.Warn().Err(err).Msg("Failed to close resource")
		}
	}
}

// openStore opens the plan archive. It returns nil when archiving is disabled.
func (w *workspace) openStore(ctx context.Context) (*stores.SQLiteStore, error) {
	if w.cfg.Store.Path == "" {
		return nil, nil
	}
	return openStoreAt(ctx, w.cfg.Store.Path)
}

// requireStore is openStore for commands that read the archive.
func (w *workspace) requireStore(ctx context.Context) (*stores.SQLiteStore, error) {
	store, err := w.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("no plan archive configured (set store.path)")
	}
	return store, nil
}

func openStoreAt(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// policyEngine builds the guardrail engine with the configured user policies.
func (w *workspace) policyEngine(ctx context.Context) (*policy.Engine, error) {
	var opts []policy.Option
	if w.cfg.Policies.DisableBuiltin {
		opts = append(opts, policy.WithoutBuiltins())
	}
	engine, err := policy.NewEngine(w.logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy engine: %w", err)
	}
	if len(w.cfg.Policies.Paths) > 0 {
		if err := engine.LoadPolicies(ctx, w.cfg.Policies.Paths); err != nil {
			_ = engine.Close()
			return nil, fmt.Errorf("failed to load policies: %w", err)
		}
	}
	return engine, nil
}
