package telemetry_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tripforge/tripforge/pkg/telemetry"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = "1.0.0"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())
	telemetry.FromContext(ctx).Info("Planner started")
}

// Example_structuredLogging demonstrates plan-scoped loggers.
func Example_structuredLogging() {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = "debug"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	logger := tel.Logger.NewComponentLogger("cli").
		WithRequestID("req-123")

	logger.Infof("Segment %d of %d started", 1, 2)
	logger.WithModule("attraction_plan").Warn("Using fallback entry")
	logger.WithError(errors.New("503 service unavailable")).Warn("Retries exhausted")
}

// Example_eventPublishing demonstrates synchronous event delivery.
func Example_eventPublishing() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.EnableAsync = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("%s: %s\n", event.Type, event.Message)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	_ = tel.Events.PublishPlanStarted("req-1", "Hanoi", 12, 2)
	_ = tel.Events.PublishDayFallback("req-1", "budget", "attraction_plan", 4, "server_error")
	_ = tel.Events.PublishPlanCompleted("req-1", 1, 3*time.Second)

	// Output:
	// day.fallback: Day 4 of attraction_plan fell back after server_error
}

// Example_instrumentedOperation demonstrates StartOperation.
func Example_instrumentedOperation() {
	tel, _ := telemetry.NewTelemetry(telemetry.DefaultConfig())
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	op := telemetry.StartOperation(ctx, "plan.validate", telemetry.AttrRequestID.String("req-1"))
	var err error
	defer func() { op.End(err) }()

	op.Logger.Info("Validating request")
	tel.Metrics.ObservePlan(op.Timer.Duration())
}
