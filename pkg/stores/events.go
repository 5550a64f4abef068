package stores

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripforge/tripforge/pkg/telemetry"
)

// EventRecorder returns a subscriber that appends every published telemetry event to store.
// Failures are logged, never returned to the publisher.
func EventRecorder(store Store, logger zerolog.Logger) telemetry.EventSubscriber {
	logger = logger.With().Str("component", "event_recorder").Logger()

	return func(e telemetry.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := store.AppendEvent(ctx, FromTelemetryEvent(e)); err != nil {
			logger.Warn().Err(err).Str("event_type", e.Type).Msg("Failed to persist event")
		}
	}
}

// FromTelemetryEvent converts a published event into its archived form.
func FromTelemetryEvent(e telemetry.Event) *Event {
	out := &Event{
		EventID:   e.ID,
		RequestID: optional(e.RequestID),
		Variant:   optional(e.Variant),
		Module:    optional(e.Module),
		Type:      e.Type,
		Level:     EventLevel(e.Level),
		Message:   e.Message,
		Timestamp: e.Timestamp,
	}
	if out.Level == "" {
		out.Level = EventLevelInfo
	}
	if len(e.Data) > 0 {
		if raw, err := json.Marshal(e.Data); err == nil {
			details := string(raw)
			out.Details = &details
		}
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
