package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a plan lifecycle event.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`

	// Source identifies the emitting component (planner, generation, resilience).
	Source string `json:"source"`

	RequestID string `json:"request_id,omitempty"`
	Variant   string `json:"variant,omitempty"`
	Module    string `json:"module,omitempty"`
	Message   string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string                 `json:"level"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypePlanStarted      = "plan.started"
	EventTypePlanCompleted    = "plan.completed"
	EventTypePlanFailed       = "plan.failed"
	EventTypeVariantCompleted = "variant.completed"
	EventTypeVariantDiscarded = "variant.discarded"
	EventTypeBreakerOpened    = "breaker.opened"
	EventTypeBreakerClosed    = "breaker.closed"
	EventTypeDayFallback      = "day.fallback"
	EventTypePolicyViolation  = "policy.violation"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// ErrPublisherStopped is returned by Publish after Shutdown.
var ErrPublisherStopped = errors.New("event publisher stopped")

// ErrBufferFull is returned when an async publisher cannot accept another event.
var ErrBufferFull = errors.New("event buffer full, event dropped")

// EventSubscriber handles delivered events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher fans events out to subscribers. In async mode events are buffered and
// delivered in batches from one goroutine, so a subscriber sees events in publish order.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	stopped     chan struct{}
	stopOnce    sync.Once
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	ep := &EventPublisher{
		config:  cfg,
		stopped: make(chan struct{}),
	}
	if !cfg.Enabled {
		return ep, nil
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1
		ep.config = cfg
	}

	if cfg.EnableAsync {
		ep.buffer = make(chan Event, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case <-ep.stopped:
		return ErrPublisherStopped
	default:
	}

	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.stopped:
			return ErrPublisherStopped
		default:
			return ErrBufferFull
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishPlanStarted publishes a plan started event.
func (ep *EventPublisher) PublishPlanStarted(requestID, destination string, days, variants int) error {
	return ep.Publish(Event{
		Type:      EventTypePlanStarted,
		Source:    "planner",
		RequestID: requestID,
		Message:   fmt.Sprintf("Plan %s started: %d days in %s", requestID, days, destination),
		Level:     EventLevelInfo,
		Data: map[string]interface{}{
			"destination": destination,
			"days":        days,
			"variants":    variants,
		},
	})
}

// PublishPlanCompleted publishes a plan completed event.
func (ep *EventPublisher) PublishPlanCompleted(requestID string, usable int, duration time.Duration) error {
	return ep.Publish(Event{
		Type:      EventTypePlanCompleted,
		Source:    "planner",
		RequestID: requestID,
		Message:   fmt.Sprintf("Plan %s completed with %d usable variants", requestID, usable),
		Level:     EventLevelInfo,
		Data: map[string]interface{}{
			"usable":   usable,
			"duration": duration.Seconds(),
		},
	})
}

// PublishPlanFailed publishes a plan failed event.
func (ep *EventPublisher) PublishPlanFailed(requestID, reason string) error {
	return ep.Publish(Event{
		Type:      EventTypePlanFailed,
		Source:    "planner",
		RequestID: requestID,
		Message:   fmt.Sprintf("Plan %s failed: %s", requestID, reason),
		Level:     EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishVariantCompleted publishes a variant completed event for ok and degraded variants.
func (ep *EventPublisher) PublishVariantCompleted(requestID, variant, status string, totalCost float64) error {
	level := EventLevelInfo
	if status != "ok" {
		level = EventLevelWarning
	}
	return ep.Publish(Event{
		Type:      EventTypeVariantCompleted,
		Source:    "planner",
		RequestID: requestID,
		Variant:   variant,
		Message:   fmt.Sprintf("Variant %s completed with status %s", variant, status),
		Level:     level,
		Data: map[string]interface{}{
			"status":     status,
			"total_cost": totalCost,
		},
	})
}

// PublishVariantDiscarded publishes a variant discarded event.
func (ep *EventPublisher) PublishVariantDiscarded(requestID, variant, reason string) error {
	return ep.Publish(Event{
		Type:      EventTypeVariantDiscarded,
		Source:    "planner",
		RequestID: requestID,
		Variant:   variant,
		Message:   fmt.Sprintf("Variant %s discarded: %s", variant, reason),
		Level:     EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishBreakerOpened publishes a circuit opened event.
func (ep *EventPublisher) PublishBreakerOpened(module string) error {
	return ep.Publish(Event{
		Type:    EventTypeBreakerOpened,
		Source:  "resilience",
		Module:  module,
		Message: fmt.Sprintf("Circuit breaker for %s opened", module),
		Level:   EventLevelWarning,
	})
}

// PublishBreakerClosed publishes a circuit closed event.
func (ep *EventPublisher) PublishBreakerClosed(module string) error {
	return ep.Publish(Event{
		Type:    EventTypeBreakerClosed,
		Source:  "resilience",
		Module:  module,
		Message: fmt.Sprintf("Circuit breaker for %s closed", module),
		Level:   EventLevelInfo,
	})
}

// PublishDayFallback publishes a fallback entry event.
func (ep *EventPublisher) PublishDayFallback(requestID, variant, module string, day int, category string) error {
	return ep.Publish(Event{
		Type:      EventTypeDayFallback,
		Source:    "generation",
		RequestID: requestID,
		Variant:   variant,
		Module:    module,
		Message:   fmt.Sprintf("Day %d of %s fell back after %s", day, module, category),
		Level:     EventLevelWarning,
		Data: map[string]interface{}{
			"day":      day,
			"category": category,
		},
	})
}

// PublishPolicyViolation publishes a guardrail violation event.
func (ep *EventPublisher) PublishPolicyViolation(requestID, variant, policy, message string) error {
	return ep.Publish(Event{
		Type:      EventTypePolicyViolation,
		Source:    "policy",
		RequestID: requestID,
		Variant:   variant,
		Message:   fmt.Sprintf("Policy %s: %s", policy, message),
		Level:     EventLevelWarning,
		Data: map[string]interface{}{
			"policy": policy,
		},
	})
}

// Subscribe adds a new event subscriber. A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processEvents batches buffered events and delivers them when the batch is full, on every
// flush tick, and once more on shutdown.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	var tick <-chan time.Time
	if ep.config.FlushInterval > 0 {
		ticker := time.NewTicker(ep.config.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	batch := make([]Event, 0, ep.config.MaxBatchSize)
	flush := func() {
		for _, event := range batch {
			ep.deliverEvent(event)
		}
		batch = batch[:0]
	}

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)
			if len(batch) >= ep.config.MaxBatchSize {
				flush()
			}
		case <-tick:
			flush()
		case <-ep.stopped:
			for {
				select {
				case event := <-ep.buffer:
					batch = append(batch, event)
				default:
					flush()
					return
				}
			}
		}
	}
}

// deliverEvent delivers an event to all matching subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops the publisher after delivering buffered events.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.stopOnce.Do(func() { close(ep.stopped) })

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout: %w", ctx.Err())
	}
}

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}
	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}
