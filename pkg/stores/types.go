package stores

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// RequestStatus represents the status of an archived plan request
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusFailed    RequestStatus = "failed"
)

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// PlanRequest is an archived plan request
type PlanRequest struct {
	ID          string        `json:"id"`
	Destination string        `json:"destination"`
	StartDate   string        `json:"start_date"`
	Days        int           `json:"days"`
	Budget      float64       `json:"budget"`
	Status      RequestStatus `json:"status"`
	Request     string        `json:"request"` // JSON blob
	Error       *string       `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// PlanVariant is one archived variant result of a plan request
type PlanVariant struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"` // ok, degraded, discarded
	TotalCost  float64   `json:"total_cost"`
	Reason     string    `json:"reason"`
	Violations int       `json:"violations"`
	Result     string    `json:"result"` // JSON blob
	CreatedAt  time.Time `json:"created_at"`
}

// Event is an append-only generation lifecycle event
type Event struct {
	ID        int64      `json:"id"`
	EventID   string     `json:"event_id"`
	RequestID *string    `json:"request_id,omitempty"`
	Variant   *string    `json:"variant,omitempty"`
	Module    *string    `json:"module,omitempty"`
	Type      string     `json:"type"`
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
	Details   *string    `json:"details,omitempty"` // JSON blob
	Timestamp time.Time  `json:"timestamp"`
}

// EventQuery filters GetEvents. Nil fields match everything.
type EventQuery struct {
	RequestID *string
	Type      *string
	Level     *EventLevel
	Limit     int
	Offset    int
}

// Store defines the interface for the plan archive
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Plan requests
	CreatePlanRequest(ctx context.Context, req *PlanRequest) error
	GetPlanRequest(ctx context.Context, id string) (*PlanRequest, error)
	UpdatePlanRequestStatus(ctx context.Context, id string, status RequestStatus, err *string) error
	ListPlanRequests(ctx context.Context, limit, offset int) ([]*PlanRequest, error)
	DeletePlanRequest(ctx context.Context, id string) error

	// Variants
	SaveVariants(ctx context.Context, variants []*PlanVariant) error
	ListVariants(ctx context.Context, requestID string) ([]*PlanVariant, error)

	// Events
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, q EventQuery) ([]*Event, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
