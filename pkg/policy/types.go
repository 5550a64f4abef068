package policy

import (
	"time"

	"github.com/tripforge/tripforge/pkg/itinerary"
)

// Policy represents a Rego guardrail policy.
type Policy struct {
	// Name is the unique identifier for this policy.
	Name string `json:"name"`

	// Description explains what this policy checks.
	Description string `json:"description"`

	// Rego is the policy source. Its package must define a deny set.
	Rego string `json:"rego"`

	// Severity is used for deny entries that do not carry their own.
	Severity Severity `json:"severity"`

	// Enabled indicates if this policy should be evaluated.
	Enabled bool `json:"enabled"`

	// Builtin marks policies shipped with tripforge.
	Builtin bool `json:"builtin"`

	// Tags for categorizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy information, such as its source file.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo indicates informational findings.
	SeverityInfo Severity = "info"

	// SeverityWarning indicates potential issues.
	SeverityWarning Severity = "warning"

	// SeverityError indicates a plan the traveler should not accept as is.
	SeverityError Severity = "error"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// PolicyInput is the document a policy sees as input.
type PolicyInput struct {
	RequestID   string `json:"request_id"`
	Destination string `json:"destination"`
	Days        int    `json:"days"`
	Travelers   int    `json:"travelers"`

	// Budget is the whole-trip budget. Zero means unbounded.
	Budget float64 `json:"budget"`

	Variant itinerary.Variant       `json:"variant"`
	Status  itinerary.VariantStatus `json:"status"`

	// DegradedDimensions lists dimensions that produced no entries.
	DegradedDimensions []itinerary.Dimension `json:"degraded_dimensions"`

	Plan    *itinerary.Plan `json:"plan"`
	Context *PolicyContext  `json:"context,omitempty"`
}

// PolicyContext provides additional context for policy evaluation.
type PolicyContext struct {
	Timestamp time.Time `json:"timestamp"`

	// FallbackDays counts deterministic fallback days per dimension.
	FallbackDays map[itinerary.Dimension]int `json:"fallback_days,omitempty"`
}

// NewInput builds the policy input for one assembled variant.
func NewInput(req *itinerary.PlanRequest, result *itinerary.VariantResult) *PolicyInput {
	return &PolicyInput{
		RequestID:          req.ID,
		Destination:        req.Destination,
		Days:               req.Days,
		Travelers:          req.Travelers,
		Budget:             req.Budget,
		Variant:            result.Variant,
		Status:             result.Status,
		DegradedDimensions: result.DegradedDimensions,
		Plan:               result.Plan,
		Context: &PolicyContext{
			Timestamp:    time.Now().UTC(),
			FallbackDays: result.FallbackDays,
		},
	}
}

// PolicyBundle is a named, versioned set of policies shipped as one JSON file.
type PolicyBundle struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Policies    []Policy `json:"policies"`
}

// PolicySummary describes a loaded policy for listing.
type PolicySummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Enabled     bool     `json:"enabled"`
	Builtin     bool     `json:"builtin"`
	Source      string   `json:"source,omitempty"`
}
