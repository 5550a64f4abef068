package itinerary

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// PlanRequest is the immutable input of a plan generation.
type PlanRequest struct {
	ID                  string    `json:"id" yaml:"id"`
	Destination         string    `json:"destination" yaml:"destination" validate:"required"`
	Origin              string    `json:"origin,omitempty" yaml:"origin,omitempty"`
	StartDate           time.Time `json:"start_date" yaml:"start_date" validate:"required"`
	Days                int       `json:"days" yaml:"days" validate:"min=1,max=90"`
	Budget              float64   `json:"budget,omitempty" yaml:"budget,omitempty" validate:"gte=0"`
	Travelers           int       `json:"travelers" yaml:"travelers" validate:"min=1"`
	AgeGroups           []string  `json:"age_groups,omitempty" yaml:"age_groups,omitempty" validate:"dive,oneof=infant child teen adult senior"`
	FoodPreferences     []string  `json:"food_preferences,omitempty" yaml:"food_preferences,omitempty"`
	FoodRestrictions    []string  `json:"food_restrictions,omitempty" yaml:"food_restrictions,omitempty"`
	SpecialRequirements string    `json:"special_requirements,omitempty" yaml:"special_requirements,omitempty"`
}

var requestValidator = validator.New()

// Validate checks the request fields.
func (r PlanRequest) Validate() error {
	if err := requestValidator.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid plan request: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid plan request: %w", err)
	}
	return nil
}

// WithID returns a copy of the request carrying a generated id if it had none.
func (r PlanRequest) WithID() PlanRequest {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return r
}

// EndDate returns the last calendar day of the trip.
func (r PlanRequest) EndDate() time.Time {
	return r.StartDate.AddDate(0, 0, r.Days-1)
}

// Range returns the calendar range of the whole trip.
func (r PlanRequest) Range() DateRange {
	return DateRange{Start: r.StartDate, End: r.EndDate()}
}

// TravelerProfile renders the traveler fields for prompts.
func (r PlanRequest) TravelerProfile() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d traveler(s)", r.Travelers)
	if len(r.AgeGroups) > 0 {
		fmt.Fprintf(&b, ", age groups: %s", strings.Join(r.AgeGroups, ", "))
	}
	if len(r.FoodPreferences) > 0 {
		fmt.Fprintf(&b, ", food preferences: %s", strings.Join(r.FoodPreferences, ", "))
	}
	if len(r.FoodRestrictions) > 0 {
		fmt.Fprintf(&b, ", food restrictions: %s", strings.Join(r.FoodRestrictions, ", "))
	}
	return b.String()
}

// Variant is one independently generated candidate plan for a request.
type Variant struct {
	Name        string  `json:"name" yaml:"name" validate:"required"`
	Style       string  `json:"style" yaml:"style"`
	Temperature float64 `json:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
}

// DefaultVariants returns the budget and comfort variants.
func DefaultVariants() []Variant {
	return []Variant{
		{Name: "budget", Style: "economical: hostels or 3-star hotels, street food, public transport", Temperature: 0.6},
		{Name: "comfort", Style: "comfortable: 4-star hotels, sit-down restaurants, taxis when convenient", Temperature: 0.7},
	}
}
