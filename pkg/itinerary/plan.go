package itinerary

// DailyItinerary is one trip day with all four dimensions merged.
type DailyItinerary struct {
	Day          int            `json:"day"`
	Date         string         `json:"date"`
	Flight       *Flight        `json:"flight,omitempty"`
	Hotel        *Hotel         `json:"hotel,omitempty"`
	Meals        []Meal         `json:"meals"`
	Routes       []Route        `json:"routes"`
	BackupRoutes []Route        `json:"backup_routes,omitempty"`
	Stage        string         `json:"stage,omitempty"`
	Schedule     []ScheduleItem `json:"schedule"`
	Attractions  []Attraction   `json:"attractions"`

	LodgingCost    float64 `json:"lodging_cost"`
	FoodCost       float64 `json:"food_cost"`
	TransportCost  float64 `json:"transport_cost"`
	AttractionCost float64 `json:"attraction_cost"`
}

// CostBreakdown is the rolled-up cost of a plan.
type CostBreakdown struct {
	Flight         float64 `json:"flight"`
	Hotel          float64 `json:"hotel"`
	Attractions    float64 `json:"attractions"`
	Meals          float64 `json:"meals"`
	Transportation float64 `json:"transportation"`
	Total          float64 `json:"total"`
}

// Plan is the assembled itinerary of one variant.
type Plan struct {
	DailyItineraries []DailyItinerary `json:"daily_itineraries"`
	TotalCost        CostBreakdown    `json:"total_cost"`
	Restaurants      []Restaurant     `json:"restaurants"`
	Transportation   []Route          `json:"transportation"`
	Hotel            *Hotel           `json:"hotel,omitempty"`
	Flight           *Flight          `json:"flight,omitempty"`
}

// VariantStatus is the outcome of a plan variant.
type VariantStatus string

const (
	// StatusOK means every dimension produced entries.
	StatusOK VariantStatus = "ok"

	// StatusDegraded means a non-critical dimension produced nothing.
	StatusDegraded VariantStatus = "degraded"

	// StatusDiscarded means a critical dimension produced nothing and no plan is returned.
	StatusDiscarded VariantStatus = "discarded"
)

// Violation is a guardrail finding about an assembled plan.
type Violation struct {
	Policy   string `json:"policy"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Day      int    `json:"day,omitempty"`
}

// VariantResult is what the planner returns for each variant.
type VariantResult struct {
	ID                 string            `json:"id"`
	Variant            Variant           `json:"variant"`
	Status             VariantStatus     `json:"status"`
	Plan               *Plan             `json:"plan,omitempty"`
	Reason             string            `json:"reason,omitempty"`
	DegradedDimensions []Dimension       `json:"degraded_dimensions,omitempty"`
	FallbackDays       map[Dimension]int `json:"fallback_days,omitempty"`
	Violations         []Violation       `json:"violations,omitempty"`
}

// Usable reports whether the variant carries a plan.
func (v VariantResult) Usable() bool {
	return v.Status != StatusDiscarded && v.Plan != nil
}
