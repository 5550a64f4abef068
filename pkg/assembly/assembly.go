package assembly

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripforge/tripforge/pkg/itinerary"
)

// Config tunes assembly.
type Config struct {
	// MinAttractionsPerDay is the number of attractions each day is back-filled to.
	MinAttractionsPerDay int `json:"min_attractions_per_day" yaml:"min_attractions_per_day" validate:"gte=0,lte=10"`

	// ScarcityFactor scales the days * min_per_day threshold below which reuse is allowed.
	ScarcityFactor float64 `json:"scarcity_factor" yaml:"scarcity_factor" validate:"gte=0"`

	// TransportPerDay is the flat transport estimate used in the cost rollup.
	TransportPerDay float64 `json:"transport_per_day" yaml:"transport_per_day" validate:"gte=0"`
}

// DefaultConfig returns the assembly defaults.
func DefaultConfig() Config {
	return Config{
		MinAttractionsPerDay: 2,
		ScarcityFactor:       1.0,
		TransportPerDay:      50,
	}
}

// Input is the output of a variant's segment loop.
type Input struct {
	Days      int
	StartDate time.Time

	// Entries holds each dimension's entries numbered by trip day.
	Entries   map[itinerary.Dimension][]itinerary.DailyEntry
	Reference itinerary.ReferenceData
}

// Outcome is the assembled variant plus diagnostics.
type Outcome struct {
	Status             itinerary.VariantStatus
	Plan               *itinerary.Plan
	Reason             string
	DegradedDimensions []itinerary.Dimension
	FallbackDays       map[itinerary.Dimension]int
	Dedup              DedupStats
	Enriched           int
}

// Engine merges dimension entries into plans.
type Engine struct {
	cfg    Config
	logger zerolog.Logger
}

// NewEngine creates an assembly engine.
func NewEngine(cfg Config, logger zerolog.Logger) *Engine {
	if cfg.ScarcityFactor <= 0 {
		cfg.ScarcityFactor = 1.0
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.With().Str("component", "assembly").Logger(),
	}
}

// Assemble classifies the variant and, unless it is discarded, builds its plan. A critical
// dimension with no entries discards the variant. A non-critical one degrades it.
func (e *Engine) Assemble(in Input) Outcome {
	out := Outcome{Status: itinerary.StatusOK, FallbackDays: make(map[itinerary.Dimension]int)}

	for _, dim := range itinerary.Dimensions() {
		entries := in.Entries[dim]
		for _, entry := range entries {
			if entry.Source == itinerary.SourceFallback {
				out.FallbackDays[dim]++
			}
		}
		if len(entries) > 0 {
			continue
		}
		if dim.Critical() {
			out.Status = itinerary.StatusDiscarded
			out.Reason = fmt.Sprintf("critical dimension %s produced no entries", dim)
			e.logger.Warn().Str("dimension", string(dim)).Msg("Discarding variant")
			return out
		}
		out.Status = itinerary.StatusDegraded
		out.DegradedDimensions = append(out.DegradedDimensions, dim)
	}
	if out.Status == itinerary.StatusDegraded {
		out.Reason = fmt.Sprintf("no entries for %v", out.DegradedDimensions)
	}

	days := Merge(in.Days, in.StartDate, in.Entries)

	hotels := newRecordIndex(in.Reference[itinerary.DimensionLodging])
	restaurants := newRecordIndex(in.Reference[itinerary.DimensionDining])
	for i := range days {
		if enrichHotel(days[i].Hotel, hotels) {
			out.Enriched++
		}
		for j := range days[i].Meals {
			if enrichRestaurant(&days[i].Meals[j].Restaurant, restaurants) {
				out.Enriched++
			}
		}
	}

	out.Dedup = dedupAttractions(days, in.Reference[itinerary.DimensionAttractions], e.cfg.MinAttractionsPerDay, e.cfg.ScarcityFactor)

	plan := &itinerary.Plan{
		DailyItineraries: days,
		TotalCost:        RollupCost(days, e.cfg.TransportPerDay),
		Restaurants:      uniqueRestaurants(days),
		Transportation:   uniqueRoutes(days),
	}
	for _, d := range days {
		if plan.Hotel == nil && d.Hotel != nil {
			plan.Hotel = d.Hotel
		}
		if plan.Flight == nil && d.Flight != nil {
			plan.Flight = d.Flight
		}
	}
	out.Plan = plan

	e.logger.Debug().
		Str("status", string(out.Status)).
		Int("days", len(days)).
		Int("enriched", out.Enriched).
		Int("dropped_attractions", out.Dedup.Dropped).
		Int("added_attractions", out.Dedup.Added).
		Float64("total_cost", plan.TotalCost.Total).
		Msg("Variant assembled")
	return out
}

// Merge folds the per-dimension entries into one DailyItinerary per trip day. Days with no
// entry in a dimension are left empty for that dimension.
func Merge(days int, start time.Time, entries map[itinerary.Dimension][]itinerary.DailyEntry) []itinerary.DailyItinerary {
	out := make([]itinerary.DailyItinerary, days)
	for i := range out {
		out[i] = itinerary.DailyItinerary{
			Day:         i + 1,
			Date:        start.AddDate(0, 0, i).Format(itinerary.DateLayout),
			Meals:       []itinerary.Meal{},
			Routes:      []itinerary.Route{},
			Schedule:    []itinerary.ScheduleItem{},
			Attractions: []itinerary.Attraction{},
		}
	}

	for _, dim := range itinerary.Dimensions() {
		for _, e := range entries[dim] {
			if e.Day < 1 || e.Day > days {
				continue
			}
			d := &out[e.Day-1]
			if e.Date != "" {
				d.Date = e.Date
			}
			switch {
			case e.Lodging != nil:
				d.Flight = e.Lodging.Flight
				d.Hotel = e.Lodging.Hotel
				d.LodgingCost = e.Lodging.DailyCost
			case e.Dining != nil:
				d.Meals = append([]itinerary.Meal(nil), e.Dining.Meals...)
				d.FoodCost = e.Dining.DailyFoodCost
			case e.Transport != nil:
				d.Routes = append([]itinerary.Route(nil), e.Transport.PrimaryRoutes...)
				d.BackupRoutes = append([]itinerary.Route(nil), e.Transport.BackupRoutes...)
				d.Stage = e.Transport.Stage
				d.TransportCost = e.Transport.DailyTransportCost
			case e.Attractions != nil:
				d.Schedule = append([]itinerary.ScheduleItem(nil), e.Attractions.Schedule...)
				d.Attractions = append([]itinerary.Attraction(nil), e.Attractions.Attractions...)
				d.AttractionCost = e.Attractions.EstimatedCost
			}
		}
	}
	return out
}

// RollupCost sums flight, hotel, attractions and meals over days and adds a flat
// transportPerDay for every day.
func RollupCost(days []itinerary.DailyItinerary, transportPerDay float64) itinerary.CostBreakdown {
	var c itinerary.CostBreakdown
	for _, d := range days {
		if d.Flight != nil {
			c.Flight += d.Flight.Price
		}
		c.Hotel += d.LodgingCost
		c.Attractions += d.AttractionCost
		c.Meals += d.FoodCost
	}
	c.Transportation = transportPerDay * float64(len(days))
	c.Total = c.Flight + c.Hotel + c.Attractions + c.Meals + c.Transportation
	return c
}

func uniqueRestaurants(days []itinerary.DailyItinerary) []itinerary.Restaurant {
	seen := make(map[string]bool)
	out := []itinerary.Restaurant{}
	for _, d := range days {
		for _, m := range d.Meals {
			key := itinerary.NormalizeName(m.Restaurant.Name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, m.Restaurant)
		}
	}
	return out
}

func uniqueRoutes(days []itinerary.DailyItinerary) []itinerary.Route {
	seen := make(map[string]bool)
	out := []itinerary.Route{}
	for _, d := range days {
		for _, r := range d.Routes {
			key := itinerary.NormalizeName(r.Name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, r)
		}
	}
	return out
}
