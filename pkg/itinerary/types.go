package itinerary

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the calendar date format used in entries and prompts.
const DateLayout = "2006-01-02"

// Dimension is one of the four generation axes of a plan.
type Dimension string

const (
	// DimensionLodging produces flight and hotel per day.
	DimensionLodging Dimension = "lodging"

	// DimensionDining produces meals per day.
	DimensionDining Dimension = "dining"

	// DimensionTransport produces local routes per day.
	DimensionTransport Dimension = "transport"

	// DimensionAttractions produces a visit schedule per day.
	DimensionAttractions Dimension = "attractions"
)

// Dimensions returns all dimensions in generation order.
func Dimensions() []Dimension {
	return []Dimension{DimensionLodging, DimensionDining, DimensionTransport, DimensionAttractions}
}

// ModuleName returns the circuit breaker key for the dimension.
func (d Dimension) ModuleName() string {
	switch d {
	case DimensionLodging:
		return "hotel_plan"
	case DimensionDining:
		return "restaurant_plan"
	case DimensionTransport:
		return "transport_plan"
	case DimensionAttractions:
		return "attraction_plan"
	default:
		return string(d) + "_plan"
	}
}

// Critical reports whether a total failure of the dimension discards the plan variant.
func (d Dimension) Critical() bool {
	return d == DimensionLodging || d == DimensionAttractions
}

// ParseDimension converts a string to a Dimension.
func ParseDimension(s string) (Dimension, error) {
	for _, d := range Dimensions() {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dimension: %q", s)
}

// DateRange is an inclusive calendar range.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls on a day inside the range.
func (r DateRange) Contains(t time.Time) bool {
	day := truncateDay(t)
	return !day.Before(truncateDay(r.Start)) && !day.After(truncateDay(r.End))
}

// Segment is a bounded consecutive run of trip days.
type Segment struct {
	// Index is the 0-based position of the segment in the trip.
	Index int `json:"index"`

	// StartDate is the first calendar day of the segment.
	StartDate time.Time `json:"start_date"`

	// EndDate is the last calendar day of the segment.
	EndDate time.Time `json:"end_date"`

	// DayCount is the number of days in the segment.
	DayCount int `json:"day_count"`

	// Offset is the number of trip days that precede the segment.
	Offset int `json:"offset"`
}

// DateFor returns the calendar date of the 1-based day within the segment.
func (s Segment) DateFor(day int) time.Time {
	return s.StartDate.AddDate(0, 0, day-1)
}

// TripDay converts a 1-based segment day into a 1-based trip day.
func (s Segment) TripDay(day int) int {
	return s.Offset + day
}

// Range returns the calendar range covered by the segment.
func (s Segment) Range() DateRange {
	return DateRange{Start: s.StartDate, End: s.EndDate}
}

// Flight is an inbound or outbound flight suggestion.
type Flight struct {
	Airline       string  `json:"airline,omitempty"`
	FlightNumber  string  `json:"flight_number,omitempty"`
	From          string  `json:"from,omitempty"`
	To            string  `json:"to,omitempty"`
	DepartureTime string  `json:"departure_time,omitempty"`
	ArrivalTime   string  `json:"arrival_time,omitempty"`
	Price         float64 `json:"price"`
}

// Hotel is a lodging suggestion.
type Hotel struct {
	ID            string   `json:"id,omitempty"`
	Name          string   `json:"name"`
	Address       string   `json:"address,omitempty"`
	Rating        float64  `json:"rating,omitempty"`
	PricePerNight float64  `json:"price_per_night,omitempty"`
	Amenities     []string `json:"amenities,omitempty"`
	Photos        []string `json:"photos,omitempty"`
	Description   string   `json:"description,omitempty"`
}

// Meal is one dining slot of a day.
type Meal struct {
	Type       string     `json:"type"`
	Time       string     `json:"time,omitempty"`
	Restaurant Restaurant `json:"restaurant"`
	Dishes     []string   `json:"dishes,omitempty"`
	Cost       float64    `json:"cost"`
}

// Restaurant is a dining venue.
type Restaurant struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Cuisine     string   `json:"cuisine,omitempty"`
	Address     string   `json:"address,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	PriceLevel  string   `json:"price_level,omitempty"`
	Specialties []string `json:"specialties,omitempty"`
	Photos      []string `json:"photos,omitempty"`
}

// Route is one transport leg.
type Route struct {
	Name     string  `json:"name"`
	Mode     string  `json:"mode,omitempty"`
	From     string  `json:"from,omitempty"`
	To       string  `json:"to,omitempty"`
	Duration string  `json:"duration,omitempty"`
	Cost     float64 `json:"cost"`
	Notes    string  `json:"notes,omitempty"`
}

// Attraction is a place to visit.
type Attraction struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Category    string   `json:"category,omitempty"`
	Address     string   `json:"address,omitempty"`
	Duration    string   `json:"duration,omitempty"`
	TicketPrice float64  `json:"ticket_price"`
	Rating      float64  `json:"rating,omitempty"`
	Description string   `json:"description,omitempty"`
	Photos      []string `json:"photos,omitempty"`
}

// ScheduleItem is one timed activity of a day.
type ScheduleItem struct {
	Time     string `json:"time"`
	Activity string `json:"activity"`
	Location string `json:"location,omitempty"`
}

// LodgingDay is the lodging payload of a DailyEntry.
type LodgingDay struct {
	Flight    *Flight `json:"flight,omitempty"`
	Hotel     *Hotel  `json:"hotel"`
	DailyCost float64 `json:"daily_cost"`
}

// DiningDay is the dining payload of a DailyEntry.
type DiningDay struct {
	Meals         []Meal  `json:"meals"`
	DailyFoodCost float64 `json:"daily_food_cost"`
}

// TransportDay is the transport payload of a DailyEntry.
type TransportDay struct {
	PrimaryRoutes      []Route `json:"primary_routes"`
	BackupRoutes       []Route `json:"backup_routes,omitempty"`
	DailyTransportCost float64 `json:"daily_transport_cost"`
	Stage              string  `json:"stage,omitempty"`
}

// AttractionDay is the attractions payload of a DailyEntry.
type AttractionDay struct {
	Schedule      []ScheduleItem `json:"schedule"`
	Attractions   []Attraction   `json:"attractions"`
	EstimatedCost float64        `json:"estimated_cost"`
}

// EntrySource tells whether an entry came from generation or from the fallback builder.
type EntrySource string

const (
	SourceGenerated EntrySource = "generated"
	SourceFallback  EntrySource = "fallback"
)

// DailyEntry is the output of one dimension generator for one day. Exactly one payload
// matching Dimension is set.
type DailyEntry struct {
	Day       int         `json:"day"`
	Date      string      `json:"date"`
	Dimension Dimension   `json:"dimension"`
	Source    EntrySource `json:"source"`

	Lodging     *LodgingDay    `json:"lodging,omitempty"`
	Dining      *DiningDay     `json:"dining,omitempty"`
	Transport   *TransportDay  `json:"transport,omitempty"`
	Attractions *AttractionDay `json:"attractions,omitempty"`
}

// Cost returns the realized spend of the entry for its dimension.
func (e DailyEntry) Cost() float64 {
	switch {
	case e.Lodging != nil:
		cost := e.Lodging.DailyCost
		if e.Lodging.Flight != nil {
			cost += e.Lodging.Flight.Price
		}
		return cost
	case e.Dining != nil:
		return e.Dining.DailyFoodCost
	case e.Transport != nil:
		return e.Transport.DailyTransportCost
	case e.Attractions != nil:
		return e.Attractions.EstimatedCost
	}
	return 0
}

// Names returns the resource names the entry references, for used-set tracking.
func (e DailyEntry) Names() []string {
	var names []string
	switch {
	case e.Dining != nil:
		for _, m := range e.Dining.Meals {
			if m.Restaurant.Name != "" {
				names = append(names, m.Restaurant.Name)
			}
		}
	case e.Transport != nil:
		for _, r := range e.Transport.PrimaryRoutes {
			if r.Name != "" {
				names = append(names, r.Name)
			}
		}
	case e.Attractions != nil:
		for _, a := range e.Attractions.Attractions {
			if a.Name != "" {
				names = append(names, a.Name)
			}
		}
	case e.Lodging != nil:
		if e.Lodging.Hotel != nil && e.Lodging.Hotel.Name != "" {
			names = append(names, e.Lodging.Hotel.Name)
		}
	}
	return names
}

// ModuleResult is the outcome of one dimension generator over one segment.
type ModuleResult struct {
	Dimension Dimension    `json:"dimension"`
	Success   bool         `json:"success"`
	Entries   []DailyEntry `json:"entries"`
	Err       error        `json:"-"`
}

// FallbackDays counts entries produced by the fallback builder.
func (r ModuleResult) FallbackDays() int {
	n := 0
	for _, e := range r.Entries {
		if e.Source == SourceFallback {
			n++
		}
	}
	return n
}

// MarshalJSON includes the error message.
func (r ModuleResult) MarshalJSON() ([]byte, error) {
	type alias ModuleResult
	out := struct {
		alias
		Error string `json:"error,omitempty"`
	}{alias: alias(r)}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// Record is a reference-data record for any dimension.
type Record struct {
	ID            string                 `json:"id" yaml:"id"`
	Name          string                 `json:"name" yaml:"name"`
	Category      string                 `json:"category,omitempty" yaml:"category,omitempty"`
	Price         float64                `json:"price,omitempty" yaml:"price,omitempty"`
	Rating        float64                `json:"rating,omitempty" yaml:"rating,omitempty"`
	Address       string                 `json:"address,omitempty" yaml:"address,omitempty"`
	Amenities     []string               `json:"amenities,omitempty" yaml:"amenities,omitempty"`
	Photos        []string               `json:"photos,omitempty" yaml:"photos,omitempty"`
	Specialties   []string               `json:"specialties,omitempty" yaml:"specialties,omitempty"`
	Tags          []string               `json:"tags,omitempty" yaml:"tags,omitempty"`
	AvailableFrom string                 `json:"available_from,omitempty" yaml:"available_from,omitempty"`
	AvailableTo   string                 `json:"available_to,omitempty" yaml:"available_to,omitempty"`
	Details       map[string]interface{} `json:"details,omitempty" yaml:"details,omitempty"`
}

// AvailableDuring reports whether the record's availability window overlaps r. Records
// without a window are always available.
func (rec Record) AvailableDuring(r DateRange) bool {
	if rec.AvailableFrom != "" {
		from, err := time.Parse(DateLayout, rec.AvailableFrom)
		if err == nil && truncateDay(r.End).Before(from) {
			return false
		}
	}
	if rec.AvailableTo != "" {
		to, err := time.Parse(DateLayout, rec.AvailableTo)
		if err == nil && truncateDay(r.Start).After(to) {
			return false
		}
	}
	return true
}

// Excerpt is a short third-party snippet about the destination.
type Excerpt struct {
	Source string `json:"source" yaml:"source"`
	Text   string `json:"text" yaml:"text"`
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
