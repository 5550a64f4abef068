package assembly

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tripforge/tripforge/pkg/itinerary"
)

var start = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

func dayEntries(dim itinerary.Dimension, days int, build func(day int) itinerary.DailyEntry) []itinerary.DailyEntry {
	out := make([]itinerary.DailyEntry, 0, days)
	for d := 1; d <= days; d++ {
		e := build(d)
		e.Day = d
		e.Date = start.AddDate(0, 0, d-1).Format(itinerary.DateLayout)
		e.Dimension = dim
		if e.Source == "" {
			e.Source = itinerary.SourceGenerated
		}
		out = append(out, e)
	}
	return out
}

func fullInput(days int) Input {
	return Input{
		Days:      days,
		StartDate: start,
		Entries: map[itinerary.Dimension][]itinerary.DailyEntry{
			itinerary.DimensionLodging: dayEntries(itinerary.DimensionLodging, days, func(day int) itinerary.DailyEntry {
				e := itinerary.DailyEntry{Lodging: &itinerary.LodgingDay{Hotel: &itinerary.Hotel{Name: "Metropole"}, DailyCost: 200}}
				if day == 1 {
					e.Lodging.Flight = &itinerary.Flight{Airline: "VN", Price: 500}
				}
				return e
			}),
			itinerary.DimensionDining: dayEntries(itinerary.DimensionDining, days, func(day int) itinerary.DailyEntry {
				return itinerary.DailyEntry{Dining: &itinerary.DiningDay{
					Meals:         []itinerary.Meal{{Type: "lunch", Restaurant: itinerary.Restaurant{Name: "Bun Cha Huong Lien"}, Cost: 10}},
					DailyFoodCost: 40,
				}}
			}),
			itinerary.DimensionTransport: dayEntries(itinerary.DimensionTransport, days, func(day int) itinerary.DailyEntry {
				return itinerary.DailyEntry{Transport: &itinerary.TransportDay{
					PrimaryRoutes:      []itinerary.Route{{Name: "Grab car", Mode: "taxi"}},
					DailyTransportCost: 12,
				}}
			}),
			itinerary.DimensionAttractions: dayEntries(itinerary.DimensionAttractions, days, func(day int) itinerary.DailyEntry {
				return itinerary.DailyEntry{Attractions: &itinerary.AttractionDay{
					Attractions:   []itinerary.Attraction{{Name: fmt.Sprintf("Sight %d", day), TicketPrice: 5}, {Name: fmt.Sprintf("Museum %d", day), TicketPrice: 5}},
					EstimatedCost: 10,
				}}
			}),
		},
	}
}

func newTestEngine() *Engine {
	return NewEngine(DefaultConfig(), zerolog.Nop())
}

func TestAssembleOK(t *testing.T) {
	out := newTestEngine().Assemble(fullInput(3))
	if out.Status != itinerary.StatusOK || out.Plan == nil {
		t.Fatalf("expected ok plan, got %s (%s)", out.Status, out.Reason)
	}

	plan := out.Plan
	if len(plan.DailyItineraries) != 3 {
		t.Fatalf("expected 3 days, got %d", len(plan.DailyItineraries))
	}
	for i, d := range plan.DailyItineraries {
		if d.Day != i+1 || d.Hotel == nil || len(d.Meals) != 1 || len(d.Routes) != 1 || len(d.Attractions) != 2 {
			t.Errorf("day %d not fully merged: %+v", i+1, d)
		}
	}

	want := itinerary.CostBreakdown{Flight: 500, Hotel: 600, Attractions: 30, Meals: 120, Transportation: 150, Total: 1400}
	if plan.TotalCost != want {
		t.Errorf("cost rollup: got %+v, want %+v", plan.TotalCost, want)
	}
	if plan.Hotel == nil || plan.Hotel.Name != "Metropole" || plan.Flight == nil || plan.Flight.Price != 500 {
		t.Errorf("plan hotel/flight not set: %+v %+v", plan.Hotel, plan.Flight)
	}
	if len(plan.Restaurants) != 1 || len(plan.Transportation) != 1 {
		t.Errorf("expected unique restaurants and routes, got %d and %d", len(plan.Restaurants), len(plan.Transportation))
	}
}

func TestAssembleDiscardsOnCriticalFailure(t *testing.T) {
	for _, dim := range []itinerary.Dimension{itinerary.DimensionAttractions, itinerary.DimensionLodging} {
		in := fullInput(4)
		delete(in.Entries, dim)

		out := newTestEngine().Assemble(in)
		if out.Status != itinerary.StatusDiscarded {
			t.Errorf("%s missing: expected discarded, got %s", dim, out.Status)
		}
		if out.Plan != nil {
			t.Errorf("%s missing: discarded variant must not carry a plan", dim)
		}
		if out.Reason == "" {
			t.Errorf("%s missing: expected a reason", dim)
		}
	}
}

func TestAssembleDegradesOnNonCriticalFailure(t *testing.T) {
	in := fullInput(2)
	in.Entries[itinerary.DimensionDining] = nil
	in.Entries[itinerary.DimensionTransport] = []itinerary.DailyEntry{}

	out := newTestEngine().Assemble(in)
	if out.Status != itinerary.StatusDegraded || out.Plan == nil {
		t.Fatalf("expected degraded plan, got %s", out.Status)
	}
	if len(out.DegradedDimensions) != 2 {
		t.Errorf("expected 2 degraded dimensions, got %v", out.DegradedDimensions)
	}
	for _, d := range out.Plan.DailyItineraries {
		if len(d.Meals) != 0 || len(d.Routes) != 0 {
			t.Errorf("day %d should have no meals or routes", d.Day)
		}
	}
	if out.Plan.TotalCost.Meals != 0 || out.Plan.TotalCost.Transportation != 100 {
		t.Errorf("unexpected cost %+v", out.Plan.TotalCost)
	}
}

func TestDedupScarcity(t *testing.T) {
	names := []string{"Temple of Literature", "Hoa Lo Prison", "Hanoi Opera House"}
	in := fullInput(5)
	in.Entries[itinerary.DimensionAttractions] = dayEntries(itinerary.DimensionAttractions, 5, func(day int) itinerary.DailyEntry {
		return itinerary.DailyEntry{Source: itinerary.SourceFallback, Attractions: &itinerary.AttractionDay{
			Attractions: []itinerary.Attraction{{Name: names[(day-1)%len(names)]}},
		}}
	})
	in.Reference = itinerary.ReferenceData{itinerary.DimensionAttractions: {
		{Name: "Temple of Literature"}, {Name: "Hoa Lo Prison"}, {Name: "Hanoi Opera House"},
	}}

	out := newTestEngine().Assemble(in)
	if !out.Dedup.ReuseAllowed || out.Dedup.Unique != 3 {
		t.Fatalf("expected scarce pool of 3 with reuse, got %+v", out.Dedup)
	}

	counts := make(map[string]int)
	for _, d := range out.Plan.DailyItineraries {
		if len(d.Attractions) != 2 {
			t.Errorf("day %d has %d attractions, want 2", d.Day, len(d.Attractions))
		}
		onDay := make(map[string]bool)
		for _, a := range d.Attractions {
			if onDay[a.Name] {
				t.Errorf("day %d repeats %s", d.Day, a.Name)
			}
			onDay[a.Name] = true
			counts[a.Name]++
		}
	}
	limit := int(math.Ceil(10.0 / 3.0))
	total := 0
	for name, n := range counts {
		total += n
		if n > limit {
			t.Errorf("%s used %d times, limit %d", name, n, limit)
		}
	}
	if total != 10 {
		t.Errorf("expected 10 slots filled, got %d", total)
	}
	if out.FallbackDays[itinerary.DimensionAttractions] != 5 {
		t.Errorf("expected 5 fallback days, got %v", out.FallbackDays)
	}
}

func TestDedupPrefersUnseen(t *testing.T) {
	in := fullInput(3)
	in.Entries[itinerary.DimensionAttractions] = dayEntries(itinerary.DimensionAttractions, 3, func(day int) itinerary.DailyEntry {
		return itinerary.DailyEntry{Attractions: &itinerary.AttractionDay{
			Attractions: []itinerary.Attraction{{Name: "Hồ Hoàn Kiếm"}, {Name: "Ho Hoan Kiem"}, {Name: fmt.Sprintf("Pagoda %d", day)}},
			Schedule:    []itinerary.ScheduleItem{{Time: "08:00", Activity: "Walk", Location: "Hồ Hoàn Kiếm"}},
		}}
	})
	in.Reference = itinerary.ReferenceData{itinerary.DimensionAttractions: {
		{Name: "West Lake", Price: 0}, {Name: "Long Bien Bridge"}, {Name: "One Pillar Pagoda", Price: 2},
	}}

	out := newTestEngine().Assemble(in)
	if out.Dedup.ReuseAllowed {
		t.Fatalf("pool of %d is large enough, reuse must be off", out.Dedup.Unique)
	}

	seen := make(map[string]int)
	for _, d := range out.Plan.DailyItineraries {
		if len(d.Attractions) < 2 {
			t.Errorf("day %d has %d attractions", d.Day, len(d.Attractions))
		}
		for _, a := range d.Attractions {
			seen[itinerary.NormalizeName(a.Name)]++
		}
	}
	for name, n := range seen {
		if n > 1 {
			t.Errorf("%s used %d times without scarcity", name, n)
		}
	}

	day2 := out.Plan.DailyItineraries[1]
	for _, item := range day2.Schedule {
		if item.Location == "Hồ Hoàn Kiếm" {
			t.Error("schedule of a dropped attraction should be removed")
		}
	}
	if day2.Attractions[1].Name != "West Lake" {
		t.Errorf("expected first unseen reference attraction as back-fill, got %s", day2.Attractions[1].Name)
	}
}

func TestDedupWithoutReuseLeavesShortDays(t *testing.T) {
	days := []itinerary.DailyItinerary{
		{Day: 1, Attractions: []itinerary.Attraction{{Name: "A"}, {Name: "B"}}},
		{Day: 2, Attractions: []itinerary.Attraction{{Name: "A"}}},
	}
	stats := dedupAttractions(days, nil, 2, 0.5)
	if stats.ReuseAllowed {
		t.Fatal("scarcity factor 0.5 should disable reuse for 2 unique over 4 slots")
	}
	if len(days[1].Attractions) != 0 {
		t.Errorf("day 2 should be empty, got %+v", days[1].Attractions)
	}
}

func TestEnrichment(t *testing.T) {
	in := fullInput(2)
	in.Entries[itinerary.DimensionLodging][0].Lodging.Hotel = &itinerary.Hotel{Name: "Metropole Hanoi", Amenities: []string{"Pool"}}
	in.Entries[itinerary.DimensionLodging][1].Lodging.Hotel = &itinerary.Hotel{ID: "h-2", Name: "Something else"}
	in.Reference = itinerary.ReferenceData{
		itinerary.DimensionLodging: {
			{ID: "h-1", Name: "Sofitel Legend Metropole Hanoi", Address: "15 Ngo Quyen", Rating: 4.8, Amenities: []string{"pool", "Spa"}, Photos: []string{"a.jpg"}},
			{ID: "h-2", Name: "Hotel de l'Opera", Price: 150},
		},
		itinerary.DimensionDining: {
			{Name: "Bún Chả Hương Liên", Category: "Vietnamese", Specialties: []string{"bun cha"}},
		},
	}

	out := newTestEngine().Assemble(in)
	days := out.Plan.DailyItineraries

	h1 := days[0].Hotel
	if h1.ID != "h-1" || h1.Address != "15 Ngo Quyen" || h1.Rating != 4.8 {
		t.Errorf("containment match did not fill scalars: %+v", h1)
	}
	if len(h1.Amenities) != 2 || h1.Amenities[0] != "Pool" || h1.Amenities[1] != "Spa" {
		t.Errorf("amenities should merge without duplicates, got %v", h1.Amenities)
	}

	h2 := days[1].Hotel
	if h2.Name != "Something else" || h2.PricePerNight != 150 {
		t.Errorf("id match should fill price and keep the name, got %+v", h2)
	}

	r := days[0].Meals[0].Restaurant
	if r.Cuisine != "Vietnamese" || len(r.Specialties) != 1 {
		t.Errorf("diacritic-insensitive match should enrich the restaurant, got %+v", r)
	}
	if out.Enriched != 4 {
		t.Errorf("expected 4 enrichments, got %d", out.Enriched)
	}
}

func TestMergeIgnoresOutOfRangeDays(t *testing.T) {
	entries := map[itinerary.Dimension][]itinerary.DailyEntry{
		itinerary.DimensionDining: {
			{Day: 0, Dining: &itinerary.DiningDay{Meals: []itinerary.Meal{{Type: "x"}}}},
			{Day: 3, Dining: &itinerary.DiningDay{Meals: []itinerary.Meal{{Type: "y"}}}},
		},
	}
	days := Merge(2, start, entries)
	if len(days) != 2 || len(days[0].Meals) != 0 || len(days[1].Meals) != 0 {
		t.Errorf("out-of-range entries must be ignored: %+v", days)
	}
	if days[1].Date != "2025-04-02" {
		t.Errorf("expected computed date, got %s", days[1].Date)
	}
}
