package generation

import (
	"fmt"

	"github.com/tripforge/tripforge/pkg/itinerary"
)

// FallbackBuilder constructs a minimally valid entry for a day without calling the model.
// It must be deterministic in its input.
type FallbackBuilder func(dc DayContext) itinerary.DailyEntry

// DefaultFallback returns the reference-cycling fallback for dimension.
func DefaultFallback(dimension itinerary.Dimension) FallbackBuilder {
	switch dimension {
	case itinerary.DimensionLodging:
		return lodgingFallback
	case itinerary.DimensionDining:
		return diningFallback
	case itinerary.DimensionTransport:
		return transportFallback
	case itinerary.DimensionAttractions:
		return attractionsFallback
	}
	return nil
}

// pick returns reference[(day-1+shift) % len(reference)].
func pick(ref []itinerary.Record, day, shift int) (itinerary.Record, bool) {
	if len(ref) == 0 {
		return itinerary.Record{}, false
	}
	idx := (day - 1 + shift) % len(ref)
	if idx < 0 {
		idx += len(ref)
	}
	return ref[idx], true
}

func lodgingFallback(dc DayContext) itinerary.DailyEntry {
	hotel := &itinerary.Hotel{Name: fmt.Sprintf("Centrally located hotel in %s", dc.Request.Destination)}
	cost := 0.0
	if rec, ok := pick(dc.Reference, dc.Day, 0); ok {
		hotel = &itinerary.Hotel{
			ID:            rec.ID,
			Name:          rec.Name,
			Address:       rec.Address,
			Rating:        rec.Rating,
			PricePerNight: rec.Price,
			Amenities:     append([]string(nil), rec.Amenities...),
			Photos:        append([]string(nil), rec.Photos...),
		}
		cost = rec.Price
	}
	return itinerary.DailyEntry{
		Dimension: itinerary.DimensionLodging,
		Lodging:   &itinerary.LodgingDay{Hotel: hotel, DailyCost: cost},
	}
}

func diningFallback(dc DayContext) itinerary.DailyEntry {
	slots := []struct {
		kind string
		at   string
	}{{"lunch", "12:00"}, {"dinner", "19:00"}}

	day := &itinerary.DiningDay{}
	for i, slot := range slots {
		meal := itinerary.Meal{
			Type:       slot.kind,
			Time:       slot.at,
			Restaurant: itinerary.Restaurant{Name: fmt.Sprintf("Local restaurant near the city centre of %s", dc.Request.Destination)},
		}
		if rec, ok := pick(dc.Reference, dc.Day, i); ok {
			meal.Restaurant = itinerary.Restaurant{
				ID:          rec.ID,
				Name:        rec.Name,
				Cuisine:     rec.Category,
				Address:     rec.Address,
				Rating:      rec.Rating,
				Specialties: append([]string(nil), rec.Specialties...),
				Photos:      append([]string(nil), rec.Photos...),
			}
			meal.Cost = rec.Price
		}
		day.Meals = append(day.Meals, meal)
		day.DailyFoodCost += meal.Cost
	}
	return itinerary.DailyEntry{Dimension: itinerary.DimensionDining, Dining: day}
}

func transportFallback(dc DayContext) itinerary.DailyEntry {
	route := itinerary.Route{Name: "Taxi or ride-hailing", Mode: "taxi", Notes: "book through a licensed operator"}
	if rec, ok := pick(dc.Reference, dc.Day, 0); ok {
		route = itinerary.Route{Name: rec.Name, Mode: rec.Category, Cost: rec.Price}
	}
	return itinerary.DailyEntry{
		Dimension: itinerary.DimensionTransport,
		Transport: &itinerary.TransportDay{
			PrimaryRoutes:      []itinerary.Route{route},
			DailyTransportCost: route.Cost,
			Stage:              stage(dc),
		},
	}
}

func attractionsFallback(dc DayContext) itinerary.DailyEntry {
	attraction := itinerary.Attraction{
		Name:     fmt.Sprintf("Old town walk in %s", dc.Request.Destination),
		Category: "walking tour",
		Duration: "3h",
	}
	if rec, ok := pick(dc.Reference, dc.Day, 0); ok {
		attraction = itinerary.Attraction{
			ID:          rec.ID,
			Name:        rec.Name,
			Category:    rec.Category,
			Address:     rec.Address,
			TicketPrice: rec.Price,
			Rating:      rec.Rating,
			Photos:      append([]string(nil), rec.Photos...),
		}
	}
	return itinerary.DailyEntry{
		Dimension: itinerary.DimensionAttractions,
		Attractions: &itinerary.AttractionDay{
			Schedule: []itinerary.ScheduleItem{
				{Time: "09:00", Activity: "Visit " + attraction.Name, Location: attraction.Address},
				{Time: "13:00", Activity: "Free time and lunch"},
			},
			Attractions:   []itinerary.Attraction{attraction},
			EstimatedCost: attraction.TicketPrice,
		},
	}
}

func stage(dc DayContext) string {
	switch {
	case dc.FirstDay:
		return "arrival"
	case dc.LastDay:
		return "departure"
	}
	return "exploring"
}
