package assembly

import (
	"github.com/tripforge/tripforge/pkg/itinerary"
)

// candidate is an attraction that may be placed on a day.
type candidate struct {
	key        string
	attraction itinerary.Attraction
}

// DedupStats summarizes a deduplication pass.
type DedupStats struct {
	Unique       int            `json:"unique"`
	ReuseAllowed bool           `json:"reuse_allowed"`
	Dropped      int            `json:"dropped"`
	Added        int            `json:"added"`
	UseCounts    map[string]int `json:"use_counts"`
}

// dedupAttractions removes repeated attractions across days and back-fills days with fewer
// than minPerDay. Unseen attractions from the generated days and the reference pool come
// first. Reuse happens only when the unique pool is smaller than
// days * minPerDay * scarcity, picking the least-reused attraction not already on the day.
func dedupAttractions(days []itinerary.DailyItinerary, pool []itinerary.Record, minPerDay int, scarcity float64) DedupStats {
	candidates := make(map[string]*candidate)
	var ordered []*candidate
	addCandidate := func(a itinerary.Attraction) {
		key := itinerary.NormalizeName(a.Name)
		if key == "" {
			return
		}
		if _, ok := candidates[key]; ok {
			return
		}
		c := &candidate{key: key, attraction: a}
		candidates[key] = c
		ordered = append(ordered, c)
	}
	for _, d := range days {
		for _, a := range d.Attractions {
			addCandidate(a)
		}
	}
	for _, rec := range pool {
		addCandidate(recordToAttraction(rec))
	}

	stats := DedupStats{Unique: len(ordered), UseCounts: make(map[string]int)}
	if scarcity <= 0 {
		scarcity = 1
	}
	stats.ReuseAllowed = float64(len(ordered)) < float64(len(days)*minPerDay)*scarcity

	// Keep first occurrences across the trip.
	changed := make([]bool, len(days))
	for i := range days {
		kept := days[i].Attractions[:0:0]
		onDay := make(map[string]bool)
		for _, a := range days[i].Attractions {
			key := itinerary.NormalizeName(a.Name)
			if key == "" || onDay[key] || stats.UseCounts[key] > 0 {
				stats.Dropped++
				changed[i] = true
				if !onDay[key] {
					dropSchedule(&days[i], a)
				}
				continue
			}
			onDay[key] = true
			stats.UseCounts[key]++
			kept = append(kept, a)
		}
		days[i].Attractions = kept
	}

	// Back-fill short days, unseen candidates first.
	for i := range days {
		for len(days[i].Attractions) < minPerDay {
			c := pickUnseen(ordered, stats.UseCounts)
			if c == nil && stats.ReuseAllowed {
				c = pickLeastReused(ordered, stats.UseCounts, days[i].Attractions)
			}
			if c == nil {
				break
			}
			stats.UseCounts[c.key]++
			stats.Added++
			changed[i] = true
			days[i].Attractions = append(days[i].Attractions, c.attraction)
			days[i].Schedule = append(days[i].Schedule, itinerary.ScheduleItem{
				Time:     "flexible",
				Activity: "Visit " + c.attraction.Name,
				Location: c.attraction.Address,
			})
		}
	}

	for i := range days {
		if !changed[i] {
			continue
		}
		total := 0.0
		for _, a := range days[i].Attractions {
			total += a.TicketPrice
		}
		days[i].AttractionCost = total
	}
	return stats
}

func pickUnseen(ordered []*candidate, counts map[string]int) *candidate {
	for _, c := range ordered {
		if counts[c.key] == 0 {
			return c
		}
	}
	return nil
}

func pickLeastReused(ordered []*candidate, counts map[string]int, onDay []itinerary.Attraction) *candidate {
	present := make(map[string]bool, len(onDay))
	for _, a := range onDay {
		present[itinerary.NormalizeName(a.Name)] = true
	}
	var best *candidate
	for _, c := range ordered {
		if present[c.key] {
			continue
		}
		if best == nil || counts[c.key] < counts[best.key] {
			best = c
		}
	}
	return best
}

// dropSchedule removes schedule items located at a dropped attraction.
func dropSchedule(day *itinerary.DailyItinerary, a itinerary.Attraction) {
	key := itinerary.NormalizeName(a.Name)
	kept := day.Schedule[:0:0]
	for _, item := range day.Schedule {
		if key != "" && (itinerary.NormalizeName(item.Location) == key || itinerary.NormalizeName(item.Activity) == "visit "+key) {
			continue
		}
		kept = append(kept, item)
	}
	day.Schedule = kept
}

func recordToAttraction(rec itinerary.Record) itinerary.Attraction {
	return itinerary.Attraction{
		ID:          rec.ID,
		Name:        rec.Name,
		Category:    rec.Category,
		Address:     rec.Address,
		TicketPrice: rec.Price,
		Rating:      rec.Rating,
		Photos:      append([]string(nil), rec.Photos...),
	}
}
