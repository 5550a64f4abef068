package segment

import (
	"fmt"
	"time"

	"github.com/tripforge/tripforge/pkg/itinerary"
)

// DefaultMaxSegmentDays is the longest segment generated in one pass.
const DefaultMaxSegmentDays = 10

// Split partitions a trip of days starting at start into consecutive segments of at most
// maxDays. The last segment holds the remainder.
func Split(start time.Time, days, maxDays int) ([]itinerary.Segment, error) {
	if days < 1 {
		return nil, fmt.Errorf("trip must have at least one day, got %d", days)
	}
	if maxDays <= 0 {
		maxDays = DefaultMaxSegmentDays
	}

	segments := make([]itinerary.Segment, 0, (days+maxDays-1)/maxDays)
	for offset := 0; offset < days; offset += maxDays {
		count := maxDays
		if rest := days - offset; rest < count {
			count = rest
		}
		segStart := start.AddDate(0, 0, offset)
		segments = append(segments, itinerary.Segment{
			Index:     len(segments),
			StartDate: segStart,
			EndDate:   segStart.AddDate(0, 0, count-1),
			DayCount:  count,
			Offset:    offset,
		})
	}
	return segments, nil
}

// FilterReference drops records whose normalized name is in used or whose availability
// window misses dates. The input slice is not modified.
func FilterReference(records []itinerary.Record, used *itinerary.NameSet, dates itinerary.DateRange) []itinerary.Record {
	out := make([]itinerary.Record, 0, len(records))
	for _, rec := range records {
		if used.Contains(rec.Name) {
			continue
		}
		if !rec.AvailableDuring(dates) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
