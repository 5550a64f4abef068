package segment

import (
	"fmt"

	"github.com/tripforge/tripforge/pkg/itinerary"
)

// GenerationContext is the state carried from one segment to the next within a variant.
// It is owned by a single segment loop and is not safe for concurrent use.
type GenerationContext struct {
	RemainingDays   int
	RemainingBudget float64

	UsedAttractions *itinerary.NameSet
	UsedRestaurants *itinerary.NameSet
	UsedTransport   *itinerary.NameSet
}

// Snapshot is the context as it stood after a segment.
type Snapshot struct {
	Segment         int     `json:"segment"`
	Spend           float64 `json:"spend"`
	RemainingDays   int     `json:"remaining_days"`
	RemainingBudget float64 `json:"remaining_budget"`
	UsedAttractions int     `json:"used_attractions"`
	UsedRestaurants int     `json:"used_restaurants"`
	UsedTransport   int     `json:"used_transport"`
}

// NewGenerationContext seeds a context from the whole-trip day count and budget.
func NewGenerationContext(days int, budget float64) *GenerationContext {
	if budget < 0 {
		budget = 0
	}
	return &GenerationContext{
		RemainingDays:   days,
		RemainingBudget: budget,
		UsedAttractions: itinerary.NewNameSet(),
		UsedRestaurants: itinerary.NewNameSet(),
		UsedTransport:   itinerary.NewNameSet(),
	}
}

// UsedFor returns the used-name set that filters dimension's reference data. Lodging is
// not filtered.
func (c *GenerationContext) UsedFor(dimension itinerary.Dimension) *itinerary.NameSet {
	switch dimension {
	case itinerary.DimensionAttractions:
		return c.UsedAttractions
	case itinerary.DimensionDining:
		return c.UsedRestaurants
	case itinerary.DimensionTransport:
		return c.UsedTransport
	}
	return nil
}

// SegmentBudget is the share of the remaining budget allotted to seg:
// remaining_budget / remaining_days * day_count.
func (c *GenerationContext) SegmentBudget(seg itinerary.Segment) float64 {
	if c.RemainingDays <= 0 || c.RemainingBudget <= 0 {
		return 0
	}
	return c.RemainingBudget / float64(c.RemainingDays) * float64(seg.DayCount)
}

// Advance applies a finished segment: spend leaves the budget (floored at zero), the
// segment's days leave remaining_days, and every referenced name joins its used set.
func (c *GenerationContext) Advance(seg itinerary.Segment, results []itinerary.ModuleResult) (Snapshot, error) {
	if seg.DayCount > c.RemainingDays {
		return Snapshot{}, fmt.Errorf("segment %d has %d days but only %d remain", seg.Index, seg.DayCount, c.RemainingDays)
	}

	spend := 0.0
	for _, res := range results {
		used := c.UsedFor(res.Dimension)
		for _, e := range res.Entries {
			if cost := e.Cost(); cost > 0 {
				spend += cost
			}
			if used != nil {
				used.Add(e.Names()...)
			}
		}
	}

	c.RemainingBudget -= spend
	if c.RemainingBudget < 0 {
		c.RemainingBudget = 0
	}
	c.RemainingDays -= seg.DayCount

	return Snapshot{
		Segment:         seg.Index,
		Spend:           spend,
		RemainingDays:   c.RemainingDays,
		RemainingBudget: c.RemainingBudget,
		UsedAttractions: c.UsedAttractions.Len(),
		UsedRestaurants: c.UsedRestaurants.Len(),
		UsedTransport:   c.UsedTransport.Len(),
	}, nil
}
