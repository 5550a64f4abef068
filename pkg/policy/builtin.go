package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		budgetOverrunPolicy(),
		daySpendSpikePolicy(),
		emptyDaysPolicy(),
		attractionDensityPolicy(),
		lodgingGapsPolicy(),
		fallbackHeavyPolicy(),
	}
}

func builtin(name, description string, severity Severity, tags []string, rego string) Policy {
	now := time.Now()
	return Policy{
		Name:        name,
		Description: description,
		Severity:    severity,
		Enabled:     true,
		Builtin:     true,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
		Rego:        rego,
	}
}

// budgetOverrunPolicy flags plans whose total cost exceeds the variant budget.
func budgetOverrunPolicy() Policy {
	return builtin("budget-overrun",
		"Flags plans whose total cost exceeds the variant budget",
		SeverityError, []string{"budget"},
		`package tripforge.policies.budget

import rego.v1

deny contains violation if {
	input.budget > 0
	total := input.plan.total_cost.total
	total > input.budget
	violation := {
		"message": sprintf("plan total %v exceeds the variant budget %v", [round(total), round(input.budget)]),
		"severity": "error",
	}
}
`)
}

// daySpendSpikePolicy flags single days that eat far more than their share.
func daySpendSpikePolicy() Policy {
	return builtin("day-spend-spike",
		"Flags days costing more than twice the per-day budget",
		SeverityWarning, []string{"budget"},
		`package tripforge.policies.spend

import rego.v1

per_day := input.budget / input.days if {
	input.budget > 0
	input.days > 0
}

deny contains violation if {
	some day in input.plan.daily_itineraries
	spent := ((day.lodging_cost + day.food_cost) + day.transport_cost) + day.attraction_cost
	spent > 2 * per_day
	violation := {
		"message": sprintf("day %v costs %v against a per-day budget of %v", [day.day, round(spent), round(per_day)]),
		"severity": "warning",
		"day": day.day,
	}
}
`)
}

// emptyDaysPolicy flags days with neither attractions nor meals.
func emptyDaysPolicy() Policy {
	return builtin("empty-days",
		"Flags days with neither attractions nor meals",
		SeverityWarning, []string{"coverage"},
		`package tripforge.policies.empty_days

import rego.v1

entries(day, key) := day[key] if is_array(day[key])

entries(day, key) := [] if not is_array(day[key])

deny contains violation if {
	some day in input.plan.daily_itineraries
	count(entries(day, "attractions")) == 0
	count(entries(day, "meals")) == 0
	violation := {
		"message": sprintf("day %v has no attractions or meals", [day.day]),
		"severity": "warning",
		"day": day.day,
	}
}
`)
}

// attractionDensityPolicy flags days packed with more sights than can be visited.
func attractionDensityPolicy() Policy {
	return builtin("attraction-density",
		"Flags days listing more than six attractions",
		SeverityWarning, []string{"pacing"},
		`package tripforge.policies.density

import rego.v1

max_attractions := 6

deny contains violation if {
	some day in input.plan.daily_itineraries
	is_array(day.attractions)
	n := count(day.attractions)
	n > max_attractions
	violation := {
		"message": sprintf("day %v lists %v attractions", [day.day, n]),
		"severity": "warning",
		"day": day.day,
	}
}
`)
}

// lodgingGapsPolicy flags nights without a hotel. The last day needs none.
func lodgingGapsPolicy() Policy {
	return builtin("lodging-gaps",
		"Flags nights without a hotel",
		SeverityWarning, []string{"coverage"},
		`package tripforge.policies.lodging

import rego.v1

deny contains violation if {
	some day in input.plan.daily_itineraries
	day.day < count(input.plan.daily_itineraries)
	not day.hotel
	violation := {
		"message": sprintf("night of day %v has no hotel", [day.day]),
		"severity": "warning",
		"day": day.day,
	}
}
`)
}

// fallbackHeavyPolicy notes plans built mostly from deterministic fallback days.
func fallbackHeavyPolicy() Policy {
	return builtin("fallback-heavy",
		"Notes plans where fallback content fills more than half of the generated days",
		SeverityInfo, []string{"quality"},
		`package tripforge.policies.fallback

import rego.v1

fallback_total := sum([n | some n in object.get(input.context, "fallback_days", {})])

deny contains violation if {
	input.days > 0
	generated := 4 * input.days
	fallback_total * 2 > generated
	violation := {
		"message": sprintf("%v of %v generated days used fallback content", [fallback_total, generated]),
		"severity": "info",
	}
}
`)
}
