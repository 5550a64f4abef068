// Package policy reviews assembled plans against Open Policy Agent (Rego) guardrails.
//
// Every enabled policy sees one variant as input (see PolicyInput) and reports
// findings through a deny set in its package. A deny entry is either a message
// string or an object:
//
//	package acme.policies.ferries
//
//	import rego.v1
//
//	# No ferries after dark.
//	# severity: error
//	deny contains violation if {
//		some day in input.plan.daily_itineraries
//		some route in day.routes
//		route.mode == "ferry"
//		violation := {"message": sprintf("day %v takes a ferry", [day.day]), "day": day.day}
//	}
//
// Findings become itinerary.Violation values attached to the variant. They
// never change a variant's status.
//
// # Built-in policies
//
//   - budget-overrun: plan total above the variant budget
//   - day-spend-spike: one day costing more than twice the per-day budget
//   - empty-days: days with neither attractions nor meals
//   - attraction-density: days listing more than six attractions
//   - lodging-gaps: nights without a hotel
//   - fallback-heavy: more than half the generated days came from fallback
//
// User policies are .rego files, JSON policy files or JSON bundles. They are
// loaded with Engine.LoadPolicies and replace built-ins of the same name.
// Engine.Watch reloads them when files change.
package policy
