// Package planner turns a plan request into one itinerary per variant.
//
// Variants are generated concurrently under a shared timeout. Each variant runs
// through the segment runner, is assembled into a plan, reviewed by the guardrail
// policies when it is usable, and archived together with the request. A variant
// that fails is discarded with a reason; the others are unaffected.
//
// Build wires the full stack from a configuration:
//
//	p, err := planner.Build(cfg, planner.Dependencies{
//		Generator: client,
//		Reference: reference.NewFileSource(cfg.Reference.Dir, logger),
//		Reviewer:  engine,
//		Archive:   store,
//		Telemetry: tel,
//	})
//	res, err := p.Plan(ctx, req)
//
// Plan returns the result even when it also returns an error, so callers can show
// the discarded variants and their reasons.
package planner
