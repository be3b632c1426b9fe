// Package planner implements the optional argument-repair loop (spec
// §4.H): when a tool call fails schema validation or reports isError,
// synthesize a repair prompt, ask the backend for corrected arguments,
// and retry within a bounded budget.
package planner

import "fmt"

// Config controls one request's planner behavior, taken from the
// request body's `planner` object (spec §3).
type Config struct {
	Enabled      bool
	MaxPlanSteps int // overall repair round-trips across the whole request
	MaxRewrites  int // repair round-trips for a single tool call
}

// DefaultConfig matches the regression script's defaults (spec §8
// scenario 5 exercises planner={enabled:true,max_plan_steps:2,max_rewrites:1}).
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		MaxPlanSteps: 2,
		MaxRewrites:  1,
	}
}

// Validate rejects a planner config with non-positive bounds whenever
// the planner is enabled; a disabled planner's bounds are irrelevant.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MaxPlanSteps <= 0 {
		return fmt.Errorf("planner: max_plan_steps must be greater than 0")
	}
	if c.MaxRewrites <= 0 {
		return fmt.Errorf("planner: max_rewrites must be greater than 0")
	}
	return nil
}
