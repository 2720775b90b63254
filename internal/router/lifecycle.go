package router

import (
	"seniorflow/internal/stage"
)

// Step represents a single stage in an instance's remaining plan.
//
// Each step names the stage, its position among the instance's non-skipped
// stages, and the checklist its submission will be gated on.
type Step struct {
	// Stage is the pipeline stage.
	Stage stage.Stage

	// Title is the human-readable stage name.
	Title string

	// Position is the 1-based index among non-skipped stages; Total is their count.
	Position int
	Total    int

	// Checklist lists the gate conditions in evaluation order.
	Checklist []stage.ConditionID

	// Current is true for the stage the instance is on.
	Current bool
}
