// Package stage defines the fixed four-stage pipeline a feature moves through.
//
// The stage table is static and immutable: it lists the stages in review
// order and, for each one, the artifacts a submission must carry and the
// ordered quality-gate checklist evaluated before review is requested.
//
// Key types:
//   - [Stage] - One of the four pipeline stages, ordered
//   - [Phase] - An instance position: a stage, or one of the terminal phases
//   - [ConditionID] - Identifier of a single quality-gate condition
//   - [Definition] - Per-stage title, artifacts and checklist
//
// Lookups ([ConditionsFor], [RequiredArtifacts], [Lookup]) are pure and safe
// to call from any goroutine.
package stage

import (
	"errors"
	"fmt"
)

// ErrUnknownStage is returned by [Parse] for names outside the stage table.
var ErrUnknownStage = errors.New("unknown stage")

// Stage is one of the four pipeline stages. The zero value is invalid.
type Stage int

// Stages in review order.
const (
	TestStubs Stage = iota + 1
	Architecture
	ObjectDesign
	Implementation
)

// All lists every stage in review order.
var All = []Stage{TestStubs, Architecture, ObjectDesign, Implementation}

var stageNames = map[Stage]string{
	TestStubs:      "test-stubs",
	Architecture:   "architecture",
	ObjectDesign:   "object-design",
	Implementation: "implementation",
}

// String returns the canonical kebab-case name used in config and state files.
func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// IsValid reports whether s is one of the four defined stages.
func (s Stage) IsValid() bool {
	_, ok := stageNames[s]
	return ok
}

// Index returns the 1-based position of s in the pipeline, or 0 when invalid.
func (s Stage) Index() int {
	if !s.IsValid() {
		return 0
	}
	return int(s)
}

// Next returns the stage after s. The second return is false for
// Implementation and for invalid stages.
func (s Stage) Next() (Stage, bool) {
	if !s.IsValid() || s == Implementation {
		return 0, false
	}
	return s + 1, true
}

// Skippable reports whether the stage may be skipped for simple features.
// Test stubs and implementation are always required.
func (s Stage) Skippable() bool {
	return s == Architecture || s == ObjectDesign
}

// MarshalText implements encoding.TextMarshaler so stages serialize by name.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStage, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Parse converts a canonical stage name into a [Stage].
func Parse(name string) (Stage, error) {
	for s, n := range stageNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStage, name)
}

// Phase is the position of a workflow instance: one of the stage names, or
// [PhaseComplete] / [PhaseCancelled] once the instance is terminal.
type Phase string

// Terminal phases.
const (
	PhaseComplete  Phase = "complete"
	PhaseCancelled Phase = "cancelled"
)

// PhaseOf returns the phase that corresponds to an active stage.
func PhaseOf(s Stage) Phase {
	return Phase(s.String())
}

// IsTerminal reports whether no further transitions are possible.
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseCancelled
}

// Stage returns the active stage for p. The second return is false for
// terminal or unrecognized phases.
func (p Phase) Stage() (Stage, bool) {
	s, err := Parse(string(p))
	if err != nil {
		return 0, false
	}
	return s, true
}
