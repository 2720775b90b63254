// Package workflow owns the lifecycle of per-feature workflow instances.
//
// An [Instance] tracks one feature through the four-stage pipeline: its
// current [stage.Phase], per-stage iteration counts and approval state, the
// artifacts last submitted at each stage, and a transition history. The
// [Manager] performs every mutation; instances are plain values that can be
// persisted and reloaded.
//
// Instances are not safe for concurrent mutation. Each feature is driven by a
// single external caller at a time, and separate features share no state.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"seniorflow/internal/gate"
	"seniorflow/internal/stage"
)

// Complexity classifies a feature. Simple features may skip the
// architecture and object-design stages.
type Complexity string

// Complexity classifications.
const (
	ComplexitySimple  Complexity = "simple"
	ComplexityComplex Complexity = "complex"
)

// IsValid reports whether c is one of the recognized classifications.
func (c Complexity) IsValid() bool {
	return c == ComplexitySimple || c == ComplexityComplex
}

// ParseComplexity converts user input into a [Complexity].
func ParseComplexity(s string) (Complexity, error) {
	c := Complexity(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q (want simple or complex)", ErrInvalidComplexity, s)
	}
	return c, nil
}

// StageStatus is the per-stage progress marker.
type StageStatus string

// Stage statuses.
const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in-progress"
	StageApproved   StageStatus = "approved"
	StageSkipped    StageStatus = "skipped"
)

// FeedbackRound records one round of reviewer feedback.
type FeedbackRound struct {
	Iteration int       `yaml:"iteration" json:"iteration"`
	Issues    []string  `yaml:"issues,omitempty" json:"issues,omitempty"`
	At        time.Time `yaml:"at" json:"at"`
}

// ChangeSetRef points at the reviewable change-set opened for a stage.
type ChangeSetRef struct {
	Number int    `yaml:"number" json:"number"`
	URL    string `yaml:"url,omitempty" json:"url,omitempty"`
}

// StageRecord is the progress of a single stage within an instance.
type StageRecord struct {
	Stage  stage.Stage `yaml:"stage" json:"stage"`
	Status StageStatus `yaml:"status" json:"status"`

	// Iterations counts revision rounds requested by reviewers. It resets to
	// zero when the stage is approved or explicitly rewound to.
	Iterations int `yaml:"iterations" json:"iterations"`

	// Allowance is extra rounds granted by resolving an escalation.
	Allowance int `yaml:"allowance,omitempty" json:"allowance,omitempty"`

	// GatePassed is true once the latest submission satisfied the checklist.
	GatePassed bool `yaml:"gate_passed" json:"gate_passed"`

	// Unmet lists the conditions the latest submission failed.
	Unmet []stage.ConditionID `yaml:"unmet,omitempty" json:"unmet,omitempty"`

	Submissions int             `yaml:"submissions,omitempty" json:"submissions,omitempty"`
	Artifacts   *gate.Artifacts `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
	Feedback    []FeedbackRound `yaml:"feedback,omitempty" json:"feedback,omitempty"`
	ChangeSet   *ChangeSetRef   `yaml:"change_set,omitempty" json:"change_set,omitempty"`
	ApprovedAt  *time.Time      `yaml:"approved_at,omitempty" json:"approved_at,omitempty"`
}

// Approved reports whether the stage has been approved.
func (r StageRecord) Approved() bool {
	return r.Status == StageApproved
}

// EventType names an entry in an instance's transition history.
type EventType string

// History event types.
const (
	EventCreated   EventType = "created"
	EventSubmitted EventType = "submitted"
	EventGate      EventType = "gate"
	EventFeedback  EventType = "feedback"
	EventEscalated EventType = "escalated"
	EventResolved  EventType = "resolved"
	EventAdvanced  EventType = "advanced"
	EventRewound   EventType = "rewound"
	EventCancelled EventType = "cancelled"
	EventChangeSet EventType = "change-set"
)

// Transition is one entry in an instance's history.
type Transition struct {
	Event  EventType   `yaml:"event" json:"event"`
	From   stage.Phase `yaml:"from" json:"from"`
	To     stage.Phase `yaml:"to" json:"to"`
	Detail string      `yaml:"detail,omitempty" json:"detail,omitempty"`
	At     time.Time   `yaml:"at" json:"at"`
}

// Instance tracks one feature's progress through the pipeline.
type Instance struct {
	ID         string      `yaml:"id" json:"id"`
	FeatureID  string      `yaml:"feature" json:"feature"`
	Complexity Complexity  `yaml:"complexity" json:"complexity"`
	Phase      stage.Phase `yaml:"phase" json:"phase"`

	// Escalated is set when the current stage ran out of revision rounds
	// and is waiting for a human decision.
	Escalated bool `yaml:"escalated,omitempty" json:"escalated,omitempty"`

	// Policy is the project configuration captured at creation.
	Policy Policy `yaml:"policy" json:"policy"`

	// Stages holds one record per pipeline stage, in pipeline order.
	Stages []StageRecord `yaml:"stages" json:"stages"`

	History   []Transition `yaml:"history,omitempty" json:"history,omitempty"`
	CreatedAt time.Time    `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time    `yaml:"updated_at" json:"updated_at"`
}

// IsTerminal reports whether the instance is complete or cancelled.
func (i *Instance) IsTerminal() bool {
	return i.Phase.IsTerminal()
}

// Current returns the active stage. The second return is false once the
// instance is terminal.
func (i *Instance) Current() (stage.Stage, bool) {
	return i.Phase.Stage()
}

// Record returns the record for s, or nil if the instance has none.
func (i *Instance) Record(s stage.Stage) *StageRecord {
	for idx := range i.Stages {
		if i.Stages[idx].Stage == s {
			return &i.Stages[idx]
		}
	}
	return nil
}

// Iterations returns the revision-round count for s.
func (i *Instance) Iterations(s stage.Stage) int {
	if r := i.Record(s); r != nil {
		return r.Iterations
	}
	return 0
}

// Limit returns the effective revision-round limit for s, including any
// allowance granted by resolving an escalation.
func (i *Instance) Limit(s stage.Stage) int {
	limit := i.Policy.LimitFor(s)
	if r := i.Record(s); r != nil {
		limit += r.Allowance
	}
	return limit
}

// ActiveStages returns the non-skipped stages in pipeline order.
func (i *Instance) ActiveStages() []stage.Stage {
	var out []stage.Stage
	for _, r := range i.Stages {
		if r.Status != StageSkipped {
			out = append(out, r.Stage)
		}
	}
	return out
}

// Position returns the 1-based position of s among the active stages, or 0
// when s is skipped or absent.
func (i *Instance) Position(s stage.Stage) int {
	for idx, a := range i.ActiveStages() {
		if a == s {
			return idx + 1
		}
	}
	return 0
}

// Clone returns a deep copy of the instance.
func (i *Instance) Clone() *Instance {
	out := *i
	out.Policy = i.Policy.clone()
	out.Stages = make([]StageRecord, len(i.Stages))
	for idx, r := range i.Stages {
		c := r
		c.Unmet = append([]stage.ConditionID(nil), r.Unmet...)
		if r.Artifacts != nil {
			a := r.Artifacts.Clone()
			c.Artifacts = &a
		}
		c.Feedback = append([]FeedbackRound(nil), r.Feedback...)
		if r.ChangeSet != nil {
			cs := *r.ChangeSet
			c.ChangeSet = &cs
		}
		if r.ApprovedAt != nil {
			at := *r.ApprovedAt
			c.ApprovedAt = &at
		}
		out.Stages[idx] = c
	}
	out.History = append([]Transition(nil), i.History...)
	return &out
}
