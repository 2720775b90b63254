// Package router decides what a workflow instance needs next.
//
// The router maps an instance's phase and per-stage state to the single
// [Action] an external driver should take, and provides the remaining stage
// sequence for dry-run previews. It never mutates instances.
//
// Key types:
//   - [Router] - Resolves actions and plans
//   - [Step] - A single stage in a plan
//
// Package-level functions [NextAction] and [Plan] use a default router.
package router

import (
	"errors"
	"fmt"

	"seniorflow/internal/stage"
	"seniorflow/internal/workflow"
)

// Sentinel errors for routing.
var (
	// ErrWorkflowComplete indicates the instance has finished implementation
	// and nothing remains. Callers should report success rather than failure.
	ErrWorkflowComplete = errors.New("workflow is complete, no action needed")

	// ErrWorkflowCancelled indicates the instance was aborted.
	ErrWorkflowCancelled = errors.New("workflow was cancelled")

	// ErrUnknownPhase indicates a phase value the router does not recognize,
	// most likely a hand-edited state file.
	ErrUnknownPhase = errors.New("unknown phase value")
)

// Action is what the driver should do next for an instance.
type Action string

// Actions returned by [Router.NextAction].
const (
	// ActionSubmit means the current stage needs (re)submitted artifacts.
	ActionSubmit Action = "submit"

	// ActionAwaitApproval means the gate passed and a reviewer must approve.
	ActionAwaitApproval Action = "await-approval"

	// ActionResolveEscalation means the stage ran out of revision rounds and
	// a human must continue, rewind, or abort.
	ActionResolveEscalation Action = "resolve-escalation"

	// ActionNone is returned alongside a terminal error.
	ActionNone Action = "none"
)

// Router resolves next actions and plans.
//
// Create with [NewRouter]. The zero value is not usable.
type Router struct {
	// actions maps the current stage's state to the required action.
	actions map[workflow.StageStatus]Action
}

// NewRouter creates a [Router] with the default rules:
//   - escalated instance -> resolve-escalation
//   - gate passed on current stage -> await-approval
//   - otherwise -> submit
//   - complete -> [ErrWorkflowComplete]
//   - cancelled -> [ErrWorkflowCancelled]
func NewRouter() *Router {
	return &Router{
		actions: map[workflow.StageStatus]Action{
			workflow.StageInProgress: ActionSubmit,
			workflow.StagePending:    ActionSubmit,
		},
	}
}

// NextAction returns the action the driver should take for inst.
//
// Returns [ErrWorkflowComplete] or [ErrWorkflowCancelled] for terminal
// instances and [ErrUnknownPhase] for unrecognized phases.
func (r *Router) NextAction(inst *workflow.Instance) (Action, error) {
	switch inst.Phase {
	case stage.PhaseComplete:
		return ActionNone, ErrWorkflowComplete
	case stage.PhaseCancelled:
		return ActionNone, ErrWorkflowCancelled
	}

	cur, ok := inst.Current()
	if !ok {
		return ActionNone, fmt.Errorf("%w: %q", ErrUnknownPhase, inst.Phase)
	}
	rec := inst.Record(cur)
	if rec == nil {
		return ActionNone, fmt.Errorf("%w: no record for %s", ErrUnknownPhase, cur)
	}

	if inst.Escalated {
		return ActionResolveEscalation, nil
	}
	if rec.GatePassed {
		return ActionAwaitApproval, nil
	}

	action, ok := r.actions[rec.Status]
	if !ok {
		return ActionNone, fmt.Errorf("%w: %s is %s", ErrUnknownPhase, cur, rec.Status)
	}
	return action, nil
}

// Plan returns the remaining non-skipped stages from the current one through
// implementation, in pipeline order.
//
// Returns [ErrWorkflowComplete] or [ErrWorkflowCancelled] for terminal
// instances.
func (r *Router) Plan(inst *workflow.Instance) ([]Step, error) {
	switch inst.Phase {
	case stage.PhaseComplete:
		return nil, ErrWorkflowComplete
	case stage.PhaseCancelled:
		return nil, ErrWorkflowCancelled
	}

	cur, ok := inst.Current()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPhase, inst.Phase)
	}

	active := inst.ActiveStages()
	var steps []Step
	for idx, s := range active {
		if s < cur {
			continue
		}
		steps = append(steps, Step{
			Stage:     s,
			Title:     stage.Title(s),
			Position:  idx + 1,
			Total:     len(active),
			Checklist: stage.ConditionsFor(s),
			Current:   s == cur,
		})
	}
	return steps, nil
}

// defaultRouter is the package-level router used by [NextAction] and [Plan].
var defaultRouter = NewRouter()

// NextAction returns the next action for inst using the default router.
func NextAction(inst *workflow.Instance) (Action, error) {
	return defaultRouter.NextAction(inst)
}

// Plan returns the remaining stages for inst using the default router.
func Plan(inst *workflow.Instance) ([]Step, error) {
	return defaultRouter.Plan(inst)
}
