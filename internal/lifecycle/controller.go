// Package lifecycle drives workflow instances through their stages.
//
// The lifecycle package provides [Controller], which combines the instance
// [workflow.Manager] with the quality [gate.Evaluator] and an optional
// change-set host. The Controller enforces the rules that span both: a stage
// is only approved after its gate passed, and an escalated stage accepts no
// further submissions until a human resolves it.
//
// Key concepts:
//   - Submissions are evaluated immediately; failures leave the stage and its
//     iteration count unchanged
//   - Approval arrives externally, either explicitly or by syncing with the
//     change-set host via [ChangeSetRequester]
//   - An implementation submission that changes test files approved at the
//     test-stubs stage is flagged in [gate.Artifacts.ModifiedTests]
//   - Every transition is reported to an optional [EventCallback]
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"seniorflow/internal/gate"
	"seniorflow/internal/stage"
	"seniorflow/internal/workflow"
)

// ErrNoChangeSet indicates a sync was requested for a stage that has no
// change-set, or no change-set host is configured.
var ErrNoChangeSet = errors.New("no change-set to sync")

// ChangeSetRequester is the interface for publishing stages for review.
//
// RequestChangeSet opens a change-set for the current stage of an instance.
// IsApproved reports whether reviewers approved it. The forge package
// provides the production implementation.
type ChangeSetRequester interface {
	RequestChangeSet(ctx context.Context, inst *workflow.Instance) (workflow.ChangeSetRef, error)
	IsApproved(ctx context.Context, ref workflow.ChangeSetRef) (bool, error)
}

// Event is a single transition reported to an [EventCallback].
type Event struct {
	FeatureID string
	workflow.Transition
}

// EventCallback is invoked after each recorded transition, in order.
//
// This enables progress reporting in the UI. The callback is optional and can
// be set via [Controller.SetEventCallback].
type EventCallback func(Event)

// SubmitOptions controls [Controller.Submit].
type SubmitOptions struct {
	// OpenChangeSet asks the requester to open a change-set when the gate
	// passes. Ignored when no requester is configured.
	OpenChangeSet bool
}

// Controller orchestrates stage submissions, reviews and approvals.
//
// Controller uses dependency injection for testability. Use [NewController] to
// create an instance.
type Controller struct {
	manager   *workflow.Manager
	evaluator *gate.Evaluator
	requester ChangeSetRequester
	callback  EventCallback
	logger    *zap.Logger

	testPatterns []string
}

// NewController creates a Controller with the required dependencies.
//
// No change-set requester or event callback is set by default, and logging is
// disabled until [Controller.SetLogger] is called.
func NewController(m *workflow.Manager, e *gate.Evaluator) *Controller {
	return &Controller{
		manager:   m,
		evaluator: e,
		logger:    zap.NewNop(),

		testPatterns: gate.DefaultTestPatterns,
	}
}

// SetRequester configures the change-set host. Passing nil disables it.
func (c *Controller) SetRequester(r ChangeSetRequester) {
	c.requester = r
}

// SetEventCallback configures an optional callback for transitions.
func (c *Controller) SetEventCallback(cb EventCallback) {
	c.callback = cb
}

// SetLogger configures diagnostic logging. Passing nil disables it.
func (c *Controller) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c.logger = logger
}

// SetTestPatterns configures the globs that identify test files. Passing an
// empty list restores [gate.DefaultTestPatterns].
func (c *Controller) SetTestPatterns(patterns []string) {
	if len(patterns) == 0 {
		patterns = gate.DefaultTestPatterns
	}
	c.testPatterns = patterns
}

// Start creates an instance for featureID.
func (c *Controller) Start(featureID string, complexity workflow.Complexity, policy workflow.Policy) (*workflow.Instance, error) {
	inst, err := c.manager.Create(featureID, complexity, policy)
	if err != nil {
		return nil, err
	}
	c.emitSince(inst, 0)
	return inst, nil
}

// Submit records artifacts for the current stage and evaluates its gate.
//
// A failing gate returns the [gate.Result] together with a
// [*gate.GateFailedError]; the stage and its iteration count are unchanged,
// but the submission and its unmet conditions are recorded. While the
// instance is escalated, Submit returns a [*workflow.EscalationError] and
// records nothing.
//
// When the gate passes and opts.OpenChangeSet is set, a change-set is opened
// and attached to the stage unless the stage already has one, which then
// carries the resubmission. A change-set failure is returned after the gate
// outcome has been recorded.
func (c *Controller) Submit(ctx context.Context, inst *workflow.Instance, artifacts gate.Artifacts, opts SubmitOptions) (gate.Result, error) {
	cur, err := c.current(inst)
	if err != nil {
		return gate.Result{}, err
	}

	if cur == stage.Implementation {
		artifacts, err = c.flagTouchedTests(inst, artifacts)
		if err != nil {
			return gate.Result{}, err
		}
	}

	n := len(inst.History)
	defer func() { c.emitSince(inst, n) }()

	if err := c.manager.RecordSubmission(inst, artifacts); err != nil {
		return gate.Result{}, err
	}

	res := c.evaluator.Evaluate(cur, artifacts)
	if err := c.manager.RecordGateResult(inst, res); err != nil {
		return res, err
	}

	if !res.Passed() {
		c.logger.Info("gate failed",
			zap.String("feature", inst.FeatureID),
			zap.Stringer("stage", cur),
			zap.Strings("unmet", conditionIDs(res)))
		return res, res.Err()
	}

	c.logger.Info("gate passed", zap.String("feature", inst.FeatureID), zap.Stringer("stage", cur))

	if opts.OpenChangeSet && c.requester != nil {
		if rec := inst.Record(cur); rec != nil && rec.ChangeSet != nil {
			c.logger.Info("change-set already open",
				zap.String("feature", inst.FeatureID), zap.Int("number", rec.ChangeSet.Number))
			return res, nil
		}
		ref, err := c.requester.RequestChangeSet(ctx, inst)
		if err != nil {
			c.logger.Warn("failed to open change-set", zap.String("feature", inst.FeatureID), zap.Error(err))
			return res, fmt.Errorf("open change-set: %w", err)
		}
		if err := c.manager.AttachChangeSet(inst, ref); err != nil {
			return res, err
		}
	}

	return res, nil
}

// Feedback records one round of reviewer feedback on the current stage.
//
// When the stage runs out of revision rounds a [*workflow.EscalationError] is
// returned and the instance is flagged escalated.
func (c *Controller) Feedback(ctx context.Context, inst *workflow.Instance, issues []string) error {
	n := len(inst.History)
	defer func() { c.emitSince(inst, n) }()

	err := c.manager.RecordFeedback(inst, issues)

	var esc *workflow.EscalationError
	if errors.As(err, &esc) {
		c.logger.Warn("escalation required",
			zap.String("feature", esc.FeatureID),
			zap.Stringer("stage", esc.Stage),
			zap.Int("iterations", esc.Iterations),
			zap.Int("limit", esc.Limit))
	}
	return err
}

// Approve handles the external approval signal for the current stage.
//
// The stage's gate must have passed on its latest submission; otherwise
// [workflow.ErrImpossibleTransition] is returned. An escalated stage cannot be
// approved until the escalation is resolved.
func (c *Controller) Approve(ctx context.Context, inst *workflow.Instance) error {
	cur, err := c.current(inst)
	if err != nil {
		return err
	}
	if rec := inst.Record(cur); rec == nil || !rec.GatePassed {
		return fmt.Errorf("%w: %s gate has not passed for %s", workflow.ErrImpossibleTransition, cur, inst.FeatureID)
	}

	n := len(inst.History)
	if err := c.manager.Advance(inst); err != nil {
		return err
	}
	c.emitSince(inst, n)

	c.logger.Info("stage approved",
		zap.String("feature", inst.FeatureID),
		zap.Stringer("stage", cur),
		zap.String("phase", string(inst.Phase)))
	return nil
}

// Sync polls the change-set host for the current stage. If the change-set was
// approved the stage is approved as by [Controller.Approve].
//
// Returns whether the stage advanced. [ErrNoChangeSet] is returned when no
// requester is configured or the stage has no change-set.
func (c *Controller) Sync(ctx context.Context, inst *workflow.Instance) (bool, error) {
	cur, err := c.current(inst)
	if err != nil {
		return false, err
	}
	rec := inst.Record(cur)
	if c.requester == nil || rec == nil || rec.ChangeSet == nil {
		return false, fmt.Errorf("%w: %s of %s", ErrNoChangeSet, cur, inst.FeatureID)
	}

	approved, err := c.requester.IsApproved(ctx, *rec.ChangeSet)
	if err != nil {
		return false, fmt.Errorf("check change-set #%d: %w", rec.ChangeSet.Number, err)
	}
	if !approved {
		c.logger.Debug("change-set awaiting approval",
			zap.String("feature", inst.FeatureID), zap.Int("number", rec.ChangeSet.Number))
		return false, nil
	}

	if err := c.Approve(ctx, inst); err != nil {
		return false, err
	}
	return true, nil
}

// Resolve grants extra revision rounds to an escalated stage.
func (c *Controller) Resolve(ctx context.Context, inst *workflow.Instance, extra int) error {
	n := len(inst.History)
	if err := c.manager.ResolveEscalation(inst, extra); err != nil {
		return err
	}
	c.emitSince(inst, n)
	return nil
}

// Rewind moves the instance back to an earlier stage after a design flaw
// was discovered.
func (c *Controller) Rewind(ctx context.Context, inst *workflow.Instance, target stage.Stage, reason string) error {
	n := len(inst.History)
	if err := c.manager.Rewind(inst, target, reason); err != nil {
		return err
	}
	c.emitSince(inst, n)

	c.logger.Info("workflow rewound",
		zap.String("feature", inst.FeatureID), zap.Stringer("stage", target), zap.String("reason", reason))
	return nil
}

// Abort cancels the instance.
func (c *Controller) Abort(ctx context.Context, inst *workflow.Instance, reason string) error {
	n := len(inst.History)
	if err := c.manager.Abort(inst, reason); err != nil {
		return err
	}
	c.emitSince(inst, n)

	c.logger.Info("workflow cancelled", zap.String("feature", inst.FeatureID), zap.String("reason", reason))
	return nil
}

// current returns the active stage, failing for terminal and escalated
// instances.
func (c *Controller) current(inst *workflow.Instance) (stage.Stage, error) {
	if inst.IsTerminal() {
		return 0, fmt.Errorf("%w: %s is %s", workflow.ErrAlreadyTerminal, inst.FeatureID, inst.Phase)
	}
	cur, ok := inst.Current()
	if !ok {
		return 0, fmt.Errorf("%w: unknown phase %q", workflow.ErrImpossibleTransition, inst.Phase)
	}
	if inst.Escalated {
		return cur, &workflow.EscalationError{
			FeatureID:  inst.FeatureID,
			Stage:      cur,
			Iterations: inst.Iterations(cur),
			Limit:      inst.Limit(cur),
		}
	}
	return cur, nil
}

// flagTouchedTests adds the approved test-stubs files that a submission
// changes to its ModifiedTests.
func (c *Controller) flagTouchedTests(inst *workflow.Instance, a gate.Artifacts) (gate.Artifacts, error) {
	rec := inst.Record(stage.TestStubs)
	if rec == nil || !rec.Approved() || rec.Artifacts == nil {
		return a, nil
	}
	touched, err := gate.TouchedTests(rec.Artifacts.Files, a.Files, c.testPatterns)
	if err != nil {
		return a, err
	}
	if len(touched) == 0 {
		return a, nil
	}

	a = a.Clone()
	for _, f := range touched {
		if !slices.Contains(a.ModifiedTests, f) {
			a.ModifiedTests = append(a.ModifiedTests, f)
		}
	}
	c.logger.Info("approved tests modified",
		zap.String("feature", inst.FeatureID), zap.Strings("files", touched))
	return a, nil
}

// emitSince reports history entries recorded at or after index n.
func (c *Controller) emitSince(inst *workflow.Instance, n int) {
	for _, tr := range inst.History[n:] {
		c.logger.Debug("transition",
			zap.String("feature", inst.FeatureID),
			zap.String("event", string(tr.Event)),
			zap.String("from", string(tr.From)),
			zap.String("to", string(tr.To)))
		if c.callback != nil {
			c.callback(Event{FeatureID: inst.FeatureID, Transition: tr})
		}
	}
}

func conditionIDs(res gate.Result) []string {
	out := make([]string, len(res.Unmet))
	for i, u := range res.Unmet {
		out[i] = string(u.ID)
	}
	return out
}
