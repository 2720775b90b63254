package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"seniorflow/internal/gate"
	"seniorflow/internal/stage"
)

// Manager performs every mutation on an [Instance].
//
// Manager holds no per-instance state; a single Manager may serve many
// instances. Use [NewManager] to create one.
type Manager struct {
	now  func() time.Time
	gate *gate.Evaluator
}

// NewManager creates a [Manager] that timestamps with the wall clock.
func NewManager() *Manager {
	return &Manager{now: time.Now, gate: gate.NewEvaluator()}
}

// SetClock replaces the time source. Intended for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Create starts a new instance for featureID.
//
// The policy is validated and copied into the instance; later changes to the
// caller's configuration do not affect it. Skippable stages are marked
// skipped when the policy disables them, or when the feature is simple and
// the policy does not require them.
func (m *Manager) Create(featureID string, complexity Complexity, policy Policy) (*Instance, error) {
	featureID = strings.TrimSpace(featureID)
	if featureID == "" {
		return nil, fmt.Errorf("%w: feature id is required", ErrInvalidFeature)
	}
	if strings.ContainsAny(featureID, " \t\n") {
		return nil, fmt.Errorf("%w: %q contains whitespace", ErrInvalidFeature, featureID)
	}
	if !complexity.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidComplexity, complexity)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	now := m.now()
	inst := &Instance{
		ID:         uuid.NewString(),
		FeatureID:  featureID,
		Complexity: complexity,
		Policy:     policy.clone(),
		Stages:     make([]StageRecord, 0, len(stage.All)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	for _, s := range stage.All {
		rec := StageRecord{Stage: s, Status: StagePending}
		if policy.Skips(s, complexity) {
			rec.Status = StageSkipped
		}
		inst.Stages = append(inst.Stages, rec)
	}

	// Test stubs can never be skipped, so the first stage is always active.
	inst.Stages[0].Status = StageInProgress
	inst.Phase = stage.PhaseOf(stage.TestStubs)

	inst.History = append(inst.History, Transition{
		Event:  EventCreated,
		To:     inst.Phase,
		Detail: string(complexity),
		At:     now,
	})
	return inst, nil
}

// RecordSubmission stores artifacts for the current stage.
//
// It does not judge quality; the previous gate outcome is cleared so the
// new submission must be evaluated before approval.
func (m *Manager) RecordSubmission(inst *Instance, artifacts gate.Artifacts) error {
	cur, rec, err := m.active(inst)
	if err != nil {
		return err
	}

	a := artifacts.Clone()
	rec.Artifacts = &a
	rec.Submissions++
	rec.GatePassed = false
	rec.Unmet = nil

	m.record(inst, EventSubmitted, inst.Phase, fmt.Sprintf("%s submission %d", cur, rec.Submissions))
	return nil
}

// RecordGateResult stores the outcome of evaluating the current submission.
//
// The result must be for the current stage; anything else is an
// [ErrImpossibleTransition]. Escalate results are ignored here since
// escalation is driven by [Manager.RecordFeedback].
func (m *Manager) RecordGateResult(inst *Instance, res gate.Result) error {
	cur, rec, err := m.active(inst)
	if err != nil {
		return err
	}
	if res.Stage != cur {
		return fmt.Errorf("%w: gate result for %s but current stage is %s", ErrImpossibleTransition, res.Stage, cur)
	}
	if rec.Artifacts == nil {
		return fmt.Errorf("%w: %s has no submission to evaluate", ErrImpossibleTransition, cur)
	}

	switch res.Kind {
	case gate.KindPass:
		rec.GatePassed = true
		rec.Unmet = nil
	case gate.KindFail:
		rec.GatePassed = false
		rec.Unmet = res.UnmetIDs()
	default:
		return nil
	}

	m.record(inst, EventGate, inst.Phase, string(res.Kind))
	return nil
}

// RecordFeedback registers one round of reviewer feedback on the current stage.
//
// The iteration count increases by exactly one. When the increase would take
// the count past the stage limit, the count is left unchanged, the instance
// is flagged escalated, and an [*EscalationError] is returned. Further
// feedback keeps failing until the escalation is resolved.
func (m *Manager) RecordFeedback(inst *Instance, unresolved []string) error {
	cur, rec, err := m.active(inst)
	if err != nil {
		return err
	}

	limit := inst.Limit(cur)
	if res := m.gate.CheckIterations(cur, rec.Iterations+1, limit); res.Kind == gate.KindEscalate {
		if !inst.Escalated {
			inst.Escalated = true
			m.record(inst, EventEscalated, inst.Phase, fmt.Sprintf("%d/%d rounds used", rec.Iterations, limit))
		}
		return &EscalationError{
			FeatureID:  inst.FeatureID,
			Stage:      cur,
			Iterations: rec.Iterations,
			Limit:      limit,
			Issues:     append([]string(nil), unresolved...),
		}
	}

	rec.Iterations++
	rec.GatePassed = false
	rec.Feedback = append(rec.Feedback, FeedbackRound{
		Iteration: rec.Iterations,
		Issues:    append([]string(nil), unresolved...),
		At:        m.now(),
	})

	m.record(inst, EventFeedback, inst.Phase, fmt.Sprintf("round %d/%d", rec.Iterations, limit))
	return nil
}

// ResolveEscalation records a human decision to keep iterating on the
// current stage, granting extra revision rounds.
func (m *Manager) ResolveEscalation(inst *Instance, extra int) error {
	cur, rec, err := m.active(inst)
	if err != nil {
		return err
	}
	if !inst.Escalated {
		return fmt.Errorf("%w: %s has no pending escalation", ErrImpossibleTransition, cur)
	}
	if extra < 1 {
		return fmt.Errorf("%w: extra rounds must be at least 1, got %d", ErrInvalidArgument, extra)
	}

	rec.Allowance += extra
	inst.Escalated = false

	m.record(inst, EventResolved, inst.Phase, fmt.Sprintf("+%d rounds", extra))
	return nil
}

// Advance approves the current stage and moves to the next non-skipped
// stage, or to complete after implementation. The approved stage's
// iteration count resets to zero.
func (m *Manager) Advance(inst *Instance) error {
	cur, rec, err := m.active(inst)
	if err != nil {
		return err
	}

	now := m.now()
	rec.Status = StageApproved
	rec.Iterations = 0
	rec.Allowance = 0
	rec.ApprovedAt = &now
	inst.Escalated = false

	from := inst.Phase
	inst.Phase = stage.PhaseComplete
	for next, ok := cur.Next(); ok; next, ok = next.Next() {
		nr := inst.Record(next)
		if nr == nil {
			return fmt.Errorf("%w: instance %s has no record for %s", ErrImpossibleTransition, inst.FeatureID, next)
		}
		if nr.Status == StageSkipped {
			continue
		}
		nr.Status = StageInProgress
		inst.Phase = stage.PhaseOf(next)
		break
	}

	m.record(inst, EventAdvanced, from, fmt.Sprintf("%s approved", cur))
	return nil
}

// Rewind handles an explicit "design flaw discovered" event by moving the
// instance back to an earlier, non-skipped stage.
//
// The target stage loses its approval and its iteration count resets to
// zero. Stages after the target up to the current one lose their approval
// and must be resubmitted. Every reset stage drops its change-set, so redone
// work is approved only through a new one. This is the only way an instance moves backward.
func (m *Manager) Rewind(inst *Instance, target stage.Stage, reason string) error {
	cur, _, err := m.active(inst)
	if err != nil {
		return err
	}
	if !target.IsValid() {
		return fmt.Errorf("%w: cannot rewind to invalid stage %d", ErrImpossibleTransition, int(target))
	}
	if target >= cur {
		return fmt.Errorf("%w: cannot rewind from %s to %s", ErrImpossibleTransition, cur, target)
	}
	tr := inst.Record(target)
	if tr == nil || tr.Status == StageSkipped {
		return fmt.Errorf("%w: %s was skipped for %s", ErrImpossibleTransition, target, inst.FeatureID)
	}

	tr.Status = StageInProgress
	tr.Iterations = 0
	tr.Allowance = 0
	tr.GatePassed = false
	tr.Unmet = nil
	tr.ApprovedAt = nil
	tr.ChangeSet = nil

	for s, ok := target.Next(); ok && s <= cur; s, ok = s.Next() {
		r := inst.Record(s)
		if r == nil || r.Status == StageSkipped {
			continue
		}
		r.Status = StagePending
		r.GatePassed = false
		r.ApprovedAt = nil
		r.ChangeSet = nil
	}

	from := inst.Phase
	inst.Phase = stage.PhaseOf(target)
	inst.Escalated = false

	m.record(inst, EventRewound, from, reason)
	return nil
}

// Abort cancels the instance. Cancellation is always an explicit external
// decision; nothing in the pipeline cancels on its own.
func (m *Manager) Abort(inst *Instance, reason string) error {
	if inst.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, inst.FeatureID, inst.Phase)
	}

	from := inst.Phase
	inst.Phase = stage.PhaseCancelled
	inst.Escalated = false

	m.record(inst, EventCancelled, from, reason)
	return nil
}

// AttachChangeSet records the change-set opened for the current stage.
func (m *Manager) AttachChangeSet(inst *Instance, ref ChangeSetRef) error {
	cur, rec, err := m.active(inst)
	if err != nil {
		return err
	}
	rec.ChangeSet = &ref
	m.record(inst, EventChangeSet, inst.Phase, fmt.Sprintf("%s #%d", cur, ref.Number))
	return nil
}

// active returns the current stage and its record, failing for terminal or
// corrupt instances.
func (m *Manager) active(inst *Instance) (stage.Stage, *StageRecord, error) {
	if inst.IsTerminal() {
		return 0, nil, fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, inst.FeatureID, inst.Phase)
	}
	cur, ok := inst.Current()
	if !ok {
		return 0, nil, fmt.Errorf("%w: unknown phase %q", ErrImpossibleTransition, inst.Phase)
	}
	rec := inst.Record(cur)
	if rec == nil {
		return 0, nil, fmt.Errorf("%w: instance %s has no record for %s", ErrImpossibleTransition, inst.FeatureID, cur)
	}
	return cur, rec, nil
}

func (m *Manager) record(inst *Instance, event EventType, from stage.Phase, detail string) {
	now := m.now()
	inst.UpdatedAt = now
	inst.History = append(inst.History, Transition{
		Event:  event,
		From:   from,
		To:     inst.Phase,
		Detail: detail,
		At:     now,
	})
}
