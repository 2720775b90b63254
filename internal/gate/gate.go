// Package gate evaluates a stage's quality checklist against submitted artifacts.
//
// Evaluation is pure: the same stage and artifacts always produce the same
// [Result]. Unmet conditions are reported in checklist order so callers can
// present them deterministically. An unmet checklist is normal control flow
// and is never reported as a fatal error.
//
// Key types:
//   - [Evaluator] - Runs stage checklists and iteration-limit checks
//   - [Result] - Pass, Fail with unmet conditions, or Escalate
//   - [Artifacts] - What a submission contains
//   - [GateFailedError] - Error form of a failing result
package gate

import (
	"errors"
	"fmt"
	"strings"

	"seniorflow/internal/stage"
)

// ErrGateFailed is wrapped by [GateFailedError]. Use errors.Is to detect it.
var ErrGateFailed = errors.New("quality gate failed")

// Kind classifies a [Result].
type Kind string

// Result kinds.
const (
	KindPass     Kind = "pass"
	KindFail     Kind = "fail"
	KindEscalate Kind = "escalate"
)

// Condition is an unmet checklist entry with its human-readable text.
type Condition struct {
	ID          stage.ConditionID `yaml:"id" json:"id"`
	Description string            `yaml:"description" json:"description"`
}

// Result is the transient outcome of a gate evaluation.
type Result struct {
	// Stage is the stage that was evaluated.
	Stage stage.Stage

	// Kind is pass, fail or escalate.
	Kind Kind

	// Unmet lists failing conditions in checklist order. Empty unless Kind is fail.
	Unmet []Condition

	// Iterations and Limit are set when Kind is escalate.
	Iterations int
	Limit      int
}

// Passed reports whether the checklist was fully satisfied.
func (r Result) Passed() bool {
	return r.Kind == KindPass
}

// UnmetIDs returns the identifiers of the unmet conditions in order.
func (r Result) UnmetIDs() []stage.ConditionID {
	ids := make([]stage.ConditionID, len(r.Unmet))
	for i, c := range r.Unmet {
		ids[i] = c.ID
	}
	return ids
}

// Err returns a [*GateFailedError] for failing results and nil otherwise.
func (r Result) Err() error {
	if r.Kind != KindFail {
		return nil
	}
	return &GateFailedError{Stage: r.Stage, Unmet: r.Unmet}
}

// GateFailedError carries the ordered unmet conditions of a failed gate so
// the driver can re-request the missing artifacts.
type GateFailedError struct {
	Stage stage.Stage
	Unmet []Condition
}

func (e *GateFailedError) Error() string {
	ids := make([]string, len(e.Unmet))
	for i, c := range e.Unmet {
		ids[i] = string(c.ID)
	}
	return fmt.Sprintf("%s: %s: unmet %s", ErrGateFailed, e.Stage, strings.Join(ids, ", "))
}

// Unwrap allows errors.Is(err, ErrGateFailed).
func (e *GateFailedError) Unwrap() error {
	return ErrGateFailed
}

// Predicate decides a single checklist condition.
type Predicate func(Artifacts) bool

// Evaluator runs checklists from the stage table.
//
// The zero value is not usable; create one with [NewEvaluator].
type Evaluator struct {
	predicates map[stage.ConditionID]Predicate
}

// NewEvaluator returns an [Evaluator] wired with the standard predicates.
func NewEvaluator() *Evaluator {
	preds := make(map[stage.ConditionID]Predicate, len(defaultPredicates))
	for id, p := range defaultPredicates {
		preds[id] = p
	}
	return &Evaluator{predicates: preds}
}

// Evaluate checks every condition for s in checklist order.
//
// Conditions without a registered predicate count as unmet. An invalid
// stage yields a fail result with no conditions.
func (e *Evaluator) Evaluate(s stage.Stage, a Artifacts) Result {
	res := Result{Stage: s, Kind: KindPass}
	if !s.IsValid() {
		res.Kind = KindFail
		return res
	}

	for _, id := range stage.ConditionsFor(s) {
		pred, ok := e.predicates[id]
		if ok && pred(a) {
			continue
		}
		res.Unmet = append(res.Unmet, Condition{ID: id, Description: id.Description()})
	}

	if len(res.Unmet) > 0 {
		res.Kind = KindFail
	}
	return res
}

// CheckIterations reports escalate once count exceeds limit, pass otherwise.
func (e *Evaluator) CheckIterations(s stage.Stage, count, limit int) Result {
	if count > limit {
		return Result{Stage: s, Kind: KindEscalate, Iterations: count, Limit: limit}
	}
	return Result{Stage: s, Kind: KindPass, Iterations: count, Limit: limit}
}
