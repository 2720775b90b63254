package workflow

import (
	"errors"
	"fmt"
	"strings"

	"seniorflow/internal/stage"
)

// Sentinel errors for workflow instance operations.
//
// ErrInvalidComplexity, ErrInvalidFeature, ErrInvalidPolicy,
// ErrAlreadyTerminal and ErrImpossibleTransition are usage errors: the caller
// asked for something the pipeline can never do, and retrying will not help.
// ErrEscalationRequired is expected and recoverable: a human has to decide how
// to proceed before the stage can iterate further.
var (
	// ErrInvalidComplexity indicates a complexity outside simple/complex.
	ErrInvalidComplexity = errors.New("invalid complexity classification")

	// ErrInvalidFeature indicates an empty or malformed feature identifier.
	ErrInvalidFeature = errors.New("invalid feature identifier")

	// ErrInvalidPolicy indicates a project policy that cannot be applied.
	ErrInvalidPolicy = errors.New("invalid workflow policy")

	// ErrAlreadyTerminal indicates the instance is complete or cancelled.
	ErrAlreadyTerminal = errors.New("workflow is already terminal")

	// ErrImpossibleTransition indicates a malformed stage ordering request,
	// such as rewinding forward or approving a stage whose gate never passed.
	ErrImpossibleTransition = errors.New("impossible transition")

	// ErrInvalidArgument indicates an out-of-range operation argument, such
	// as granting fewer than one extra revision round.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEscalationRequired is wrapped by [EscalationError].
	ErrEscalationRequired = errors.New("escalation required")
)

// EscalationError reports that a stage has used up its revision rounds.
//
// It carries the iteration count and limit so the driver can present the
// decision (continue with more rounds, rewind, or abort) without re-deriving it.
type EscalationError struct {
	FeatureID  string
	Stage      stage.Stage
	Iterations int
	Limit      int
	Issues     []string
}

func (e *EscalationError) Error() string {
	msg := fmt.Sprintf("%s: %s stage of %s has used %d of %d revision rounds",
		ErrEscalationRequired, e.Stage, e.FeatureID, e.Iterations, e.Limit)
	if len(e.Issues) > 0 {
		msg += "; unresolved: " + strings.Join(e.Issues, "; ")
	}
	return msg
}

// Unwrap allows errors.Is(err, ErrEscalationRequired).
func (e *EscalationError) Unwrap() error {
	return ErrEscalationRequired
}

// IsUsageError reports whether err is one of the fatal usage errors that
// must not be retried.
func IsUsageError(err error) bool {
	return errors.Is(err, ErrInvalidComplexity) ||
		errors.Is(err, ErrInvalidFeature) ||
		errors.Is(err, ErrInvalidPolicy) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrAlreadyTerminal) ||
		errors.Is(err, ErrImpossibleTransition)
}
