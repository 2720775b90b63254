package workflow

import (
	"fmt"

	"seniorflow/internal/stage"
)

// DefaultIterationLimit is the number of revision rounds a stage may go
// through before escalation.
const DefaultIterationLimit = 3

// StageRule is the project policy for a single stage.
type StageRule struct {
	// Stage is the stage the rule applies to.
	Stage stage.Stage `yaml:"stage" json:"stage"`

	// Enabled is false when the project never runs this stage.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Required keeps the stage even for simple features.
	Required bool `yaml:"required" json:"required"`

	// IterationLimit overrides the policy-wide limit when positive.
	IterationLimit int `yaml:"iteration_limit,omitempty" json:"iteration_limit,omitempty"`
}

// Policy is the immutable project configuration captured when an instance is
// created. It is copied into the instance and never read from ambient state
// afterwards.
type Policy struct {
	// IterationLimit is the default revision-round limit per stage.
	IterationLimit int `yaml:"iteration_limit" json:"iteration_limit"`

	// Rules holds per-stage overrides. Stages without a rule use [DefaultRule].
	Rules []StageRule `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// DefaultPolicy returns the policy used when no project configuration exists.
func DefaultPolicy() Policy {
	return Policy{IterationLimit: DefaultIterationLimit}
}

// DefaultRule returns the rule applied to s when the policy has none:
// enabled, and required unless the stage is skippable.
func DefaultRule(s stage.Stage) StageRule {
	return StageRule{Stage: s, Enabled: true, Required: !s.Skippable()}
}

// Rule returns the effective rule for s.
func (p Policy) Rule(s stage.Stage) StageRule {
	for _, r := range p.Rules {
		if r.Stage == s {
			return r
		}
	}
	return DefaultRule(s)
}

// LimitFor returns the revision-round limit for s.
func (p Policy) LimitFor(s stage.Stage) int {
	if r := p.Rule(s); r.IterationLimit > 0 {
		return r.IterationLimit
	}
	if p.IterationLimit > 0 {
		return p.IterationLimit
	}
	return DefaultIterationLimit
}

// Skips reports whether s is skipped for the given complexity.
func (p Policy) Skips(s stage.Stage, c Complexity) bool {
	if !s.Skippable() {
		return false
	}
	r := p.Rule(s)
	if !r.Enabled {
		return true
	}
	return c == ComplexitySimple && !r.Required
}

// Validate checks that the policy can be applied.
func (p Policy) Validate() error {
	if p.IterationLimit < 0 {
		return fmt.Errorf("%w: iteration limit must not be negative, got %d", ErrInvalidPolicy, p.IterationLimit)
	}
	seen := make(map[stage.Stage]bool, len(p.Rules))
	for i, r := range p.Rules {
		if !r.Stage.IsValid() {
			return fmt.Errorf("%w: rule %d has no valid stage", ErrInvalidPolicy, i)
		}
		if seen[r.Stage] {
			return fmt.Errorf("%w: duplicate rule for %s", ErrInvalidPolicy, r.Stage)
		}
		seen[r.Stage] = true
		if !r.Stage.Skippable() && !r.Enabled {
			return fmt.Errorf("%w: %s stage cannot be disabled", ErrInvalidPolicy, r.Stage)
		}
		if r.IterationLimit < 0 {
			return fmt.Errorf("%w: %s iteration limit must not be negative", ErrInvalidPolicy, r.Stage)
		}
	}
	return nil
}

func (p Policy) clone() Policy {
	out := p
	out.Rules = append([]StageRule(nil), p.Rules...)
	return out
}
