package forge

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"seniorflow/internal/stage"
	"seniorflow/internal/workflow"
)

// BuildRequest renders the change-set title and body for the current stage
// of inst.
//
// The title has the form "[<feature>] Step N/M: <stage title>", where N and
// M count only the stages that apply to the feature. The body lists the
// stage checklist as markdown task items, ticked for conditions the latest
// submission met.
func BuildRequest(inst *workflow.Instance) (ChangeSetRequest, error) {
	cur, ok := inst.Current()
	if !ok {
		return ChangeSetRequest{}, fmt.Errorf("%w: %s is %s", workflow.ErrAlreadyTerminal, inst.FeatureID, inst.Phase)
	}
	rec := inst.Record(cur)
	if rec == nil {
		return ChangeSetRequest{}, fmt.Errorf("%w: no record for %s", workflow.ErrImpossibleTransition, cur)
	}

	pos, total := inst.Position(cur), len(inst.ActiveStages())
	title := fmt.Sprintf("[%s] Step %d/%d: %s", inst.FeatureID, pos, total, stage.Title(cur))

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", stage.Title(cur))
	fmt.Fprintf(&b, "Feature `%s`, step %d of %d.\n", inst.FeatureID, pos, total)

	if rec.Artifacts != nil && rec.Artifacts.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(rec.Artifacts.Description))
	}

	b.WriteString("\n### Checklist\n\n")
	for _, id := range stage.ConditionsFor(cur) {
		mark := " "
		if rec.GatePassed || (rec.Artifacts != nil && len(rec.Unmet) > 0 && !slices.Contains(rec.Unmet, id)) {
			mark = "x"
		}
		fmt.Fprintf(&b, "- [%s] %s\n", mark, id.Description())
	}

	if rec.Artifacts != nil && len(rec.Artifacts.Files) > 0 {
		b.WriteString("\n### Files\n\n")
		for _, f := range rec.Artifacts.Files {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
	}

	if n := len(rec.Feedback); n > 0 {
		fmt.Fprintf(&b, "\nRevision %d of %d.\n", rec.Iterations, inst.Limit(cur))
	}

	return ChangeSetRequest{Title: title, Body: b.String()}, nil
}

// Defaults are the request fields that come from configuration rather than
// from the instance.
type Defaults struct {
	// Head is the source branch. Empty means the feature identifier.
	Head   string
	Base   string
	Labels []string
	Draft  bool
}

// Requester opens change-sets for workflow instances and checks their
// approval through a [Provider].
type Requester struct {
	provider Provider
	defaults Defaults
}

// NewRequester creates a [Requester].
func NewRequester(p Provider, d Defaults) *Requester {
	return &Requester{provider: p, defaults: d}
}

// RequestChangeSet opens a change-set for the current stage of inst.
func (r *Requester) RequestChangeSet(ctx context.Context, inst *workflow.Instance) (workflow.ChangeSetRef, error) {
	req, err := BuildRequest(inst)
	if err != nil {
		return workflow.ChangeSetRef{}, err
	}

	req.Head = r.defaults.Head
	if req.Head == "" {
		req.Head = inst.FeatureID
	}
	req.Base = r.defaults.Base
	req.Labels = append([]string(nil), r.defaults.Labels...)
	req.Draft = r.defaults.Draft

	cs, err := r.provider.OpenChangeSet(ctx, req)
	if err != nil {
		return workflow.ChangeSetRef{}, err
	}
	return workflow.ChangeSetRef{Number: cs.Number, URL: cs.URL}, nil
}

// IsApproved reports whether the change-set behind ref was approved.
func (r *Requester) IsApproved(ctx context.Context, ref workflow.ChangeSetRef) (bool, error) {
	return r.provider.IsApproved(ctx, ref.Number)
}
