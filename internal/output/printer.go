// Package output renders workflow state for the terminal.
//
// [Printer] owns every user-facing line the CLI writes: instance status,
// gate results, escalations, plans and transition events. Styles come from
// lipgloss and degrade to plain text when the writer is not a terminal, so
// tests can capture output with [NewPrinterWithWriter].
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"seniorflow/internal/gate"
	"seniorflow/internal/router"
	"seniorflow/internal/stage"
	"seniorflow/internal/workflow"
)

// Color modes accepted by [NewPrinterWithColor].
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Printer writes styled output.
type Printer struct {
	w io.Writer

	header  lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	warning lipgloss.Style
	muted   lipgloss.Style
	current lipgloss.Style
}

// NewPrinter creates a Printer that writes to stdout.
func NewPrinter() *Printer {
	return NewPrinterWithWriter(os.Stdout)
}

// NewPrinterWithWriter creates a Printer that writes to w, detecting color
// support from w.
func NewPrinterWithWriter(w io.Writer) *Printer {
	return NewPrinterWithColor(w, ColorAuto)
}

// NewPrinterWithColor creates a Printer with an explicit color mode. Unknown
// modes behave like auto.
func NewPrinterWithColor(w io.Writer, mode string) *Printer {
	r := lipgloss.NewRenderer(w)
	switch mode {
	case ColorAlways:
		r.SetColorProfile(termenv.ANSI256)
	case ColorNever:
		r.SetColorProfile(termenv.Ascii)
	}

	return &Printer{
		w:       w,
		header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
		success: r.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true),
		failure: r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		warning: r.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true),
		muted:   r.NewStyle().Foreground(lipgloss.Color("#999999")),
		current: r.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true),
	}
}

// Success prints a success line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.success.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Error prints an error line.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.w, p.failure.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.warning.Render("! "+fmt.Sprintf(format, args...)))
}

// Info prints an unstyled line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Instance prints the detailed status of one instance.
func (p *Printer) Instance(inst *workflow.Instance, next router.Action) {
	fmt.Fprintln(p.w, p.header.Render(inst.FeatureID)+p.muted.Render(fmt.Sprintf("  (%s, %s)", inst.Complexity, inst.ID)))
	fmt.Fprintf(p.w, "  phase: %s\n", p.phase(inst))
	if next != router.ActionNone && next != "" {
		fmt.Fprintf(p.w, "  next:  %s\n", next)
	}
	fmt.Fprintln(p.w)

	for _, rec := range inst.Stages {
		p.stageLine(inst, rec)
	}
}

func (p *Printer) stageLine(inst *workflow.Instance, rec workflow.StageRecord) {
	label := fmt.Sprintf("%-15s %-12s", stage.Title(rec.Stage), rec.Status)
	var detail []string

	switch rec.Status {
	case workflow.StageSkipped:
		fmt.Fprintln(p.w, "  "+p.muted.Render(label))
		return
	case workflow.StageApproved:
		if rec.ApprovedAt != nil {
			detail = append(detail, "approved "+rec.ApprovedAt.Format(time.DateTime))
		}
		fmt.Fprintln(p.w, "  "+p.success.Render(label)+" "+p.muted.Render(strings.Join(detail, ", ")))
		return
	}

	if cur, ok := inst.Current(); ok && cur == rec.Stage {
		detail = append(detail, fmt.Sprintf("round %d/%d", rec.Iterations, inst.Limit(rec.Stage)))
		switch {
		case rec.GatePassed:
			detail = append(detail, "gate passed")
		case len(rec.Unmet) > 0:
			detail = append(detail, fmt.Sprintf("%d unmet", len(rec.Unmet)))
		}
		if rec.ChangeSet != nil {
			detail = append(detail, fmt.Sprintf("change-set #%d", rec.ChangeSet.Number))
		}
		fmt.Fprintln(p.w, "  "+p.current.Render(label)+" "+strings.Join(detail, ", "))
		return
	}

	fmt.Fprintln(p.w, "  "+label)
}

func (p *Printer) phase(inst *workflow.Instance) string {
	switch {
	case inst.Phase == stage.PhaseComplete:
		return p.success.Render(string(inst.Phase))
	case inst.Phase == stage.PhaseCancelled:
		return p.muted.Render(string(inst.Phase))
	case inst.Escalated:
		return p.warning.Render(string(inst.Phase) + " (escalated)")
	}
	cur, _ := inst.Current()
	return fmt.Sprintf("%s (step %d/%d)", inst.Phase, inst.Position(cur), len(inst.ActiveStages()))
}

// StatusTable prints one summary row per instance.
func (p *Printer) StatusTable(insts []*workflow.Instance) {
	if len(insts) == 0 {
		fmt.Fprintln(p.w, p.muted.Render("No workflows. Start one with: seniorflow start <feature>"))
		return
	}

	fmt.Fprintln(p.w, p.header.Render(fmt.Sprintf("%-24s %-10s %-16s %s", "FEATURE", "TYPE", "PHASE", "ROUND")))
	for _, inst := range insts {
		round := "-"
		if cur, ok := inst.Current(); ok {
			round = fmt.Sprintf("%d/%d", inst.Iterations(cur), inst.Limit(cur))
		}
		row := fmt.Sprintf("%-24s %-10s %-16s %s", inst.FeatureID, inst.Complexity, inst.Phase, round)
		switch {
		case inst.Escalated:
			row = p.warning.Render(row)
		case inst.Phase == stage.PhaseComplete:
			row = p.success.Render(row)
		case inst.Phase == stage.PhaseCancelled:
			row = p.muted.Render(row)
		}
		fmt.Fprintln(p.w, row)
	}
}

// GateResult prints the outcome of a gate evaluation.
func (p *Printer) GateResult(res gate.Result) {
	switch res.Kind {
	case gate.KindPass:
		p.Success("%s gate passed", stage.Title(res.Stage))
	case gate.KindEscalate:
		p.Warn("%s has used %d of %d revision rounds", stage.Title(res.Stage), res.Iterations, res.Limit)
	default:
		p.Error("%s gate failed: %d unmet", stage.Title(res.Stage), len(res.Unmet))
		for _, c := range res.Unmet {
			fmt.Fprintf(p.w, "  - %s %s\n", c.Description, p.muted.Render("("+string(c.ID)+")"))
		}
	}
}

// Escalation prints the human decision an escalated stage needs.
func (p *Printer) Escalation(esc *workflow.EscalationError) {
	p.Warn("Escalation: %s stage of %s has used %d of %d revision rounds", stage.Title(esc.Stage), esc.FeatureID, esc.Iterations, esc.Limit)
	for _, issue := range esc.Issues {
		fmt.Fprintf(p.w, "  - %s\n", issue)
	}
	fmt.Fprintln(p.w, "  Decide how to proceed:")
	fmt.Fprintf(p.w, "    seniorflow resolve %s --extend N     keep iterating\n", esc.FeatureID)
	fmt.Fprintf(p.w, "    seniorflow rewind %s <stage>         revisit an earlier stage\n", esc.FeatureID)
	fmt.Fprintf(p.w, "    seniorflow abort %s                  stop the workflow\n", esc.FeatureID)
}

// Plan prints the remaining stages of an instance.
func (p *Printer) Plan(featureID string, steps []router.Step) {
	fmt.Fprintln(p.w, p.header.Render("Plan for "+featureID))
	for _, s := range steps {
		line := fmt.Sprintf("  %d/%d %s", s.Position, s.Total, s.Title)
		if s.Current {
			line = p.current.Render(line + " (current)")
		}
		fmt.Fprintln(p.w, line)
		for _, id := range s.Checklist {
			fmt.Fprintf(p.w, "        [ ] %s\n", id.Description())
		}
	}
}

// Stages prints the stage definition table.
func (p *Printer) Stages(defs []stage.Definition) {
	for i, d := range defs {
		skippable := ""
		if d.Stage.Skippable() {
			skippable = p.muted.Render(" (skippable)")
		}
		fmt.Fprintf(p.w, "%s%s\n", p.header.Render(fmt.Sprintf("%d. %s", d.Stage.Index(), d.Title)), skippable)
		if len(d.Artifacts) > 0 {
			fmt.Fprintf(p.w, "   artifacts: %s\n", strings.Join(d.Artifacts, ", "))
		}
		for _, id := range d.Checklist {
			fmt.Fprintf(p.w, "   - %s\n", id.Description())
		}
		if i < len(defs)-1 {
			fmt.Fprintln(p.w)
		}
	}
}

// Event prints a one-line transition notice.
func (p *Printer) Event(featureID string, tr workflow.Transition) {
	text := fmt.Sprintf("%s: %s", featureID, tr.Event)
	if tr.From != tr.To && tr.From != "" {
		text += fmt.Sprintf(" %s → %s", tr.From, tr.To)
	}
	if tr.Detail != "" {
		text += " " + p.muted.Render("("+tr.Detail+")")
	}
	fmt.Fprintln(p.w, text)
}
