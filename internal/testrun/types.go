// Package testrun reads the output of `go test -json` and summarizes it into
// the [gate.TestReport] that quality gates consume.
//
// The test-stubs gate needs to know that every listed test ran and failed
// with a message, and the implementation gate needs every test to pass.
// Rather than asking the submitter to count results by hand, the submit
// command can point at a saved `go test -json` stream and let this package
// derive the report.
//
// Key types:
//   - [Parser]: Interface for parsing the line-delimited JSON stream
//   - [TestEvent]: One decoded line of test2json output
//   - [Summarize]: Folds events into a [gate.TestReport]
package testrun

import (
	"strings"
	"time"
)

// Action is the test2json action of a [TestEvent].
type Action string

const (
	// ActionStart is emitted once per package before any test runs.
	ActionStart Action = "start"

	// ActionRun marks the start of a test.
	ActionRun Action = "run"

	// ActionPause and ActionCont bracket a parallel test waiting to run.
	ActionPause Action = "pause"
	ActionCont  Action = "cont"

	// ActionPass, ActionFail and ActionSkip are terminal results. They are
	// emitted for individual tests and, with an empty Test, for the package.
	ActionPass Action = "pass"
	ActionFail Action = "fail"
	ActionSkip Action = "skip"

	// ActionOutput carries a line the test (or the harness) printed.
	ActionOutput Action = "output"
)

// TestEvent is one line of `go test -json` output.
//
// Field names follow cmd/test2json so the stream decodes without tags
// beyond the JSON names.
type TestEvent struct {
	Time    time.Time `json:"Time,omitempty"`
	Action  Action    `json:"Action"`
	Package string    `json:"Package,omitempty"`
	Test    string    `json:"Test,omitempty"`
	Elapsed float64   `json:"Elapsed,omitempty"`
	Output  string    `json:"Output,omitempty"`
}

// IsResult reports whether the event is the terminal result of a single test.
func (e TestEvent) IsResult() bool {
	if e.Test == "" {
		return false
	}
	switch e.Action {
	case ActionPass, ActionFail, ActionSkip:
		return true
	}
	return false
}

// IsMessage reports whether the event is output the test itself printed, as
// opposed to the harness's own === RUN and --- FAIL framing lines.
func (e TestEvent) IsMessage() bool {
	if e.Action != ActionOutput || e.Test == "" {
		return false
	}
	line := strings.TrimSpace(e.Output)
	if line == "" {
		return false
	}
	for _, prefix := range []string{"=== ", "--- "} {
		if strings.HasPrefix(line, prefix) {
			return false
		}
	}
	return true
}
