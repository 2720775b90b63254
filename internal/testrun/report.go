package testrun

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"seniorflow/internal/gate"
)

// ErrNoResults indicates a stream without a single test result, usually
// because the package failed to build.
var ErrNoResults = errors.New("no test results in go test output")

// ErrIncomplete indicates the go test output could not be read to the end.
var ErrIncomplete = errors.New("go test output read incompletely")

type testKey struct {
	pkg  string
	name string
}

type testState struct {
	result    Action
	hasOutput bool
}

// Summarize drains events and folds them into a [gate.TestReport].
//
// Only leaf tests are counted: a test that ran subtests reports through its
// subtests, not itself. Skipped tests are not counted. A failed test that
// printed nothing besides the harness framing counts as Unclear.
func Summarize(events <-chan TestEvent) gate.TestReport {
	tests := make(map[testKey]*testState)
	parents := make(map[testKey]bool)

	get := func(e TestEvent) *testState {
		k := testKey{pkg: e.Package, name: e.Test}
		st, ok := tests[k]
		if !ok {
			st = &testState{}
			tests[k] = st
		}
		return st
	}

	for e := range events {
		if e.Test == "" {
			continue
		}
		if i := strings.LastIndex(e.Test, "/"); i > 0 && e.Action == ActionRun {
			parents[testKey{pkg: e.Package, name: e.Test[:i]}] = true
		}
		switch {
		case e.IsResult():
			get(e).result = e.Action
		case e.IsMessage():
			get(e).hasOutput = true
		}
	}

	var report gate.TestReport
	for k, st := range tests {
		if parents[k] {
			continue
		}
		switch st.result {
		case ActionPass:
			report.Passed++
		case ActionFail:
			report.Failed++
			if !st.hasOutput {
				report.Unclear++
			}
		default:
			continue
		}
		report.Total++
	}
	return report
}

// ReadReport parses a `go test -json` stream and summarizes it.
//
// Returns [ErrNoResults] when the stream holds no test results and
// [ErrIncomplete] when reading stopped before the end of the stream.
func ReadReport(r io.Reader) (gate.TestReport, error) {
	events, readErr := NewParser().ParseWithErr(r)
	report := Summarize(events)
	if err := readErr(); err != nil {
		return gate.TestReport{}, fmt.Errorf("%w: %w", ErrIncomplete, err)
	}
	if report.Total == 0 {
		return gate.TestReport{}, ErrNoResults
	}
	return report, nil
}

// LoadReport reads a saved `go test -json` stream from path.
func LoadReport(path string) (gate.TestReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return gate.TestReport{}, fmt.Errorf("failed to read test output: %w", err)
	}
	defer f.Close()

	report, err := ReadReport(f)
	if err != nil {
		return gate.TestReport{}, fmt.Errorf("%s: %w", path, err)
	}
	return report, nil
}
