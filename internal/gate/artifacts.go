package gate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Test categories the test-stubs checklist expects to see.
const (
	CategoryHappyPath = "happy-path"
	CategoryEdgeCase  = "edge-case"
	CategoryError     = "error"
)

// RequiredCategories lists the test categories a test-stubs submission must cover.
var RequiredCategories = []string{CategoryHappyPath, CategoryEdgeCase, CategoryError}

// TestCase is a single test named in a submission.
type TestCase struct {
	// Name is the test function or case name.
	Name string `yaml:"name" json:"name"`

	// Category is one of happy-path, edge-case or error.
	Category string `yaml:"category" json:"category"`
}

// TestReport is the result consumed from the test-execution environment.
type TestReport struct {
	// Total is the number of tests that were run.
	Total int `yaml:"total" json:"total"`

	// Passed is the number of tests that passed.
	Passed int `yaml:"passed" json:"passed"`

	// Failed is the number of tests that failed.
	Failed int `yaml:"failed" json:"failed"`

	// Unclear counts failures that carried no failure message.
	Unclear int `yaml:"unclear,omitempty" json:"unclear,omitempty"`
}

// AnalysisReport is the result consumed from the static-analysis tool.
type AnalysisReport struct {
	Errors   int `yaml:"errors" json:"errors"`
	Warnings int `yaml:"warnings" json:"warnings"`
}

// Artifacts is the set of things submitted for review at one stage.
//
// Only the fields relevant to the current stage's checklist are consulted;
// the rest are ignored. Nil reports mean the tool was not run, which fails
// any condition that depends on them.
type Artifacts struct {
	// Description is the change-set summary written by the submitter.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Files lists every path touched by the submission.
	Files []string `yaml:"files,omitempty" json:"files,omitempty"`

	// Tests lists the test cases introduced by the submission.
	Tests []TestCase `yaml:"tests,omitempty" json:"tests,omitempty"`

	// TestRun is the test-execution result, if tests were run.
	TestRun *TestReport `yaml:"test_run,omitempty" json:"test_run,omitempty"`

	// Analysis is the static-analysis result, if the tool was run.
	Analysis *AnalysisReport `yaml:"analysis,omitempty" json:"analysis,omitempty"`

	// DesignDoc is the path of the architecture document.
	DesignDoc string `yaml:"design_doc,omitempty" json:"design_doc,omitempty"`

	// Diagrams lists diagram sources (mermaid blocks, image paths).
	Diagrams []string `yaml:"diagrams,omitempty" json:"diagrams,omitempty"`

	// Components lists component names with described responsibilities.
	Components []string `yaml:"components,omitempty" json:"components,omitempty"`

	// Interfaces lists declared public types and interfaces.
	Interfaces []string `yaml:"interfaces,omitempty" json:"interfaces,omitempty"`

	// ImplementedMethods counts method bodies containing real logic.
	ImplementedMethods int `yaml:"implemented_methods,omitempty" json:"implemented_methods,omitempty"`

	// ModifiedTests lists previously approved test files changed by this submission.
	ModifiedTests []string `yaml:"modified_tests,omitempty" json:"modified_tests,omitempty"`
}

// Clone returns a deep copy so stored submissions are not aliased by callers.
func (a Artifacts) Clone() Artifacts {
	out := a
	out.Files = cloneStrings(a.Files)
	out.Diagrams = cloneStrings(a.Diagrams)
	out.Components = cloneStrings(a.Components)
	out.Interfaces = cloneStrings(a.Interfaces)
	out.ModifiedTests = cloneStrings(a.ModifiedTests)
	if a.Tests != nil {
		out.Tests = append([]TestCase(nil), a.Tests...)
	}
	if a.TestRun != nil {
		run := *a.TestRun
		out.TestRun = &run
	}
	if a.Analysis != nil {
		analysis := *a.Analysis
		out.Analysis = &analysis
	}
	return out
}

// LoadArtifacts reads and parses an artifacts YAML file.
//
// The expected format is:
//
//	description: Add stubs for token bucket limiter
//	files: [limiter/limiter_test.go]
//	tests:
//	  - name: TestAllow_UnderLimit
//	    category: happy-path
//	test_run:
//	  total: 3
//	  failed: 3
func LoadArtifacts(path string) (Artifacts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifacts{}, fmt.Errorf("failed to read artifacts: %w", err)
	}
	return ParseArtifacts(data)
}

// ParseArtifacts parses artifacts from YAML bytes.
func ParseArtifacts(data []byte) (Artifacts, error) {
	var a Artifacts
	if err := yaml.Unmarshal(data, &a); err != nil {
		return Artifacts{}, fmt.Errorf("failed to parse artifacts: %w", err)
	}
	for i, tc := range a.Tests {
		if tc.Name == "" {
			return Artifacts{}, fmt.Errorf("test at index %d has no name", i)
		}
	}
	return a, nil
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
