package stage

// ConditionID identifies one quality-gate condition.
type ConditionID string

// Quality-gate conditions.
const (
	CondTestsListed         ConditionID = "tests-listed"
	CondCategoriesCovered   ConditionID = "categories-covered"
	CondTestsFailClearly    ConditionID = "tests-fail-clearly"
	CondNoImplementation    ConditionID = "no-implementation"
	CondDesignDocPresent    ConditionID = "design-doc-present"
	CondDiagramPresent      ConditionID = "diagram-present"
	CondComponentsDescribed ConditionID = "components-described"
	CondInterfacesDefined   ConditionID = "interfaces-defined"
	CondTypecheckClean      ConditionID = "typecheck-clean"
	CondMethodsStubbed      ConditionID = "methods-stubbed"
	CondTestsPass           ConditionID = "tests-pass"
	CondLintClean           ConditionID = "lint-clean"
	CondTestsUnmodified     ConditionID = "tests-unmodified"
)

// conditionText holds the human-readable checklist line for each condition.
var conditionText = map[ConditionID]string{
	CondTestsListed:         "at least one test stub is listed",
	CondCategoriesCovered:   "happy-path, edge-case and error test categories are all present",
	CondTestsFailClearly:    "every test runs and fails with a clear message",
	CondNoImplementation:    "no implementation code is included",
	CondDesignDocPresent:    "an architecture document is included",
	CondDiagramPresent:      "at least one diagram is present",
	CondComponentsDescribed: "component responsibilities are described",
	CondInterfacesDefined:   "public types and interfaces are declared",
	CondTypecheckClean:      "static analysis reports no type errors",
	CondMethodsStubbed:      "method bodies are stubs only",
	CondTestsPass:           "all tests pass",
	CondLintClean:           "static analysis reports no warnings",
	CondTestsUnmodified:     "approved test stubs were not modified",
}

// Description returns the checklist line for the condition, or the raw
// identifier if it is not part of the table.
func (c ConditionID) Description() string {
	if text, ok := conditionText[c]; ok {
		return text
	}
	return string(c)
}

// Definition describes one stage of the pipeline.
type Definition struct {
	// Stage is the stage being described.
	Stage Stage

	// Title is the human-readable stage name used in change-set titles.
	Title string

	// Artifacts lists what a submission for this stage is expected to contain.
	Artifacts []string

	// Checklist is the ordered quality gate evaluated before review.
	Checklist []ConditionID
}

var table = map[Stage]Definition{
	TestStubs: {
		Stage:     TestStubs,
		Title:     "Test Stubs",
		Artifacts: []string{"test files", "test run report"},
		Checklist: []ConditionID{
			CondTestsListed,
			CondCategoriesCovered,
			CondTestsFailClearly,
			CondNoImplementation,
		},
	},
	Architecture: {
		Stage:     Architecture,
		Title:     "Architecture",
		Artifacts: []string{"architecture document", "diagrams"},
		Checklist: []ConditionID{
			CondDesignDocPresent,
			CondDiagramPresent,
			CondComponentsDescribed,
			CondNoImplementation,
		},
	},
	ObjectDesign: {
		Stage:     ObjectDesign,
		Title:     "Object Design",
		Artifacts: []string{"type and interface declarations", "static analysis report"},
		Checklist: []ConditionID{
			CondInterfacesDefined,
			CondTypecheckClean,
			CondMethodsStubbed,
		},
	},
	Implementation: {
		Stage:     Implementation,
		Title:     "Implementation",
		Artifacts: []string{"implementation files", "test run report", "static analysis report"},
		Checklist: []ConditionID{
			CondTestsPass,
			CondTypecheckClean,
			CondLintClean,
			CondTestsUnmodified,
		},
	},
}

// Lookup returns the definition for s. The second return is false for
// invalid stages.
func Lookup(s Stage) (Definition, bool) {
	def, ok := table[s]
	if !ok {
		return Definition{}, false
	}
	return def.clone(), true
}

// ConditionsFor returns the ordered checklist for s, or nil for invalid stages.
// The returned slice is a copy and may be modified by the caller.
func ConditionsFor(s Stage) []ConditionID {
	def, ok := table[s]
	if !ok {
		return nil
	}
	out := make([]ConditionID, len(def.Checklist))
	copy(out, def.Checklist)
	return out
}

// RequiredArtifacts returns the artifact list for s, or nil for invalid stages.
func RequiredArtifacts(s Stage) []string {
	def, ok := table[s]
	if !ok {
		return nil
	}
	out := make([]string, len(def.Artifacts))
	copy(out, def.Artifacts)
	return out
}

// Title returns the human-readable title for s.
func Title(s Stage) string {
	if def, ok := table[s]; ok {
		return def.Title
	}
	return s.String()
}

func (d Definition) clone() Definition {
	out := d
	out.Artifacts = append([]string(nil), d.Artifacts...)
	out.Checklist = append([]ConditionID(nil), d.Checklist...)
	return out
}

// Definitions returns every stage definition in pipeline order.
func Definitions() []Definition {
	out := make([]Definition, 0, len(All))
	for _, s := range All {
		out = append(out, table[s].clone())
	}
	return out
}
