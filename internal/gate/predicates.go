package gate

import (
	"strings"

	"seniorflow/internal/stage"
)

var defaultPredicates = map[stage.ConditionID]Predicate{
	stage.CondTestsListed:         testsListed,
	stage.CondCategoriesCovered:   categoriesCovered,
	stage.CondTestsFailClearly:    testsFailClearly,
	stage.CondNoImplementation:    noImplementation,
	stage.CondDesignDocPresent:    designDocPresent,
	stage.CondDiagramPresent:      diagramPresent,
	stage.CondComponentsDescribed: componentsDescribed,
	stage.CondInterfacesDefined:   interfacesDefined,
	stage.CondTypecheckClean:      typecheckClean,
	stage.CondMethodsStubbed:      noImplementation,
	stage.CondTestsPass:           testsPass,
	stage.CondLintClean:           lintClean,
	stage.CondTestsUnmodified:     testsUnmodified,
}

func testsListed(a Artifacts) bool {
	return len(a.Tests) > 0
}

func categoriesCovered(a Artifacts) bool {
	seen := make(map[string]bool, len(a.Tests))
	for _, tc := range a.Tests {
		seen[strings.ToLower(strings.TrimSpace(tc.Category))] = true
	}
	for _, c := range RequiredCategories {
		if !seen[c] {
			return false
		}
	}
	return true
}

// Stubs must all run and all fail, each with a message.
func testsFailClearly(a Artifacts) bool {
	r := a.TestRun
	if r == nil || r.Total == 0 {
		return false
	}
	return r.Failed == r.Total && r.Passed == 0 && r.Unclear == 0
}

func noImplementation(a Artifacts) bool {
	return a.ImplementedMethods == 0
}

func designDocPresent(a Artifacts) bool {
	return strings.TrimSpace(a.DesignDoc) != ""
}

func diagramPresent(a Artifacts) bool {
	return len(a.Diagrams) > 0
}

func componentsDescribed(a Artifacts) bool {
	return len(a.Components) > 0
}

func interfacesDefined(a Artifacts) bool {
	return len(a.Interfaces) > 0
}

func typecheckClean(a Artifacts) bool {
	return a.Analysis != nil && a.Analysis.Errors == 0
}

func testsPass(a Artifacts) bool {
	r := a.TestRun
	if r == nil || r.Total == 0 {
		return false
	}
	return r.Passed == r.Total && r.Failed == 0
}

func lintClean(a Artifacts) bool {
	return a.Analysis != nil && a.Analysis.Warnings == 0
}

func testsUnmodified(a Artifacts) bool {
	return len(a.ModifiedTests) == 0
}
