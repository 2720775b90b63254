package stage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestStage_String(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{TestStubs, "test-stubs"},
		{Architecture, "architecture"},
		{ObjectDesign, "object-design"},
		{Implementation, "implementation"},
		{Stage(0), "stage(0)"},
		{Stage(9), "stage(9)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.stage.String())
		})
	}
}

func TestStage_OrderAndNext(t *testing.T) {
	for i, s := range All {
		assert.Equal(t, i+1, s.Index())
	}

	next, ok := TestStubs.Next()
	assert.True(t, ok)
	assert.Equal(t, Architecture, next)

	next, ok = ObjectDesign.Next()
	assert.True(t, ok)
	assert.Equal(t, Implementation, next)

	_, ok = Implementation.Next()
	assert.False(t, ok, "nothing follows implementation")

	_, ok = Stage(0).Next()
	assert.False(t, ok)
}

func TestStage_Skippable(t *testing.T) {
	assert.False(t, TestStubs.Skippable())
	assert.True(t, Architecture.Skippable())
	assert.True(t, ObjectDesign.Skippable())
	assert.False(t, Implementation.Skippable())
}

func TestParse(t *testing.T) {
	for _, s := range All {
		parsed, err := Parse(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := Parse("deploy")
	assert.True(t, errors.Is(err, ErrUnknownStage))
	assert.Contains(t, err.Error(), `"deploy"`)
}

func TestStage_YAMLByName(t *testing.T) {
	type wrapper struct {
		Current Stage `yaml:"current"`
	}

	data, err := yaml.Marshal(wrapper{Current: ObjectDesign})
	require.NoError(t, err)
	assert.Contains(t, string(data), "current: object-design")

	var out wrapper
	require.NoError(t, yaml.Unmarshal([]byte("current: implementation\n"), &out))
	assert.Equal(t, Implementation, out.Current)

	err = yaml.Unmarshal([]byte("current: shipping\n"), &out)
	assert.Error(t, err)
}

func TestPhase(t *testing.T) {
	assert.True(t, PhaseComplete.IsTerminal())
	assert.True(t, PhaseCancelled.IsTerminal())
	assert.False(t, PhaseOf(Implementation).IsTerminal())

	s, ok := PhaseOf(Architecture).Stage()
	assert.True(t, ok)
	assert.Equal(t, Architecture, s)

	_, ok = PhaseComplete.Stage()
	assert.False(t, ok)
}

func TestConditionsFor(t *testing.T) {
	tests := []struct {
		stage Stage
		want  []ConditionID
	}{
		{TestStubs, []ConditionID{CondTestsListed, CondCategoriesCovered, CondTestsFailClearly, CondNoImplementation}},
		{Architecture, []ConditionID{CondDesignDocPresent, CondDiagramPresent, CondComponentsDescribed, CondNoImplementation}},
		{ObjectDesign, []ConditionID{CondInterfacesDefined, CondTypecheckClean, CondMethodsStubbed}},
		{Implementation, []ConditionID{CondTestsPass, CondTypecheckClean, CondLintClean, CondTestsUnmodified}},
	}

	for _, tt := range tests {
		t.Run(tt.stage.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ConditionsFor(tt.stage))
		})
	}

	assert.Nil(t, ConditionsFor(Stage(0)))
}

func TestConditionsFor_ReturnsCopy(t *testing.T) {
	conds := ConditionsFor(TestStubs)
	conds[0] = "tampered"

	assert.Equal(t, CondTestsListed, ConditionsFor(TestStubs)[0])
}

func TestLookup(t *testing.T) {
	def, ok := Lookup(Architecture)
	require.True(t, ok)
	assert.Equal(t, "Architecture", def.Title)
	assert.NotEmpty(t, def.Artifacts)

	def.Checklist[0] = "tampered"
	assert.Equal(t, CondDesignDocPresent, ConditionsFor(Architecture)[0])

	_, ok = Lookup(Stage(42))
	assert.False(t, ok)
}

func TestConditionID_Description(t *testing.T) {
	for _, s := range All {
		for _, c := range ConditionsFor(s) {
			assert.NotEqual(t, string(c), c.Description(), "condition %s needs a checklist line", c)
		}
	}

	assert.Equal(t, "custom-check", ConditionID("custom-check").Description())
}

func TestRequiredArtifactsAndTitle(t *testing.T) {
	for _, s := range All {
		assert.NotEmpty(t, RequiredArtifacts(s))
		assert.NotEmpty(t, Title(s))
	}
	assert.Nil(t, RequiredArtifacts(Stage(0)))
	assert.Equal(t, "Object Design", Title(ObjectDesign))
}
