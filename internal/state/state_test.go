package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seniorflow/internal/gate"
	"seniorflow/internal/stage"
	"seniorflow/internal/workflow"
)

func newInstance(t *testing.T, feature string, c workflow.Complexity) *workflow.Instance {
	t.Helper()
	inst, err := workflow.NewManager().Create(feature, c, workflow.DefaultPolicy())
	require.NoError(t, err)
	return inst
}

func TestResolvePath(t *testing.T) {
	t.Run("default under base path", func(t *testing.T) {
		t.Setenv("SENIORFLOW_STATE_PATH", "")
		assert.Equal(t, filepath.Join("/proj", DefaultStatePath), ResolvePath("/proj", ""))
	})

	t.Run("explicit relative path", func(t *testing.T) {
		t.Setenv("SENIORFLOW_STATE_PATH", "")
		assert.Equal(t, filepath.Join("/proj", "state.yaml"), ResolvePath("/proj", "state.yaml"))
	})

	t.Run("explicit absolute path", func(t *testing.T) {
		t.Setenv("SENIORFLOW_STATE_PATH", "")
		assert.Equal(t, "/var/lib/sf.yaml", ResolvePath("/proj", "/var/lib/sf.yaml"))
	})

	t.Run("env var wins", func(t *testing.T) {
		t.Setenv("SENIORFLOW_STATE_PATH", "/tmp/env.yaml")
		assert.Equal(t, "/tmp/env.yaml", ResolvePath("/proj", "state.yaml"))
	})
}

func TestReader_Read_MissingFile(t *testing.T) {
	t.Setenv("SENIORFLOW_STATE_PATH", "")
	reader := NewReader(t.TempDir())

	f, err := reader.Read()

	require.NoError(t, err)
	assert.Equal(t, FormatVersion, f.Version)
	assert.Empty(t, f.Workflows)
}

func TestReader_Read_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workflows:\n  - not a map\n    missing: colon\n"), 0644))

	f, err := NewReaderWithPath("", path).Read()

	assert.Error(t, err)
	assert.Nil(t, f)
	assert.Contains(t, err.Error(), "failed to read workflow state")
}

func TestReader_Read_FutureVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 99\nworkflows: {}\n"), 0644))

	_, err := NewReaderWithPath("", path).Read()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported version 99")
}

func TestReader_Load_NotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")

	inst, err := NewReaderWithPath("", path).Load("rate-limiting")

	assert.Nil(t, inst)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "rate-limiting")
}

func TestWriter_Save_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")
	m := workflow.NewManager()
	inst := newInstance(t, "rate-limiting", workflow.ComplexityComplex)

	artifacts := gate.Artifacts{
		Files: []string{"limiter_test.go"},
		Tests: []gate.TestCase{{Name: "TestAllow", Category: gate.CategoryHappyPath}},
	}
	require.NoError(t, m.RecordSubmission(inst, artifacts))
	require.NoError(t, m.RecordFeedback(inst, []string{"cover the burst case"}))
	require.NoError(t, m.Advance(inst))
	require.NoError(t, m.RecordFeedback(inst, nil))

	require.NoError(t, NewWriterWithPath("", path).Save(inst))

	got, err := NewReaderWithPath("", path).Load("rate-limiting")
	require.NoError(t, err)

	assert.Equal(t, inst.ID, got.ID)
	assert.Equal(t, inst.Complexity, got.Complexity)
	assert.Equal(t, stage.PhaseOf(stage.Architecture), got.Phase)
	assert.Equal(t, 1, got.Iterations(stage.Architecture))
	assert.Equal(t, 0, got.Iterations(stage.TestStubs))
	assert.True(t, got.Record(stage.TestStubs).Approved())
	require.NotNil(t, got.Record(stage.TestStubs).Artifacts)
	assert.Equal(t, artifacts.Files, got.Record(stage.TestStubs).Artifacts.Files)
	assert.Equal(t, inst.Policy.IterationLimit, got.Policy.IterationLimit)
	assert.Len(t, got.History, len(inst.History))
	assert.True(t, inst.CreatedAt.Equal(got.CreatedAt))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "stage: test-stubs", "stages are stored by name")
}

func TestWriter_Save_ReplacesAndKeepsOthers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	w := NewWriterWithPath("", path)
	r := NewReaderWithPath("", path)

	a := newInstance(t, "typo-fix", workflow.ComplexitySimple)
	b := newInstance(t, "auth", workflow.ComplexityComplex)
	require.NoError(t, w.Save(a))
	require.NoError(t, w.Save(b))

	require.NoError(t, workflow.NewManager().Abort(a, "duplicate"))
	require.NoError(t, w.Save(a))

	list, err := r.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "auth", list[0].FeatureID, "sorted by feature")
	assert.Equal(t, "typo-fix", list[1].FeatureID)
	assert.Equal(t, stage.PhaseCancelled, list[1].Phase)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")
}

func TestWriter_Save_Invalid(t *testing.T) {
	w := NewWriterWithPath("", filepath.Join(t.TempDir(), "state.yaml"))

	err := w.Save(&workflow.Instance{})
	assert.True(t, errors.Is(err, workflow.ErrInvalidFeature))

	err = w.Save(nil)
	assert.True(t, errors.Is(err, workflow.ErrInvalidFeature))
}

func TestWriter_Delete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	w := NewWriterWithPath("", path)
	require.NoError(t, w.Save(newInstance(t, "auth", workflow.ComplexityComplex)))

	require.NoError(t, w.Delete("auth"))
	assert.True(t, errors.Is(w.Delete("auth"), ErrNotFound))

	list, err := NewReaderWithPath("", path).List()
	require.NoError(t, err)
	assert.Empty(t, list)
}
