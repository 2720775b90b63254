package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"seniorflow/internal/config"
	"seniorflow/internal/output"
	"seniorflow/internal/state"
	"seniorflow/internal/workflow"
)

// Artifacts files that pass each stage's gate.
const (
	testStubsArtifacts = `description: Stubs for the token bucket limiter
files: [limiter/limiter_test.go]
tests:
  - name: TestAllow_UnderLimit
    category: happy-path
  - name: TestAllow_BurstAtCapacity
    category: edge-case
  - name: TestNew_InvalidRate
    category: error
test_run:
  total: 3
  failed: 3
`
	architectureArtifacts = `design_doc: docs/limiter.md
diagrams:
  - "flowchart LR; client-->limiter"
components:
  - "Limiter: admits or rejects requests"
`
	objectDesignArtifacts = `interfaces:
  - type Limiter interface
analysis:
  errors: 0
  warnings: 0
`
	implementationArtifacts = `description: Token bucket limiter
files: [limiter/limiter.go]
test_run:
  total: 3
  passed: 3
analysis:
  errors: 0
  warnings: 0
`
	emptyArtifacts = "description: nothing yet\n"
)

// MockStateWriter records saves and deletes and can be made to fail.
type MockStateWriter struct {
	// Saved records a copy of every saved instance in order.
	Saved []*workflow.Instance
	// Deleted records every deleted feature ID in order.
	Deleted []string
	// Err is returned from every Save and Delete when set.
	Err error
}

func (m *MockStateWriter) Save(inst *workflow.Instance) error {
	if m.Err != nil {
		return m.Err
	}
	m.Saved = append(m.Saved, inst.Clone())
	return nil
}

func (m *MockStateWriter) Delete(featureID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Deleted = append(m.Deleted, featureID)
	return nil
}

// testEnv is an App backed by a state file in a temp directory.
type testEnv struct {
	t   *testing.T
	app *App
	out *bytes.Buffer
	dir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("SENIORFLOW_STATE_PATH", "")

	dir := t.TempDir()
	statePath := filepath.Join(dir, "workflows.yaml")
	buf := &bytes.Buffer{}

	app := &App{
		Config:  config.DefaultConfig(),
		Reader:  state.NewReaderWithPath(dir, statePath),
		Writer:  state.NewWriterWithPath(dir, statePath),
		Printer: output.NewPrinterWithWriter(buf),
		Logger:  zap.NewNop(),
	}
	return &testEnv{t: t, app: app, out: buf, dir: dir}
}

// run executes one command line against the env's App.
func (e *testEnv) run(args ...string) error {
	e.t.Helper()
	rootCmd := NewRootCommand(e.app)
	cmdOut := &bytes.Buffer{}
	rootCmd.SetOut(cmdOut)
	rootCmd.SetErr(cmdOut)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// mustRun executes a command line that is expected to succeed.
func (e *testEnv) mustRun(args ...string) {
	e.t.Helper()
	if err := e.run(args...); err != nil {
		e.t.Fatalf("%v: unexpected error %v\noutput:\n%s", args, err, e.out.String())
	}
}

// instance loads the persisted instance for featureID.
func (e *testEnv) instance(featureID string) *workflow.Instance {
	e.t.Helper()
	inst, err := e.app.Reader.Load(featureID)
	if err != nil {
		e.t.Fatalf("Load(%q): %v", featureID, err)
	}
	return inst
}

// artifacts writes content to a file in the env's directory and returns its path.
func (e *testEnv) artifacts(name, content string) string {
	e.t.Helper()
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		e.t.Fatalf("write artifacts: %v", err)
	}
	return path
}
