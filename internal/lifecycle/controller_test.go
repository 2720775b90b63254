package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"seniorflow/internal/gate"
	"seniorflow/internal/stage"
	"seniorflow/internal/workflow"
)

// mockRequester records change-set requests and answers approval checks.
type mockRequester struct {
	requested []string
	approved  bool
	openErr   error
	checkErr  error
}

func (m *mockRequester) RequestChangeSet(ctx context.Context, inst *workflow.Instance) (workflow.ChangeSetRef, error) {
	if m.openErr != nil {
		return workflow.ChangeSetRef{}, m.openErr
	}
	m.requested = append(m.requested, string(inst.Phase))
	n := len(m.requested)
	return workflow.ChangeSetRef{Number: n, URL: "https://example.com/pr"}, nil
}

func (m *mockRequester) IsApproved(ctx context.Context, ref workflow.ChangeSetRef) (bool, error) {
	return m.approved, m.checkErr
}

// passing returns artifacts that satisfy the checklist of s.
func passing(s stage.Stage) gate.Artifacts {
	switch s {
	case stage.TestStubs:
		return gate.Artifacts{
			Tests: []gate.TestCase{
				{Name: "TestAllow", Category: gate.CategoryHappyPath},
				{Name: "TestBurst", Category: gate.CategoryEdgeCase},
				{Name: "TestBadConfig", Category: gate.CategoryError},
			},
			TestRun: &gate.TestReport{Total: 3, Failed: 3},
		}
	case stage.Architecture:
		return gate.Artifacts{
			DesignDoc:  "docs/limiter.md",
			Diagrams:   []string{"flowchart LR; client-->limiter"},
			Components: []string{"Limiter: admits requests"},
		}
	case stage.ObjectDesign:
		return gate.Artifacts{
			Interfaces: []string{"type Limiter interface"},
			Analysis:   &gate.AnalysisReport{},
		}
	default:
		return gate.Artifacts{
			TestRun:  &gate.TestReport{Total: 3, Passed: 3},
			Analysis: &gate.AnalysisReport{},
		}
	}
}

func newController(t *testing.T) (*Controller, *[]Event, *observer.ObservedLogs) {
	t.Helper()
	c := NewController(workflow.NewManager(), gate.NewEvaluator())

	var events []Event
	c.SetEventCallback(func(e Event) { events = append(events, e) })

	core, logs := observer.New(zapcore.DebugLevel)
	c.SetLogger(zap.New(core))
	return c, &events, logs
}

func start(t *testing.T, c *Controller, feature string, cx workflow.Complexity) *workflow.Instance {
	t.Helper()
	inst, err := c.Start(feature, cx, workflow.DefaultPolicy())
	require.NoError(t, err)
	return inst
}

func TestController_FullPipeline(t *testing.T) {
	for _, cx := range []workflow.Complexity{workflow.ComplexityComplex, workflow.ComplexitySimple} {
		t.Run(string(cx), func(t *testing.T) {
			c, _, _ := newController(t)
			ctx := context.Background()
			inst := start(t, c, "rate-limiting", cx)

			visited := []stage.Stage{}
			for !inst.IsTerminal() {
				cur, _ := inst.Current()
				visited = append(visited, cur)

				res, err := c.Submit(ctx, inst, passing(cur), SubmitOptions{})
				require.NoError(t, err, "stage %s", cur)
				assert.True(t, res.Passed())
				require.NoError(t, c.Approve(ctx, inst))
			}

			assert.Equal(t, stage.PhaseComplete, inst.Phase)
			assert.Equal(t, inst.ActiveStages(), visited)
		})
	}
}

func TestController_Submit_GateFailure(t *testing.T) {
	c, events, logs := newController(t)
	ctx := context.Background()
	inst := start(t, c, "rate-limiting", workflow.ComplexityComplex)

	a := passing(stage.TestStubs)
	a.TestRun = &gate.TestReport{Total: 3, Passed: 1, Failed: 2}

	res, err := c.Submit(ctx, inst, a, SubmitOptions{OpenChangeSet: true})

	require.Error(t, err)
	assert.True(t, errors.Is(err, gate.ErrGateFailed))
	var gf *gate.GateFailedError
	require.True(t, errors.As(err, &gf))
	assert.Equal(t, []stage.ConditionID{stage.CondTestsFailClearly}, res.UnmetIDs())

	assert.Equal(t, stage.PhaseOf(stage.TestStubs), inst.Phase, "stage unchanged")
	assert.Equal(t, 0, inst.Iterations(stage.TestStubs), "iterations unchanged")
	assert.Equal(t, []stage.ConditionID{stage.CondTestsFailClearly}, inst.Record(stage.TestStubs).Unmet)

	var types []workflow.EventType
	for _, e := range *events {
		types = append(types, e.Event)
	}
	assert.Equal(t, []workflow.EventType{workflow.EventCreated, workflow.EventSubmitted, workflow.EventGate}, types)
	assert.Equal(t, 1, logs.FilterMessage("gate failed").Len())

	err = c.Approve(ctx, inst)
	assert.True(t, errors.Is(err, workflow.ErrImpossibleTransition), "cannot approve a failed gate")
}

func TestController_Approve_RequiresSubmission(t *testing.T) {
	c, _, _ := newController(t)
	inst := start(t, c, "rate-limiting", workflow.ComplexityComplex)

	err := c.Approve(context.Background(), inst)
	assert.True(t, errors.Is(err, workflow.ErrImpossibleTransition))
	assert.Equal(t, stage.PhaseOf(stage.TestStubs), inst.Phase)
}

func TestController_FeedbackInvalidatesGate(t *testing.T) {
	c, _, _ := newController(t)
	ctx := context.Background()
	inst := start(t, c, "rate-limiting", workflow.ComplexityComplex)

	_, err := c.Submit(ctx, inst, passing(stage.TestStubs), SubmitOptions{})
	require.NoError(t, err)
	require.NoError(t, c.Feedback(ctx, inst, []string{"split TestBurst"}))

	assert.Equal(t, 1, inst.Iterations(stage.TestStubs))
	assert.True(t, errors.Is(c.Approve(ctx, inst), workflow.ErrImpossibleTransition))

	_, err = c.Submit(ctx, inst, passing(stage.TestStubs), SubmitOptions{})
	require.NoError(t, err)
	require.NoError(t, c.Approve(ctx, inst))
	assert.Equal(t, 0, inst.Iterations(stage.TestStubs), "resets on advance")
}

func TestController_Escalation(t *testing.T) {
	c, events, logs := newController(t)
	ctx := context.Background()
	inst := start(t, c, "rate-limiting", workflow.ComplexityComplex)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Feedback(ctx, inst, nil))
	}
	err := c.Feedback(ctx, inst, []string{"still no error-path test"})
	require.True(t, errors.Is(err, workflow.ErrEscalationRequired))
	assert.Equal(t, 1, logs.FilterMessage("escalation required").Len())
	assert.Equal(t, workflow.EventEscalated, (*events)[len(*events)-1].Event)

	_, err = c.Submit(ctx, inst, passing(stage.TestStubs), SubmitOptions{})
	assert.True(t, errors.Is(err, workflow.ErrEscalationRequired), "submissions blocked while escalated")
	assert.Nil(t, inst.Record(stage.TestStubs).Artifacts, "nothing recorded")

	assert.True(t, errors.Is(c.Approve(ctx, inst), workflow.ErrEscalationRequired))

	require.NoError(t, c.Resolve(ctx, inst, 1))
	_, err = c.Submit(ctx, inst, passing(stage.TestStubs), SubmitOptions{})
	require.NoError(t, err)
	require.NoError(t, c.Approve(ctx, inst))
	assert.Equal(t, stage.PhaseOf(stage.Architecture), inst.Phase)
}

func TestController_ChangeSetAndSync(t *testing.T) {
	c, events, _ := newController(t)
	ctx := context.Background()
	req := &mockRequester{}
	c.SetRequester(req)
	inst := start(t, c, "rate-limiting", workflow.ComplexityComplex)

	_, err := c.Submit(ctx, inst, passing(stage.TestStubs), SubmitOptions{OpenChangeSet: true})
	require.NoError(t, err)
	require.Len(t, req.requested, 1)
	require.NotNil(t, inst.Record(stage.TestStubs).ChangeSet)
	assert.Equal(t, workflow.EventChangeSet, (*events)[len(*events)-1].Event)

	advanced, err := c.Sync(ctx, inst)
	require.NoError(t, err)
	assert.False(t, advanced, "awaiting approval")
	assert.Equal(t, stage.PhaseOf(stage.TestStubs), inst.Phase)

	req.approved = true
	advanced, err = c.Sync(ctx, inst)
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, stage.PhaseOf(stage.Architecture), inst.Phase)

	_, err = c.Sync(ctx, inst)
	assert.True(t, errors.Is(err, ErrNoChangeSet), "architecture has no change-set yet")
}

func TestController_Rewind_DropsMergedChangeSet(t *testing.T) {
	c, _, _ := newController(t)
	ctx := context.Background()
	req := &mockRequester{approved: true}
	c.SetRequester(req)
	inst := start(t, c, "rate-limiting", workflow.ComplexityComplex)

	for _, s := range []stage.Stage{stage.TestStubs, stage.Architecture} {
		_, err := c.Submit(ctx, inst, passing(s), SubmitOptions{OpenChangeSet: true})
		require.NoError(t, err)
		advanced, err := c.Sync(ctx, inst)
		require.NoError(t, err)
		require.True(t, advanced)
	}
	require.Equal(t, stage.PhaseOf(stage.ObjectDesign), inst.Phase)

	require.NoError(t, c.Rewind(ctx, inst, stage.Architecture, "missing cache component"))
	assert.Nil(t, inst.Record(stage.Architecture).ChangeSet)

	_, err := c.Submit(ctx, inst, passing(stage.Architecture), SubmitOptions{})
	require.NoError(t, err)

	_, err = c.Sync(ctx, inst)
	assert.True(t, errors.Is(err, ErrNoChangeSet))
	assert.Equal(t, stage.PhaseOf(stage.Architecture), inst.Phase, "redo needs a new review")

	_, err = c.Submit(ctx, inst, passing(stage.Architecture), SubmitOptions{OpenChangeSet: true})
	require.NoError(t, err)
	assert.Len(t, req.requested, 3, "a fresh change-set is opened for the redo")
}

func TestController_Submit_ReusesOpenChangeSet(t *testing.T) {
	c, _, logs := newController(t)
	ctx := context.Background()
	req := &mockRequester{}
	c.SetRequester(req)
	inst := start(t, c, "rate-limiting", workflow.ComplexityComplex)

	_, err := c.Submit(ctx, inst, passing(stage.TestStubs), SubmitOptions{OpenChangeSet: true})
	require.NoError(t, err)
	require.NoError(t, c.Feedback(ctx, inst, []string{"name the burst test"}))

	res, err := c.Submit(ctx, inst, passing(stage.TestStubs), SubmitOptions{OpenChangeSet: true})

	require.NoError(t, err)
	assert.True(t, res.Passed())
	assert.Len(t, req.requested, 1, "no second change-set from the same branch")
	assert.Equal(t, 1, inst.Record(stage.TestStubs).ChangeSet.Number)
	assert.Equal(t, 1, logs.FilterMessage("change-set already open").Len())
}

func TestController_Sync_Errors(t *testing.T) {
	c, _, _ := newController(t)
	ctx := context.Background()
	inst := start(t, c, "rate-limiting", workflow.ComplexityComplex)

	_, err := c.Sync(ctx, inst)
	assert.True(t, errors.Is(err, ErrNoChangeSet), "no requester configured")

	boom := errors.New("api down")
	req := &mockRequester{checkErr: boom}
	c.SetRequester(req)
	_, err = c.Submit(ctx, inst, passing(stage.TestStubs), SubmitOptions{OpenChangeSet: true})
	require.NoError(t, err)

	_, err = c.Sync(ctx, inst)
	assert.True(t, errors.Is(err, boom))
}

func TestController_Submit_ChangeSetFailure(t *testing.T) {
	c, _, _ := newController(t)
	boom := errors.New("no push access")
	c.SetRequester(&mockRequester{openErr: boom})
	inst := start(t, c, "rate-limiting", workflow.ComplexityComplex)

	res, err := c.Submit(context.Background(), inst, passing(stage.TestStubs), SubmitOptions{OpenChangeSet: true})

	assert.True(t, errors.Is(err, boom))
	assert.True(t, res.Passed())
	assert.True(t, inst.Record(stage.TestStubs).GatePassed, "gate outcome kept")
	assert.Nil(t, inst.Record(stage.TestStubs).ChangeSet)
}

func TestController_Submit_WithoutOpenChangeSet(t *testing.T) {
	c, _, _ := newController(t)
	req := &mockRequester{}
	c.SetRequester(req)
	inst := start(t, c, "rate-limiting", workflow.ComplexityComplex)

	_, err := c.Submit(context.Background(), inst, passing(stage.TestStubs), SubmitOptions{})
	require.NoError(t, err)
	assert.Empty(t, req.requested)
}

func TestController_RewindAndAbort(t *testing.T) {
	c, events, _ := newController(t)
	ctx := context.Background()
	inst := start(t, c, "rate-limiting", workflow.ComplexityComplex)

	for _, s := range []stage.Stage{stage.TestStubs, stage.Architecture} {
		_, err := c.Submit(ctx, inst, passing(s), SubmitOptions{})
		require.NoError(t, err)
		require.NoError(t, c.Approve(ctx, inst))
	}

	require.NoError(t, c.Rewind(ctx, inst, stage.Architecture, "missing cache component"))
	assert.Equal(t, stage.PhaseOf(stage.Architecture), inst.Phase)
	assert.Equal(t, workflow.EventRewound, (*events)[len(*events)-1].Event)

	err := c.Rewind(ctx, inst, stage.Implementation, "")
	assert.True(t, errors.Is(err, workflow.ErrImpossibleTransition))

	require.NoError(t, c.Abort(ctx, inst, "descoped"))
	assert.Equal(t, stage.PhaseCancelled, inst.Phase)

	_, err = c.Submit(ctx, inst, passing(stage.Architecture), SubmitOptions{})
	assert.True(t, errors.Is(err, workflow.ErrAlreadyTerminal))
	assert.True(t, errors.Is(c.Approve(ctx, inst), workflow.ErrAlreadyTerminal))
	assert.True(t, errors.Is(c.Abort(ctx, inst, ""), workflow.ErrAlreadyTerminal))
}

func TestController_Start_InvalidComplexity(t *testing.T) {
	c, events, _ := newController(t)

	_, err := c.Start("rate-limiting", workflow.Complexity("medium"), workflow.DefaultPolicy())

	assert.True(t, errors.Is(err, workflow.ErrInvalidComplexity))
	assert.Empty(t, *events)
}

func TestController_NilLogger(t *testing.T) {
	c := NewController(workflow.NewManager(), gate.NewEvaluator())
	c.SetLogger(nil)

	inst, err := c.Start("x", workflow.ComplexitySimple, workflow.DefaultPolicy())
	require.NoError(t, err)
	_, err = c.Submit(context.Background(), inst, gate.Artifacts{}, SubmitOptions{})
	assert.Error(t, err)
}

func TestController_Submit_FlagsTouchedTests(t *testing.T) {
	c, _, logs := newController(t)
	ctx := context.Background()
	inst := start(t, c, "rate-limiting", workflow.ComplexitySimple)

	stubs := passing(stage.TestStubs)
	stubs.Files = []string{"limiter/limiter_test.go", "limiter/testdata/cases.json"}
	_, err := c.Submit(ctx, inst, stubs, SubmitOptions{})
	require.NoError(t, err)
	require.NoError(t, c.Approve(ctx, inst))

	impl := passing(stage.Implementation)
	impl.Files = []string{"limiter/limiter.go", "limiter/limiter_test.go", "limiter/testdata/cases.json"}

	res, err := c.Submit(ctx, inst, impl, SubmitOptions{})

	require.Error(t, err)
	assert.Equal(t, []stage.ConditionID{stage.CondTestsUnmodified}, res.UnmetIDs())
	assert.Equal(t, []string{"limiter/limiter_test.go"}, inst.Record(stage.Implementation).Artifacts.ModifiedTests)
	assert.Nil(t, impl.ModifiedTests, "caller's artifacts are not modified")
	assert.Equal(t, 1, logs.FilterMessage("approved tests modified").Len())

	t.Run("custom patterns", func(t *testing.T) {
		c.SetTestPatterns([]string{"**/*_test.go", "**/testdata/**"})

		_, err := c.Submit(ctx, inst, impl, SubmitOptions{})

		require.Error(t, err)
		assert.Equal(t, []string{"limiter/limiter_test.go", "limiter/testdata/cases.json"},
			inst.Record(stage.Implementation).Artifacts.ModifiedTests)
	})

	t.Run("untouched tests pass", func(t *testing.T) {
		c.SetTestPatterns(nil)
		impl := passing(stage.Implementation)
		impl.Files = []string{"limiter/limiter.go", "limiter/extra_test.go"}

		res, err := c.Submit(ctx, inst, impl, SubmitOptions{})

		require.NoError(t, err)
		assert.True(t, res.Passed())
	})

	t.Run("invalid pattern", func(t *testing.T) {
		c.SetTestPatterns([]string{"{unclosed"})
		defer c.SetTestPatterns(nil)

		_, err := c.Submit(ctx, inst, impl, SubmitOptions{})

		assert.ErrorContains(t, err, "invalid test pattern")
	})
}
