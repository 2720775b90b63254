// Package cli implements the seniorflow command-line interface.
//
// Commands are built with Cobra and share an [App] that carries the loaded
// configuration, the workflow state store, the optional forge provider and
// the output printer. Every dependency is an interface or a plain value so
// tests can construct an App directly and drive commands through
// [NewRootCommand] with SetArgs.
//
// Commands:
//   - start, submit, feedback, approve, sync: drive a feature through its stages
//   - resolve, rewind, abort: human decisions on escalated or flawed work
//   - status, plan, stages: read-only views
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"seniorflow/internal/config"
	"seniorflow/internal/forge"
	"seniorflow/internal/gate"
	"seniorflow/internal/lifecycle"
	"seniorflow/internal/output"
	"seniorflow/internal/state"
	"seniorflow/internal/workflow"
)

// StateReader loads persisted workflow instances.
type StateReader interface {
	Load(featureID string) (*workflow.Instance, error)
	List() ([]*workflow.Instance, error)
}

// StateWriter persists workflow instances.
type StateWriter interface {
	Save(inst *workflow.Instance) error
	Delete(featureID string) error
}

// App holds the dependencies shared by every command.
type App struct {
	Config  *config.Config
	Reader  StateReader
	Writer  StateWriter
	Printer *output.Printer

	// Provider is the change-set host. Nil when no forge is configured.
	Provider forge.Provider

	// Logger receives diagnostics. When nil, one is built from
	// Config.Log.Level before the command runs.
	Logger *zap.Logger

	// Verbose prints every workflow transition as it happens.
	Verbose bool
}

// NewApp wires an [App] from configuration: a file-backed state store, the
// configured forge (if any) and a printer on stdout.
func NewApp(cfg *config.Config) (*App, error) {
	if _, err := cfg.Policy(); err != nil {
		return nil, err
	}
	if err := gate.ValidatePatterns(cfg.TestPatterns); err != nil {
		return nil, err
	}

	provider, err := forge.New(cfg.Forge)
	if err != nil && !errors.Is(err, forge.ErrNoProvider) {
		return nil, err
	}

	return &App{
		Config:   cfg,
		Reader:   state.NewReaderWithPath("", cfg.State.Path),
		Writer:   state.NewWriterWithPath("", cfg.State.Path),
		Printer:  output.NewPrinterWithColor(os.Stdout, cfg.Output.Color),
		Provider: provider,
	}, nil
}

// NewRootCommand builds the command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "seniorflow",
		Short: "Quality-gated development workflow",
		Long: `seniorflow drives a feature through test stubs, architecture,
object design and implementation. Each stage is gated on a checklist and
must be approved before the next one starts; a stage that keeps bouncing
in review is escalated for a human decision.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.Logger != nil {
				return nil
			}
			logger, err := newLogger(app.Config.Log.Level, app.Verbose)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			app.Logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.Logger != nil {
				_ = app.Logger.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", app.Verbose, "print workflow transitions")

	rootCmd.AddCommand(
		newStartCommand(app),
		newSubmitCommand(app),
		newFeedbackCommand(app),
		newApproveCommand(app),
		newSyncCommand(app),
		newResolveCommand(app),
		newRewindCommand(app),
		newAbortCommand(app),
		newForgetCommand(app),
		newStatusCommand(app),
		newPlanCommand(app),
		newStagesCommand(app),
	)

	return rootCmd
}

// ExecuteResult is the outcome of [RunWithConfig].
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// Execute loads configuration, runs the command named by os.Args and exits
// the process with the resulting code.
func Execute() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(ExitFailure)
	}

	result := RunWithConfig(cfg)
	os.Exit(result.ExitCode)
}

// RunWithConfig runs the command named by os.Args with cfg and reports the
// exit code instead of exiting.
func RunWithConfig(cfg *config.Config) ExecuteResult {
	app, err := NewApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExecuteResult{ExitCode: ExitFailure, Err: err}
	}

	rootCmd := NewRootCommand(app)
	if err := rootCmd.Execute(); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		// Argument and flag errors from Cobra itself.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExecuteResult{ExitCode: ExitFailure, Err: err}
	}
	return ExecuteResult{ExitCode: ExitOK}
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if verbose && lvl > zapcore.DebugLevel {
		lvl = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// controller builds a lifecycle controller for one command. head overrides
// the change-set source branch when non-empty.
func (app *App) controller(head string) *lifecycle.Controller {
	c := lifecycle.NewController(workflow.NewManager(), gate.NewEvaluator())
	c.SetLogger(app.Logger)
	c.SetTestPatterns(app.Config.TestPatterns)
	if lp, ok := app.Provider.(interface{ SetLogger(*zap.Logger) }); ok {
		lp.SetLogger(app.Logger)
	}
	if app.Provider != nil {
		f := app.Config.Forge
		c.SetRequester(forge.NewRequester(app.Provider, forge.Defaults{
			Head:   head,
			Base:   f.BaseBranch,
			Labels: f.Labels,
			Draft:  f.Draft,
		}))
	}
	if app.Verbose {
		c.SetEventCallback(func(e lifecycle.Event) {
			app.Printer.Event(e.FeatureID, e.Transition)
		})
	}
	return c
}

// load fetches the instance for featureID.
func (app *App) load(featureID string) (*workflow.Instance, error) {
	inst, err := app.Reader.Load(featureID)
	if err != nil {
		return nil, app.fail(err)
	}
	return inst, nil
}

// persist saves inst after a mutating operation. Usage errors leave the
// instance untouched so nothing is written; escalations and gate failures
// still record state and are saved before opErr is reported.
func (app *App) persist(inst *workflow.Instance, opErr error) error {
	if opErr != nil && workflow.IsUsageError(opErr) {
		return app.fail(opErr)
	}
	if err := app.Writer.Save(inst); err != nil {
		return app.fail(err)
	}
	if opErr != nil {
		return app.fail(opErr)
	}
	return nil
}

// fail reports err and converts it to an [ExitError].
func (app *App) fail(err error) error {
	var esc *workflow.EscalationError
	var gateErr *gate.GateFailedError
	switch {
	case errors.As(err, &esc):
		app.Printer.Escalation(esc)
	case errors.As(err, &gateErr):
		// The gate result has already been printed.
	default:
		app.Printer.Error("%v", err)
	}
	return NewExitError(exitCodeFor(err))
}
