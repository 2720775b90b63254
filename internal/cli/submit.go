package cli

import (
	"github.com/spf13/cobra"

	"seniorflow/internal/gate"
	"seniorflow/internal/lifecycle"
	"seniorflow/internal/testrun"
)

func newSubmitCommand(app *App) *cobra.Command {
	var artifactsPath string
	var testJSONPath string
	var head string
	var openPR bool

	cmd := &cobra.Command{
		Use:   "submit <feature>",
		Short: "Submit artifacts for the current stage",
		Long: `Submit artifacts for the current stage and evaluate its quality gate.

The artifacts file is YAML (or JSON) describing the files, tests, test run,
analysis and design outputs of the submission. A failing gate lists the
unmet checklist items and exits with status 2.

With --test-json the test run is read from saved 'go test -json' output
instead of the artifacts file.

With --open-pr a change-set is opened on the configured forge once the gate
passes. Its approval can later be picked up with the sync command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := app.load(args[0])
			if err != nil {
				return err
			}

			artifacts, err := gate.LoadArtifacts(artifactsPath)
			if err != nil {
				return app.fail(err)
			}
			if testJSONPath != "" {
				report, err := testrun.LoadReport(testJSONPath)
				if err != nil {
					return app.fail(err)
				}
				artifacts.TestRun = &report
			}

			if openPR && app.Provider == nil {
				app.Printer.Warn("No forge configured, not opening a change-set")
				openPR = false
			}

			var open bool
			if cur, ok := inst.Current(); ok {
				if rec := inst.Record(cur); rec != nil {
					open = rec.ChangeSet != nil
				}
			}

			c := app.controller(head)
			res, err := c.Submit(cmd.Context(), inst, artifacts, lifecycle.SubmitOptions{OpenChangeSet: openPR})
			if res.Kind != "" {
				app.Printer.GateResult(res)
			}
			if err == nil && openPR {
				if rec := inst.Record(res.Stage); rec != nil && rec.ChangeSet != nil {
					if open {
						app.Printer.Info("Change-set #%d %s is already open for this stage", rec.ChangeSet.Number, rec.ChangeSet.URL)
					} else {
						app.Printer.Info("Opened change-set #%d %s", rec.ChangeSet.Number, rec.ChangeSet.URL)
					}
				}
			}
			return app.persist(inst, err)
		},
	}

	cmd.Flags().StringVarP(&artifactsPath, "artifacts", "a", "", "path to the artifacts file")
	cmd.Flags().StringVar(&testJSONPath, "test-json", "", "path to saved 'go test -json' output")
	cmd.Flags().BoolVar(&openPR, "open-pr", false, "open a change-set when the gate passes")
	cmd.Flags().StringVar(&head, "head", "", "change-set source branch (default: the feature name)")
	_ = cmd.MarkFlagRequired("artifacts")

	return cmd
}
