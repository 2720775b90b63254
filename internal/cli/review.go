package cli

import (
	"github.com/spf13/cobra"

	"seniorflow/internal/stage"
)

func newFeedbackCommand(app *App) *cobra.Command {
	var issues []string

	cmd := &cobra.Command{
		Use:   "feedback <feature>",
		Short: "Record review feedback on the current stage",
		Long: `Record a round of review feedback on the current stage.

Each round counts against the stage's iteration limit and invalidates the
last gate result, so the stage must be resubmitted. When the limit is
exceeded the workflow is escalated and the command exits with status 3.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := app.load(args[0])
			if err != nil {
				return err
			}

			err = app.controller("").Feedback(cmd.Context(), inst, issues)
			if err == nil {
				cur, _ := inst.Current()
				app.Printer.Info("Recorded feedback on %s (round %d/%d)", stage.Title(cur), inst.Iterations(cur), inst.Limit(cur))
			}
			return app.persist(inst, err)
		},
	}

	cmd.Flags().StringArrayVarP(&issues, "issue", "i", nil, "unresolved review issue (repeatable)")

	return cmd
}

func newApproveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <feature>",
		Short: "Approve the current stage",
		Long: `Approve the current stage and advance to the next one.

The stage's latest submission must have passed its quality gate.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := app.load(args[0])
			if err != nil {
				return err
			}

			cur, _ := inst.Current()
			err = app.controller("").Approve(cmd.Context(), inst)
			if err == nil {
				app.printAdvanced(inst.FeatureID, cur, inst)
			}
			return app.persist(inst, err)
		},
	}
}

func newSyncCommand(app *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "sync [feature]",
		Short: "Pick up approval from the stage's change-set",
		Long: `Check the change-set opened for the current stage on the configured forge.

If it was approved (or merged) the stage is approved and the workflow
advances. Otherwise the workflow is left unchanged.

With --all every active workflow with an open change-set is checked.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				return app.syncAll(cmd.Context())
			}

			inst, err := app.load(args[0])
			if err != nil {
				return err
			}

			cur, _ := inst.Current()
			advanced, err := app.controller("").Sync(cmd.Context(), inst)
			if err != nil {
				return app.persist(inst, err)
			}
			if !advanced {
				rec := inst.Record(cur)
				app.Printer.Info("Change-set #%d for %s is awaiting approval", rec.ChangeSet.Number, stage.Title(cur))
				return nil
			}
			app.printAdvanced(inst.FeatureID, cur, inst)
			return app.persist(inst, nil)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "check every workflow with an open change-set")

	return cmd
}

func newResolveCommand(app *App) *cobra.Command {
	var extend int

	cmd := &cobra.Command{
		Use:   "resolve <feature>",
		Short: "Grant more revision rounds to an escalated stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := app.load(args[0])
			if err != nil {
				return err
			}

			err = app.controller("").Resolve(cmd.Context(), inst, extend)
			if err == nil {
				cur, _ := inst.Current()
				app.Printer.Success("Granted %d more round(s) on %s (limit now %d)", extend, stage.Title(cur), inst.Limit(cur))
			}
			return app.persist(inst, err)
		},
	}

	cmd.Flags().IntVar(&extend, "extend", 1, "number of extra revision rounds")

	return cmd
}
