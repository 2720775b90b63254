package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"seniorflow/internal/stage"
	"seniorflow/internal/workflow"
)

func newRewindCommand(app *App) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "rewind <feature> <stage>",
		Short: "Return to an earlier stage",
		Long: `Return the workflow to an earlier stage after a flaw was found in it.

The target stage and every stage after it must be approved again. Rewinding
also clears a pending escalation.

Stages: test-stubs, architecture, object-design, implementation.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := stage.Parse(args[1])
			if err != nil {
				return app.fail(err)
			}
			inst, err := app.load(args[0])
			if err != nil {
				return err
			}

			err = app.controller("").Rewind(cmd.Context(), inst, target, reason)
			if err == nil {
				app.Printer.Success("Rewound %s to %s", inst.FeatureID, stage.Title(target))
			}
			return app.persist(inst, err)
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "why the earlier stage is revisited")

	return cmd
}

func newAbortCommand(app *App) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "abort <feature>",
		Short: "Cancel a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := app.load(args[0])
			if err != nil {
				return err
			}

			err = app.controller("").Abort(cmd.Context(), inst, reason)
			if err == nil {
				app.Printer.Warn("Cancelled %s", inst.FeatureID)
			}
			return app.persist(inst, err)
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "why the workflow is cancelled")

	return cmd
}

func newForgetCommand(app *App) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "forget <feature>",
		Short: "Remove a finished workflow from the state file",
		Long: `Remove a workflow and its history from the state file.

Only complete or cancelled workflows can be forgotten unless --force is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := app.load(args[0])
			if err != nil {
				return err
			}
			if !inst.IsTerminal() && !force {
				return app.fail(fmt.Errorf("%w: %s is still at %s, abort it first or pass --force",
					workflow.ErrImpossibleTransition, inst.FeatureID, inst.Phase))
			}

			if err := app.Writer.Delete(inst.FeatureID); err != nil {
				return app.fail(err)
			}
			app.Printer.Info("Forgot %s", inst.FeatureID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "remove the workflow even if it is still active")

	return cmd
}

// printAdvanced reports an approval of from and where the workflow is now.
func (app *App) printAdvanced(featureID string, from stage.Stage, inst *workflow.Instance) {
	if inst.Phase == stage.PhaseComplete {
		app.Printer.Success("Approved %s, %s is complete", stage.Title(from), featureID)
		return
	}
	cur, _ := inst.Current()
	app.Printer.Success("Approved %s, %s is now at %s", stage.Title(from), featureID, stage.Title(cur))
}
