package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"seniorflow/internal/router"
	"seniorflow/internal/stage"
)

func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status [feature]",
		Short: "Show workflow status",
		Long: `Show the status of one workflow, or a summary of all workflows when no
feature is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				insts, err := app.Reader.List()
				if err != nil {
					return app.fail(err)
				}
				app.Printer.StatusTable(insts)
				return nil
			}

			inst, err := app.load(args[0])
			if err != nil {
				return err
			}
			// Terminal instances have no next action.
			next, _ := router.NextAction(inst)
			app.Printer.Instance(inst, next)
			return nil
		},
	}
}

func newPlanCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <feature>",
		Short: "Show the remaining stages of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := app.load(args[0])
			if err != nil {
				return err
			}

			steps, err := router.Plan(inst)
			if errors.Is(err, router.ErrWorkflowComplete) || errors.Is(err, router.ErrWorkflowCancelled) {
				app.Printer.Info("%s is %s, nothing left to do", inst.FeatureID, inst.Phase)
				return nil
			}
			if err != nil {
				return app.fail(err)
			}
			app.Printer.Plan(inst.FeatureID, steps)
			return nil
		},
	}
}

func newStagesCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List the pipeline stages and their checklists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Printer.Stages(stage.Definitions())
			return nil
		},
	}
}
