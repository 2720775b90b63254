package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"seniorflow/internal/router"
	"seniorflow/internal/state"
	"seniorflow/internal/workflow"
)

func newStartCommand(app *App) *cobra.Command {
	var complexity string
	var force bool

	cmd := &cobra.Command{
		Use:   "start <feature>",
		Short: "Start a workflow for a feature",
		Long: `Start a workflow for the specified feature.

The complexity classification decides which stages run: complex features go
through test stubs, architecture, object design and implementation; simple
features skip the design stages unless the project policy requires them.

Use --force to replace an existing workflow for the same feature.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			featureID := args[0]

			c, err := workflow.ParseComplexity(complexity)
			if err != nil {
				return app.fail(err)
			}
			policy, err := app.Config.Policy()
			if err != nil {
				return app.fail(err)
			}

			if !force {
				_, err := app.Reader.Load(featureID)
				if err == nil {
					return app.fail(fmt.Errorf("%w: a workflow for %s already exists (use --force to replace it)", workflow.ErrInvalidFeature, featureID))
				}
				if !errors.Is(err, state.ErrNotFound) {
					return app.fail(err)
				}
			}

			inst, err := app.controller("").Start(featureID, c, policy)
			if err != nil {
				return app.fail(err)
			}
			if err := app.Writer.Save(inst); err != nil {
				return app.fail(err)
			}

			app.Printer.Success("Started %s workflow for %s", inst.Complexity, featureID)
			next, _ := router.NextAction(inst)
			app.Printer.Instance(inst, next)
			return nil
		},
	}

	cmd.Flags().StringVarP(&complexity, "complexity", "c", "", "feature classification: simple or complex")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing workflow")
	_ = cmd.MarkFlagRequired("complexity")

	return cmd
}
