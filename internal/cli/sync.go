package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"seniorflow/internal/stage"
	"seniorflow/internal/workflow"
)

// syncResult is the outcome of polling one workflow's change-set.
type syncResult struct {
	inst     *workflow.Instance
	from     stage.Stage
	advanced bool
	err      error
}

// awaitingSync returns the workflows whose current stage has an open
// change-set and can still be approved.
func awaitingSync(insts []*workflow.Instance) []*workflow.Instance {
	var out []*workflow.Instance
	for _, inst := range insts {
		if inst.IsTerminal() || inst.Escalated {
			continue
		}
		cur, ok := inst.Current()
		if !ok {
			continue
		}
		if rec := inst.Record(cur); rec != nil && rec.ChangeSet != nil {
			out = append(out, inst)
		}
	}
	return out
}

// syncAll polls every open change-set concurrently, then reports and saves
// the results in feature order. A failed poll does not stop the others.
func (app *App) syncAll(ctx context.Context) error {
	if app.Provider == nil {
		app.Printer.Warn("No forge configured, nothing to sync")
		return nil
	}

	insts, err := app.Reader.List()
	if err != nil {
		return app.fail(err)
	}
	pending := awaitingSync(insts)
	if len(pending) == 0 {
		app.Printer.Info("No change-sets awaiting approval")
		return nil
	}

	// Events are not streamed here; the printer is not safe for
	// concurrent use.
	c := app.controller("")
	c.SetEventCallback(nil)

	results := make([]syncResult, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	if n := app.Config.Forge.SyncConcurrency; n > 0 {
		g.SetLimit(n)
	}
	for i, inst := range pending {
		cur, _ := inst.Current()
		g.Go(func() error {
			advanced, err := c.Sync(gctx, inst)
			results[i] = syncResult{inst: inst, from: cur, advanced: advanced, err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		switch {
		case r.err != nil:
			failed++
			app.Logger.Warn("sync failed", zap.String("feature", r.inst.FeatureID), zap.Error(r.err))
			app.Printer.Error("%s: %v", r.inst.FeatureID, r.err)
		case r.advanced:
			if err := app.Writer.Save(r.inst); err != nil {
				return app.fail(err)
			}
			app.printAdvanced(r.inst.FeatureID, r.from, r.inst)
		default:
			rec := r.inst.Record(r.from)
			app.Printer.Info("%s: change-set #%d for %s is awaiting approval", r.inst.FeatureID, rec.ChangeSet.Number, stage.Title(r.from))
		}
	}

	if failed > 0 {
		return app.fail(fmt.Errorf("%d of %d change-sets could not be checked", failed, len(results)))
	}
	return nil
}
