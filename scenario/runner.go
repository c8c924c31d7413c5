// Package scenario runs independent calibrations across market-data
// scenarios on a bounded worker pool. Each scenario owns its own immutable
// snapshot and produces its own result; one scenario's failure never aborts
// its siblings.
package scenario

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meenmo/curvecal/calibrate"
	"github.com/meenmo/curvecal/curve"
	"github.com/meenmo/curvecal/market"
)

// Scenario is one independent calibration input: a market snapshot plus its
// seed curves.
type Scenario struct {
	Name   string
	Market *market.Set
	Seeds  []*curve.Curve
}

// Result pairs a scenario with its calibration outcome. Exactly one of
// Calibration and Err is set.
type Result struct {
	RunID       uuid.UUID
	Scenario    string
	Calibration *calibrate.Result
	Err         error
}

// Runner executes batch calibrations.
type Runner struct {
	calibrator *calibrate.Calibrator
	workers    int
	logger     *slog.Logger
}

// NewRunner builds a runner. workers <= 0 means unbounded; a nil logger falls
// back to slog.Default.
func NewRunner(calibrator *calibrate.Calibrator, workers int, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{calibrator: calibrator, workers: workers, logger: logger}
}

// Run calibrates the group against every scenario concurrently and returns
// results in scenario order. Calibration failures are reported per scenario;
// only context cancellation stops the batch, and cancellation is
// scenario-granular: in-flight solves finish or fail, queued scenarios are
// abandoned with the context error.
func (r *Runner) Run(ctx context.Context, group calibrate.GroupDefinition, scenarios []Scenario) []Result {
	results := make([]Result, len(scenarios))

	g, ctx := errgroup.WithContext(ctx)
	if r.workers > 0 {
		g.SetLimit(r.workers)
	}

	for i, sc := range scenarios {
		i, sc := i, sc
		runID := uuid.New()
		results[i] = Result{RunID: runID, Scenario: sc.Name}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}

			res, err := r.calibrator.Calibrate(group, sc.Market, sc.Seeds)
			if err != nil {
				r.logger.Warn("scenario calibration failed",
					"runId", runID, "scenario", sc.Name, "group", group.Name, "error", err)
				results[i].Err = err
				return nil
			}

			r.logger.Debug("scenario calibrated",
				"runId", runID, "scenario", sc.Name, "group", group.Name, "iterations", res.Iterations())
			results[i].Calibration = res
			return nil
		})
	}

	// Workers only return nil; Wait orders completion of all scenarios.
	_ = g.Wait()
	return results
}
