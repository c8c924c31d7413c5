package calibrate

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SolverConfig tunes the Newton root finder. Zero values take defaults.
type SolverConfig struct {
	// ToleranceAbs is the convergence bound on max(|residual|).
	// Residuals are par spreads, so this is in rate units. Default 1e-12.
	ToleranceAbs float64
	// MaxIterations bounds the Newton loop. Default 100.
	MaxIterations int
	// MaxConditionNumber rejects an ill-conditioned Jacobian. Default 1e12.
	MaxConditionNumber float64
	// MaxStepHalvings bounds the damping fallback when a full step does not
	// reduce the residual. Default 8.
	MaxStepHalvings int
}

func (c SolverConfig) withDefaults() SolverConfig {
	if c.ToleranceAbs <= 0 {
		c.ToleranceAbs = 1e-12
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 100
	}
	if c.MaxConditionNumber <= 0 {
		c.MaxConditionNumber = 1e12
	}
	if c.MaxStepHalvings <= 0 {
		c.MaxStepHalvings = 8
	}
	return c
}

// solver states, for logging.
const (
	stateInitializing = "initializing"
	stateIterating    = "iterating"
	stateConverged    = "converged"
)

// layerProblem is one joint Newton solve: the instruments of a calibration
// layer against that layer's flattened parameters. rebuild maps a parameter
// vector to a fresh immutable environment; iteration never mutates curves.
type layerProblem struct {
	group   string
	rows    []Instrument
	ord     *Ordering
	rebuild func(x []float64) (*Environment, error)
}

// solveNewton drives the residual vector to within tolerance. It returns the
// solved parameter vector, the environment at the solution and the iteration
// count. The iteration order is fixed by the ordering, so identical inputs
// produce bit-identical output.
func solveNewton(p layerProblem, x0 []float64, cfg SolverConfig, logger *slog.Logger) ([]float64, *Environment, int, error) {
	cfg = cfg.withDefaults()

	x := make([]float64, len(x0))
	copy(x, x0)

	logger.Debug("newton solve", "group", p.group, "state", stateInitializing, "params", len(x))

	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		env, err := p.rebuild(x)
		if err != nil {
			return nil, nil, iter, err
		}
		residual, jac, err := assemble(env, p.rows, p.ord, true)
		if err != nil {
			return nil, nil, iter, err
		}

		worst := maxAbsVec(residual)
		if !isFinite(worst) {
			return nil, nil, iter, &DivergenceError{Group: p.group, Iteration: iter}
		}
		logger.Debug("newton solve", "group", p.group, "state", stateIterating, "iteration", iter, "maxResidual", worst)

		if worst < cfg.ToleranceAbs {
			logger.Debug("newton solve", "group", p.group, "state", stateConverged, "iterations", iter-1)
			return x, env, iter - 1, nil
		}

		var lu mat.LU
		lu.Factorize(jac)
		if cond := lu.Cond(); !isFinite(cond) || cond > cfg.MaxConditionNumber {
			return nil, nil, iter, &SingularJacobianError{Group: p.group, Iteration: iter, Cond: lu.Cond()}
		}

		neg := mat.NewVecDense(residual.Len(), nil)
		neg.ScaleVec(-1, residual)
		delta := mat.NewVecDense(residual.Len(), nil)
		if err := lu.SolveVecTo(delta, false, neg); err != nil {
			return nil, nil, iter, &SingularJacobianError{Group: p.group, Iteration: iter, Cond: lu.Cond()}
		}

		// Full Newton step, with step-halving when it fails to improve the
		// worst residual. After the halving budget the last candidate is
		// accepted; the iteration bound is the overall safety net.
		scale := 1.0
		var next []float64
		for attempt := 0; ; attempt++ {
			next = make([]float64, len(x))
			for i := range x {
				next[i] = x[i] + scale*delta.AtVec(i)
			}
			candEnv, err := p.rebuild(next)
			if err != nil {
				return nil, nil, iter, err
			}
			candRes, _, err := assemble(candEnv, p.rows, p.ord, false)
			if err != nil {
				return nil, nil, iter, err
			}
			candWorst := maxAbsVec(candRes)
			if candWorst < worst || attempt >= cfg.MaxStepHalvings {
				if !isFinite(candWorst) {
					return nil, nil, iter, &DivergenceError{Group: p.group, Iteration: iter}
				}
				break
			}
			scale /= 2
		}
		x = next
	}

	// Report the terminal residual with the rejected state discarded.
	env, err := p.rebuild(x)
	if err != nil {
		return nil, nil, cfg.MaxIterations, err
	}
	residual, _, err := assemble(env, p.rows, p.ord, false)
	if err != nil {
		return nil, nil, cfg.MaxIterations, err
	}
	return nil, nil, cfg.MaxIterations, &MaxIterationsExceededError{
		Group:       p.group,
		Iterations:  cfg.MaxIterations,
		MaxResidual: maxAbsVec(residual),
	}
}

func maxAbsVec(v *mat.VecDense) float64 {
	worst := 0.0
	for i := 0; i < v.Len(); i++ {
		a := math.Abs(v.AtVec(i))
		if a > worst || math.IsNaN(a) {
			worst = a
		}
	}
	return worst
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
