// Package calibrate turns curve group definitions and market quotes into
// numerically consistent curves via a damped multi-dimensional Newton solve,
// and propagates priced sensitivities back to the original quotes through the
// retained calibration Jacobian.
package calibrate

import (
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/meenmo/curvecal/curve"
	"github.com/meenmo/curvecal/market"
)

// Calibrator is the calibration entry point. It holds only configuration; a
// single Calibrator may run concurrent calibrations of independent snapshots.
type Calibrator struct {
	cfg    SolverConfig
	logger *slog.Logger
}

// NewCalibrator builds a calibrator. A nil logger falls back to slog.Default.
func NewCalibrator(cfg SolverConfig, logger *slog.Logger) *Calibrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calibrator{cfg: cfg.withDefaults(), logger: logger}
}

// builtCurve is one curve definition with its nodes built against a snapshot.
type builtCurve struct {
	def         CurveDefinition
	nodeDates   []time.Time
	guesses     []float64
	instruments []Instrument
	quoteIDs    []market.QuoteID
}

// Calibrate solves the group against the market snapshot. Seed curves are
// externally calibrated inputs; they price but are not solved for. Any typed
// failure aborts the whole group: a partially calibrated group is never
// returned.
func (cb *Calibrator) Calibrate(group GroupDefinition, mkt *market.Set, seeds []*curve.Curve) (*Result, error) {
	if err := group.Validate(); err != nil {
		return nil, err
	}
	valuation := mkt.ValuationDate()

	seedNames := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		if seedNames[s.Name()] {
			return nil, fmt.Errorf("calibrate: group %s: duplicate seed curve %s", group.Name, s.Name())
		}
		seedNames[s.Name()] = true
	}
	for _, d := range group.Curves {
		if seedNames[d.Name] {
			return nil, fmt.Errorf("calibrate: group %s: curve %s supplied both in group and as seed", group.Name, d.Name)
		}
	}

	built := make([]builtCurve, len(group.Curves))
	for i, def := range group.Curves {
		bc, err := buildCurveNodes(group.Name, def, valuation, mkt)
		if err != nil {
			return nil, err
		}
		built[i] = bc
	}

	layers, err := layerCurves(group.Name, group.Curves, seedNames)
	if err != nil {
		return nil, err
	}

	calibrated := make(map[string]*curve.Curve, len(group.Curves))
	var solvedOrder []string
	totalIters := 0

	baseEnv := func(layerCurves []*curve.Curve) (*Environment, error) {
		env := NewEnvironment()
		for _, s := range seeds {
			if err := env.AddSeed(s); err != nil {
				return nil, err
			}
		}
		for _, name := range solvedOrder {
			if err := env.AddCurve(calibrated[name]); err != nil {
				return nil, err
			}
		}
		for _, c := range layerCurves {
			if err := env.AddCurve(c); err != nil {
				return nil, err
			}
		}
		return env, nil
	}

	for _, layer := range layers {
		ord := newOrdering()
		var rows []Instrument
		var x0 []float64
		for _, i := range layer {
			bc := built[i]
			ord.appendCurve(bc.def.Name, bc.quoteIDs, bc.def.Currency)
			rows = append(rows, bc.instruments...)
			x0 = append(x0, bc.guesses...)
		}

		layerBuilt := make([]builtCurve, 0, len(layer))
		for _, i := range layer {
			layerBuilt = append(layerBuilt, built[i])
		}

		// Seed and already-solved curves never change within a layer, so the
		// environment is assembled once from the initial guesses and each
		// iteration only swaps the layer's own curves in.
		initCurves, err := curvesFromParams(valuation, layerBuilt, ord, x0)
		if err != nil {
			return nil, err
		}
		layerBase, err := baseEnv(initCurves)
		if err != nil {
			return nil, err
		}
		rebuild := func(x []float64) (*Environment, error) {
			curves, err := curvesFromParams(valuation, layerBuilt, ord, x)
			if err != nil {
				return nil, err
			}
			env := layerBase
			for _, c := range curves {
				env = env.with(c)
			}
			return env, nil
		}

		_, envSolved, iters, err := solveNewton(layerProblem{
			group:   group.Name,
			rows:    rows,
			ord:     ord,
			rebuild: rebuild,
		}, x0, cb.cfg, cb.logger)
		if err != nil {
			return nil, err
		}
		totalIters += iters

		for _, bc := range layerBuilt {
			c, err := envSolved.Curve(bc.def.Name)
			if err != nil {
				return nil, err
			}
			calibrated[bc.def.Name] = c
			solvedOrder = append(solvedOrder, bc.def.Name)
		}
	}

	// Assemble the full-group Jacobian at the solution. Instruments of early
	// layers contribute zero columns for later layers' parameters, giving a
	// block-triangular system whose inverse carries exact cross-curve quote
	// sensitivity.
	fullOrd := newOrdering()
	var fullRows []Instrument
	var names []string
	for _, bc := range built {
		fullOrd.appendCurve(bc.def.Name, bc.quoteIDs, bc.def.Currency)
		fullRows = append(fullRows, bc.instruments...)
		names = append(names, bc.def.Name)
	}

	finalEnv, err := baseEnv(nil)
	if err != nil {
		return nil, err
	}
	_, jac, err := assemble(finalEnv, fullRows, fullOrd, true)
	if err != nil {
		return nil, err
	}

	lu := &mat.LU{}
	lu.Factorize(jac)
	if cond := lu.Cond(); !isFinite(cond) || cond > cb.cfg.MaxConditionNumber {
		return nil, &SingularJacobianError{Group: group.Name, Cond: lu.Cond()}
	}

	cb.logger.Info("calibrated curve group",
		"group", group.Name,
		"valuationDate", valuation.Format("2006-01-02"),
		"curves", len(names),
		"parameters", fullOrd.Size(),
		"iterations", totalIters,
	)

	return &Result{
		group:         group.Name,
		valuationDate: valuation,
		names:         names,
		env:           finalEnv,
		ordering:      fullOrd,
		jacobian:      jac,
		lu:            lu,
		iterations:    totalIters,
	}, nil
}

// buildCurveNodes builds every node of one curve and validates node ordering.
func buildCurveNodes(groupName string, def CurveDefinition, valuation time.Time, mkt *market.Set) (builtCurve, error) {
	bc := builtCurve{def: def}
	var prev time.Time
	for _, n := range def.Nodes {
		bn, err := n.build(groupName, def.Name, def.Currency, def.ValueType, valuation, mkt)
		if err != nil {
			return builtCurve{}, err
		}
		if !prev.IsZero() && !bn.nodeDate.After(prev) {
			return builtCurve{}, &InvalidCurveNodeError{
				Curve:   def.Name,
				QuoteID: n.QuoteID,
				Reason: fmt.Sprintf("node date %s not after previous node date %s",
					bn.nodeDate.Format("2006-01-02"), prev.Format("2006-01-02")),
			}
		}
		prev = bn.nodeDate
		bc.nodeDates = append(bc.nodeDates, bn.nodeDate)
		bc.guesses = append(bc.guesses, bn.guess)
		bc.instruments = append(bc.instruments, bn.instrument)
		bc.quoteIDs = append(bc.quoteIDs, n.QuoteID)
	}
	return bc, nil
}

// curvesFromParams slices a flat layer parameter vector back into curves.
func curvesFromParams(valuation time.Time, layerBuilt []builtCurve, ord *Ordering, x []float64) ([]*curve.Curve, error) {
	out := make([]*curve.Curve, 0, len(layerBuilt))
	for _, bc := range layerBuilt {
		off, ok := ord.Offset(bc.def.Name)
		if !ok {
			return nil, fmt.Errorf("calibrate: curve %s missing from layer ordering", bc.def.Name)
		}
		params := x[off : off+len(bc.nodeDates)]
		c, err := curve.New(bc.def.Name, bc.def.Currency, valuation, bc.nodeDates, params, bc.def.ValueType, bc.def.Interpolator)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
