package calibrate

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/meenmo/curvecal/curve"
	"github.com/meenmo/curvecal/sensitivity"
)

// Result is the immutable outcome of a successful group calibration: the
// calibrated curves and the Jacobian of calibration residuals with respect to
// every curve parameter, retained for sensitivity propagation.
type Result struct {
	group         string
	valuationDate time.Time
	names         []string
	env           *Environment
	ordering      *Ordering
	jacobian      *mat.Dense
	lu            *mat.LU
	iterations    int
}

// Group returns the group name.
func (r *Result) Group() string { return r.group }

// ValuationDate returns the calibration valuation date.
func (r *Result) ValuationDate() time.Time { return r.valuationDate }

// CurveNames returns the calibrated curve names in group definition order.
func (r *Result) CurveNames() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Curve returns a calibrated curve by name.
func (r *Result) Curve(name string) (*curve.Curve, error) {
	c, err := r.env.Curve(name)
	if err != nil {
		return nil, err
	}
	if r.env.IsSeed(name) {
		return nil, fmt.Errorf("calibrate: %s is a seed curve, not a calibrated curve of group %s", name, r.group)
	}
	return c, nil
}

// Environment returns the pricing environment at the solution, including seed
// curves. Curves are immutable; the environment is safe to share.
func (r *Result) Environment() *Environment { return r.env }

// Iterations returns the total Newton iterations across all layers.
func (r *Result) Iterations() int { return r.iterations }

// ParameterKeys returns the flattened (curve, parameter-index) ordering that
// indexes Jacobian rows and columns.
func (r *Result) ParameterKeys() []ParamKey { return r.ordering.Keys() }

// Jacobian returns a copy of the calibration Jacobian
// d(residual_k)/d(param_j) evaluated at the solution.
func (r *Result) Jacobian() *mat.Dense {
	var out mat.Dense
	out.CloneFrom(r.jacobian)
	return &out
}

// ParameterSensitivity converts a point sensitivity (per curve value at a
// date) into per-parameter sensitivity using the curves' exact parameter
// gradients. Entries on seed curves are dropped: seeds have no parameters in
// the calibration.
func (r *Result) ParameterSensitivity(ps *sensitivity.PointSensitivity) (*sensitivity.ParameterSensitivity, error) {
	flat := make([]float64, r.ordering.Size())
	if err := chainToParams(r.env, ps, r.ordering, flat); err != nil {
		return nil, err
	}

	out := &sensitivity.ParameterSensitivity{}
	for _, name := range r.names {
		off, _ := r.ordering.Offset(name)
		count := r.ordering.Count(name)
		c, err := r.env.Curve(name)
		if err != nil {
			return nil, err
		}
		values := make([]float64, count)
		copy(values, flat[off:off+count])
		out.Entries = append(out.Entries, sensitivity.ParameterEntry{
			Curve:    name,
			Currency: c.Currency(),
			Values:   values,
		})
	}
	return out, nil
}

// MarketQuoteSensitivity propagates a point sensitivity back to the original
// market quotes through the inverse transpose of the retained Jacobian.
//
// With residuals measured as par spreads, d(params)/d(quote_k) is column k of
// the Jacobian inverse, so quote sensitivities solve Jᵀ x = paramSens. The
// result matches a bump-quote-recalibrate-reprice computation to O(bump).
func (r *Result) MarketQuoteSensitivity(ps *sensitivity.PointSensitivity) (*sensitivity.MarketQuoteSensitivity, error) {
	flat := make([]float64, r.ordering.Size())
	if err := chainToParams(r.env, ps, r.ordering, flat); err != nil {
		return nil, err
	}

	b := mat.NewVecDense(len(flat), flat)
	x := mat.NewVecDense(len(flat), nil)
	if err := r.lu.SolveVecTo(x, true, b); err != nil {
		return nil, &SingularJacobianError{Group: r.group, Cond: r.lu.Cond()}
	}

	out := sensitivity.NewMarketQuoteSensitivity()
	for k := 0; k < x.Len(); k++ {
		out.Add(r.ordering.Currency(k), string(r.ordering.QuoteID(k)), x.AtVec(k))
	}
	return out, nil
}
