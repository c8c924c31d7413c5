package calibrate

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/meenmo/curvecal/sensitivity"
)

// chainToParams converts a point sensitivity (per curve value at a date) into
// a flat parameter-sensitivity row via each curve's exact parameter gradient.
// Entries on curves without columns in the ordering (seed curves, curves of
// other layers) are skipped: they price but carry no Jacobian columns.
func chainToParams(env *Environment, ps *sensitivity.PointSensitivity, ord *Ordering, row []float64) error {
	for _, e := range ps.Entries {
		off, ok := ord.Offset(e.Curve)
		if !ok {
			continue
		}
		c, err := env.Curve(e.Curve)
		if err != nil {
			return err
		}
		for i := 0; i < c.ParamCount(); i++ {
			d := c.DFParamDerivative(e.Date, i)
			if d != 0 {
				row[off+i] += e.Value * d
			}
		}
	}
	return nil
}

// assemble prices every instrument row under the current environment and
// returns the residual vector and, when withJacobian, the Jacobian of
// residuals with respect to the ordering's parameters.
//
// Row k of the Jacobian is the chain of instrument k's point sensitivity to
// curve values with the curves' parameter gradients. Rows and columns follow
// the fixed flattened (curve, parameter-index) ordering.
func assemble(env *Environment, rows []Instrument, ord *Ordering, withJacobian bool) (*mat.VecDense, *mat.Dense, error) {
	n := len(rows)
	residual := mat.NewVecDense(n, nil)

	var jac *mat.Dense
	if withJacobian {
		if ord.Size() != n {
			return nil, nil, fmt.Errorf("calibrate: %d instruments vs %d parameters; system must be square", n, ord.Size())
		}
		jac = mat.NewDense(n, ord.Size(), nil)
	}

	rowBuf := make([]float64, ord.Size())
	for k, inst := range rows {
		spread, ps, err := inst.ParSpread(env, withJacobian)
		if err != nil {
			return nil, nil, err
		}
		residual.SetVec(k, spread)

		if !withJacobian {
			continue
		}
		for i := range rowBuf {
			rowBuf[i] = 0
		}
		if err := chainToParams(env, ps, ord, rowBuf); err != nil {
			return nil, nil, err
		}
		jac.SetRow(k, rowBuf)
	}

	return residual, jac, nil
}
