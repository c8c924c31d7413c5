package calibrate

import (
	"fmt"
	"strings"

	"github.com/meenmo/curvecal/market"
)

// MissingMarketDataError reports a curve node whose quote is absent from the
// market snapshot. It aborts calibration of the whole curve group.
type MissingMarketDataError struct {
	Group   string
	Curve   string
	QuoteID market.QuoteID
}

func (e *MissingMarketDataError) Error() string {
	return fmt.Sprintf("calibrate: group %s: curve %s: quote %s not found in market data", e.Group, e.Curve, e.QuoteID)
}

// InvalidCurveNodeError reports a malformed node definition (bad convention,
// duplicate node date, unparsable tenor).
type InvalidCurveNodeError struct {
	Curve   string
	QuoteID market.QuoteID
	Reason  string
}

func (e *InvalidCurveNodeError) Error() string {
	return fmt.Sprintf("calibrate: curve %s: node %s: %s", e.Curve, e.QuoteID, e.Reason)
}

// CyclicCurveDependencyError reports a dependency cycle between curves of a
// group, an unrecoverable configuration error.
type CyclicCurveDependencyError struct {
	Group  string
	Curves []string
}

func (e *CyclicCurveDependencyError) Error() string {
	return fmt.Sprintf("calibrate: group %s: cyclic dependency between curves [%s]", e.Group, strings.Join(e.Curves, ", "))
}

// SingularJacobianError reports a numerically degenerate calibration system,
// typically caused by duplicate or collinear nodes or a bad initial guess.
type SingularJacobianError struct {
	Group     string
	Iteration int
	Cond      float64
}

func (e *SingularJacobianError) Error() string {
	return fmt.Sprintf("calibrate: group %s: singular jacobian at iteration %d (condition estimate %.3g)", e.Group, e.Iteration, e.Cond)
}

// MaxIterationsExceededError reports non-convergence within the configured
// iteration bound. The partial Newton state is discarded, never returned.
type MaxIterationsExceededError struct {
	Group       string
	Iterations  int
	MaxResidual float64
}

func (e *MaxIterationsExceededError) Error() string {
	return fmt.Sprintf("calibrate: group %s: no convergence after %d iterations (max residual %.3g)", e.Group, e.Iterations, e.MaxResidual)
}

// DivergenceError reports a solve that produced non-finite residuals or
// parameters, usually from an initial guess far outside the convergence
// radius.
type DivergenceError struct {
	Group     string
	Iteration int
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("calibrate: group %s: diverged at iteration %d (non-finite residuals)", e.Group, e.Iteration)
}
