package curve

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/interp"
)

// Interpolator is a pluggable interpolation scheme over curve node times.
type Interpolator interface {
	// Name returns the scheme's configuration name.
	Name() string
	// Fit binds the scheme to a set of abscissas and ordinates.
	// xs must be strictly increasing; ys has the same length.
	Fit(xs, ys []float64) (Fit, error)
}

// Fit is an interpolation bound to concrete node values.
//
// Both Value and Gradient apply flat extrapolation outside the node range:
// the query point is clamped to the boundary abscissa, which keeps
// calibration-time and valuation-time behaviour identical.
type Fit interface {
	// Value evaluates the interpolated ordinate at x.
	Value(x float64) float64
	// Gradient returns the exact derivative of Value(x) with respect to
	// ordinate i. Interpolated values are linear in the ordinates for the
	// supported schemes, so this is closed form, never a numerical bump.
	Gradient(x float64, i int) float64
}

// Linear interpolates ordinates piecewise-linearly in curve time.
// Applied to log-discount-factor parameters this is the classic
// log-linear discount factor scheme.
type Linear struct{}

// Name implements Interpolator.
func (Linear) Name() string { return "linear" }

// Fit implements Interpolator.
func (Linear) Fit(xs, ys []float64) (Fit, error) {
	if err := validateAbscissas(xs, ys); err != nil {
		return nil, fmt.Errorf("linear: %w", err)
	}
	return &linearFit{xs: xs, ys: ys}, nil
}

type linearFit struct {
	xs []float64
	ys []float64
}

func (f *linearFit) bracket(x float64) (lo int, w float64) {
	n := len(f.xs)
	if n == 1 || x <= f.xs[0] {
		return 0, 0
	}
	if x >= f.xs[n-1] {
		return n - 2, 1
	}
	// First index with xs[i] >= x.
	i := sort.SearchFloat64s(f.xs, x)
	if f.xs[i] == x {
		if i == n-1 {
			return i - 1, 1
		}
		return i, 0
	}
	lo = i - 1
	w = (x - f.xs[lo]) / (f.xs[lo+1] - f.xs[lo])
	return lo, w
}

func (f *linearFit) Value(x float64) float64 {
	if len(f.xs) == 1 {
		return f.ys[0]
	}
	lo, w := f.bracket(x)
	return (1-w)*f.ys[lo] + w*f.ys[lo+1]
}

func (f *linearFit) Gradient(x float64, i int) float64 {
	if len(f.xs) == 1 {
		if i == 0 {
			return 1
		}
		return 0
	}
	lo, w := f.bracket(x)
	switch i {
	case lo:
		return 1 - w
	case lo + 1:
		return w
	default:
		return 0
	}
}

// NaturalCubic interpolates ordinates with a natural cubic spline.
// Commonly applied to log-discount-factor or zero-rate parameters.
type NaturalCubic struct{}

// Name implements Interpolator.
func (NaturalCubic) Name() string { return "natural-cubic" }

// Fit implements Interpolator.
//
// The natural cubic spline value is a linear map of the ordinates, so the
// exact gradient with respect to ordinate i is the spline fitted to the unit
// vector e_i. The basis splines are precomputed here; curves are immutable so
// the fit is done once per calibration step.
func (NaturalCubic) Fit(xs, ys []float64) (Fit, error) {
	if err := validateAbscissas(xs, ys); err != nil {
		return nil, fmt.Errorf("natural-cubic: %w", err)
	}
	if len(xs) < 2 {
		return nil, fmt.Errorf("natural-cubic: need at least 2 nodes, got %d", len(xs))
	}

	var value interp.NaturalCubic
	if err := value.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("natural-cubic: fit: %w", err)
	}

	basis := make([]interp.NaturalCubic, len(xs))
	unit := make([]float64, len(xs))
	for i := range xs {
		unit[i] = 1
		if err := basis[i].Fit(xs, unit); err != nil {
			return nil, fmt.Errorf("natural-cubic: basis fit %d: %w", i, err)
		}
		unit[i] = 0
	}

	return &cubicFit{xs: xs, value: value, basis: basis}, nil
}

type cubicFit struct {
	xs    []float64
	value interp.NaturalCubic
	basis []interp.NaturalCubic
}

func (f *cubicFit) clamp(x float64) float64 {
	if x < f.xs[0] {
		return f.xs[0]
	}
	if x > f.xs[len(f.xs)-1] {
		return f.xs[len(f.xs)-1]
	}
	return x
}

func (f *cubicFit) Value(x float64) float64 {
	return f.value.Predict(f.clamp(x))
}

func (f *cubicFit) Gradient(x float64, i int) float64 {
	return f.basis[i].Predict(f.clamp(x))
}

func validateAbscissas(xs, ys []float64) error {
	if len(xs) == 0 {
		return fmt.Errorf("no nodes")
	}
	if len(xs) != len(ys) {
		return fmt.Errorf("abscissa/ordinate length mismatch: %d vs %d", len(xs), len(ys))
	}
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return fmt.Errorf("abscissas not strictly increasing at index %d", i)
		}
	}
	return nil
}

// ParseInterpolator resolves a configuration name to a scheme.
func ParseInterpolator(name string) (Interpolator, error) {
	switch name {
	case "linear", "log-linear":
		return Linear{}, nil
	case "natural-cubic", "cubic":
		return NaturalCubic{}, nil
	default:
		return nil, fmt.Errorf("unknown interpolator %q", name)
	}
}
