// Package curve provides the calibrated curve artifact: an immutable node
// parameter vector paired with an interpolation scheme, evaluated on an
// ACT/365F time axis from the valuation date.
package curve

import (
	"fmt"
	"math"
	"time"

	"github.com/meenmo/curvecal/utils"
)

// curveDayCount is the time basis for the curve axis. Following market
// convention (and QuantLib/Bloomberg), interpolation and zero rate
// calculations use ACT/365F regardless of currency; leg-specific day counts
// apply only to coupon accruals.
const curveDayCount = "ACT/365F"

// ValueType declares what quantity the node parameters represent.
type ValueType string

const (
	// ZeroRate parameters are continuously compounded zero rates (decimal).
	ZeroRate ValueType = "ZERO_RATE"
	// DiscountFactor parameters are discount factors.
	DiscountFactor ValueType = "DISCOUNT_FACTOR"
	// LogDiscountFactor parameters are natural logs of discount factors.
	// Linear interpolation on this type is the log-linear DF scheme.
	LogDiscountFactor ValueType = "LOG_DISCOUNT_FACTOR"
)

// ParseValueType resolves a configuration name.
func ParseValueType(name string) (ValueType, error) {
	switch name {
	case "zero_rate", "ZERO_RATE":
		return ZeroRate, nil
	case "discount_factor", "DISCOUNT_FACTOR":
		return DiscountFactor, nil
	case "log_discount_factor", "LOG_DISCOUNT_FACTOR":
		return LogDiscountFactor, nil
	default:
		return "", fmt.Errorf("unknown curve value type %q", name)
	}
}

// Curve is an immutable calibrated (or seed) curve.
//
// All mutating-style operations return a new Curve; calibration iterates by
// functional update and calibrated results are shared across goroutines
// without locking.
type Curve struct {
	name          string
	currency      string
	valuationDate time.Time
	nodeDates     []time.Time
	times         []float64
	params        []float64
	valueType     ValueType
	interp        Interpolator
	fit           Fit
}

// New builds a curve from node dates and a parameter vector.
// nodeDates must be strictly increasing and strictly after valuationDate.
func New(name, currency string, valuationDate time.Time, nodeDates []time.Time, params []float64, vt ValueType, ip Interpolator) (*Curve, error) {
	if name == "" {
		return nil, fmt.Errorf("curve: empty name")
	}
	if len(nodeDates) == 0 {
		return nil, fmt.Errorf("curve %s: no nodes", name)
	}
	if len(nodeDates) != len(params) {
		return nil, fmt.Errorf("curve %s: %d node dates vs %d parameters", name, len(nodeDates), len(params))
	}
	if ip == nil {
		return nil, fmt.Errorf("curve %s: nil interpolator", name)
	}

	times := make([]float64, len(nodeDates))
	for i, d := range nodeDates {
		if !d.After(valuationDate) {
			return nil, fmt.Errorf("curve %s: node date %s not after valuation date %s",
				name, d.Format("2006-01-02"), valuationDate.Format("2006-01-02"))
		}
		times[i] = utils.YearFraction(valuationDate, d, curveDayCount)
	}

	dates := make([]time.Time, len(nodeDates))
	copy(dates, nodeDates)
	ps := make([]float64, len(params))
	copy(ps, params)

	fit, err := ip.Fit(times, ps)
	if err != nil {
		return nil, fmt.Errorf("curve %s: %w", name, err)
	}

	return &Curve{
		name:          name,
		currency:      currency,
		valuationDate: valuationDate,
		nodeDates:     dates,
		times:         times,
		params:        ps,
		valueType:     vt,
		interp:        ip,
		fit:           fit,
	}, nil
}

// FromDiscountFactors builds a seed curve from explicit discount factors,
// log-linearly interpolated. Used to inject externally calibrated curves.
func FromDiscountFactors(name, currency string, valuationDate time.Time, dfs map[time.Time]float64) (*Curve, error) {
	dates := make([]time.Time, 0, len(dfs))
	for d := range dfs {
		if d.After(valuationDate) {
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("curve %s: no discount factors after valuation date", name)
	}
	utils.SortDates(dates)

	params := make([]float64, len(dates))
	for i, d := range dates {
		df := dfs[d]
		if df <= 0 {
			return nil, fmt.Errorf("curve %s: non-positive discount factor %v at %s", name, df, d.Format("2006-01-02"))
		}
		params[i] = math.Log(df)
	}
	return New(name, currency, valuationDate, dates, params, LogDiscountFactor, Linear{})
}

// Name returns the curve name.
func (c *Curve) Name() string { return c.name }

// Currency returns the curve's settlement currency.
func (c *Curve) Currency() string { return c.currency }

// ValuationDate returns the anchor date of the curve time axis.
func (c *Curve) ValuationDate() time.Time { return c.valuationDate }

// ValueType returns the parameter semantics.
func (c *Curve) ValueType() ValueType { return c.valueType }

// ParamCount returns the number of curve parameters.
func (c *Curve) ParamCount() int { return len(c.params) }

// Param returns parameter i.
func (c *Curve) Param(i int) float64 { return c.params[i] }

// Params returns a copy of the parameter vector.
func (c *Curve) Params() []float64 {
	out := make([]float64, len(c.params))
	copy(out, c.params)
	return out
}

// NodeDates returns a copy of the node dates.
func (c *Curve) NodeDates() []time.Time {
	out := make([]time.Time, len(c.nodeDates))
	copy(out, c.nodeDates)
	return out
}

// WithParameter returns a copy of the curve with parameter i replaced.
func (c *Curve) WithParameter(i int, value float64) (*Curve, error) {
	if i < 0 || i >= len(c.params) {
		return nil, fmt.Errorf("curve %s: parameter index %d out of range [0,%d)", c.name, i, len(c.params))
	}
	ps := make([]float64, len(c.params))
	copy(ps, c.params)
	ps[i] = value
	return New(c.name, c.currency, c.valuationDate, c.nodeDates, ps, c.valueType, c.interp)
}

// WithParams returns a copy of the curve with the whole parameter vector replaced.
func (c *Curve) WithParams(params []float64) (*Curve, error) {
	if len(params) != len(c.params) {
		return nil, fmt.Errorf("curve %s: parameter vector length %d, want %d", c.name, len(params), len(c.params))
	}
	return New(c.name, c.currency, c.valuationDate, c.nodeDates, params, c.valueType, c.interp)
}

func (c *Curve) timeOf(t time.Time) float64 {
	return utils.YearFraction(c.valuationDate, t, curveDayCount)
}

// nativeValue evaluates the curve's native quantity at time tau. Before the
// first node, discount-factor style curves interpolate from the valuation
// anchor (DF = 1, log DF = 0) to the first node so that DF stays continuous
// at the valuation date and spot-starting instruments keep a non-zero
// derivative to the first parameter. Zero-rate curves extrapolate flat.
func (c *Curve) nativeValue(tau float64) float64 {
	if tau < c.times[0] {
		switch c.valueType {
		case LogDiscountFactor:
			return c.params[0] * tau / c.times[0]
		case DiscountFactor:
			return 1 + (c.params[0]-1)*tau/c.times[0]
		}
	}
	return c.fit.Value(tau)
}

// nativeGradient is the derivative of nativeValue with respect to parameter i.
func (c *Curve) nativeGradient(tau float64, i int) float64 {
	if tau < c.times[0] {
		switch c.valueType {
		case LogDiscountFactor, DiscountFactor:
			if i == 0 {
				return tau / c.times[0]
			}
			return 0
		}
	}
	return c.fit.Gradient(tau, i)
}

// Value returns the interpolated native value (zero rate, DF or log-DF) at t.
func (c *Curve) Value(t time.Time) float64 {
	return c.nativeValue(c.timeOf(t))
}

// DF returns the discount factor at t. Dates at or before the valuation date
// discount to exactly 1.
func (c *Curve) DF(t time.Time) float64 {
	tau := c.timeOf(t)
	if tau <= 0 {
		return 1.0
	}
	y := c.nativeValue(tau)
	switch c.valueType {
	case ZeroRate:
		return math.Exp(-y * tau)
	case DiscountFactor:
		return y
	case LogDiscountFactor:
		return math.Exp(y)
	default:
		return math.NaN()
	}
}

// ZeroRateAt returns the continuously compounded zero rate (decimal) at t.
func (c *Curve) ZeroRateAt(t time.Time) float64 {
	tau := c.timeOf(t)
	if tau <= 0 {
		return 0
	}
	return -math.Log(c.DF(t)) / tau
}

// DFParamDerivative returns the exact derivative of DF(t) with respect to
// parameter i, composed from the interpolator gradient and the value-type
// transform. This feeds both the calibration Jacobian and risk propagation.
func (c *Curve) DFParamDerivative(t time.Time, i int) float64 {
	tau := c.timeOf(t)
	if tau <= 0 {
		return 0
	}
	g := c.nativeGradient(tau, i)
	if g == 0 {
		return 0
	}
	switch c.valueType {
	case ZeroRate:
		return -tau * c.DF(t) * g
	case DiscountFactor:
		return g
	case LogDiscountFactor:
		return c.DF(t) * g
	default:
		return math.NaN()
	}
}

// GuessFromRate converts an approximate zero rate into a parameter guess in
// the curve's native value type. Used for node initial guesses; it only needs
// to land in the solver's convergence radius.
func GuessFromRate(vt ValueType, rate, tau float64) float64 {
	switch vt {
	case ZeroRate:
		return rate
	case DiscountFactor:
		return math.Exp(-rate * tau)
	case LogDiscountFactor:
		return -rate * tau
	default:
		return rate
	}
}
