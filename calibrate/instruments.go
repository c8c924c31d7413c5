package calibrate

import (
	"fmt"
	"time"

	"github.com/meenmo/curvecal/calendar"
	"github.com/meenmo/curvecal/market"
	"github.com/meenmo/curvecal/sensitivity"
	"github.com/meenmo/curvecal/utils"
)

// Instrument is a priceable calibration instrument built from a curve node.
//
// ParSpread is the calibration measure: the implied par rate under the current
// curve state minus the quoted rate, so the calibration target is always zero
// and the measure's derivative with respect to its own quote is exactly -1.
type Instrument interface {
	// QuoteID returns the market quote the instrument calibrates to.
	QuoteID() market.QuoteID
	// NodeDate returns the curve node date the instrument anchors.
	NodeDate() time.Time
	// Currency returns the settlement currency.
	Currency() string
	// ParSpread prices the calibration measure. When withSens is true it also
	// returns the measure's point sensitivity to curve discount factors.
	ParSpread(env *Environment, withSens bool) (float64, *sensitivity.PointSensitivity, error)
}

// period is one accrual period of an instrument leg.
type period struct {
	start   time.Time
	end     time.Time
	pay     time.Time
	accrual float64
}

// schedule rolls accrual periods forward from effective to maturity with the
// given frequency, adjusting each date Modified Following. The final period is
// truncated to maturity when the roll overshoots.
func schedule(effective, maturity time.Time, freqMonths int, cal calendar.CalendarID, dayCount string, payDelayDays int) ([]period, error) {
	if !maturity.After(effective) {
		return nil, fmt.Errorf("schedule: maturity %s not after effective %s",
			maturity.Format("2006-01-02"), effective.Format("2006-01-02"))
	}
	if freqMonths <= 0 {
		return nil, fmt.Errorf("schedule: unsupported frequency %d months", freqMonths)
	}

	maturityAdj := calendar.Adjust(cal, maturity)
	prevAdj := calendar.Adjust(cal, effective)
	if !maturityAdj.After(prevAdj) {
		return nil, fmt.Errorf("schedule: maturity %s not after effective %s once adjusted",
			maturityAdj.Format("2006-01-02"), prevAdj.Format("2006-01-02"))
	}

	periods := make([]period, 0, 8)
	rollUnadj := effective
	for {
		rollUnadj = utils.AddMonth(rollUnadj, freqMonths)
		endAdj := calendar.Adjust(cal, rollUnadj)
		// The roll is final once its adjusted date reaches the adjusted
		// maturity; a roll past maturity truncates onto it. Comparing
		// adjusted dates keeps a weekend roll next to maturity from leaving
		// a zero-length stub behind it.
		if !rollUnadj.Before(maturity) || !endAdj.Before(maturityAdj) {
			endAdj = maturityAdj
		}
		pay := calendar.AddBusinessDays(cal, endAdj, payDelayDays)
		periods = append(periods, period{
			start:   prevAdj,
			end:     endAdj,
			pay:     pay,
			accrual: utils.YearFraction(prevAdj, endAdj, dayCount),
		})
		if endAdj.Equal(maturityAdj) {
			return periods, nil
		}
		prevAdj = endAdj
	}
}

// Deposit is a single-period money-market instrument: pay 1 at start, receive
// 1 + rate*accrual at end, both on the discount curve.
type Deposit struct {
	quoteID       market.QuoteID
	rate          float64
	currency      string
	discountCurve string
	start         time.Time
	end           time.Time
	accrual       float64
}

// NewDeposit builds a deposit calibration instrument.
func NewDeposit(quoteID market.QuoteID, rate float64, currency, discountCurve string, start, end time.Time, dayCount string) (*Deposit, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("deposit %s: end %s not after start %s", quoteID, end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return &Deposit{
		quoteID:       quoteID,
		rate:          rate,
		currency:      currency,
		discountCurve: discountCurve,
		start:         start,
		end:           end,
		accrual:       utils.YearFraction(start, end, dayCount),
	}, nil
}

// QuoteID implements Instrument.
func (d *Deposit) QuoteID() market.QuoteID { return d.quoteID }

// NodeDate implements Instrument.
func (d *Deposit) NodeDate() time.Time { return d.end }

// Currency implements Instrument.
func (d *Deposit) Currency() string { return d.currency }

// ParSpread implements Instrument. The implied deposit rate is
// (DF(start)/DF(end) - 1) / accrual on the discount curve.
func (d *Deposit) ParSpread(env *Environment, withSens bool) (float64, *sensitivity.PointSensitivity, error) {
	dc, err := env.Curve(d.discountCurve)
	if err != nil {
		return 0, nil, fmt.Errorf("deposit %s: %w", d.quoteID, err)
	}
	dfs := dc.DF(d.start)
	dfe := dc.DF(d.end)
	implied := (dfs/dfe - 1.0) / d.accrual

	var ps *sensitivity.PointSensitivity
	if withSens {
		ps = &sensitivity.PointSensitivity{}
		ps.Add(d.discountCurve, d.currency, d.start, 1.0/(d.accrual*dfe))
		ps.Add(d.discountCurve, d.currency, d.end, -dfs/(d.accrual*dfe*dfe))
	}
	return implied - d.rate, ps, nil
}

// FRA is a forward rate agreement calibrated against the simple forward rate
// implied by the projection curve over [start, end].
type FRA struct {
	quoteID         market.QuoteID
	rate            float64
	currency        string
	projectionCurve string
	start           time.Time
	end             time.Time
	accrual         float64
}

// NewFRA builds an FRA calibration instrument.
func NewFRA(quoteID market.QuoteID, rate float64, currency, projectionCurve string, start, end time.Time, dayCount string) (*FRA, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("fra %s: end %s not after start %s", quoteID, end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return &FRA{
		quoteID:         quoteID,
		rate:            rate,
		currency:        currency,
		projectionCurve: projectionCurve,
		start:           start,
		end:             end,
		accrual:         utils.YearFraction(start, end, dayCount),
	}, nil
}

// QuoteID implements Instrument.
func (f *FRA) QuoteID() market.QuoteID { return f.quoteID }

// NodeDate implements Instrument.
func (f *FRA) NodeDate() time.Time { return f.end }

// Currency implements Instrument.
func (f *FRA) Currency() string { return f.currency }

// ParSpread implements Instrument.
func (f *FRA) ParSpread(env *Environment, withSens bool) (float64, *sensitivity.PointSensitivity, error) {
	pc, err := env.Curve(f.projectionCurve)
	if err != nil {
		return 0, nil, fmt.Errorf("fra %s: %w", f.quoteID, err)
	}
	ps := pc.DF(f.start)
	pe := pc.DF(f.end)
	fwd := (ps/pe - 1.0) / f.accrual

	var sens *sensitivity.PointSensitivity
	if withSens {
		sens = &sensitivity.PointSensitivity{}
		sens.Add(f.projectionCurve, f.currency, f.start, 1.0/(f.accrual*pe))
		sens.Add(f.projectionCurve, f.currency, f.end, -ps/(f.accrual*pe*pe))
	}
	return fwd - f.rate, sens, nil
}

// Swap is a fixed-versus-floating interest rate swap calibration instrument
// with unit notional. The floating leg projects simple forwards off the
// projection curve; both legs discount on the discount curve. For OIS nodes
// the projection and discount curve are the same curve.
type Swap struct {
	quoteID         market.QuoteID
	rate            float64
	notional        float64
	currency        string
	discountCurve   string
	projectionCurve string
	maturity        time.Time
	fixedPeriods    []period
	floatPeriods    []period
	floatDayCount   string
}

// SwapSpec collects the construction inputs for a Swap.
type SwapSpec struct {
	QuoteID         market.QuoteID
	FixedRate       float64
	Notional        float64
	Currency        string
	DiscountCurve   string
	ProjectionCurve string
	Effective       time.Time
	Maturity        time.Time
	Calendar        calendar.CalendarID
	FixedFreqMonths int
	FloatFreqMonths int
	FixedDayCount   string
	FloatDayCount   string
	PayDelayDays    int
}

// NewSwap builds a swap instrument. Schedules are generated once at
// construction so pricing during Newton iterations is pure arithmetic.
func NewSwap(spec SwapSpec) (*Swap, error) {
	fixed, err := schedule(spec.Effective, spec.Maturity, spec.FixedFreqMonths, spec.Calendar, spec.FixedDayCount, spec.PayDelayDays)
	if err != nil {
		return nil, fmt.Errorf("swap %s: fixed leg: %w", spec.QuoteID, err)
	}
	float, err := schedule(spec.Effective, spec.Maturity, spec.FloatFreqMonths, spec.Calendar, spec.FloatDayCount, spec.PayDelayDays)
	if err != nil {
		return nil, fmt.Errorf("swap %s: floating leg: %w", spec.QuoteID, err)
	}
	notional := spec.Notional
	if notional == 0 {
		notional = 1.0
	}
	return &Swap{
		quoteID:         spec.QuoteID,
		rate:            spec.FixedRate,
		notional:        notional,
		currency:        spec.Currency,
		discountCurve:   spec.DiscountCurve,
		projectionCurve: spec.ProjectionCurve,
		maturity:        fixed[len(fixed)-1].end,
		fixedPeriods:    fixed,
		floatPeriods:    float,
		floatDayCount:   spec.FloatDayCount,
	}, nil
}

// QuoteID implements Instrument.
func (s *Swap) QuoteID() market.QuoteID { return s.quoteID }

// NodeDate implements Instrument.
func (s *Swap) NodeDate() time.Time { return s.maturity }

// Currency implements Instrument.
func (s *Swap) Currency() string { return s.currency }

// legs prices the floating leg PV and the fixed-leg annuity per unit notional
// and, when withSens, the point sensitivities of each.
//
// floatPV = sum_i fwd_i * alpha_i * D(pay_i), fwd_i = (P(s_i)/P(e_i)-1)/alpha_i
// annuity = sum_j beta_j * D(pay_j)
func (s *Swap) legs(env *Environment, withSens bool) (floatPV, annuity float64, dFloat, dAnnuity *sensitivity.PointSensitivity, err error) {
	dc, err := env.Curve(s.discountCurve)
	if err != nil {
		return 0, 0, nil, nil, fmt.Errorf("swap %s: %w", s.quoteID, err)
	}
	pc, err := env.Curve(s.projectionCurve)
	if err != nil {
		return 0, 0, nil, nil, fmt.Errorf("swap %s: %w", s.quoteID, err)
	}

	if withSens {
		dFloat = &sensitivity.PointSensitivity{}
		dAnnuity = &sensitivity.PointSensitivity{}
	}

	for _, p := range s.floatPeriods {
		ps := pc.DF(p.start)
		pe := pc.DF(p.end)
		df := dc.DF(p.pay)
		fwd := (ps/pe - 1.0) / p.accrual
		floatPV += fwd * p.accrual * df

		if withSens {
			// d(floatPV)/dD(pay) and d(floatPV)/dP(start), d/dP(end).
			dFloat.Add(s.discountCurve, s.currency, p.pay, fwd*p.accrual)
			dFloat.Add(s.projectionCurve, s.currency, p.start, df/pe)
			dFloat.Add(s.projectionCurve, s.currency, p.end, -df*ps/(pe*pe))
		}
	}

	for _, p := range s.fixedPeriods {
		df := dc.DF(p.pay)
		annuity += p.accrual * df
		if withSens {
			dAnnuity.Add(s.discountCurve, s.currency, p.pay, p.accrual)
		}
	}

	return floatPV, annuity, dFloat, dAnnuity, nil
}

// ParRate returns the swap's implied par rate floatPV/annuity.
func (s *Swap) ParRate(env *Environment) (float64, error) {
	floatPV, annuity, _, _, err := s.legs(env, false)
	if err != nil {
		return 0, err
	}
	if annuity == 0 {
		return 0, fmt.Errorf("swap %s: zero annuity", s.quoteID)
	}
	return floatPV / annuity, nil
}

// ParSpread implements Instrument: implied par rate minus the quoted fixed
// rate. The gradient follows from d(F/A) = dF/A - F*dA/A^2.
func (s *Swap) ParSpread(env *Environment, withSens bool) (float64, *sensitivity.PointSensitivity, error) {
	floatPV, annuity, dFloat, dAnnuity, err := s.legs(env, withSens)
	if err != nil {
		return 0, nil, err
	}
	if annuity == 0 {
		return 0, nil, fmt.Errorf("swap %s: zero annuity", s.quoteID)
	}
	parRate := floatPV / annuity

	var sens *sensitivity.PointSensitivity
	if withSens {
		sens = &sensitivity.PointSensitivity{}
		sens.AddAll(dFloat.Scaled(1.0 / annuity))
		sens.AddAll(dAnnuity.Scaled(-floatPV / (annuity * annuity)))
	}
	return parRate - s.rate, sens, nil
}

// PresentValue prices the swap as a trade: receive float, pay fixed at the
// instrument's fixed rate, scaled by its notional. This is the value +
// point-sensitivity contract the engine expects of pricing functions.
func (s *Swap) PresentValue(env *Environment, withSens bool) (float64, *sensitivity.PointSensitivity, error) {
	floatPV, annuity, dFloat, dAnnuity, err := s.legs(env, withSens)
	if err != nil {
		return 0, nil, err
	}
	pv := s.notional * (floatPV - s.rate*annuity)

	var sens *sensitivity.PointSensitivity
	if withSens {
		sens = &sensitivity.PointSensitivity{}
		sens.AddAll(dFloat.Scaled(s.notional))
		sens.AddAll(dAnnuity.Scaled(-s.rate * s.notional))
	}
	return pv, sens, nil
}
