package calibrate

import (
	"time"

	"github.com/meenmo/curvecal/calendar"
	"github.com/meenmo/curvecal/curve"
	"github.com/meenmo/curvecal/market"
	"github.com/meenmo/curvecal/utils"
)

// NodeKind is the closed set of calibration instrument variants.
type NodeKind string

const (
	// NodeDeposit is a single-period money-market deposit.
	NodeDeposit NodeKind = "DEPOSIT"
	// NodeFRA is a forward rate agreement.
	NodeFRA NodeKind = "FRA"
	// NodeSwap is a fixed-versus-floating swap (IRS or OIS).
	NodeSwap NodeKind = "SWAP"
)

// Convention carries the date and accrual rules used to turn a node into a
// priceable instrument. Empty curve references mean "the curve being
// calibrated"; a non-empty reference to another curve creates a calibration
// dependency on it.
type Convention struct {
	Calendar        calendar.CalendarID
	SpotLagDays     int
	DayCount        string // deposit/FRA/floating leg accrual basis
	FixedDayCount   string // swap fixed leg accrual basis
	FixedFreqMonths int
	FloatFreqMonths int
	PayDelayDays    int
	DiscountCurve   string
	ProjectionCurve string
}

// CurveNode ties one market quote to a calibration instrument recipe.
// Nodes are configuration: built once per valuation date, immutable after.
type CurveNode struct {
	Kind       NodeKind
	QuoteID    market.QuoteID
	Tenor      utils.Tenor
	FwdTenor   utils.Tenor // FRA only: offset from spot to the forward start
	SpreadBP   float64     // additive spread on the quote, in basis points
	Convention Convention
}

// resolveCurves fills empty convention references with the owning curve name.
func (n CurveNode) resolveCurves(owner string) (discount, projection string) {
	discount = n.Convention.DiscountCurve
	if discount == "" {
		discount = owner
	}
	projection = n.Convention.ProjectionCurve
	if projection == "" {
		projection = owner
	}
	return discount, projection
}

// builtNode is one node turned into a priceable instrument with its node date
// and the initial guess for its curve parameter.
type builtNode struct {
	instrument Instrument
	nodeDate   time.Time
	guess      float64
}

// build converts the node into an instrument and an initial guess consistent
// with the owning curve's value type. It is a pure function of its inputs.
//
// The guess is derived from the raw quote treated as an approximate zero
// rate: an order-of-magnitude estimate inside the solver's convergence
// radius, not an exact value.
func (n CurveNode) build(groupName, curveName, currency string, vt curve.ValueType, valuationDate time.Time, mkt *market.Set) (builtNode, error) {
	quote, ok := mkt.Quote(n.QuoteID)
	if !ok {
		return builtNode{}, &MissingMarketDataError{Group: groupName, Curve: curveName, QuoteID: n.QuoteID}
	}
	rate := quote + n.SpreadBP*1e-4

	conv := n.Convention
	spot := calendar.AddBusinessDays(conv.Calendar, valuationDate, conv.SpotLagDays)

	switch n.Kind {
	case NodeDeposit:
		end := calendar.Adjust(conv.Calendar, n.Tenor.AddTo(spot))
		inst, err := NewDeposit(n.QuoteID, rate, currency, mustDiscount(n, curveName), spot, end, conv.DayCount)
		if err != nil {
			return builtNode{}, &InvalidCurveNodeError{Curve: curveName, QuoteID: n.QuoteID, Reason: err.Error()}
		}
		return builtNode{
			instrument: inst,
			nodeDate:   end,
			guess:      guessParam(vt, rate, valuationDate, end),
		}, nil

	case NodeFRA:
		start := calendar.Adjust(conv.Calendar, n.FwdTenor.AddTo(spot))
		end := calendar.Adjust(conv.Calendar, n.Tenor.AddTo(start))
		_, projection := n.resolveCurves(curveName)
		inst, err := NewFRA(n.QuoteID, rate, currency, projection, start, end, conv.DayCount)
		if err != nil {
			return builtNode{}, &InvalidCurveNodeError{Curve: curveName, QuoteID: n.QuoteID, Reason: err.Error()}
		}
		return builtNode{
			instrument: inst,
			nodeDate:   end,
			guess:      guessParam(vt, rate, valuationDate, end),
		}, nil

	case NodeSwap:
		maturity := calendar.Adjust(conv.Calendar, n.Tenor.AddTo(spot))
		discount, projection := n.resolveCurves(curveName)
		inst, err := NewSwap(SwapSpec{
			QuoteID:         n.QuoteID,
			FixedRate:       rate,
			Currency:        currency,
			DiscountCurve:   discount,
			ProjectionCurve: projection,
			Effective:       spot,
			Maturity:        maturity,
			Calendar:        conv.Calendar,
			FixedFreqMonths: conv.FixedFreqMonths,
			FloatFreqMonths: conv.FloatFreqMonths,
			FixedDayCount:   conv.FixedDayCount,
			FloatDayCount:   conv.DayCount,
			PayDelayDays:    conv.PayDelayDays,
		})
		if err != nil {
			return builtNode{}, &InvalidCurveNodeError{Curve: curveName, QuoteID: n.QuoteID, Reason: err.Error()}
		}
		return builtNode{
			instrument: inst,
			nodeDate:   inst.NodeDate(),
			guess:      guessParam(vt, rate, valuationDate, inst.NodeDate()),
		}, nil

	default:
		return builtNode{}, &InvalidCurveNodeError{Curve: curveName, QuoteID: n.QuoteID, Reason: "unknown node kind " + string(n.Kind)}
	}
}

func mustDiscount(n CurveNode, owner string) string {
	discount, _ := n.resolveCurves(owner)
	return discount
}

func guessParam(vt curve.ValueType, rate float64, valuationDate, nodeDate time.Time) float64 {
	tau := utils.YearFraction(valuationDate, nodeDate, "ACT/365F")
	return curve.GuessFromRate(vt, rate, tau)
}
