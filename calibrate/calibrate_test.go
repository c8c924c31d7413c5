package calibrate_test

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/meenmo/curvecal/calendar"
	"github.com/meenmo/curvecal/calibrate"
	"github.com/meenmo/curvecal/curve"
	"github.com/meenmo/curvecal/market"
	"github.com/meenmo/curvecal/utils"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCalibrator(cfg calibrate.SolverConfig) *calibrate.Calibrator {
	return calibrate.NewCalibrator(cfg, quietLogger())
}

func oisConvention() calibrate.Convention {
	return calibrate.Convention{
		Calendar:        calendar.NONE,
		SpotLagDays:     2,
		DayCount:        "ACT/365F",
		FixedDayCount:   "ACT/365F",
		FixedFreqMonths: 12,
		FloatFreqMonths: 12,
	}
}

// oisGroup is a single-curve group: a 1W deposit and two OIS swaps on a
// log-linear discount factor curve.
func oisGroup() calibrate.GroupDefinition {
	conv := oisConvention()
	return calibrate.GroupDefinition{
		Name: "EUR-DSC",
		Curves: []calibrate.CurveDefinition{{
			Name:         "EUR-OIS",
			Currency:     "EUR",
			ValueType:    curve.LogDiscountFactor,
			Interpolator: curve.Linear{},
			Nodes: []calibrate.CurveNode{
				{Kind: calibrate.NodeDeposit, QuoteID: "EUR-DEP-1W", Tenor: utils.Tenor{Days: 7}, Convention: conv},
				{Kind: calibrate.NodeSwap, QuoteID: "EUR-OIS-1Y", Tenor: utils.Tenor{Months: 12}, Convention: conv},
				{Kind: calibrate.NodeSwap, QuoteID: "EUR-OIS-2Y", Tenor: utils.Tenor{Months: 24}, Convention: conv},
			},
		}},
	}
}

func oisMarket() *market.Set {
	return market.NewSet(date(2026, time.January, 6), map[market.QuoteID]float64{
		"EUR-DEP-1W": 0.0010,
		"EUR-OIS-1Y": 0.0100,
		"EUR-OIS-2Y": 0.0125,
	})
}

// iborCurve is a projection curve discounted on EUR-OIS: a fixing deposit,
// one FRA and two swaps with quarterly floating legs.
func iborCurve() calibrate.CurveDefinition {
	conv := oisConvention()
	conv.FloatFreqMonths = 3
	conv.DiscountCurve = "EUR-OIS"

	depConv := conv
	depConv.DiscountCurve = "" // fixing anchor on the projection curve itself

	return calibrate.CurveDefinition{
		Name:         "EUR-EURIBOR-3M",
		Currency:     "EUR",
		ValueType:    curve.LogDiscountFactor,
		Interpolator: curve.Linear{},
		Nodes: []calibrate.CurveNode{
			{Kind: calibrate.NodeDeposit, QuoteID: "EUR-EURIBOR-3M", Tenor: utils.Tenor{Months: 3}, Convention: depConv},
			{Kind: calibrate.NodeFRA, QuoteID: "EUR-FRA-3X6", Tenor: utils.Tenor{Months: 3}, FwdTenor: utils.Tenor{Months: 3}, Convention: conv},
			{Kind: calibrate.NodeSwap, QuoteID: "EUR-IRS-1Y", Tenor: utils.Tenor{Months: 12}, Convention: conv},
			{Kind: calibrate.NodeSwap, QuoteID: "EUR-IRS-2Y", Tenor: utils.Tenor{Months: 24}, Convention: conv},
		},
	}
}

func twoCurveGroup() (calibrate.GroupDefinition, *market.Set) {
	group := oisGroup()
	group.Curves = append(group.Curves, iborCurve())
	mkt := oisMarket().
		WithQuote("EUR-EURIBOR-3M", 0.0090).
		WithQuote("EUR-FRA-3X6", 0.0105).
		WithQuote("EUR-IRS-1Y", 0.0120).
		WithQuote("EUR-IRS-2Y", 0.0150)
	return group, mkt
}

// rebuildEnv copies an environment with one curve swapped out, used for
// finite-difference verification.
func rebuildEnv(t *testing.T, base *calibrate.Environment, repl *curve.Curve) *calibrate.Environment {
	t.Helper()
	env := calibrate.NewEnvironment()
	for _, name := range base.Names() {
		c, err := base.Curve(name)
		if err != nil {
			t.Fatalf("Curve(%s) error: %v", name, err)
		}
		if name == repl.Name() {
			c = repl
		}
		if base.IsSeed(name) {
			err = env.AddSeed(c)
		} else {
			err = env.AddCurve(c)
		}
		if err != nil {
			t.Fatalf("rebuild environment: %v", err)
		}
	}
	return env
}

func TestCalibrate_RepricesNodes(t *testing.T) {
	t.Parallel()

	res, err := testCalibrator(calibrate.SolverConfig{}).Calibrate(oisGroup(), oisMarket(), nil)
	if err != nil {
		t.Fatalf("Calibrate error: %v", err)
	}
	if res.Iterations() > 10 {
		t.Fatalf("expected convergence within 10 iterations, took %d", res.Iterations())
	}
	if names := res.CurveNames(); len(names) != 1 || names[0] != "EUR-OIS" {
		t.Fatalf("curve names = %v", names)
	}
	c, err := res.Curve("EUR-OIS")
	if err != nil {
		t.Fatalf("Curve error: %v", err)
	}
	if c.ParamCount() != 3 {
		t.Fatalf("expected 3 parameters, got %d", c.ParamCount())
	}

	env := res.Environment()
	valuation := res.ValuationDate()
	spot := calendar.AddBusinessDays(calendar.NONE, valuation, 2)

	// Each node instrument, rebuilt from its market convention, must reprice
	// to its quote under the calibrated curves.
	depEnd := calendar.Adjust(calendar.NONE, utils.Tenor{Days: 7}.AddTo(spot))
	dep, err := calibrate.NewDeposit("EUR-DEP-1W", 0.0010, "EUR", "EUR-OIS", spot, depEnd, "ACT/365F")
	if err != nil {
		t.Fatalf("NewDeposit error: %v", err)
	}
	spread, _, err := dep.ParSpread(env, false)
	if err != nil {
		t.Fatalf("ParSpread error: %v", err)
	}
	if math.Abs(spread) > 1e-10 {
		t.Fatalf("deposit repricing off by %v", spread)
	}

	for _, tc := range []struct {
		months int
		quote  float64
	}{
		{12, 0.0100},
		{24, 0.0125},
	} {
		maturity := calendar.Adjust(calendar.NONE, utils.Tenor{Months: tc.months}.AddTo(spot))
		swap, err := calibrate.NewSwap(calibrate.SwapSpec{
			QuoteID:         "NODE",
			FixedRate:       tc.quote,
			Currency:        "EUR",
			DiscountCurve:   "EUR-OIS",
			ProjectionCurve: "EUR-OIS",
			Effective:       spot,
			Maturity:        maturity,
			Calendar:        calendar.NONE,
			FixedFreqMonths: 12,
			FloatFreqMonths: 12,
			FixedDayCount:   "ACT/365F",
			FloatDayCount:   "ACT/365F",
		})
		if err != nil {
			t.Fatalf("NewSwap error: %v", err)
		}
		spread, _, err := swap.ParSpread(env, false)
		if err != nil {
			t.Fatalf("ParSpread error: %v", err)
		}
		if math.Abs(spread) > 1e-10 {
			t.Fatalf("%dM swap repricing off by %v", tc.months, spread)
		}
		pv, _, err := swap.PresentValue(env, false)
		if err != nil {
			t.Fatalf("PresentValue error: %v", err)
		}
		if math.Abs(pv) > 1e-10 {
			t.Fatalf("%dM swap at-par pv = %v, want ~0", tc.months, pv)
		}
	}
}

func TestCalibrate_TwoNodeDiscountCurve(t *testing.T) {
	t.Parallel()

	// Minimal discount curve: an overnight deposit and a 1Y par swap on a
	// log-linear discount factor curve.
	conv := oisConvention()
	group := calibrate.GroupDefinition{
		Name: "EUR-DSC",
		Curves: []calibrate.CurveDefinition{{
			Name:         "EUR-OIS",
			Currency:     "EUR",
			ValueType:    curve.LogDiscountFactor,
			Interpolator: curve.Linear{},
			Nodes: []calibrate.CurveNode{
				{Kind: calibrate.NodeDeposit, QuoteID: "EUR-DEP-1D", Tenor: utils.Tenor{Days: 1}, Convention: conv},
				{Kind: calibrate.NodeSwap, QuoteID: "EUR-OIS-1Y", Tenor: utils.Tenor{Months: 12}, Convention: conv},
			},
		}},
	}
	mkt := market.NewSet(date(2026, time.January, 6), map[market.QuoteID]float64{
		"EUR-DEP-1D": 0.001,
		"EUR-OIS-1Y": 0.010,
	})

	res, err := testCalibrator(calibrate.SolverConfig{}).Calibrate(group, mkt, nil)
	if err != nil {
		t.Fatalf("Calibrate error: %v", err)
	}
	if res.Iterations() > 10 {
		t.Fatalf("expected convergence within 10 iterations, took %d", res.Iterations())
	}

	env := res.Environment()
	spot := calendar.AddBusinessDays(calendar.NONE, res.ValuationDate(), 2)

	depEnd := calendar.Adjust(calendar.NONE, utils.Tenor{Days: 1}.AddTo(spot))
	dep, err := calibrate.NewDeposit("EUR-DEP-1D", 0.001, "EUR", "EUR-OIS", spot, depEnd, "ACT/365F")
	if err != nil {
		t.Fatalf("NewDeposit error: %v", err)
	}
	spread, _, err := dep.ParSpread(env, false)
	if err != nil {
		t.Fatalf("ParSpread error: %v", err)
	}
	if math.Abs(spread) > 1e-10 {
		t.Fatalf("deposit repricing off by %v", spread)
	}

	swap, err := calibrate.NewSwap(calibrate.SwapSpec{
		QuoteID:         "EUR-OIS-1Y",
		FixedRate:       0.010,
		Currency:        "EUR",
		DiscountCurve:   "EUR-OIS",
		ProjectionCurve: "EUR-OIS",
		Effective:       spot,
		Maturity:        calendar.Adjust(calendar.NONE, utils.Tenor{Months: 12}.AddTo(spot)),
		Calendar:        calendar.NONE,
		FixedFreqMonths: 12,
		FloatFreqMonths: 12,
		FixedDayCount:   "ACT/365F",
		FloatDayCount:   "ACT/365F",
	})
	if err != nil {
		t.Fatalf("NewSwap error: %v", err)
	}
	pv, _, err := swap.PresentValue(env, false)
	if err != nil {
		t.Fatalf("PresentValue error: %v", err)
	}
	if math.Abs(pv) > 1e-10 {
		t.Fatalf("1Y swap pv = %v, want |pv| < 1e-10", pv)
	}
}

func TestCalibrate_Deterministic(t *testing.T) {
	t.Parallel()

	cb := testCalibrator(calibrate.SolverConfig{})
	first, err := cb.Calibrate(oisGroup(), oisMarket(), nil)
	if err != nil {
		t.Fatalf("Calibrate error: %v", err)
	}
	second, err := cb.Calibrate(oisGroup(), oisMarket(), nil)
	if err != nil {
		t.Fatalf("Calibrate error: %v", err)
	}

	c1, _ := first.Curve("EUR-OIS")
	c2, _ := second.Curve("EUR-OIS")
	p1, p2 := c1.Params(), c2.Params()
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Fatalf("parameter %d differs between runs: %v vs %v", i, p1[i], p2[i])
		}
	}

	j1, j2 := first.Jacobian(), second.Jacobian()
	r, c := j1.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if j1.At(i, j) != j2.At(i, j) {
				t.Fatalf("jacobian (%d,%d) differs between runs", i, j)
			}
		}
	}
}

func TestCalibrate_MissingQuote(t *testing.T) {
	t.Parallel()

	mkt := market.NewSet(date(2026, time.January, 6), map[market.QuoteID]float64{
		"EUR-DEP-1W": 0.0010,
		"EUR-OIS-1Y": 0.0100,
		// EUR-OIS-2Y intentionally absent.
	})
	_, err := testCalibrator(calibrate.SolverConfig{}).Calibrate(oisGroup(), mkt, nil)
	var missing *calibrate.MissingMarketDataError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingMarketDataError, got %v", err)
	}
	if missing.QuoteID != "EUR-OIS-2Y" || missing.Curve != "EUR-OIS" || missing.Group != "EUR-DSC" {
		t.Fatalf("unexpected error fields: %+v", missing)
	}
}

func TestCalibrate_DuplicateNodeDate(t *testing.T) {
	t.Parallel()

	conv := oisConvention()
	group := calibrate.GroupDefinition{
		Name: "EUR-DSC",
		Curves: []calibrate.CurveDefinition{{
			Name:         "EUR-OIS",
			Currency:     "EUR",
			ValueType:    curve.LogDiscountFactor,
			Interpolator: curve.Linear{},
			Nodes: []calibrate.CurveNode{
				{Kind: calibrate.NodeDeposit, QuoteID: "EUR-DEP-1W", Tenor: utils.Tenor{Days: 7}, Convention: conv},
				{Kind: calibrate.NodeDeposit, QuoteID: "EUR-DEP-7D", Tenor: utils.Tenor{Days: 7}, Convention: conv},
			},
		}},
	}
	mkt := market.NewSet(date(2026, time.January, 6), map[market.QuoteID]float64{
		"EUR-DEP-1W": 0.0010,
		"EUR-DEP-7D": 0.0011,
	})
	_, err := testCalibrator(calibrate.SolverConfig{}).Calibrate(group, mkt, nil)
	var invalid *calibrate.InvalidCurveNodeError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidCurveNodeError, got %v", err)
	}
}

func TestCalibrate_CyclicDependency(t *testing.T) {
	t.Parallel()

	convA := oisConvention()
	convA.DiscountCurve = "EUR-B"
	convB := oisConvention()
	convB.DiscountCurve = "EUR-A"

	group := calibrate.GroupDefinition{
		Name: "EUR-CYC",
		Curves: []calibrate.CurveDefinition{
			{
				Name: "EUR-A", Currency: "EUR", ValueType: curve.LogDiscountFactor, Interpolator: curve.Linear{},
				Nodes: []calibrate.CurveNode{{Kind: calibrate.NodeSwap, QuoteID: "A-1Y", Tenor: utils.Tenor{Months: 12}, Convention: convA}},
			},
			{
				Name: "EUR-B", Currency: "EUR", ValueType: curve.LogDiscountFactor, Interpolator: curve.Linear{},
				Nodes: []calibrate.CurveNode{{Kind: calibrate.NodeSwap, QuoteID: "B-1Y", Tenor: utils.Tenor{Months: 12}, Convention: convB}},
			},
		},
	}
	mkt := market.NewSet(date(2026, time.January, 6), map[market.QuoteID]float64{
		"A-1Y": 0.01,
		"B-1Y": 0.012,
	})

	_, err := testCalibrator(calibrate.SolverConfig{}).Calibrate(group, mkt, nil)
	var cyclic *calibrate.CyclicCurveDependencyError
	if !errors.As(err, &cyclic) {
		t.Fatalf("expected CyclicCurveDependencyError, got %v", err)
	}
	if len(cyclic.Curves) != 2 || cyclic.Curves[0] != "EUR-A" || cyclic.Curves[1] != "EUR-B" {
		t.Fatalf("cycle curves = %v", cyclic.Curves)
	}
}

func TestCalibrate_UnknownCurveReference(t *testing.T) {
	t.Parallel()

	conv := oisConvention()
	conv.DiscountCurve = "EUR-GHOST"
	group := calibrate.GroupDefinition{
		Name: "EUR-DSC",
		Curves: []calibrate.CurveDefinition{{
			Name: "EUR-OIS", Currency: "EUR", ValueType: curve.LogDiscountFactor, Interpolator: curve.Linear{},
			Nodes: []calibrate.CurveNode{{Kind: calibrate.NodeSwap, QuoteID: "EUR-OIS-1Y", Tenor: utils.Tenor{Months: 12}, Convention: conv}},
		}},
	}
	mkt := market.NewSet(date(2026, time.January, 6), map[market.QuoteID]float64{"EUR-OIS-1Y": 0.01})
	if _, err := testCalibrator(calibrate.SolverConfig{}).Calibrate(group, mkt, nil); err == nil {
		t.Fatalf("expected error for reference to unknown curve")
	}
}

func TestCalibrate_MaxIterationsExceeded(t *testing.T) {
	t.Parallel()

	_, err := testCalibrator(calibrate.SolverConfig{MaxIterations: 1}).Calibrate(oisGroup(), oisMarket(), nil)
	var maxIter *calibrate.MaxIterationsExceededError
	if !errors.As(err, &maxIter) {
		t.Fatalf("expected MaxIterationsExceededError, got %v", err)
	}
	if maxIter.Iterations != 1 {
		t.Fatalf("iterations = %d, want 1", maxIter.Iterations)
	}
	if maxIter.MaxResidual <= 0 {
		t.Fatalf("expected positive terminal residual, got %v", maxIter.MaxResidual)
	}
}

func TestCalibrate_TwoCurveGroup(t *testing.T) {
	t.Parallel()

	group, mkt := twoCurveGroup()
	res, err := testCalibrator(calibrate.SolverConfig{}).Calibrate(group, mkt, nil)
	if err != nil {
		t.Fatalf("Calibrate error: %v", err)
	}
	if len(res.ParameterKeys()) != 7 {
		t.Fatalf("expected 7 parameters, got %d", len(res.ParameterKeys()))
	}

	env := res.Environment()
	valuation := res.ValuationDate()
	spot := calendar.AddBusinessDays(calendar.NONE, valuation, 2)

	// The 1Y projection swap discounts on EUR-OIS and projects on the
	// calibrated EURIBOR curve; it must reprice to its quote.
	maturity := calendar.Adjust(calendar.NONE, utils.Tenor{Months: 12}.AddTo(spot))
	swap, err := calibrate.NewSwap(calibrate.SwapSpec{
		QuoteID:         "NODE",
		FixedRate:       0.0120,
		Currency:        "EUR",
		DiscountCurve:   "EUR-OIS",
		ProjectionCurve: "EUR-EURIBOR-3M",
		Effective:       spot,
		Maturity:        maturity,
		Calendar:        calendar.NONE,
		FixedFreqMonths: 12,
		FloatFreqMonths: 3,
		FixedDayCount:   "ACT/365F",
		FloatDayCount:   "ACT/365F",
	})
	if err != nil {
		t.Fatalf("NewSwap error: %v", err)
	}
	spread, _, err := swap.ParSpread(env, false)
	if err != nil {
		t.Fatalf("ParSpread error: %v", err)
	}
	if math.Abs(spread) > 1e-10 {
		t.Fatalf("projection swap repricing off by %v", spread)
	}

	// FRA node repricing.
	fraStart := calendar.Adjust(calendar.NONE, utils.Tenor{Months: 3}.AddTo(spot))
	fraEnd := calendar.Adjust(calendar.NONE, utils.Tenor{Months: 3}.AddTo(fraStart))
	fra, err := calibrate.NewFRA("NODE", 0.0105, "EUR", "EUR-EURIBOR-3M", fraStart, fraEnd, "ACT/365F")
	if err != nil {
		t.Fatalf("NewFRA error: %v", err)
	}
	spread, _, err = fra.ParSpread(env, false)
	if err != nil {
		t.Fatalf("ParSpread error: %v", err)
	}
	if math.Abs(spread) > 1e-10 {
		t.Fatalf("fra repricing off by %v", spread)
	}
}

func TestCalibrate_SeedCurve(t *testing.T) {
	t.Parallel()

	valuation := date(2026, time.January, 6)
	seed, err := curve.FromDiscountFactors("EUR-OIS", "EUR", valuation, map[time.Time]float64{
		valuation.AddDate(0, 6, 0): 0.9975,
		valuation.AddDate(1, 0, 0): 0.9900,
		valuation.AddDate(2, 0, 0): 0.9755,
		valuation.AddDate(3, 0, 0): 0.9560,
	})
	if err != nil {
		t.Fatalf("FromDiscountFactors error: %v", err)
	}
	seedParams := seed.Params()

	group := calibrate.GroupDefinition{Name: "EUR-PRJ", Curves: []calibrate.CurveDefinition{iborCurve()}}
	mkt := market.NewSet(valuation, map[market.QuoteID]float64{
		"EUR-EURIBOR-3M": 0.0090,
		"EUR-FRA-3X6":    0.0105,
		"EUR-IRS-1Y":     0.0120,
		"EUR-IRS-2Y":     0.0150,
	})

	res, err := testCalibrator(calibrate.SolverConfig{}).Calibrate(group, mkt, []*curve.Curve{seed})
	if err != nil {
		t.Fatalf("Calibrate error: %v", err)
	}

	if !res.Environment().IsSeed("EUR-OIS") {
		t.Fatalf("expected EUR-OIS to be a seed in the result environment")
	}
	if _, err := res.Curve("EUR-OIS"); err == nil {
		t.Fatalf("expected error requesting a seed as a calibrated curve")
	}

	// The seed is untouched by calibration.
	after, err := res.Environment().Curve("EUR-OIS")
	if err != nil {
		t.Fatalf("Curve error: %v", err)
	}
	for i, p := range after.Params() {
		if p != seedParams[i] {
			t.Fatalf("seed parameter %d changed: %v vs %v", i, p, seedParams[i])
		}
	}

	// Seed name collisions are rejected: oisGroup calibrates its own EUR-OIS.
	if _, err := testCalibrator(calibrate.SolverConfig{}).Calibrate(oisGroup(), oisMarket(), []*curve.Curve{seed}); err == nil {
		t.Fatalf("expected error for curve supplied both in group and as seed")
	}
}

func TestMarketQuoteSensitivity_MatchesBumpRecalibration(t *testing.T) {
	t.Parallel()

	cb := testCalibrator(calibrate.SolverConfig{})
	mkt := oisMarket()
	res, err := cb.Calibrate(oisGroup(), mkt, nil)
	if err != nil {
		t.Fatalf("Calibrate error: %v", err)
	}
	valuation := res.ValuationDate()
	spot := calendar.AddBusinessDays(calendar.NONE, valuation, 2)

	// Off-par 18M trade.
	spec := calibrate.SwapSpec{
		QuoteID:         "TRADE-18M",
		FixedRate:       0.0200,
		Currency:        "EUR",
		DiscountCurve:   "EUR-OIS",
		ProjectionCurve: "EUR-OIS",
		Effective:       spot,
		Maturity:        calendar.Adjust(calendar.NONE, utils.Tenor{Months: 18}.AddTo(spot)),
		Calendar:        calendar.NONE,
		FixedFreqMonths: 12,
		FloatFreqMonths: 12,
		FixedDayCount:   "ACT/365F",
		FloatDayCount:   "ACT/365F",
	}
	trade, err := calibrate.NewSwap(spec)
	if err != nil {
		t.Fatalf("NewSwap error: %v", err)
	}

	pv0, ps, err := trade.PresentValue(res.Environment(), true)
	if err != nil {
		t.Fatalf("PresentValue error: %v", err)
	}
	quoteSens, err := res.MarketQuoteSensitivity(ps)
	if err != nil {
		t.Fatalf("MarketQuoteSensitivity error: %v", err)
	}
	if ccys := quoteSens.Currencies(); len(ccys) != 1 || ccys[0] != "EUR" {
		t.Fatalf("currencies = %v", ccys)
	}

	const eps = 1e-6
	for _, id := range mkt.IDs() {
		want := quoteSens.Value("EUR", string(id))

		q, _ := mkt.Quote(id)
		bumpedRes, err := cb.Calibrate(oisGroup(), mkt.WithQuote(id, q+eps), nil)
		if err != nil {
			t.Fatalf("bumped Calibrate error: %v", err)
		}
		pv1, _, err := trade.PresentValue(bumpedRes.Environment(), false)
		if err != nil {
			t.Fatalf("bumped PresentValue error: %v", err)
		}
		got := (pv1 - pv0) / eps
		if math.Abs(got-want) > 1e-4*(1+math.Abs(want)) {
			t.Fatalf("quote %s: jacobian sensitivity %.8f, bump-recalibrate %.8f", id, want, got)
		}
	}
}

func TestMarketQuoteSensitivity_CrossCurve(t *testing.T) {
	t.Parallel()

	cb := testCalibrator(calibrate.SolverConfig{})
	group, mkt := twoCurveGroup()
	res, err := cb.Calibrate(group, mkt, nil)
	if err != nil {
		t.Fatalf("Calibrate error: %v", err)
	}
	valuation := res.ValuationDate()
	spot := calendar.AddBusinessDays(calendar.NONE, valuation, 2)

	trade, err := calibrate.NewSwap(calibrate.SwapSpec{
		QuoteID:         "TRADE-18M",
		FixedRate:       0.0130,
		Currency:        "EUR",
		DiscountCurve:   "EUR-OIS",
		ProjectionCurve: "EUR-EURIBOR-3M",
		Effective:       spot,
		Maturity:        calendar.Adjust(calendar.NONE, utils.Tenor{Months: 18}.AddTo(spot)),
		Calendar:        calendar.NONE,
		FixedFreqMonths: 12,
		FloatFreqMonths: 3,
		FixedDayCount:   "ACT/365F",
		FloatDayCount:   "ACT/365F",
	})
	if err != nil {
		t.Fatalf("NewSwap error: %v", err)
	}

	pv0, ps, err := trade.PresentValue(res.Environment(), true)
	if err != nil {
		t.Fatalf("PresentValue error: %v", err)
	}
	quoteSens, err := res.MarketQuoteSensitivity(ps)
	if err != nil {
		t.Fatalf("MarketQuoteSensitivity error: %v", err)
	}

	// The trade discounts on the OIS curve, so OIS quotes carry risk even
	// though the trade projects on the EURIBOR curve.
	for _, id := range []market.QuoteID{"EUR-OIS-1Y", "EUR-IRS-1Y", "EUR-IRS-2Y"} {
		want := quoteSens.Value("EUR", string(id))
		if id != "EUR-OIS-1Y" && want == 0 {
			t.Fatalf("quote %s: expected non-zero sensitivity", id)
		}

		const eps = 1e-6
		q, _ := mkt.Quote(id)
		bumpedRes, err := cb.Calibrate(group, mkt.WithQuote(id, q+eps), nil)
		if err != nil {
			t.Fatalf("bumped Calibrate error: %v", err)
		}
		pv1, _, err := trade.PresentValue(bumpedRes.Environment(), false)
		if err != nil {
			t.Fatalf("bumped PresentValue error: %v", err)
		}
		got := (pv1 - pv0) / eps
		if math.Abs(got-want) > 1e-4*(1+math.Abs(want)) {
			t.Fatalf("quote %s: jacobian sensitivity %.8f, bump-recalibrate %.8f", id, want, got)
		}
	}
}

func TestParameterSensitivity_MatchesBump(t *testing.T) {
	t.Parallel()

	res, err := testCalibrator(calibrate.SolverConfig{}).Calibrate(oisGroup(), oisMarket(), nil)
	if err != nil {
		t.Fatalf("Calibrate error: %v", err)
	}
	valuation := res.ValuationDate()
	spot := calendar.AddBusinessDays(calendar.NONE, valuation, 2)

	trade, err := calibrate.NewSwap(calibrate.SwapSpec{
		QuoteID:         "TRADE-18M",
		FixedRate:       0.0200,
		Currency:        "EUR",
		DiscountCurve:   "EUR-OIS",
		ProjectionCurve: "EUR-OIS",
		Effective:       spot,
		Maturity:        calendar.Adjust(calendar.NONE, utils.Tenor{Months: 18}.AddTo(spot)),
		Calendar:        calendar.NONE,
		FixedFreqMonths: 12,
		FloatFreqMonths: 12,
		FixedDayCount:   "ACT/365F",
		FloatDayCount:   "ACT/365F",
	})
	if err != nil {
		t.Fatalf("NewSwap error: %v", err)
	}

	_, ps, err := trade.PresentValue(res.Environment(), true)
	if err != nil {
		t.Fatalf("PresentValue error: %v", err)
	}
	paramSens, err := res.ParameterSensitivity(ps)
	if err != nil {
		t.Fatalf("ParameterSensitivity error: %v", err)
	}
	if len(paramSens.Entries) != 1 || paramSens.Entries[0].Curve != "EUR-OIS" {
		t.Fatalf("unexpected entries: %+v", paramSens.Entries)
	}

	c, err := res.Curve("EUR-OIS")
	if err != nil {
		t.Fatalf("Curve error: %v", err)
	}
	const h = 1e-7
	for i, want := range paramSens.Entries[0].Values {
		pvAt := func(v float64) float64 {
			bumped, err := c.WithParameter(i, v)
			if err != nil {
				t.Fatalf("WithParameter error: %v", err)
			}
			pv, _, err := trade.PresentValue(rebuildEnv(t, res.Environment(), bumped), false)
			if err != nil {
				t.Fatalf("PresentValue error: %v", err)
			}
			return pv
		}
		fd := (pvAt(c.Param(i)+h) - pvAt(c.Param(i)-h)) / (2 * h)
		if math.Abs(want-fd) > 1e-6 {
			t.Fatalf("parameter %d: analytic %.10f, finite difference %.10f", i, want, fd)
		}
	}
	if paramSens.Total() == 0 {
		t.Fatalf("expected non-zero total parameter sensitivity")
	}
}

func TestResult_JacobianIsACopy(t *testing.T) {
	t.Parallel()

	res, err := testCalibrator(calibrate.SolverConfig{}).Calibrate(oisGroup(), oisMarket(), nil)
	if err != nil {
		t.Fatalf("Calibrate error: %v", err)
	}
	j := res.Jacobian()
	orig := j.At(0, 0)
	j.Set(0, 0, orig+1)
	if res.Jacobian().At(0, 0) != orig {
		t.Fatalf("mutating the returned jacobian leaked into the result")
	}

	keys := res.ParameterKeys()
	if len(keys) != 3 {
		t.Fatalf("expected 3 parameter keys, got %d", len(keys))
	}
	for i, k := range keys {
		if k.Curve != "EUR-OIS" || k.Index != i {
			t.Fatalf("key %d = %+v", i, k)
		}
	}
}

func TestGroupDefinition_Validate(t *testing.T) {
	t.Parallel()

	conv := oisConvention()
	node := calibrate.CurveNode{Kind: calibrate.NodeSwap, QuoteID: "Q-1Y", Tenor: utils.Tenor{Months: 12}, Convention: conv}
	valid := func() calibrate.GroupDefinition {
		return calibrate.GroupDefinition{
			Name: "G",
			Curves: []calibrate.CurveDefinition{{
				Name: "C", Currency: "EUR", ValueType: curve.ZeroRate, Interpolator: curve.Linear{},
				Nodes: []calibrate.CurveNode{node},
			}},
		}
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("valid group rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*calibrate.GroupDefinition)
	}{
		{"empty group name", func(g *calibrate.GroupDefinition) { g.Name = "" }},
		{"no curves", func(g *calibrate.GroupDefinition) { g.Curves = nil }},
		{"empty curve name", func(g *calibrate.GroupDefinition) { g.Curves[0].Name = "" }},
		{"duplicate curve", func(g *calibrate.GroupDefinition) { g.Curves = append(g.Curves, g.Curves[0]) }},
		{"no currency", func(g *calibrate.GroupDefinition) { g.Curves[0].Currency = "" }},
		{"no nodes", func(g *calibrate.GroupDefinition) { g.Curves[0].Nodes = nil }},
		{"nil interpolator", func(g *calibrate.GroupDefinition) { g.Curves[0].Interpolator = nil }},
		{"empty quote id", func(g *calibrate.GroupDefinition) { g.Curves[0].Nodes[0].QuoteID = "" }},
		{"duplicate quote id", func(g *calibrate.GroupDefinition) {
			g.Curves[0].Nodes = append(g.Curves[0].Nodes, g.Curves[0].Nodes[0])
		}},
	}
	for _, tc := range cases {
		g := valid()
		tc.mutate(&g)
		if err := g.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
