// Command quoterisk calibrates a curve group, prices a fixed-versus-floating
// swap against it and prints the swap's market-quote delta ladder.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/meenmo/curvecal/calendar"
	"github.com/meenmo/curvecal/calibrate"
	"github.com/meenmo/curvecal/config"
	"github.com/meenmo/curvecal/logger"
	"github.com/meenmo/curvecal/market"
	"github.com/meenmo/curvecal/utils"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("quoterisk", flag.ContinueOnError)
	fs.SetOutput(stderr)

	defsPath := fs.String("defs", "curves.yaml", "curve group definition file")
	quotesPath := fs.String("quotes", "", "quote CSV file (quote_id,value)")
	dateStr := fs.String("date", "", "valuation date YYYY-MM-DD")
	groupName := fs.String("group", "", "curve group to calibrate")
	curveName := fs.String("curve", "", "discount/projection curve for the swap")
	tenorStr := fs.String("tenor", "10Y", "swap tenor")
	fixedRate := fs.Float64("fixed", 0.02, "fixed rate (decimal)")
	notional := fs.Float64("notional", 1_000_000, "notional")
	fixedFreq := fs.Int("fixed-freq", 12, "fixed leg frequency in months")
	floatFreq := fs.Int("float-freq", 12, "floating leg frequency in months")
	dayCount := fs.String("day-count", "ACT/365F", "accrual day count")
	calID := fs.String("calendar", string(calendar.NONE), "holiday calendar")
	spotLag := fs.Int("spot-lag", 2, "spot lag in business days")
	logLevel := fs.String("log-level", "warn", "log level")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	log := logger.New(*logLevel)

	valuation, err := utils.ParseDate(*dateStr)
	if err != nil {
		fmt.Fprintf(stderr, "invalid -date: %v\n", err)
		return 2
	}
	tenor, err := utils.ParseTenor(*tenorStr)
	if err != nil {
		fmt.Fprintf(stderr, "invalid -tenor: %v\n", err)
		return 2
	}

	cfg, err := config.LoadAndValidate(*defsPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	groups, err := cfg.GroupDefinitions()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	var group *calibrate.GroupDefinition
	for i := range groups {
		if *groupName == "" || groups[i].Name == *groupName {
			group = &groups[i]
			break
		}
	}
	if group == nil {
		fmt.Fprintf(stderr, "group %s not found in %s\n", *groupName, *defsPath)
		return 1
	}
	if *curveName == "" {
		*curveName = group.Curves[0].Name
	}

	mkt, err := market.ReadCSVFile(*quotesPath, valuation)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	res, err := calibrate.NewCalibrator(calibrate.SolverConfig{}, log).Calibrate(*group, mkt, nil)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	cal := calendar.CalendarID(*calID)
	effective := calendar.AddBusinessDays(cal, valuation, *spotLag)
	maturity := calendar.Adjust(cal, tenor.AddTo(effective))

	disc, err := res.Curve(*curveName)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	swap, err := calibrate.NewSwap(calibrate.SwapSpec{
		QuoteID:         market.QuoteID(fmt.Sprintf("TRADE-%s", *tenorStr)),
		FixedRate:       *fixedRate,
		Notional:        *notional,
		Currency:        disc.Currency(),
		DiscountCurve:   *curveName,
		ProjectionCurve: *curveName,
		Effective:       effective,
		Maturity:        maturity,
		Calendar:        cal,
		FixedFreqMonths: *fixedFreq,
		FloatFreqMonths: *floatFreq,
		FixedDayCount:   *dayCount,
		FloatDayCount:   *dayCount,
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	pv, pointSens, err := swap.PresentValue(res.Environment(), true)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	quoteSens, err := res.MarketQuoteSensitivity(pointSens)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	fmt.Fprintf(stdout, "swap %s, fixed %.6f, notional %.2f\n", *tenorStr, *fixedRate, *notional)
	fmt.Fprintf(stdout, "pv: %.6f\n", pv)
	tw := tabwriter.NewWriter(stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "currency\tquote\tsensitivity (per unit quote)\tper bp")
	for _, ccy := range quoteSens.Currencies() {
		for _, q := range quoteSens.Quotes(ccy) {
			fmt.Fprintf(tw, "%s\t%s\t%.6f\t%.6f\n", ccy, q.QuoteID, q.Value, q.Value*1e-4)
		}
	}
	tw.Flush()
	return 0
}
