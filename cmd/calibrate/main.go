// Command calibrate builds the curve groups defined in a YAML file from a
// quote snapshot (CSV file or Postgres store) and prints the calibrated
// curves.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/meenmo/curvecal/calibrate"
	"github.com/meenmo/curvecal/config"
	"github.com/meenmo/curvecal/logger"
	"github.com/meenmo/curvecal/market"
	"github.com/meenmo/curvecal/marketdata/pg"
	"github.com/meenmo/curvecal/utils"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("calibrate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	defsPath := fs.String("defs", "curves.yaml", "curve group definition file")
	quotesPath := fs.String("quotes", "", "quote CSV file (quote_id,value)")
	dateStr := fs.String("date", "", "valuation date YYYY-MM-DD")
	groupName := fs.String("group", "", "calibrate only this group (default: all)")
	dsnHost := fs.String("pg-host", "", "load quotes from Postgres at this host instead of CSV")
	dsnPort := fs.Int("pg-port", 5432, "Postgres port")
	dsnName := fs.String("pg-db", "marketdata", "Postgres database")
	dsnUser := fs.String("pg-user", "", "Postgres user")
	logLevel := fs.String("log-level", "info", "log level (debug|info|warn|error)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	log := logger.New(*logLevel)

	valuation, err := utils.ParseDate(*dateStr)
	if err != nil {
		fmt.Fprintf(stderr, "invalid -date: %v\n", err)
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

	var mkt *market.Set
	switch {
	case *dsnHost != "":
		store, err := pg.Connect(context.Background(), pg.Config{
			Host:     *dsnHost,
			Port:     *dsnPort,
			Name:     *dsnName,
			User:     *dsnUser,
			Password: os.Getenv("PGPASSWORD"),
		})
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		defer store.Close()
		mkt, err = store.Snapshot(context.Background(), valuation)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	case *quotesPath != "":
		mkt, err = market.ReadCSVFile(*quotesPath, valuation)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	default:
		fmt.Fprintln(stderr, "either -quotes or -pg-host is required")
		return 2
	}

	calibrator := calibrate.NewCalibrator(calibrate.SolverConfig{}, log)

	failed := false
	for _, group := range groups {
		if *groupName != "" && group.Name != *groupName {
			continue
		}
		res, err := calibrator.Calibrate(group, mkt, nil)
		if err != nil {
			fmt.Fprintf(stderr, "group %s: %v\n", group.Name, err)
			failed = true
			continue
		}
		printResult(stdout, res)
	}
	if failed {
		return 1
	}
	return 0
}

func printResult(w io.Writer, res *calibrate.Result) {
	fmt.Fprintf(w, "group %s (%s), %d iterations\n", res.Group(), res.ValuationDate().Format("2006-01-02"), res.Iterations())
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "curve\tnode date\tzero rate\tdiscount factor")
	for _, name := range res.CurveNames() {
		c, err := res.Curve(name)
		if err != nil {
			continue
		}
		for _, d := range c.NodeDates() {
			fmt.Fprintf(tw, "%s\t%s\t%.8f\t%.10f\n", name, d.Format("2006-01-02"), c.ZeroRateAt(d), c.DF(d))
		}
	}
	tw.Flush()
}
