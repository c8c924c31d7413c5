package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReadCSV parses a two-column quote file (quote_id,value) into a snapshot.
//
// Values are parsed as exact decimals before conversion to float64 so that
// rate files written with trailing zeros or exponent notation load
// reproducibly. A header row is skipped when the value column does not parse.
func ReadCSV(r io.Reader, valuationDate time.Time) (*Set, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true

	quotes := make(map[QuoteID]float64)
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("market: read csv: %w", err)
		}
		line++

		id := QuoteID(strings.TrimSpace(rec[0]))
		d, err := decimal.NewFromString(strings.TrimSpace(rec[1]))
		if err != nil {
			if line == 1 {
				// Header row.
				continue
			}
			return nil, fmt.Errorf("market: csv line %d: bad value %q: %w", line, rec[1], err)
		}
		if id == "" {
			return nil, fmt.Errorf("market: csv line %d: empty quote id", line)
		}
		if _, dup := quotes[id]; dup {
			return nil, fmt.Errorf("market: csv line %d: duplicate quote id %s", line, id)
		}
		quotes[id] = d.InexactFloat64()
	}

	if len(quotes) == 0 {
		return nil, fmt.Errorf("market: csv contains no quotes")
	}
	return NewSet(valuationDate, quotes), nil
}

// ReadCSVFile opens and parses a quote file.
func ReadCSVFile(path string, valuationDate time.Time) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("market: open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f, valuationDate)
}
