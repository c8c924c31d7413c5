// Package market holds market-data snapshots consumed by curve calibration.
//
// A snapshot is a flat mapping from quote identifier to numeric value for a
// single valuation date. Snapshots are immutable once built; scenario runs
// each own their own snapshot.
package market

import (
	"fmt"
	"sort"
	"time"
)

// QuoteID identifies one market observable, e.g. "EUR-OIS-1Y" or "USD-DEP-3M".
type QuoteID string

// Set is an immutable market-data snapshot for one valuation date.
type Set struct {
	valuationDate time.Time
	quotes        map[QuoteID]float64
}

// NewSet builds a snapshot from a quote map. The map is copied.
func NewSet(valuationDate time.Time, quotes map[QuoteID]float64) *Set {
	cp := make(map[QuoteID]float64, len(quotes))
	for k, v := range quotes {
		cp[k] = v
	}
	return &Set{valuationDate: valuationDate, quotes: cp}
}

// ValuationDate returns the snapshot's valuation date.
func (s *Set) ValuationDate() time.Time {
	return s.valuationDate
}

// Quote looks up a quote value. The second return reports presence; absence is
// an expected condition and is not an error at this layer.
func (s *Set) Quote(id QuoteID) (float64, bool) {
	v, ok := s.quotes[id]
	return v, ok
}

// Len returns the number of quotes in the snapshot.
func (s *Set) Len() int {
	return len(s.quotes)
}

// IDs returns the quote identifiers in lexical order.
func (s *Set) IDs() []QuoteID {
	ids := make([]QuoteID, 0, len(s.quotes))
	for id := range s.quotes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// WithQuote returns a copy of the snapshot with one quote replaced or added.
// Used for bump-based sensitivity verification; the receiver is unchanged.
func (s *Set) WithQuote(id QuoteID, value float64) *Set {
	cp := make(map[QuoteID]float64, len(s.quotes)+1)
	for k, v := range s.quotes {
		cp[k] = v
	}
	cp[id] = value
	return &Set{valuationDate: s.valuationDate, quotes: cp}
}

// MustQuote looks up a quote and formats a descriptive error when absent.
func (s *Set) MustQuote(id QuoteID) (float64, error) {
	v, ok := s.quotes[id]
	if !ok {
		return 0, fmt.Errorf("market: quote %s not found for %s", id, s.valuationDate.Format("2006-01-02"))
	}
	return v, nil
}
