// Package sensitivity defines the sensitivity value objects passed between
// pricers and the calibration engine: point sensitivities (per curve value at
// a date), parameter sensitivities (per curve parameter) and market quote
// sensitivities (per original quote), the latter grouped by settlement
// currency.
//
// All types are plain data with deterministic ordering; accumulation happens
// by appending entries, never by iterating maps.
package sensitivity

import (
	"sort"
	"time"
)

// PointEntry is one derivative of a priced value with respect to the discount
// factor of a named curve at a date.
type PointEntry struct {
	Curve    string
	Currency string
	Date     time.Time
	Value    float64
}

// PointSensitivity is an ordered collection of point entries.
// The zero value is ready to use.
type PointSensitivity struct {
	Entries []PointEntry
}

// Add appends one entry.
func (ps *PointSensitivity) Add(curveName, currency string, date time.Time, value float64) {
	ps.Entries = append(ps.Entries, PointEntry{Curve: curveName, Currency: currency, Date: date, Value: value})
}

// AddAll appends every entry of other.
func (ps *PointSensitivity) AddAll(other *PointSensitivity) {
	ps.Entries = append(ps.Entries, other.Entries...)
}

// Scaled returns a copy with every entry value multiplied by factor.
func (ps *PointSensitivity) Scaled(factor float64) *PointSensitivity {
	out := &PointSensitivity{Entries: make([]PointEntry, len(ps.Entries))}
	for i, e := range ps.Entries {
		e.Value *= factor
		out.Entries[i] = e
	}
	return out
}

// ParameterEntry holds the sensitivity vector for one curve's parameters.
type ParameterEntry struct {
	Curve    string
	Currency string
	Values   []float64
}

// ParameterSensitivity maps curve parameters to sensitivities, ordered by the
// calibration group's curve order.
type ParameterSensitivity struct {
	Entries []ParameterEntry
}

// Total returns the sum of all parameter sensitivities, a quick diagnostic
// for parallel-shift exposure.
func (ps *ParameterSensitivity) Total() float64 {
	sum := 0.0
	for _, e := range ps.Entries {
		for _, v := range e.Values {
			sum += v
		}
	}
	return sum
}

// QuoteValue is one market-quote sensitivity.
type QuoteValue struct {
	QuoteID string
	Value   float64
}

// MarketQuoteSensitivity holds per-quote sensitivities grouped by settlement
// currency. Produced per pricing call; not persisted.
type MarketQuoteSensitivity struct {
	byCurrency map[string]map[string]float64
}

// NewMarketQuoteSensitivity returns an empty result.
func NewMarketQuoteSensitivity() *MarketQuoteSensitivity {
	return &MarketQuoteSensitivity{byCurrency: make(map[string]map[string]float64)}
}

// Add accumulates a sensitivity for a quote in a currency.
func (m *MarketQuoteSensitivity) Add(currency, quoteID string, value float64) {
	cm, ok := m.byCurrency[currency]
	if !ok {
		cm = make(map[string]float64)
		m.byCurrency[currency] = cm
	}
	cm[quoteID] += value
}

// Currencies returns the settlement currencies in lexical order.
func (m *MarketQuoteSensitivity) Currencies() []string {
	out := make([]string, 0, len(m.byCurrency))
	for ccy := range m.byCurrency {
		out = append(out, ccy)
	}
	sort.Strings(out)
	return out
}

// Quotes returns the quote sensitivities for one currency, ordered by quote id.
func (m *MarketQuoteSensitivity) Quotes(currency string) []QuoteValue {
	cm := m.byCurrency[currency]
	out := make([]QuoteValue, 0, len(cm))
	for id, v := range cm {
		out = append(out, QuoteValue{QuoteID: id, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuoteID < out[j].QuoteID })
	return out
}

// Value returns the sensitivity for one quote in one currency.
func (m *MarketQuoteSensitivity) Value(currency, quoteID string) float64 {
	return m.byCurrency[currency][quoteID]
}
