package calibrate

import (
	"fmt"

	"github.com/meenmo/curvecal/curve"
	"github.com/meenmo/curvecal/market"
)

// CurveDefinition is the configuration for one named curve: its ordered
// nodes, parameter semantics and interpolation scheme.
type CurveDefinition struct {
	Name         string
	Currency     string
	ValueType    curve.ValueType
	Interpolator curve.Interpolator
	Nodes        []CurveNode
}

// dependencies returns the names of other curves this curve's instruments
// reference for discounting or projection. Self references do not count.
func (d CurveDefinition) dependencies() []string {
	seen := map[string]bool{}
	var out []string
	for _, n := range d.Nodes {
		discount, projection := n.resolveCurves(d.Name)
		for _, ref := range []string{discount, projection} {
			if ref != d.Name && !seen[ref] {
				seen[ref] = true
				out = append(out, ref)
			}
		}
	}
	return out
}

// GroupDefinition is a named collection of curve definitions calibrated
// together. Every curve referenced by another curve's instruments must either
// belong to the group or be supplied as a seed curve.
type GroupDefinition struct {
	Name   string
	Curves []CurveDefinition
}

// Validate checks structural invariants that do not require market data.
func (g GroupDefinition) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("calibrate: group with empty name")
	}
	if len(g.Curves) == 0 {
		return fmt.Errorf("calibrate: group %s has no curves", g.Name)
	}
	seen := map[string]bool{}
	for _, c := range g.Curves {
		if c.Name == "" {
			return fmt.Errorf("calibrate: group %s: curve with empty name", g.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("calibrate: group %s: duplicate curve %s", g.Name, c.Name)
		}
		seen[c.Name] = true
		if c.Currency == "" {
			return fmt.Errorf("calibrate: group %s: curve %s has no currency", g.Name, c.Name)
		}
		if len(c.Nodes) == 0 {
			return fmt.Errorf("calibrate: group %s: curve %s has no nodes", g.Name, c.Name)
		}
		if c.Interpolator == nil {
			return fmt.Errorf("calibrate: group %s: curve %s has no interpolator", g.Name, c.Name)
		}
		quotes := map[market.QuoteID]bool{}
		for _, n := range c.Nodes {
			if n.QuoteID == "" {
				return &InvalidCurveNodeError{Curve: c.Name, QuoteID: n.QuoteID, Reason: "empty quote id"}
			}
			if quotes[n.QuoteID] {
				return &InvalidCurveNodeError{Curve: c.Name, QuoteID: n.QuoteID, Reason: "duplicate quote id"}
			}
			quotes[n.QuoteID] = true
		}
	}
	return nil
}

// ParamKey addresses one curve parameter within a group.
type ParamKey struct {
	Curve string
	Index int
}

// Ordering is the deterministic flattened (curve, parameter-index) ordering
// shared by residual rows, Jacobian rows/columns and sensitivity vectors.
// Curves appear in group definition order; parameters in node order.
type Ordering struct {
	keys       []ParamKey
	offsets    map[string]int
	counts     map[string]int
	quoteIDs   []market.QuoteID // per row: the instrument's quote
	currencies []string         // per row: the instrument's settlement currency
}

func newOrdering() *Ordering {
	return &Ordering{offsets: make(map[string]int), counts: make(map[string]int)}
}

func (o *Ordering) appendCurve(name string, quoteIDs []market.QuoteID, currency string) {
	o.offsets[name] = len(o.keys)
	o.counts[name] = len(quoteIDs)
	for i, q := range quoteIDs {
		o.keys = append(o.keys, ParamKey{Curve: name, Index: i})
		o.quoteIDs = append(o.quoteIDs, q)
		o.currencies = append(o.currencies, currency)
	}
}

// Size returns the total parameter count.
func (o *Ordering) Size() int { return len(o.keys) }

// Keys returns a copy of the flattened parameter keys.
func (o *Ordering) Keys() []ParamKey {
	out := make([]ParamKey, len(o.keys))
	copy(out, o.keys)
	return out
}

// Offset returns the first flat index of the named curve's parameters.
// The second return reports whether the curve has columns in the ordering.
func (o *Ordering) Offset(name string) (int, bool) {
	off, ok := o.offsets[name]
	return off, ok
}

// Count returns the named curve's parameter count.
func (o *Ordering) Count(name string) int { return o.counts[name] }

// QuoteID returns the market quote backing flat row k.
func (o *Ordering) QuoteID(k int) market.QuoteID { return o.quoteIDs[k] }

// Currency returns the settlement currency of flat row k.
func (o *Ordering) Currency(k int) string { return o.currencies[k] }
