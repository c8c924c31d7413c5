// Package config loads curve group definitions from YAML files.
package config

import (
	"fmt"

	"github.com/meenmo/curvecal/calendar"
	"github.com/meenmo/curvecal/calibrate"
	"github.com/meenmo/curvecal/curve"
	"github.com/meenmo/curvecal/market"
	"github.com/meenmo/curvecal/utils"
)

// File is the top-level YAML document.
type File struct {
	Groups []GroupConfig `yaml:"groups"`
}

// GroupConfig defines one curve group.
type GroupConfig struct {
	Name   string        `yaml:"name"`
	Curves []CurveConfig `yaml:"curves"`
}

// CurveConfig defines one curve: value semantics, interpolation, node list
// and the convention shared by its nodes.
type CurveConfig struct {
	Name          string           `yaml:"name"`
	Currency      string           `yaml:"currency"`
	ValueType     string           `yaml:"value_type"`
	Interpolation string           `yaml:"interpolation"`
	Convention    ConventionConfig `yaml:"convention"`
	Nodes         []NodeConfig     `yaml:"nodes"`
}

// ConventionConfig mirrors calibrate.Convention in YAML form.
type ConventionConfig struct {
	Calendar        string `yaml:"calendar"`
	SpotLagDays     *int   `yaml:"spot_lag_days"`
	DayCount        string `yaml:"day_count"`
	FixedDayCount   string `yaml:"fixed_day_count"`
	FixedFreqMonths int    `yaml:"fixed_freq_months"`
	FloatFreqMonths int    `yaml:"float_freq_months"`
	PayDelayDays    int    `yaml:"pay_delay_days"`
	DiscountCurve   string `yaml:"discount_curve"`
	ProjectionCurve string `yaml:"projection_curve"`
}

// NodeConfig defines one calibration node.
type NodeConfig struct {
	Kind     string  `yaml:"kind"`
	Quote    string  `yaml:"quote"`
	Tenor    string  `yaml:"tenor"`
	FwdTenor string  `yaml:"fwd_tenor"`
	SpreadBP float64 `yaml:"spread_bp"`
}

func (f *File) applyDefaults() {
	for gi := range f.Groups {
		for ci := range f.Groups[gi].Curves {
			c := &f.Groups[gi].Curves[ci]
			if c.ValueType == "" {
				c.ValueType = "zero_rate"
			}
			if c.Interpolation == "" {
				c.Interpolation = "linear"
			}
			if c.Convention.Calendar == "" {
				c.Convention.Calendar = string(calendar.NONE)
			}
			if c.Convention.SpotLagDays == nil {
				lag := 2
				c.Convention.SpotLagDays = &lag
			}
			if c.Convention.DayCount == "" {
				c.Convention.DayCount = "ACT/365F"
			}
			if c.Convention.FixedDayCount == "" {
				c.Convention.FixedDayCount = c.Convention.DayCount
			}
			if c.Convention.FixedFreqMonths == 0 {
				c.Convention.FixedFreqMonths = 12
			}
			if c.Convention.FloatFreqMonths == 0 {
				c.Convention.FloatFreqMonths = 12
			}
		}
	}
}

// Validate checks the document before conversion.
func (f *File) Validate() error {
	if len(f.Groups) == 0 {
		return fmt.Errorf("config: no groups defined")
	}
	for _, g := range f.Groups {
		if g.Name == "" {
			return fmt.Errorf("config: group with empty name")
		}
		for _, c := range g.Curves {
			if c.Name == "" {
				return fmt.Errorf("config: group %s: curve with empty name", g.Name)
			}
			if c.Currency == "" {
				return fmt.Errorf("config: group %s: curve %s: currency is required", g.Name, c.Name)
			}
			for _, n := range c.Nodes {
				if n.Quote == "" {
					return fmt.Errorf("config: curve %s: node with empty quote", c.Name)
				}
				if n.Tenor == "" {
					return fmt.Errorf("config: curve %s: node %s: tenor is required", c.Name, n.Quote)
				}
			}
		}
	}
	return nil
}

// GroupDefinitions converts the document into calibration group definitions.
func (f *File) GroupDefinitions() ([]calibrate.GroupDefinition, error) {
	out := make([]calibrate.GroupDefinition, 0, len(f.Groups))
	for _, g := range f.Groups {
		def := calibrate.GroupDefinition{Name: g.Name}
		for _, c := range g.Curves {
			cd, err := c.toDefinition()
			if err != nil {
				return nil, fmt.Errorf("config: group %s: %w", g.Name, err)
			}
			def.Curves = append(def.Curves, cd)
		}
		out = append(out, def)
	}
	return out, nil
}

func (c CurveConfig) toDefinition() (calibrate.CurveDefinition, error) {
	vt, err := curve.ParseValueType(c.ValueType)
	if err != nil {
		return calibrate.CurveDefinition{}, fmt.Errorf("curve %s: %w", c.Name, err)
	}
	ip, err := curve.ParseInterpolator(c.Interpolation)
	if err != nil {
		return calibrate.CurveDefinition{}, fmt.Errorf("curve %s: %w", c.Name, err)
	}

	// Parse leaves SpotLagDays non-nil via applyDefaults; a File constructed
	// directly may not.
	spotLag := 2
	if c.Convention.SpotLagDays != nil {
		spotLag = *c.Convention.SpotLagDays
	}

	conv := calibrate.Convention{
		Calendar:        calendar.CalendarID(c.Convention.Calendar),
		SpotLagDays:     spotLag,
		DayCount:        c.Convention.DayCount,
		FixedDayCount:   c.Convention.FixedDayCount,
		FixedFreqMonths: c.Convention.FixedFreqMonths,
		FloatFreqMonths: c.Convention.FloatFreqMonths,
		PayDelayDays:    c.Convention.PayDelayDays,
		DiscountCurve:   c.Convention.DiscountCurve,
		ProjectionCurve: c.Convention.ProjectionCurve,
	}

	def := calibrate.CurveDefinition{
		Name:         c.Name,
		Currency:     c.Currency,
		ValueType:    vt,
		Interpolator: ip,
	}
	for _, n := range c.Nodes {
		node, err := n.toNode(conv)
		if err != nil {
			return calibrate.CurveDefinition{}, fmt.Errorf("curve %s: %w", c.Name, err)
		}
		def.Nodes = append(def.Nodes, node)
	}
	return def, nil
}

func (n NodeConfig) toNode(conv calibrate.Convention) (calibrate.CurveNode, error) {
	var kind calibrate.NodeKind
	switch n.Kind {
	case "deposit":
		kind = calibrate.NodeDeposit
	case "fra":
		kind = calibrate.NodeFRA
	case "swap", "ois":
		kind = calibrate.NodeSwap
	default:
		return calibrate.CurveNode{}, fmt.Errorf("node %s: unknown kind %q", n.Quote, n.Kind)
	}

	tenor, err := utils.ParseTenor(n.Tenor)
	if err != nil {
		return calibrate.CurveNode{}, fmt.Errorf("node %s: %w", n.Quote, err)
	}

	node := calibrate.CurveNode{
		Kind:       kind,
		QuoteID:    market.QuoteID(n.Quote),
		Tenor:      tenor,
		SpreadBP:   n.SpreadBP,
		Convention: conv,
	}
	if kind == calibrate.NodeFRA {
		if n.FwdTenor == "" {
			return calibrate.CurveNode{}, fmt.Errorf("node %s: fra requires fwd_tenor", n.Quote)
		}
		fwd, err := utils.ParseTenor(n.FwdTenor)
		if err != nil {
			return calibrate.CurveNode{}, fmt.Errorf("node %s: %w", n.Quote, err)
		}
		node.FwdTenor = fwd
	}
	return node, nil
}
