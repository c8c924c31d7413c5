package calibrate

import (
	"fmt"

	"github.com/meenmo/curvecal/curve"
)

// Environment is the set of curves visible to instrument pricing during and
// after calibration: the group's own curves plus externally supplied seed
// curves. Curves are immutable; Newton iterations swap whole curves in via
// functional update.
type Environment struct {
	names  []string
	curves map[string]*curve.Curve
	seeds  map[string]bool
}

// NewEnvironment returns an empty environment.
func NewEnvironment() *Environment {
	return &Environment{
		curves: make(map[string]*curve.Curve),
		seeds:  make(map[string]bool),
	}
}

// AddSeed registers an externally calibrated curve. Seed curves contribute to
// pricing but carry no Jacobian columns.
func (e *Environment) AddSeed(c *curve.Curve) error {
	return e.add(c, true)
}

// AddCurve registers a curve belonging to the calibrated group.
func (e *Environment) AddCurve(c *curve.Curve) error {
	return e.add(c, false)
}

func (e *Environment) add(c *curve.Curve, seed bool) error {
	if _, dup := e.curves[c.Name()]; dup {
		return fmt.Errorf("calibrate: duplicate curve %s in environment", c.Name())
	}
	e.names = append(e.names, c.Name())
	e.curves[c.Name()] = c
	e.seeds[c.Name()] = seed
	return nil
}

// Curve looks up a curve by name.
func (e *Environment) Curve(name string) (*curve.Curve, error) {
	c, ok := e.curves[name]
	if !ok {
		return nil, fmt.Errorf("calibrate: curve %s not in environment", name)
	}
	return c, nil
}

// IsSeed reports whether the named curve is an externally supplied seed.
func (e *Environment) IsSeed(name string) bool {
	return e.seeds[name]
}

// Names returns curve names in insertion order.
func (e *Environment) Names() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// with returns a copy of the environment with one group curve replaced.
// The receiver is unchanged.
func (e *Environment) with(c *curve.Curve) *Environment {
	out := &Environment{
		names:  e.names,
		curves: make(map[string]*curve.Curve, len(e.curves)),
		seeds:  e.seeds,
	}
	for k, v := range e.curves {
		out.curves[k] = v
	}
	out.curves[c.Name()] = c
	return out
}
