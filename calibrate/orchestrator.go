package calibrate

import (
	"fmt"
	"sort"
)

// layerCurves orders the group's curves into calibration layers: each layer
// contains curves whose dependencies are all satisfied by seed curves or by
// earlier layers. Curves within one layer share a joint Newton solve.
//
// A dependency cycle between group curves is an unrecoverable configuration
// error; a reference to a curve that is neither in the group nor a seed is a
// plain configuration error.
func layerCurves(groupName string, defs []CurveDefinition, seeds map[string]bool) ([][]int, error) {
	inGroup := make(map[string]int, len(defs))
	for i, d := range defs {
		inGroup[d.Name] = i
	}

	// Outstanding in-group dependencies per curve.
	pending := make([]map[string]bool, len(defs))
	for i, d := range defs {
		pending[i] = map[string]bool{}
		for _, dep := range d.dependencies() {
			if _, ok := inGroup[dep]; ok {
				pending[i][dep] = true
				continue
			}
			if !seeds[dep] {
				return nil, fmt.Errorf("calibrate: group %s: curve %s references %s, which is neither in the group nor a seed curve",
					groupName, d.Name, dep)
			}
		}
	}

	var layers [][]int
	done := make(map[string]bool, len(defs))
	remaining := len(defs)

	for remaining > 0 {
		var layer []int
		for i, d := range defs {
			if done[d.Name] {
				continue
			}
			ready := true
			for dep := range pending[i] {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				layer = append(layer, i)
			}
		}
		if len(layer) == 0 {
			// Every remaining curve waits on another remaining curve.
			var cycle []string
			for _, d := range defs {
				if !done[d.Name] {
					cycle = append(cycle, d.Name)
				}
			}
			sort.Strings(cycle)
			return nil, &CyclicCurveDependencyError{Group: groupName, Curves: cycle}
		}
		for _, i := range layer {
			done[defs[i].Name] = true
		}
		remaining -= len(layer)
		layers = append(layers, layer)
	}

	return layers, nil
}
