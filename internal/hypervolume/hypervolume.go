// Package hypervolume scores a set of objective vectors by the volume they
// dominate with respect to a reference point. All objectives are minimized.
package hypervolume

import "sort"

// Compute returns the hypervolume dominated by points and bounded by reference.
// Points that do not strictly dominate the reference in every objective are ignored.
func Compute(reference []float64, points [][]float64) float64 {
	dims := len(reference)
	if dims == 0 {
		return 0
	}
	filtered := make([][]float64, 0, len(points))
	for _, p := range points {
		if len(p) != dims {
			continue
		}
		if strictlyBelow(p, reference) {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		return 0
	}
	return slice(reference, filtered, dims)
}

func strictlyBelow(p, reference []float64) bool {
	for i := range reference {
		if p[i] >= reference[i] {
			return false
		}
	}
	return true
}

// slice computes the volume over the first dims objectives by sweeping the
// last one and recursing on the projected prefix.
func slice(reference []float64, points [][]float64, dims int) float64 {
	switch dims {
	case 1:
		best := points[0][0]
		for _, p := range points[1:] {
			if p[0] < best {
				best = p[0]
			}
		}
		return reference[0] - best
	case 2:
		return sweep2D(reference, points)
	}

	last := dims - 1
	ordered := append([][]float64(nil), points...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i][last] < ordered[j][last]
	})

	volume := 0.0
	for i := range ordered {
		upper := reference[last]
		if i+1 < len(ordered) {
			upper = ordered[i+1][last]
		}
		depth := upper - ordered[i][last]
		if depth <= 0 {
			continue
		}
		volume += slice(reference, ordered[:i+1], last) * depth
	}
	return volume
}

func sweep2D(reference []float64, points [][]float64) float64 {
	ordered := append([][]float64(nil), points...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i][0] == ordered[j][0] {
			return ordered[i][1] < ordered[j][1]
		}
		return ordered[i][0] < ordered[j][0]
	})
	volume := 0.0
	ceiling := reference[1]
	for _, p := range ordered {
		if p[1] >= ceiling {
			continue
		}
		volume += (reference[0] - p[0]) * (ceiling - p[1])
		ceiling = p[1]
	}
	return volume
}
