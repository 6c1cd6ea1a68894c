package hypervolume

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeSinglePoint(t *testing.T) {
	assert.InDelta(t, 1.0, Compute([]float64{2, 2}, [][]float64{{1, 1}}), 1e-12)
	assert.InDelta(t, 8.0, Compute([]float64{2, 2, 2}, [][]float64{{0, 0, 0}}), 1e-12)
}

func TestComputeTwoDimensionalStaircase(t *testing.T) {
	points := [][]float64{{1, 3}, {2, 2}, {3, 1}}
	// 3x1 + 2x1 + 1x1 over reference (4,4).
	assert.InDelta(t, 6.0, Compute([]float64{4, 4}, points), 1e-12)
}

func TestComputeIgnoresDominatedAndOutsidePoints(t *testing.T) {
	base := Compute([]float64{4, 4}, [][]float64{{1, 1}})
	withNoise := Compute([]float64{4, 4}, [][]float64{{1, 1}, {2, 2}, {5, 0}, {4, 1}})
	assert.InDelta(t, base, withNoise, 1e-12)
}

func TestComputeThreeDimensionalUnion(t *testing.T) {
	points := [][]float64{{0, 1, 1}, {1, 0, 1}, {1, 1, 0}}
	// Three 2x1x1 boxes pairwise overlapping in the unit cube [1,2]^3.
	assert.InDelta(t, 4.0, Compute([]float64{2, 2, 2}, points), 1e-12)
}

func TestComputeMonotoneInDominatedVolume(t *testing.T) {
	ref := []float64{11, 11}
	before := Compute(ref, [][]float64{{5, 5}})
	after := Compute(ref, [][]float64{{5, 5}, {1, 9}})
	assert.Greater(t, after, before)
}

func TestComputeEmpty(t *testing.T) {
	assert.Zero(t, Compute([]float64{1, 1}, nil))
	assert.Zero(t, Compute(nil, [][]float64{{0, 0}}))
}
