package geometry

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanOfEmptyIsNil(t *testing.T) {
	assert.Nil(t, Mean(nil))
}

func TestMeanAndDistance(t *testing.T) {
	center := Mean([][]float64{{0, 0}, {2, 4}})
	require.Equal(t, []float64{1, 2}, center)
	assert.InDelta(t, 5.0, Distance([]float64{0, 0}, []float64{3, 4}), 1e-12)
}

func TestDiagonal(t *testing.T) {
	bounds := []Bound{{Lower: 0, Upper: 3}, {Lower: -2, Upper: 2}}
	assert.InDelta(t, 5.0, Diagonal(bounds), 1e-12)
}

func TestPolynomialMutationStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	bounds := []Bound{{Lower: 0, Upper: 1}, {Lower: -5, Upper: 5}}
	x := []float64{0.99, -4.9}
	for i := 0; i < 500; i++ {
		y := PolynomialMutation(rng, x, bounds, 20, 1)
		for d, b := range bounds {
			require.GreaterOrEqual(t, y[d], b.Lower)
			require.LessOrEqual(t, y[d], b.Upper)
		}
	}
}

func TestPolynomialMutationZeroRateIsIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	bounds := []Bound{{Lower: 0, Upper: 1}}
	assert.Equal(t, []float64{0.25}, PolynomialMutation(rng, []float64{0.25}, bounds, 20, 0))
}

func TestSimulatedBinaryCrossoverStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	bounds := []Bound{{Lower: 0, Upper: 1}, {Lower: 0, Upper: 1}}
	for i := 0; i < 500; i++ {
		c1, c2 := SimulatedBinaryCrossover(rng, []float64{0.1, 0.9}, []float64{0.8, 0.2}, bounds, 15)
		for d := range bounds {
			require.False(t, math.IsNaN(c1[d]) || math.IsNaN(c2[d]))
			require.True(t, c1[d] >= 0 && c1[d] <= 1)
			require.True(t, c2[d] >= 0 && c2[d] <= 1)
		}
	}
}
