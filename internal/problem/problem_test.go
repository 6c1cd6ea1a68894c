package problem

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupUnknownProblem(t *testing.T) {
	_, err := Lookup("nope", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownProblem))
}

func TestLookupDefaultsDimensions(t *testing.T) {
	p, err := Lookup("zdt1", 0)
	require.NoError(t, err)
	assert.Len(t, p.Bounds, 30)
	assert.Equal(t, 2, p.Objectives)
	assert.Len(t, p.Reference, p.Objectives)
}

func TestZDT1ParetoFront(t *testing.T) {
	p, err := Lookup("zdt1", 5)
	require.NoError(t, err)
	f := p.Evaluate([]float64{0.25, 0, 0, 0, 0})
	assert.InDelta(t, 0.25, f[0], 1e-12)
	assert.InDelta(t, 0.5, f[1], 1e-12)
}

func TestDTLZ2OptimumOnUnitSphere(t *testing.T) {
	p, err := Lookup("dtlz2", 0)
	require.NoError(t, err)
	x := make([]float64, len(p.Bounds))
	for i := range x {
		x[i] = 0.5
	}
	f := p.Evaluate(x)
	sum := 0.0
	for _, v := range f {
		sum += v * v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestEveryRegisteredProblemEvaluatesInsideReference(t *testing.T) {
	for _, name := range Names() {
		p, err := Lookup(name, 0)
		require.NoError(t, err, name)
		x := make([]float64, len(p.Bounds))
		for i, b := range p.Bounds {
			x[i] = b.Lower + 0.3*b.Width()
		}
		f := p.Evaluate(x)
		require.Len(t, f, p.Objectives, name)
		for i := range f {
			assert.Less(t, f[i], p.Reference[i], "%s objective %d", name, i)
		}
	}
}
