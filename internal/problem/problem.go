// Package problem holds the benchmark objective functions the engine can optimize.
package problem

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Soamid/evogil-sub000/internal/geometry"
)

var ErrUnknownProblem = errors.New("unknown problem")

// Objective maps a decision vector to objective values, all minimized.
type Objective func(x []float64) []float64

type Problem struct {
	Name       string
	Bounds     []geometry.Bound
	Objectives int
	Reference  []float64
	Evaluate   Objective
}

type definition struct {
	defaultDims int
	objectives  int
	bounds      func(dims int) []geometry.Bound
	reference   []float64
	evaluate    Objective
}

var registry = map[string]definition{
	"zdt1": {
		defaultDims: 30,
		objectives:  2,
		bounds:      unitBounds,
		reference:   []float64{11, 11},
		evaluate:    zdt1,
	},
	"zdt2": {
		defaultDims: 30,
		objectives:  2,
		bounds:      unitBounds,
		reference:   []float64{11, 11},
		evaluate:    zdt2,
	},
	"zdt3": {
		defaultDims: 30,
		objectives:  2,
		bounds:      unitBounds,
		reference:   []float64{11, 11},
		evaluate:    zdt3,
	},
	"zdt4": {
		defaultDims: 10,
		objectives:  2,
		bounds:      zdt4Bounds,
		reference:   []float64{11, 300},
		evaluate:    zdt4,
	},
	"zdt6": {
		defaultDims: 10,
		objectives:  2,
		bounds:      unitBounds,
		reference:   []float64{11, 11},
		evaluate:    zdt6,
	},
	"dtlz2": {
		defaultDims: 12,
		objectives:  3,
		bounds:      unitBounds,
		reference:   []float64{2.5, 2.5, 2.5},
		evaluate:    dtlz2,
	},
	"kursawe": {
		defaultDims: 3,
		objectives:  2,
		bounds: func(dims int) []geometry.Bound {
			return sameBounds(dims, -5, 5)
		},
		reference: []float64{0, 30},
		evaluate:  kursawe,
	},
}

// Lookup builds the named problem with dims decision variables; dims <= 0
// selects the problem's customary dimension.
func Lookup(name string, dims int) (Problem, error) {
	def, ok := registry[name]
	if !ok {
		return Problem{}, fmt.Errorf("%w: %s", ErrUnknownProblem, name)
	}
	if dims <= 0 {
		dims = def.defaultDims
	}
	if dims < 2 {
		return Problem{}, fmt.Errorf("problem %s needs at least 2 dimensions, got %d", name, dims)
	}
	return Problem{
		Name:       name,
		Bounds:     def.bounds(dims),
		Objectives: def.objectives,
		Reference:  append([]float64(nil), def.reference...),
		Evaluate:   def.evaluate,
	}, nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sameBounds(dims int, lower, upper float64) []geometry.Bound {
	out := make([]geometry.Bound, dims)
	for i := range out {
		out[i] = geometry.Bound{Lower: lower, Upper: upper}
	}
	return out
}

func unitBounds(dims int) []geometry.Bound {
	return sameBounds(dims, 0, 1)
}

func zdt4Bounds(dims int) []geometry.Bound {
	out := sameBounds(dims, -5, 5)
	out[0] = geometry.Bound{Lower: 0, Upper: 1}
	return out
}

func tailMean(x []float64) float64 {
	sum := 0.0
	for _, v := range x[1:] {
		sum += v
	}
	return sum / float64(len(x)-1)
}

func zdt1(x []float64) []float64 {
	g := 1 + 9*tailMean(x)
	return []float64{x[0], g * (1 - math.Sqrt(x[0]/g))}
}

func zdt2(x []float64) []float64 {
	g := 1 + 9*tailMean(x)
	return []float64{x[0], g * (1 - math.Pow(x[0]/g, 2))}
}

func zdt3(x []float64) []float64 {
	g := 1 + 9*tailMean(x)
	h := 1 - math.Sqrt(x[0]/g) - (x[0]/g)*math.Sin(10*math.Pi*x[0])
	return []float64{x[0], g * h}
}

func zdt4(x []float64) []float64 {
	g := 1 + 10*float64(len(x)-1)
	for _, v := range x[1:] {
		g += v*v - 10*math.Cos(4*math.Pi*v)
	}
	return []float64{x[0], g * (1 - math.Sqrt(x[0]/g))}
}

func zdt6(x []float64) []float64 {
	f1 := 1 - math.Exp(-4*x[0])*math.Pow(math.Sin(6*math.Pi*x[0]), 6)
	g := 1 + 9*math.Pow(tailMean(x), 0.25)
	return []float64{f1, g * (1 - math.Pow(f1/g, 2))}
}

func dtlz2(x []float64) []float64 {
	const m = 3
	g := 0.0
	for _, v := range x[m-1:] {
		g += (v - 0.5) * (v - 0.5)
	}
	a, b := x[0]*math.Pi/2, x[1]*math.Pi/2
	return []float64{
		(1 + g) * math.Cos(a) * math.Cos(b),
		(1 + g) * math.Cos(a) * math.Sin(b),
		(1 + g) * math.Sin(a),
	}
}

func kursawe(x []float64) []float64 {
	f1, f2 := 0.0, 0.0
	for i := 0; i < len(x)-1; i++ {
		f1 += -10 * math.Exp(-0.2*math.Sqrt(x[i]*x[i]+x[i+1]*x[i+1]))
	}
	for _, v := range x {
		f2 += math.Pow(math.Abs(v), 0.8) + 5*math.Sin(v*v*v)
	}
	return []float64{f1, f2}
}
