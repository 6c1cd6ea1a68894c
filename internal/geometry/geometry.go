package geometry

import (
	"math"
	"math/rand"
)

// Bound is the closed interval of one decision-space dimension.
type Bound struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

func (b Bound) Width() float64 {
	return b.Upper - b.Lower
}

// Mean returns the coordinate-wise mean of vectors, or nil when vectors is empty.
func Mean(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	center := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		for i := range center {
			center[i] += v[i]
		}
	}
	n := float64(len(vectors))
	for i := range center {
		center[i] /= n
	}
	return center
}

func Distance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Diagonal is the length of the decision-space diagonal.
func Diagonal(bounds []Bound) float64 {
	sum := 0.0
	for _, b := range bounds {
		w := b.Width()
		sum += w * w
	}
	return math.Sqrt(sum)
}

func Clip(x []float64, bounds []Bound) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Min(math.Max(v, bounds[i].Lower), bounds[i].Upper)
	}
	return out
}

func Uniform(rng *rand.Rand, bounds []Bound) []float64 {
	x := make([]float64, len(bounds))
	for i, b := range bounds {
		x[i] = b.Lower + rng.Float64()*b.Width()
	}
	return x
}

// PolynomialMutation perturbs every coordinate of x with probability rate
// using the bounded polynomial distribution with index eta.
func PolynomialMutation(rng *rand.Rand, x []float64, bounds []Bound, eta, rate float64) []float64 {
	out := append([]float64(nil), x...)
	for i, b := range bounds {
		if rng.Float64() > rate {
			continue
		}
		width := b.Width()
		if width <= 0 {
			continue
		}
		y := out[i]
		delta1 := (y - b.Lower) / width
		delta2 := (b.Upper - y) / width
		u := rng.Float64()
		power := 1.0 / (eta + 1.0)
		var deltaq float64
		if u < 0.5 {
			xy := 1.0 - delta1
			val := 2.0*u + (1.0-2.0*u)*math.Pow(xy, eta+1.0)
			deltaq = math.Pow(val, power) - 1.0
		} else {
			xy := 1.0 - delta2
			val := 2.0*(1.0-u) + 2.0*(u-0.5)*math.Pow(xy, eta+1.0)
			deltaq = 1.0 - math.Pow(val, power)
		}
		out[i] = math.Min(math.Max(y+deltaq*width, b.Lower), b.Upper)
	}
	return out
}

// SimulatedBinaryCrossover recombines two parents coordinate-wise with
// distribution index eta. Each coordinate is crossed with probability 0.5.
func SimulatedBinaryCrossover(rng *rand.Rand, p1, p2 []float64, bounds []Bound, eta float64) ([]float64, []float64) {
	c1 := append([]float64(nil), p1...)
	c2 := append([]float64(nil), p2...)
	for i, b := range bounds {
		if rng.Float64() > 0.5 || math.Abs(p1[i]-p2[i]) < 1e-14 {
			continue
		}
		y1, y2 := math.Min(p1[i], p2[i]), math.Max(p1[i], p2[i])
		u := rng.Float64()

		beta := 1.0 + 2.0*(y1-b.Lower)/(y2-y1)
		alpha := 2.0 - math.Pow(beta, -(eta+1.0))
		lo := 0.5 * ((y1 + y2) - sbxBetaQ(u, alpha, eta)*(y2-y1))

		beta = 1.0 + 2.0*(b.Upper-y2)/(y2-y1)
		alpha = 2.0 - math.Pow(beta, -(eta+1.0))
		hi := 0.5 * ((y1 + y2) + sbxBetaQ(u, alpha, eta)*(y2-y1))

		lo = math.Min(math.Max(lo, b.Lower), b.Upper)
		hi = math.Min(math.Max(hi, b.Lower), b.Upper)
		if rng.Float64() < 0.5 {
			lo, hi = hi, lo
		}
		c1[i], c2[i] = lo, hi
	}
	return c1, c2
}

func sbxBetaQ(u, alpha, eta float64) float64 {
	if u <= 1.0/alpha {
		return math.Pow(u*alpha, 1.0/(eta+1.0))
	}
	return math.Pow(1.0/(2.0-u*alpha), 1.0/(eta+1.0))
}
