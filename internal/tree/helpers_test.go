package tree

import (
	"context"
	"math"

	"github.com/Soamid/evogil-sub000/internal/config"
	"github.com/Soamid/evogil-sub000/internal/driver"
	"github.com/Soamid/evogil-sub000/internal/model"
)

// fakeDriver shrinks its objective values by half every step so that the
// hypervolume keeps growing with diminishing returns.
type fakeDriver struct {
	population []model.Individual
	delegates  [][]float64
	stepCost   int
	steps      int
	cost       int
	collapse   []float64
	err        error
	panics     bool
}

func newFakeDriver(seed [][]float64, delegates [][]float64) *fakeDriver {
	pop := make([]model.Individual, len(seed))
	for i, x := range seed {
		pop[i] = model.Individual{X: append([]float64(nil), x...), Objectives: append([]float64(nil), x...)}
	}
	return &fakeDriver{population: pop, delegates: delegates, stepCost: 3}
}

func (d *fakeDriver) Step(context.Context) (int, error) {
	if d.panics {
		panic("driver exploded")
	}
	if d.err != nil {
		return 0, d.err
	}
	d.steps++
	scale := math.Pow(0.5, float64(d.steps))
	for i := range d.population {
		if d.collapse != nil {
			d.population[i].X = append([]float64(nil), d.collapse...)
		}
		objectives := make([]float64, len(d.population[i].X))
		for j, v := range d.population[i].X {
			objectives[j] = v * scale
		}
		d.population[i].Objectives = objectives
	}
	d.cost += d.stepCost
	return d.stepCost, nil
}

func (d *fakeDriver) Population() []model.Individual {
	return model.CloneIndividuals(d.population)
}

func (d *fakeDriver) FinalizedPopulation() []model.Individual {
	return model.CloneIndividuals(d.population[:1])
}

func (d *fakeDriver) Delegates() [][]float64 {
	out := make([][]float64, len(d.delegates))
	for i, x := range d.delegates {
		out[i] = append([]float64(nil), x...)
	}
	return out
}

func (d *fakeDriver) Cost() int { return d.cost }

type fakeOptions struct {
	delegates [][]float64
	collapse  []float64
	err       error
	panics    bool
}

func fakeFactory(opts fakeOptions) driver.Factory {
	return func(level int, seed int64, population [][]float64) (driver.Driver, error) {
		d := newFakeDriver(population, opts.delegates)
		d.collapse = opts.collapse
		d.err = opts.err
		d.panics = opts.panics
		return d, nil
	}
}

var (
	d1 = []float64{0.1, 0.1}
	d2 = []float64{0.9, 0.9}
)

func testConfig() config.Config {
	cfg := config.Config{
		RunID:          "test",
		Problem:        "fake",
		Seed:           11,
		MaxLevel:       1,
		MaxSproutsNo:   1,
		Sproutiveness:  1,
		DelegatesNo:    2,
		Workers:        1,
		ReferencePoint: []float64{2, 2},
		Bounds:         []config.BoundConfig{{Lower: 0, Upper: 1}, {Lower: 0, Upper: 1}},
		Levels: []config.LevelConfig{
			{PopulationSize: 4, MetaepochLen: 2, CostModifier: 1, MinProgressRatio: 10, MutationEta: 20, CrossoverEta: 20},
			{PopulationSize: 3, MetaepochLen: 2, CostModifier: 0.5, MinDist: 0.2, MutationEta: 20, CrossoverEta: 20},
		},
	}
	return cfg.Derive(cfg.GeometryBounds(), cfg.ReferencePoint)
}

func rootPopulation() [][]float64 {
	return [][]float64{{0.2, 0.8}, {0.4, 0.6}, {0.6, 0.4}, {0.8, 0.2}}
}
