package driver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"github.com/Soamid/evogil-sub000/internal/archive"
	"github.com/Soamid/evogil-sub000/internal/geometry"
	"github.com/Soamid/evogil-sub000/internal/model"
	"github.com/Soamid/evogil-sub000/internal/problem"
)

var ErrEmptyPopulation = errors.New("empty population")

type NSGA2Config struct {
	Bounds        []geometry.Bound
	Evaluate      problem.Objective
	Archive       archive.Archive
	CrossoverEta  float64
	CrossoverRate float64
	MutationEta   float64
	MutationRate  float64
	DelegatesNo   int
	Workers       int
}

type scored struct {
	ind      model.Individual
	rank     int
	crowding float64
}

// NSGA2 is an elitist non-dominated sorting genetic algorithm with SBX
// crossover and polynomial mutation. Fitness goes through the archive first;
// only archive misses count towards Cost.
type NSGA2 struct {
	cfg        NSGA2Config
	rng        *rand.Rand
	population []scored
	evaluated  bool
	cost       int
}

func NewNSGA2(cfg NSGA2Config, seed int64, population [][]float64) (*NSGA2, error) {
	if len(population) == 0 {
		return nil, ErrEmptyPopulation
	}
	if cfg.Evaluate == nil {
		return nil, errors.New("nsga2: evaluate function is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.DelegatesNo <= 0 {
		cfg.DelegatesNo = 1
	}
	pop := make([]scored, len(population))
	for i, x := range population {
		pop[i] = scored{ind: model.Individual{X: geometry.Clip(x, cfg.Bounds)}}
	}
	return &NSGA2{
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(seed)),
		population: pop,
	}, nil
}

func (d *NSGA2) Step(ctx context.Context) (int, error) {
	before := d.cost
	if !d.evaluated {
		if err := d.evaluate(ctx, d.population); err != nil {
			return 0, err
		}
		d.evaluated = true
		assignRanks(d.population)
	}

	offspring := d.offspring()
	if err := d.evaluate(ctx, offspring); err != nil {
		return 0, err
	}
	combined := make([]scored, 0, len(d.population)+len(offspring))
	combined = append(combined, d.population...)
	combined = append(combined, offspring...)
	d.population = selectSurvivors(combined, len(d.population))
	return d.cost - before, nil
}

func (d *NSGA2) Population() []model.Individual {
	out := make([]model.Individual, len(d.population))
	for i, s := range d.population {
		out[i] = s.ind.Clone()
	}
	return out
}

// FinalizedPopulation is the first non-dominated front of the population.
func (d *NSGA2) FinalizedPopulation() []model.Individual {
	if !d.evaluated {
		return d.Population()
	}
	var out []model.Individual
	for _, s := range d.population {
		if s.rank == 0 {
			out = append(out, s.ind.Clone())
		}
	}
	return out
}

// Delegates returns the least crowded members of the first front.
func (d *NSGA2) Delegates() [][]float64 {
	if !d.evaluated {
		return nil
	}
	var front []scored
	for _, s := range d.population {
		if s.rank == 0 {
			front = append(front, s)
		}
	}
	sort.SliceStable(front, func(i, j int) bool {
		return front[i].crowding > front[j].crowding
	})
	if len(front) > d.cfg.DelegatesNo {
		front = front[:d.cfg.DelegatesNo]
	}
	out := make([][]float64, len(front))
	for i, s := range front {
		out[i] = append([]float64(nil), s.ind.X...)
	}
	return out
}

func (d *NSGA2) Cost() int {
	return d.cost
}

func (d *NSGA2) offspring() []scored {
	size := len(d.population)
	out := make([]scored, 0, size+1)
	for len(out) < size {
		p1 := d.tournament()
		p2 := d.tournament()
		c1, c2 := p1.ind.X, p2.ind.X
		if d.rng.Float64() < d.cfg.CrossoverRate {
			c1, c2 = geometry.SimulatedBinaryCrossover(d.rng, c1, c2, d.cfg.Bounds, d.cfg.CrossoverEta)
		}
		c1 = geometry.PolynomialMutation(d.rng, c1, d.cfg.Bounds, d.cfg.MutationEta, d.cfg.MutationRate)
		c2 = geometry.PolynomialMutation(d.rng, c2, d.cfg.Bounds, d.cfg.MutationEta, d.cfg.MutationRate)
		out = append(out, scored{ind: model.Individual{X: c1}})
		if len(out) < size {
			out = append(out, scored{ind: model.Individual{X: c2}})
		}
	}
	return out
}

func (d *NSGA2) tournament() scored {
	a := d.population[d.rng.Intn(len(d.population))]
	b := d.population[d.rng.Intn(len(d.population))]
	switch {
	case a.rank < b.rank:
		return a
	case b.rank < a.rank:
		return b
	case a.crowding >= b.crowding:
		return a
	default:
		return b
	}
}

// evaluate fills objectives in place. Archive hits are free; misses are
// evaluated concurrently, bounded by the configured worker count.
func (d *NSGA2) evaluate(ctx context.Context, batch []scored) error {
	var missing []int
	for i := range batch {
		if d.cfg.Archive != nil {
			if objectives, ok := d.cfg.Archive.Lookup(batch[i].ind.X); ok {
				batch[i].ind.Objectives = objectives
				continue
			}
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return nil
	}

	p := pool.New().WithContext(ctx).WithMaxGoroutines(d.cfg.Workers).WithCancelOnError()
	for _, idx := range missing {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			objectives := d.cfg.Evaluate(batch[idx].ind.X)
			if len(objectives) == 0 {
				return fmt.Errorf("evaluate individual %d: no objectives", idx)
			}
			for _, v := range objectives {
				if math.IsNaN(v) {
					return fmt.Errorf("evaluate individual %d: NaN objective", idx)
				}
			}
			batch[idx].ind.Objectives = objectives
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return fmt.Errorf("nsga2 evaluate: %w", err)
	}
	for _, idx := range missing {
		if d.cfg.Archive != nil {
			d.cfg.Archive.Store(batch[idx].ind.X, batch[idx].ind.Objectives)
		}
	}
	d.cost += len(missing)
	return nil
}

func dominates(a, b []float64) bool {
	better := false
	for i := range a {
		if a[i] > b[i] {
			return false
		}
		if a[i] < b[i] {
			better = true
		}
	}
	return better
}

// nonDominatedFronts returns indices of pop grouped by front, best first.
func nonDominatedFronts(pop []scored) [][]int {
	n := len(pop)
	dominatedBy := make([]int, n)
	dominating := make([][]int, n)
	var fronts [][]int
	var current []int
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			if p == q {
				continue
			}
			if dominates(pop[p].ind.Objectives, pop[q].ind.Objectives) {
				dominating[p] = append(dominating[p], q)
			} else if dominates(pop[q].ind.Objectives, pop[p].ind.Objectives) {
				dominatedBy[p]++
			}
		}
		if dominatedBy[p] == 0 {
			current = append(current, p)
		}
	}
	for len(current) > 0 {
		fronts = append(fronts, current)
		var next []int
		for _, p := range current {
			for _, q := range dominating[p] {
				dominatedBy[q]--
				if dominatedBy[q] == 0 {
					next = append(next, q)
				}
			}
		}
		current = next
	}
	return fronts
}

func crowding(pop []scored, front []int) {
	for _, idx := range front {
		pop[idx].crowding = 0
	}
	if len(front) == 0 {
		return
	}
	objectives := len(pop[front[0]].ind.Objectives)
	order := append([]int(nil), front...)
	for m := 0; m < objectives; m++ {
		sort.SliceStable(order, func(i, j int) bool {
			return pop[order[i]].ind.Objectives[m] < pop[order[j]].ind.Objectives[m]
		})
		first, last := order[0], order[len(order)-1]
		pop[first].crowding = math.Inf(1)
		pop[last].crowding = math.Inf(1)
		span := pop[last].ind.Objectives[m] - pop[first].ind.Objectives[m]
		if span == 0 {
			continue
		}
		for i := 1; i < len(order)-1; i++ {
			pop[order[i]].crowding += (pop[order[i+1]].ind.Objectives[m] - pop[order[i-1]].ind.Objectives[m]) / span
		}
	}
}

func assignRanks(pop []scored) [][]int {
	fronts := nonDominatedFronts(pop)
	for rank, front := range fronts {
		for _, idx := range front {
			pop[idx].rank = rank
		}
		crowding(pop, front)
	}
	return fronts
}

func selectSurvivors(combined []scored, size int) []scored {
	fronts := assignRanks(combined)
	next := make([]scored, 0, size)
	for _, front := range fronts {
		if len(next)+len(front) <= size {
			for _, idx := range front {
				next = append(next, combined[idx])
			}
			continue
		}
		rest := append([]int(nil), front...)
		sort.SliceStable(rest, func(i, j int) bool {
			return combined[rest[i]].crowding > combined[rest[j]].crowding
		})
		for _, idx := range rest[:size-len(next)] {
			next = append(next, combined[idx])
		}
		break
	}
	// Ranks and crowding are recomputed on the survivors for the next
	// tournament and for delegate nomination.
	assignRanks(next)
	return next
}
