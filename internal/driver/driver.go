// Package driver defines the single-population optimizer a tree node wraps,
// and provides the NSGA-II implementation used by default.
package driver

import (
	"context"

	"github.com/Soamid/evogil-sub000/internal/model"
)

// Driver advances one sub-population. Implementations are owned by a single
// node and are not required to be safe for concurrent use.
type Driver interface {
	// Step runs one generation and returns the evaluation cost it incurred.
	Step(ctx context.Context) (int, error)
	Population() []model.Individual
	FinalizedPopulation() []model.Individual
	// Delegates nominates the decision vectors worth seeding children from.
	Delegates() [][]float64
	Cost() int
}

// Factory builds the driver for a node at level from its seed population.
type Factory func(level int, seed int64, population [][]float64) (Driver, error)
