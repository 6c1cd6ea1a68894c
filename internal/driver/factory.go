package driver

import (
	"github.com/Soamid/evogil-sub000/internal/archive"
	"github.com/Soamid/evogil-sub000/internal/config"
	"github.com/Soamid/evogil-sub000/internal/problem"
)

// NSGA2Factory builds NSGA-II drivers with the operator settings of the
// node's level and that level's shared fitness archive.
func NSGA2Factory(cfg config.Config, prob problem.Problem, archives *archive.Levels) Factory {
	bounds := cfg.GeometryBounds()
	return func(level int, seed int64, population [][]float64) (Driver, error) {
		lc := cfg.Level(level)
		var levelArchive archive.Archive
		if archives != nil {
			levelArchive = archives.Level(level)
		}
		return NewNSGA2(NSGA2Config{
			Bounds:        bounds,
			Evaluate:      prob.Evaluate,
			Archive:       levelArchive,
			CrossoverEta:  lc.CrossoverEta,
			CrossoverRate: lc.CrossoverRate,
			MutationEta:   lc.MutationEta,
			MutationRate:  cfg.MutationRate(level),
			DelegatesNo:   cfg.DelegatesNo,
			Workers:       cfg.Workers,
		}, seed, population)
	}
}
