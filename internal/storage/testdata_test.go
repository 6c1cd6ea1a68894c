package storage

import "github.com/Soamid/evogil-sub000/internal/model"

func sampleRun(id, createdAt string) model.RunRecord {
	return Stamp(model.RunRecord{
		ID:           id,
		Problem:      "zdt1",
		Seed:         7,
		CreatedAtUTC: createdAt,
		Rounds: []model.RoundSummary{
			{Round: 1, Cost: 40, TotalCost: 40, Hypervolume: 1.5, Nodes: 1, AliveNodes: 1},
			{Round: 2, Cost: 26, TotalCost: 66, Hypervolume: 2.25, Nodes: 2, AliveNodes: 2, RipeNodes: 1},
		},
		TotalCost:   66,
		Hypervolume: 2.25,
		Nodes: []model.NodeStatus{
			{ID: 0, Parent: -1, Level: 0, Alive: true, Ripe: true, Center: []float64{0.25, 0.5}, PopulationLen: 4, Cost: 60, Sprouts: 1},
			{ID: 1, Parent: 0, Level: 1, Alive: true, Center: []float64{0.3, 0.4}, PopulationLen: 3, Cost: 6},
		},
		Population: []model.Individual{
			{X: []float64{0.1, 0.2}, Objectives: []float64{0.1, 0.9}},
		},
	})
}
