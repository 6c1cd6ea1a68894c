package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Individual is one decision vector together with its objective values.
// Objectives are minimized.
type Individual struct {
	X          []float64 `json:"x"`
	Objectives []float64 `json:"objectives"`
}

func (i Individual) Clone() Individual {
	return Individual{
		X:          append([]float64(nil), i.X...),
		Objectives: append([]float64(nil), i.Objectives...),
	}
}

func CloneIndividuals(in []Individual) []Individual {
	out := make([]Individual, len(in))
	for idx, item := range in {
		out[idx] = item.Clone()
	}
	return out
}

func DecisionVectors(in []Individual) [][]float64 {
	out := make([][]float64, len(in))
	for idx, item := range in {
		out[idx] = append([]float64(nil), item.X...)
	}
	return out
}

func ObjectiveVectors(in []Individual) [][]float64 {
	out := make([][]float64, len(in))
	for idx, item := range in {
		out[idx] = append([]float64(nil), item.Objectives...)
	}
	return out
}

// NodeStatus is a copied snapshot of one tree node.
type NodeStatus struct {
	ID            int       `json:"id"`
	Parent        int       `json:"parent"`
	Level         int       `json:"level"`
	Alive         bool      `json:"alive"`
	Ripe          bool      `json:"ripe"`
	Center        []float64 `json:"center,omitempty"`
	PopulationLen int       `json:"population_len"`
	Hypervolume   float64   `json:"hypervolume"`
	Cost          int       `json:"cost"`
	Sprouts       int       `json:"sprouts"`
}

// RoundSummary describes one coordinated round of the whole tree.
type RoundSummary struct {
	Round       int     `json:"round"`
	Cost        float64 `json:"cost"`
	TotalCost   float64 `json:"total_cost"`
	Hypervolume float64 `json:"hypervolume"`
	Nodes       int     `json:"nodes"`
	AliveNodes  int     `json:"alive_nodes"`
	RipeNodes   int     `json:"ripe_nodes"`
}

// RunRecord is the finalized result of one optimization run.
type RunRecord struct {
	VersionedRecord
	ID           string         `json:"id"`
	Problem      string         `json:"problem"`
	Seed         int64          `json:"seed"`
	CreatedAtUTC string         `json:"created_at_utc"`
	Rounds       []RoundSummary `json:"rounds"`
	TotalCost    float64        `json:"total_cost"`
	Hypervolume  float64        `json:"hypervolume"`
	Nodes        []NodeStatus   `json:"nodes"`
	Population   []Individual   `json:"population"`
}

// RunSummary is the listing view of a RunRecord.
type RunSummary struct {
	ID           string  `json:"id"`
	Problem      string  `json:"problem"`
	CreatedAtUTC string  `json:"created_at_utc"`
	Rounds       int     `json:"rounds"`
	TotalCost    float64 `json:"total_cost"`
	Hypervolume  float64 `json:"hypervolume"`
	Nodes        int     `json:"nodes"`
}

func (r RunRecord) Summary() RunSummary {
	return RunSummary{
		ID:           r.ID,
		Problem:      r.Problem,
		CreatedAtUTC: r.CreatedAtUTC,
		Rounds:       len(r.Rounds),
		TotalCost:    r.TotalCost,
		Hypervolume:  r.Hypervolume,
		Nodes:        len(r.Nodes),
	}
}
