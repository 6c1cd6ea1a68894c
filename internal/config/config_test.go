package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Soamid/evogil-sub000/internal/geometry"
)

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Problem, cfg.Problem)
	assert.Equal(t, Default().MaxLevel, cfg.MaxLevel)
	assert.Len(t, cfg.Levels, cfg.MaxLevel+1)
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.toml")
	body := `
problem = "zdt2"
seed = 42
max_level = 1
max_sprouts_no = 3
sproutiveness = 1
reference_point = [5.0, 5.0]

[store]
kind = "sqlite"
path = "runs.db"

[[levels]]
population_size = 20
metaepoch_len = 3
cost_modifier = 1.0
min_progress_ratio = 0.0
min_dist = 0.0

[[levels]]
population_size = 6
metaepoch_len = 2
cost_modifier = 0.5
min_progress_ratio = 0.1
min_dist = 0.2
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "zdt2", cfg.Problem)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 1, cfg.MaxLevel)
	assert.Equal(t, []float64{5, 5}, cfg.ReferencePoint)
	assert.Equal(t, "sqlite", cfg.Store.Kind)
	require.Len(t, cfg.Levels, 2)
	assert.Equal(t, 6, cfg.Levels[1].PopulationSize)
	assert.InDelta(t, 0.5, cfg.Levels[1].CostModifier, 1e-12)
	assert.Equal(t, Default().Workers, cfg.Workers)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestDeriveComputesMinDistsFromDiagonal(t *testing.T) {
	cfg := Default()
	cfg.MaxLevel = 1
	cfg.Levels = cfg.Levels[:2]
	cfg.Levels[1].MinDist = 0.5
	bounds := []geometry.Bound{{Lower: 0, Upper: 3}, {Lower: 0, Upper: 4}}

	derived := cfg.Derive(bounds, []float64{1, 1})
	require.NoError(t, derived.Validate())
	assert.InDelta(t, 0.0, derived.MinDists[0], 1e-12)
	assert.InDelta(t, 2.5, derived.MinDists[1], 1e-12)
	assert.Equal(t, []float64{1, 1}, derived.ReferencePoint)
	assert.Len(t, derived.Bounds, 2)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.MaxLevel = 3
	cfg.Levels[0].PopulationSize = 1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "levels: expected 4 entries")
	assert.Contains(t, err.Error(), "population_size must be >= 2")
	assert.Contains(t, err.Error(), "bounds are required")
	assert.Contains(t, err.Error(), "reference_point is required")
}

func TestMutationRateFallsBackToOnePerIndividual(t *testing.T) {
	cfg := Default().Derive([]geometry.Bound{{Lower: 0, Upper: 1}, {Lower: 0, Upper: 1}, {Lower: 0, Upper: 1}, {Lower: 0, Upper: 1}}, []float64{1, 1})
	assert.InDelta(t, 0.25, cfg.MutationRate(0), 1e-12)
	cfg.Levels[0].MutationRate = 0.5
	assert.InDelta(t, 0.5, cfg.MutationRate(0), 1e-12)
}
