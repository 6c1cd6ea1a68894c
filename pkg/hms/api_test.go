package hms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig(runID string) Config {
	cfg := DefaultConfig()
	cfg.RunID = runID
	cfg.Problem = "zdt2"
	cfg.Dimensions = 3
	cfg.Metaepochs = 2
	cfg.MaxLevel = 1
	cfg.MaxSproutsNo = 2
	cfg.Sproutiveness = 1
	cfg.DelegatesNo = 2
	cfg.Levels = []LevelConfig{
		{PopulationSize: 10, MetaepochLen: 2, CostModifier: 1, MinProgressRatio: 0.5, MutationEta: 10, CrossoverEta: 15, CrossoverRate: 0.9},
		{PopulationSize: 5, MetaepochLen: 1, CostModifier: 0.5, MinProgressRatio: 0.1, MinDist: 0.05, MutationEta: 20, CrossoverEta: 20, CrossoverRate: 0.9},
	}
	return cfg
}

func TestClientRunRunsAndShow(t *testing.T) {
	ctx := context.Background()
	client, err := New(Options{StoreKind: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})

	for _, id := range []string{"first", "second"} {
		record, err := client.Run(ctx, RunRequest{Config: smallConfig(id)})
		require.NoError(t, err, "run %s", id)
		assert.Len(t, record.Rounds, 2, "run %s", id)
	}

	runs, err := client.Runs(ctx, RunsRequest{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	all, err := client.Runs(ctx, RunsRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	shown, err := client.Show(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, "zdt2", shown.Problem)
	assert.NotEmpty(t, shown.Population)

	_, err = client.Show(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestClientRejectsUnknownStore(t *testing.T) {
	_, err := New(Options{StoreKind: "etcd"})
	assert.Error(t, err)
}

func TestStartEngineDrivesTree(t *testing.T) {
	ctx := context.Background()
	initial := make([][]float64, 0, 10)
	for i := 0; i < 10; i++ {
		v := float64(i) / 10
		initial = append(initial, []float64{v, 1 - v, 0.5})
	}

	engine, err := StartEngine(ctx, smallConfig(""), initial)
	require.NoError(t, err)
	defer engine.Shutdown()

	cost, err := engine.Step(ctx)
	require.NoError(t, err)
	assert.Positive(t, cost)

	statuses, err := engine.Status(ctx, AllLevels)
	require.NoError(t, err)
	require.NotEmpty(t, statuses)
	assert.Equal(t, 0, statuses[0].Level)
}

func TestProblemsListed(t *testing.T) {
	names := Problems()
	require.NotEmpty(t, names)
	assert.Equal(t, "dtlz2", names[0])
}
