package platform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Soamid/evogil-sub000/internal/config"
	"github.com/Soamid/evogil-sub000/internal/model"
	"github.com/Soamid/evogil-sub000/internal/problem"
	"github.com/Soamid/evogil-sub000/internal/storage"
)

func testRunConfig(runID string) config.Config {
	cfg := config.Default()
	cfg.RunID = runID
	cfg.Problem = "zdt1"
	cfg.Dimensions = 4
	cfg.Seed = 11
	cfg.Metaepochs = 3
	cfg.MaxLevel = 1
	cfg.MaxSproutsNo = 2
	cfg.Sproutiveness = 1
	cfg.DelegatesNo = 2
	cfg.Workers = 2
	cfg.Levels = []config.LevelConfig{
		{PopulationSize: 12, MetaepochLen: 2, CostModifier: 1, MinProgressRatio: 0.5, MutationEta: 10, CrossoverEta: 15, CrossoverRate: 0.9},
		{PopulationSize: 6, MetaepochLen: 2, CostModifier: 0.5, MinProgressRatio: 0.1, MinDist: 0.05, MutationEta: 20, CrossoverEta: 20, CrossoverRate: 0.9},
	}
	return cfg
}

func newTestRunner(t *testing.T) (*Runner, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStore()
	runner := NewRunner(Config{
		Store: store,
		Now:   func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, runner.Init(context.Background()))
	return runner, store
}

func TestRunnerInitRequiresStore(t *testing.T) {
	runner := NewRunner(Config{})
	assert.Error(t, runner.Init(context.Background()))
	assert.False(t, runner.Started())
}

func TestRunnerRejectsRunBeforeInit(t *testing.T) {
	runner := NewRunner(Config{Store: storage.NewMemoryStore()})
	_, err := runner.RunOptimization(context.Background(), testRunConfig("r"), RunOptions{})
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = runner.ListRuns(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestRunnerPersistsFinalRecord(t *testing.T) {
	ctx := context.Background()
	runner, store := newTestRunner(t)

	var observed []model.RoundSummary
	record, err := runner.RunOptimization(ctx, testRunConfig("run-final"), RunOptions{
		OnRound: func(summary model.RoundSummary) { observed = append(observed, summary) },
	})
	require.NoError(t, err)

	assert.Equal(t, "run-final", record.ID)
	assert.Equal(t, "zdt1", record.Problem)
	assert.Equal(t, "2026-03-01T12:00:00Z", record.CreatedAtUTC)
	require.Len(t, record.Rounds, 3)
	require.Len(t, observed, 3)

	sum := 0.0
	for i, round := range record.Rounds {
		assert.Equal(t, i+1, round.Round)
		assert.GreaterOrEqual(t, round.Cost, 0.0, "round %d", round.Round)
		sum += round.Cost
		assert.Equal(t, sum, round.TotalCost, "round %d", round.Round)
		assert.GreaterOrEqual(t, round.Nodes, 1, "round %d", round.Round)
	}
	assert.Positive(t, record.Rounds[0].Cost, "the first round pays for initial evaluations")
	assert.Equal(t, sum, record.TotalCost)
	require.NotEmpty(t, record.Nodes)
	assert.Equal(t, 0, record.Nodes[0].Level)
	assert.NotEmpty(t, record.Population)
	assert.Positive(t, record.Hypervolume)

	stored, ok, err := store.GetRun(ctx, "run-final")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, record.Summary(), stored.Summary())
	assert.Equal(t, record.Rounds, stored.Rounds)
	assert.Len(t, stored.Population, len(record.Population))
	assert.Empty(t, runner.ActiveRuns())
}

func TestRunnerReturnsEncodableRecord(t *testing.T) {
	runner, _ := newTestRunner(t)
	cfg := testRunConfig("run-encode")
	cfg.Metaepochs = 1

	record, err := runner.RunOptimization(context.Background(), cfg, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, storage.CurrentSchemaVersion, record.SchemaVersion)
	assert.Equal(t, storage.CurrentCodecVersion, record.CodecVersion)

	payload, err := storage.EncodeRun(record)
	require.NoError(t, err)
	decoded, err := storage.DecodeRun(payload)
	require.NoError(t, err)
	assert.Equal(t, record.ID, decoded.ID)
}

func TestRunnerStopsAtCostBudget(t *testing.T) {
	runner, _ := newTestRunner(t)
	cfg := testRunConfig("run-budget")
	cfg.Metaepochs = 0
	cfg.CostBudget = 1

	record, err := runner.RunOptimization(context.Background(), cfg, RunOptions{})
	require.NoError(t, err)
	assert.Len(t, record.Rounds, 1)
}

func TestRunnerStopRunFinishesAfterCurrentRound(t *testing.T) {
	runner, store := newTestRunner(t)
	cfg := testRunConfig("run-stop")
	cfg.Metaepochs = 10

	record, err := runner.RunOptimization(context.Background(), cfg, RunOptions{
		OnRound: func(model.RoundSummary) {
			assert.NoError(t, runner.StopRun("run-stop"))
		},
	})
	require.NoError(t, err)
	assert.Len(t, record.Rounds, 1)

	_, ok, err := store.GetRun(context.Background(), "run-stop")
	require.NoError(t, err)
	assert.True(t, ok, "stopped run is persisted")
}

func TestRunnerStopRunUnknown(t *testing.T) {
	runner, _ := newTestRunner(t)
	assert.Error(t, runner.StopRun("missing"))
	assert.Error(t, runner.StopRun(""))
}

func TestRunnerRejectsBadConfig(t *testing.T) {
	runner, _ := newTestRunner(t)
	ctx := context.Background()

	cfg := testRunConfig("bad-problem")
	cfg.Problem = "nope"
	_, err := runner.RunOptimization(ctx, cfg, RunOptions{})
	assert.ErrorIs(t, err, problem.ErrUnknownProblem)

	cfg = testRunConfig("no-stop")
	cfg.Metaepochs = 0
	cfg.CostBudget = 0
	_, err = runner.RunOptimization(ctx, cfg, RunOptions{})
	assert.ErrorIs(t, err, ErrNoStopCriteria)

	cfg = testRunConfig("bad-reference")
	cfg.ReferencePoint = []float64{1, 1, 1}
	_, err = runner.RunOptimization(ctx, cfg, RunOptions{})
	assert.Error(t, err)
}

func TestPrepareDerivesFromProblem(t *testing.T) {
	cfg, prob, err := Prepare(testRunConfig("prep"))
	require.NoError(t, err)
	assert.Equal(t, "zdt1", prob.Name)
	assert.Len(t, cfg.Bounds, 4)
	require.Len(t, cfg.MinDists, 2)
	assert.Zero(t, cfg.MinDists[0])
	assert.Positive(t, cfg.MinDists[1])
	assert.Len(t, cfg.ReferencePoint, 2)
}
