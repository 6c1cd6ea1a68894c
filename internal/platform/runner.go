package platform

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Soamid/evogil-sub000/internal/archive"
	"github.com/Soamid/evogil-sub000/internal/config"
	"github.com/Soamid/evogil-sub000/internal/driver"
	"github.com/Soamid/evogil-sub000/internal/geometry"
	"github.com/Soamid/evogil-sub000/internal/hypervolume"
	"github.com/Soamid/evogil-sub000/internal/logging"
	"github.com/Soamid/evogil-sub000/internal/model"
	"github.com/Soamid/evogil-sub000/internal/problem"
	"github.com/Soamid/evogil-sub000/internal/storage"
	"github.com/Soamid/evogil-sub000/internal/tree"
)

var (
	ErrNotInitialized = errors.New("runner is not initialized")
	ErrNoStopCriteria = errors.New("metaepochs or cost_budget must be positive")
)

// archiveCapacity sizes the bloom filter of each level's fitness archive.
const archiveCapacity = 1 << 16

// Config wires a Runner. Now stamps run records and defaults to time.Now.
type Config struct {
	Store storage.Store
	Now   func() time.Time
}

// RunOptions tune a single optimization run. Initial overrides the uniform
// random root sample. OnRound observes every completed round.
type RunOptions struct {
	Initial [][]float64
	OnRound func(model.RoundSummary)
}

// Runner owns the result store and drives engines to completion. Only the
// final RunRecord of a run is persisted.
type Runner struct {
	store storage.Store
	now   func() time.Time
	log   zerolog.Logger

	mu      sync.RWMutex
	started bool
	runs    map[string]chan struct{}
}

func NewRunner(cfg Config) *Runner {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		store: cfg.Store,
		now:   now,
		log:   logging.Component("runner"),
		runs:  make(map[string]chan struct{}),
	}
}

func (r *Runner) Init(ctx context.Context) error {
	if r.store == nil {
		return fmt.Errorf("store is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	if err := r.store.Init(ctx); err != nil {
		return err
	}
	r.started = true
	return nil
}

func (r *Runner) Started() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.started
}

// Stop asks every active run to finish after its current round.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stop := range r.runs {
		requestStop(stop)
	}
	r.started = false
}

// StopRun asks one active run to finish after its current round. The run
// still persists what it has.
func (r *Runner) StopRun(runID string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	r.mu.RLock()
	stop, ok := r.runs[runID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run not active: %s", runID)
	}
	requestStop(stop)
	return nil
}

func (r *Runner) ActiveRuns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.runs))
	for id := range r.runs {
		ids = append(ids, id)
	}
	return ids
}

func (r *Runner) GetRun(ctx context.Context, id string) (model.RunRecord, bool, error) {
	if !r.Started() {
		return model.RunRecord{}, false, ErrNotInitialized
	}
	return r.store.GetRun(ctx, id)
}

func (r *Runner) ListRuns(ctx context.Context) ([]model.RunSummary, error) {
	if !r.Started() {
		return nil, ErrNotInitialized
	}
	return r.store.ListRuns(ctx)
}

// Prepare resolves the problem and derives the run configuration from it.
func Prepare(cfg config.Config) (config.Config, problem.Problem, error) {
	dims := cfg.Dimensions
	if len(cfg.Bounds) > 0 {
		dims = len(cfg.Bounds)
	}
	prob, err := problem.Lookup(cfg.Problem, dims)
	if err != nil {
		return config.Config{}, problem.Problem{}, err
	}
	cfg = cfg.Derive(prob.Bounds, prob.Reference)
	if len(cfg.ReferencePoint) != prob.Objectives {
		return config.Config{}, problem.Problem{}, fmt.Errorf("reference_point: %s has %d objectives, got %d coordinates",
			prob.Name, prob.Objectives, len(cfg.ReferencePoint))
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, problem.Problem{}, err
	}
	return cfg, prob, nil
}

// RunOptimization runs the tree for cfg.Metaepochs rounds or until the
// accumulated cost reaches cfg.CostBudget, whichever comes first.
func (r *Runner) RunOptimization(ctx context.Context, cfg config.Config, opts RunOptions) (model.RunRecord, error) {
	if cfg.Metaepochs <= 0 && cfg.CostBudget <= 0 {
		return model.RunRecord{}, ErrNoStopCriteria
	}
	cfg, prob, err := Prepare(cfg)
	if err != nil {
		return model.RunRecord{}, err
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if !r.Started() {
		return model.RunRecord{}, ErrNotInitialized
	}

	stop := make(chan struct{}, 1)
	if err := r.registerRun(cfg.RunID, stop); err != nil {
		return model.RunRecord{}, err
	}
	defer r.unregisterRun(cfg.RunID)

	initial := opts.Initial
	if len(initial) == 0 {
		initial = uniformPopulation(cfg)
	}
	archives := archive.NewLevels(cfg.LevelCount(), archiveCapacity)
	log := r.log.With().Str("run_id", cfg.RunID).Logger()
	host := NewSupervisorWithHooks(SupervisorHooks{
		OnTaskFailure: func(name string, err error) {
			log.Warn().Err(err).Str("task", name).Msg("tree worker failed")
		},
	})
	engine, err := tree.Start(ctx, cfg, initial, tree.Options{
		Factory: driver.NSGA2Factory(cfg, prob, archives),
		Host:    host,
		Logger:  &log,
	})
	if err != nil {
		return model.RunRecord{}, err
	}
	defer engine.Shutdown()

	record := model.RunRecord{
		ID:           cfg.RunID,
		Problem:      prob.Name,
		Seed:         cfg.Seed,
		CreatedAtUTC: r.now().UTC().Format(time.RFC3339),
	}
	for round := 1; cfg.Metaepochs <= 0 || round <= cfg.Metaepochs; round++ {
		if stopRequested(stop) {
			log.Info().Int("round", round).Msg("run stop requested")
			break
		}
		summary, err := runRound(ctx, engine, cfg.ReferencePoint, round, record.TotalCost)
		if err != nil {
			return model.RunRecord{}, fmt.Errorf("round %d: %w", round, err)
		}
		record.Rounds = append(record.Rounds, summary)
		record.TotalCost = summary.TotalCost
		if opts.OnRound != nil {
			opts.OnRound(summary)
		}
		if cfg.CostBudget > 0 && record.TotalCost >= cfg.CostBudget {
			break
		}
	}

	statuses, err := engine.Status(ctx, tree.AllLevels)
	if err != nil {
		return model.RunRecord{}, err
	}
	finalized, err := engine.FinalizedPopulation(ctx)
	if err != nil {
		return model.RunRecord{}, err
	}
	record.Nodes = statuses
	record.Population = finalized
	record.Hypervolume = hypervolume.Compute(cfg.ReferencePoint, model.ObjectiveVectors(finalized))

	record = storage.Stamp(record)
	if err := r.store.SaveRun(ctx, record); err != nil {
		return model.RunRecord{}, err
	}
	for level, stats := range archives.Stats() {
		log.Debug().
			Int("level", level).
			Int("hits", stats.Hits).
			Int("misses", stats.Misses).
			Int("entries", stats.Entries).
			Msg("fitness archive")
	}
	log.Info().
		Int("rounds", len(record.Rounds)).
		Float64("total_cost", record.TotalCost).
		Float64("hypervolume", record.Hypervolume).
		Int("nodes", len(record.Nodes)).
		Msg("run finished")
	return record, nil
}

func runRound(ctx context.Context, engine *tree.Engine, reference []float64, round int, previousCost float64) (model.RoundSummary, error) {
	cost, err := engine.Step(ctx)
	if err != nil {
		return model.RoundSummary{}, err
	}
	statuses, err := engine.Status(ctx, tree.AllLevels)
	if err != nil {
		return model.RoundSummary{}, err
	}
	population, err := engine.Population(ctx)
	if err != nil {
		return model.RoundSummary{}, err
	}
	summary := model.RoundSummary{
		Round:       round,
		Cost:        cost,
		TotalCost:   previousCost + cost,
		Hypervolume: hypervolume.Compute(reference, model.ObjectiveVectors(population)),
		Nodes:       len(statuses),
	}
	for _, status := range statuses {
		if status.Alive {
			summary.AliveNodes++
		}
		if status.Ripe {
			summary.RipeNodes++
		}
	}
	return summary, nil
}

func uniformPopulation(cfg config.Config) [][]float64 {
	rng := rand.New(rand.NewSource(cfg.Seed))
	bounds := cfg.GeometryBounds()
	out := make([][]float64, cfg.Level(0).PopulationSize)
	for i := range out {
		out[i] = geometry.Uniform(rng, bounds)
	}
	return out
}

func (r *Runner) registerRun(runID string, stop chan struct{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return ErrNotInitialized
	}
	if _, exists := r.runs[runID]; exists {
		return fmt.Errorf("run already active: %s", runID)
	}
	r.runs[runID] = stop
	return nil
}

func (r *Runner) unregisterRun(runID string) {
	r.mu.Lock()
	delete(r.runs, runID)
	r.mu.Unlock()
}

func requestStop(stop chan struct{}) {
	select {
	case stop <- struct{}{}:
	default:
	}
}

func stopRequested(stop chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
