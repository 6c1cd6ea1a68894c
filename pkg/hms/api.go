// Package hms is the public entry point: a Client that runs and inspects
// optimizations, and the engine types for callers that drive a tree
// themselves.
package hms

import (
	"context"
	"errors"
	"fmt"

	"github.com/Soamid/evogil-sub000/internal/archive"
	"github.com/Soamid/evogil-sub000/internal/config"
	"github.com/Soamid/evogil-sub000/internal/driver"
	"github.com/Soamid/evogil-sub000/internal/model"
	"github.com/Soamid/evogil-sub000/internal/platform"
	"github.com/Soamid/evogil-sub000/internal/problem"
	"github.com/Soamid/evogil-sub000/internal/storage"
	"github.com/Soamid/evogil-sub000/internal/tree"
)

const defaultDBPath = "hms.db"

var ErrRunNotFound = errors.New("run not found")

type (
	Engine       = tree.Engine
	Config       = config.Config
	LevelConfig  = config.LevelConfig
	RunRecord    = model.RunRecord
	RunSummary   = model.RunSummary
	RoundSummary = model.RoundSummary
	NodeStatus   = model.NodeStatus
	Individual   = model.Individual
)

// AllLevels selects every level in Engine.Status.
const AllLevels = tree.AllLevels

func DefaultConfig() Config {
	return config.Default()
}

func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

func Problems() []string {
	return problem.Names()
}

// StartEngine starts a tree on cfg's problem with NSGA-II drivers. The
// caller owns the engine and must Shutdown it.
func StartEngine(ctx context.Context, cfg Config, initial [][]float64) (*Engine, error) {
	cfg, prob, err := platform.Prepare(cfg)
	if err != nil {
		return nil, err
	}
	archives := archive.NewLevels(cfg.LevelCount(), 0)
	return tree.Start(ctx, cfg, initial, tree.Options{
		Factory: driver.NSGA2Factory(cfg, prob, archives),
		Host:    platform.NewSupervisor(),
	})
}

type Options struct {
	StoreKind string
	DBPath    string
}

type Client struct {
	store  storage.Store
	runner *platform.Runner
}

type RunRequest struct {
	Config  Config
	Initial [][]float64
	OnRound func(RoundSummary)
}

type RunsRequest struct {
	Limit int
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{store: store}, nil
}

func (c *Client) Close() error {
	if c.runner != nil {
		c.runner.Stop()
	}
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureRunner(ctx)
	return err
}

// Run optimizes until the request's stop criteria and returns the persisted
// record.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunRecord, error) {
	runner, err := c.ensureRunner(ctx)
	if err != nil {
		return RunRecord{}, err
	}
	return runner.RunOptimization(ctx, req.Config, platform.RunOptions{
		Initial: req.Initial,
		OnRound: req.OnRound,
	})
}

// Runs lists stored runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunSummary, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	runner, err := c.ensureRunner(ctx)
	if err != nil {
		return nil, err
	}
	summaries, err := runner.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RunSummary, 0, min(req.Limit, len(summaries)))
	for i := len(summaries) - 1; i >= 0 && len(out) < req.Limit; i-- {
		out = append(out, summaries[i])
	}
	return out, nil
}

func (c *Client) Show(ctx context.Context, runID string) (RunRecord, error) {
	if runID == "" {
		return RunRecord{}, fmt.Errorf("run id is required")
	}
	runner, err := c.ensureRunner(ctx)
	if err != nil {
		return RunRecord{}, err
	}
	record, ok, err := runner.GetRun(ctx, runID)
	if err != nil {
		return RunRecord{}, err
	}
	if !ok {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return record, nil
}

func (c *Client) ensureRunner(ctx context.Context) (*platform.Runner, error) {
	if c.runner != nil {
		return c.runner, nil
	}
	runner := platform.NewRunner(platform.Config{Store: c.store})
	if err := runner.Init(ctx); err != nil {
		return nil, err
	}
	c.runner = runner
	return c.runner, nil
}
