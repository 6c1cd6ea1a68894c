// Package tree runs the hierarchical tree of optimization nodes: one
// goroutine per node, a supervisor that owns the registry, and scatter-gather
// tasks that turn tree-wide phases into a single reply.
package tree

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/Soamid/evogil-sub000/internal/config"
	"github.com/Soamid/evogil-sub000/internal/driver"
	"github.com/Soamid/evogil-sub000/internal/logging"
	"github.com/Soamid/evogil-sub000/internal/model"
)

var (
	ErrEngineStopped     = errors.New("engine stopped")
	ErrLevelOutOfRange   = errors.New("level out of range")
	ErrInitialPopulation = errors.New("initial population too small")
	ErrNoDriverFactory   = errors.New("driver factory is required")
)

// Host runs the long-lived supervisor and node loops. StopAll cancels every
// loop and waits for it to return.
type Host interface {
	Start(name string, run func(ctx context.Context) error) error
	StopAll()
}

// Options wires the engine's collaborators. Host defaults to plain
// goroutines owned by the engine.
type Options struct {
	Factory driver.Factory
	Host    Host
	Logger  *zerolog.Logger
}

// Engine is the caller-facing side of a running tree. Phases issued
// concurrently are interleaved by the supervisor; Step runs them in order.
type Engine struct {
	cfg      config.Config
	inbox    *mailbox[supervisorMessage]
	host     Host
	exited   chan struct{}
	stopOnce sync.Once
}

// Start validates cfg, creates the root from a random sample of initial and
// returns once the tree answers a status request.
func Start(ctx context.Context, cfg config.Config, initial [][]float64, opts Options) (*Engine, error) {
	if len(cfg.MinDists) != len(cfg.Levels) {
		cfg = cfg.Derive(cfg.GeometryBounds(), cfg.ReferencePoint)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.Factory == nil {
		return nil, ErrNoDriverFactory
	}
	rootSize := cfg.Level(0).PopulationSize
	if len(initial) < rootSize {
		return nil, fmt.Errorf("%w: need %d, got %d", ErrInitialPopulation, rootSize, len(initial))
	}
	log := logging.Component("tree")
	if opts.Logger != nil {
		log = *opts.Logger
	}
	host := opts.Host
	if host == nil {
		host = newLocalHost(log)
	}

	sup := newSupervisor(cfg, opts.Factory, host, log)
	root := make([][]float64, 0, rootSize)
	for _, idx := range sup.rng.Perm(len(initial))[:rootSize] {
		root = append(root, append([]float64(nil), initial[idx]...))
	}
	if _, err := sup.register(noParent, 0, root); err != nil {
		host.StopAll()
		return nil, fmt.Errorf("start root: %w", err)
	}

	e := &Engine{
		cfg:    cfg,
		inbox:  sup.inbox,
		host:   host,
		exited: make(chan struct{}),
	}
	run := sup.guard("supervisor", func(ctx context.Context) error {
		defer close(e.exited)
		return sup.run(ctx)
	})
	if err := host.Start("supervisor", run); err != nil {
		host.StopAll()
		return nil, fmt.Errorf("start supervisor: %w", err)
	}
	if _, err := e.Status(ctx, AllLevels); err != nil {
		e.Shutdown()
		return nil, err
	}
	log.Info().
		Str("run_id", cfg.RunID).
		Int("max_level", cfg.MaxLevel).
		Int("root_population", rootSize).
		Msg("tree started")
	return e, nil
}

// Config returns the derived configuration the tree runs with.
func (e *Engine) Config() config.Config {
	return e.cfg
}

// call sends one phase request and waits for its reply. A canceled ctx
// shuts the engine down because a phase cannot be abandoned halfway.
func (e *Engine) call(ctx context.Context, req phaseRequest) (phaseResult, error) {
	if err := ctx.Err(); err != nil {
		e.Shutdown()
		return phaseResult{}, err
	}
	req.reply = make(chan phaseResult, 1)
	if !e.inbox.send(req) {
		return phaseResult{}, ErrEngineStopped
	}
	select {
	case res := <-req.reply:
		if res.err != nil {
			return res, fmt.Errorf("%s: %w", req.phase, res.err)
		}
		return res, nil
	case <-e.exited:
		select {
		case res := <-req.reply:
			if res.err != nil {
				return res, fmt.Errorf("%s: %w", req.phase, res.err)
			}
			return res, nil
		default:
			return phaseResult{}, ErrEngineStopped
		}
	case <-ctx.Done():
		e.Shutdown()
		return phaseResult{}, ctx.Err()
	}
}

// Step runs one coordinated round and returns its weighted evaluation cost.
func (e *Engine) Step(ctx context.Context) (float64, error) {
	cost, err := e.NewMetaepoch(ctx)
	if err != nil {
		return cost, err
	}
	if _, err := e.TrimNotProgressing(ctx); err != nil {
		return cost, err
	}
	if _, err := e.TrimRedundant(ctx); err != nil {
		return cost, err
	}
	if _, err := e.ReleaseSprouts(ctx); err != nil {
		return cost, err
	}
	if _, err := e.Revive(ctx); err != nil {
		return cost, err
	}
	return cost, nil
}

func (e *Engine) NewMetaepoch(ctx context.Context) (float64, error) {
	res, err := e.call(ctx, phaseRequest{phase: PhaseNewMetaepoch})
	return res.cost, err
}

// Status collects node statuses in registration order. level may be
// AllLevels.
func (e *Engine) Status(ctx context.Context, level int) ([]model.NodeStatus, error) {
	res, err := e.call(ctx, phaseRequest{phase: PhaseCheckStatus, level: level})
	return res.statuses, err
}

// Population merges every node's current population in registration order.
func (e *Engine) Population(ctx context.Context) ([]model.Individual, error) {
	res, err := e.call(ctx, phaseRequest{phase: PhasePopulation})
	return res.population, err
}

// FinalizedPopulation merges the drivers' finalized populations.
func (e *Engine) FinalizedPopulation(ctx context.Context) ([]model.Individual, error) {
	res, err := e.call(ctx, phaseRequest{phase: PhasePopulation, finalized: true})
	return res.population, err
}

// TrimNotProgressing returns how many nodes turned ripe.
func (e *Engine) TrimNotProgressing(ctx context.Context) (int, error) {
	res, err := e.call(ctx, phaseRequest{phase: PhaseTrimNotProgressing})
	return res.count, err
}

// TrimRedundant returns how many nodes were killed.
func (e *Engine) TrimRedundant(ctx context.Context) (int, error) {
	res, err := e.call(ctx, phaseRequest{phase: PhaseTrimRedundant})
	return res.count, err
}

// ReleaseSprouts returns how many children were created.
func (e *Engine) ReleaseSprouts(ctx context.Context) (int, error) {
	res, err := e.call(ctx, phaseRequest{phase: PhaseReleaseSprouts})
	return res.count, err
}

// Revive returns how many ripe nodes were brought back; zero when some
// node was still alive.
func (e *Engine) Revive(ctx context.Context) (int, error) {
	res, err := e.call(ctx, phaseRequest{phase: PhaseRevive})
	return res.count, err
}

// ProgressRatios returns the current per-level min_progress_ratio, which
// revival halves.
func (e *Engine) ProgressRatios(ctx context.Context) ([]float64, error) {
	res, err := e.call(ctx, phaseRequest{phase: PhaseProgressRatios})
	return res.ratios, err
}

// Shutdown stops the supervisor and every node. It is safe to call more
// than once.
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		e.inbox.close()
		e.host.StopAll()
	})
}

type localHost struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup
	log    zerolog.Logger
}

func newLocalHost(log zerolog.Logger) *localHost {
	ctx, cancel := context.WithCancel(context.Background())
	return &localHost{ctx: ctx, cancel: cancel, log: log}
}

func (h *localHost) Start(name string, run func(ctx context.Context) error) error {
	if h.ctx.Err() != nil {
		return ErrEngineStopped
	}
	h.wg.Go(func() {
		if err := run(h.ctx); err != nil {
			h.log.Debug().Err(err).Str("worker", name).Msg("worker exited")
		}
	})
	return nil
}

func (h *localHost) StopAll() {
	h.cancel()
	h.wg.Wait()
}
