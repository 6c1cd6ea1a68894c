package tree

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"

	"github.com/Soamid/evogil-sub000/internal/config"
	"github.com/Soamid/evogil-sub000/internal/driver"
	"github.com/Soamid/evogil-sub000/internal/metrics"
	"github.com/Soamid/evogil-sub000/internal/model"
)

// supervisor owns the registry and orchestrates tree-wide phases. All of
// its state is confined to its own goroutine; phases complete through task
// continuations so the loop never blocks on nodes.
type supervisor struct {
	cfg         config.Config
	minProgress []float64
	factory     driver.Factory
	host        Host
	rng         *rand.Rand
	log         zerolog.Logger

	inbox  *mailbox[supervisorMessage]
	tasks  *taskTable
	nodes  []*nodeHandle
	byID   map[NodeID]*nodeHandle
	levels [][]*nodeHandle

	totalCost float64
	failure   error
}

func newSupervisor(cfg config.Config, factory driver.Factory, host Host, log zerolog.Logger) *supervisor {
	return &supervisor{
		cfg:         cfg,
		minProgress: progressRatios(cfg),
		factory:     factory,
		host:        host,
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		log:         log,
		inbox:       newMailbox[supervisorMessage](),
		tasks:       newTaskTable(),
		byID:        make(map[NodeID]*nodeHandle),
		levels:      make([][]*nodeHandle, cfg.LevelCount()),
	}
}

func progressRatios(cfg config.Config) []float64 {
	out := make([]float64, len(cfg.Levels))
	for i, level := range cfg.Levels {
		out[i] = level.MinProgressRatio
	}
	return out
}

func (s *supervisor) run(ctx context.Context) error {
	for {
		msg, ok := s.inbox.receive(ctx)
		if !ok {
			s.tasks.failAll(ErrEngineStopped)
			return nil
		}
		s.dispatch(msg)
	}
}

func (s *supervisor) dispatch(msg supervisorMessage) {
	switch m := msg.(type) {
	case phaseRequest:
		if s.failure != nil {
			m.reply <- phaseResult{err: s.failure}
			return
		}
		s.startPhase(m)
	case nodeReply:
		if err := s.tasks.route(m); err != nil {
			s.log.Warn().Err(err).Int("node", int(m.from)).Msg("reply ignored")
		}
	case registerNodeMsg:
		handle, err := s.register(m.parent, m.level, m.population)
		m.reply <- registerResult{handle: handle, err: err}
	case workerFailed:
		s.log.Error().Err(m.err).Str("worker", m.name).Msg("worker failed")
		if s.failure == nil {
			s.failure = fmt.Errorf("worker %s: %w", m.name, m.err)
		}
		s.tasks.failAll(s.failure)
	default:
		s.log.Warn().Str("type", fmt.Sprintf("%T", msg)).Msg("unexpected supervisor message")
	}
}

// register is the only place the registry grows. It builds the node's driver,
// starts its loop and returns its handle.
func (s *supervisor) register(parent NodeID, level int, population [][]float64) (*nodeHandle, error) {
	if level < 0 || level > s.cfg.MaxLevel {
		return nil, fmt.Errorf("%w: %d", ErrLevelOutOfRange, level)
	}
	id := NodeID(len(s.nodes))
	drv, err := s.factory(level, s.rng.Int63(), population)
	if err != nil {
		return nil, fmt.Errorf("node %d driver: %w", id, err)
	}
	actor := &nodeActor{
		node:       newNode(id, parent, level, s.cfg, drv, s.rng.Int63(), s.log),
		inbox:      newMailbox[nodeMessage](),
		supervisor: s.inbox,
	}
	handle := actor.handle()
	if err := s.host.Start(fmt.Sprintf("node-%d", id), s.guard(fmt.Sprintf("node-%d", id), actor.run)); err != nil {
		return nil, fmt.Errorf("node %d start: %w", id, err)
	}
	s.nodes = append(s.nodes, handle)
	s.byID[id] = handle
	s.levels[level] = append(s.levels[level], handle)
	if parent != noParent {
		metrics.RecordSprout(level - 1)
	}
	s.log.Debug().Int("node", int(id)).Int("parent", int(parent)).Int("level", level).Msg("node registered")
	return handle, nil
}

// guard reports a worker's error or panic back to the supervisor so that
// outstanding phases fail instead of waiting forever.
func (s *supervisor) guard(name string, run func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		var err error
		var pc panics.Catcher
		pc.Try(func() { err = run(ctx) })
		if recovered := pc.Recovered(); recovered != nil {
			err = recovered.AsError()
		}
		if err != nil && ctx.Err() == nil {
			s.inbox.send(workerFailed{name: name, err: err})
		}
		return err
	}
}

func (s *supervisor) startPhase(req phaseRequest) {
	started := time.Now()
	reply := func(res phaseResult) {
		metrics.ObservePhase(string(req.phase), time.Since(started).Seconds())
		req.reply <- res
	}
	switch req.phase {
	case PhaseNewMetaepoch:
		s.newMetaepoch(reply)
	case PhaseCheckStatus:
		s.checkStatus(req.level, func(statuses []model.NodeStatus, err error) {
			reply(phaseResult{statuses: statuses, err: err})
		})
	case PhasePopulation:
		s.collectPopulation(req.finalized, reply)
	case PhaseTrimNotProgressing:
		s.trimNotProgressing(reply)
	case PhaseTrimRedundant:
		s.trimRedundant(reply)
	case PhaseReleaseSprouts:
		s.releaseSprouts(reply)
	case PhaseRevive:
		s.revive(reply)
	case PhaseProgressRatios:
		reply(phaseResult{ratios: append([]float64(nil), s.minProgress...)})
	default:
		reply(phaseResult{err: fmt.Errorf("unknown phase %q", req.phase)})
	}
}

func (s *supervisor) ids(handles []*nodeHandle) []NodeID {
	out := make([]NodeID, len(handles))
	for i, h := range handles {
		out[i] = h.id
	}
	return out
}

// fanOut registers t and then sends msg to every target.
func (s *supervisor) fanOut(t phaseTask, targets []*nodeHandle, msg nodeMessage) {
	if err := s.tasks.add(t); err != nil {
		t.fail(err)
		return
	}
	for _, h := range targets {
		h.inbox.send(msg)
	}
}

type metaepochAcc struct {
	cost float64
	ran  int
	err  error
}

func (s *supervisor) newMetaepoch(reply func(phaseResult)) {
	targets := append([]*nodeHandle(nil), s.nodes...)
	id := s.tasks.newID()
	fold := func(acc metaepochAcc, from NodeID, body any) metaepochAcc {
		level := s.byID[from].level
		switch b := body.(type) {
		case progressBody:
			weighted := float64(b.cost) * s.cfg.Level(level).CostModifier
			acc.cost += weighted
			metrics.RecordMetaepochCost(level, weighted)
		case epochDoneBody:
			if b.ran {
				acc.ran++
				metrics.RecordMetaepoch(level)
			}
			if b.err != nil && acc.err == nil {
				acc.err = b.err
			}
		}
		return acc
	}
	done := func(acc metaepochAcc, err error) {
		if err == nil {
			err = acc.err
		}
		s.totalCost += acc.cost
		s.log.Debug().Float64("cost", acc.cost).Int("ran", acc.ran).Msg("metaepoch complete")
		reply(phaseResult{cost: acc.cost, count: acc.ran, err: err})
	}
	s.fanOut(newTask(id, PhaseNewMetaepoch, s.ids(targets), fold, done), targets, metaepochMsg{task: id})
}

// checkStatus collects status reports from one level or the whole tree and
// hands them to next in registration order.
func (s *supervisor) checkStatus(level int, next func([]model.NodeStatus, error)) {
	targets := s.nodes
	if level != AllLevels {
		if level < 0 || level >= len(s.levels) {
			next(nil, fmt.Errorf("%w: %d", ErrLevelOutOfRange, level))
			return
		}
		targets = s.levels[level]
	}
	targets = append([]*nodeHandle(nil), targets...)
	id := s.tasks.newID()
	fold := func(acc map[NodeID]model.NodeStatus, from NodeID, body any) map[NodeID]model.NodeStatus {
		if st, ok := body.(model.NodeStatus); ok {
			if acc == nil {
				acc = make(map[NodeID]model.NodeStatus, len(targets))
			}
			acc[from] = st
		}
		return acc
	}
	done := func(acc map[NodeID]model.NodeStatus, err error) {
		if err != nil {
			next(nil, err)
			return
		}
		out := make([]model.NodeStatus, 0, len(targets))
		for _, h := range targets {
			out = append(out, acc[h.id])
		}
		if level == AllLevels {
			publishNodeCounts(out, s.cfg.LevelCount())
		}
		next(out, nil)
	}
	s.fanOut(newTask(id, PhaseCheckStatus, s.ids(targets), fold, done), targets, statusMsg{task: id})
}

func publishNodeCounts(statuses []model.NodeStatus, levels int) {
	alive := make([]int, levels)
	ripe := make([]int, levels)
	dead := make([]int, levels)
	for _, st := range statuses {
		switch {
		case st.Alive:
			alive[st.Level]++
		case st.Ripe:
			ripe[st.Level]++
		default:
			dead[st.Level]++
		}
	}
	for level := 0; level < levels; level++ {
		metrics.SetNodeCounts(level, alive[level], ripe[level], dead[level])
	}
}

func (s *supervisor) collectPopulation(finalized bool, reply func(phaseResult)) {
	targets := append([]*nodeHandle(nil), s.nodes...)
	id := s.tasks.newID()
	fold := func(acc map[NodeID][]model.Individual, from NodeID, body any) map[NodeID][]model.Individual {
		if pop, ok := body.([]model.Individual); ok {
			if acc == nil {
				acc = make(map[NodeID][]model.Individual, len(targets))
			}
			acc[from] = pop
		}
		return acc
	}
	done := func(acc map[NodeID][]model.Individual, err error) {
		if err != nil {
			reply(phaseResult{err: err})
			return
		}
		var merged []model.Individual
		for _, h := range targets {
			merged = append(merged, acc[h.id]...)
		}
		reply(phaseResult{population: merged})
	}
	s.fanOut(newTask(id, PhasePopulation, s.ids(targets), fold, done), targets, populationMsg{task: id, finalized: finalized})
}

func (s *supervisor) trimNotProgressing(reply func(phaseResult)) {
	targets := append([]*nodeHandle(nil), s.nodes...)
	id := s.tasks.newID()
	fold := func(acc int, from NodeID, body any) int {
		if b, ok := body.(trimBody); ok && b.stagnated {
			metrics.RecordStagnation(s.byID[from].level)
			acc++
		}
		return acc
	}
	done := func(stagnated int, err error) {
		reply(phaseResult{count: stagnated, err: err})
	}
	t := newTask(id, PhaseTrimNotProgressing, s.ids(targets), fold, done)
	if err := s.tasks.add(t); err != nil {
		t.fail(err)
		return
	}
	for _, h := range targets {
		h.inbox.send(trimNotProgressingMsg{task: id, ratio: s.minProgress[h.level]})
	}
}

// redundantNodes reduces a status snapshot to the nodes redundancy pruning
// kills. Levels are processed deepest first and nodes in registration
// order: an alive node dies when its center is closer than min_dist[level]
// to a ripe node or to an alive node that already survived this pass.
func redundantNodes(statuses []model.NodeStatus, minDists []float64) []NodeID {
	var killed []NodeID
	groups := levelOrder(statuses, func(st model.NodeStatus) int { return st.Level }, deepestFirst)
	for _, g := range groups {
		var compared [][]float64
		for _, st := range g.items {
			if st.Ripe && st.Center != nil {
				compared = append(compared, st.Center)
			}
		}
		for _, st := range g.items {
			if !st.Alive || st.Center == nil {
				continue
			}
			if redundant(st.Center, compared, minDists[g.level]) {
				killed = append(killed, NodeID(st.ID))
				continue
			}
			compared = append(compared, st.Center)
		}
	}
	return killed
}

func (s *supervisor) trimRedundant(reply func(phaseResult)) {
	s.checkStatus(AllLevels, func(statuses []model.NodeStatus, err error) {
		if err != nil {
			reply(phaseResult{err: err})
			return
		}
		killed := redundantNodes(statuses, s.cfg.MinDists)
		targets := make([]*nodeHandle, len(killed))
		for i, nodeID := range killed {
			targets[i] = s.byID[nodeID]
			metrics.RecordKill(targets[i].level)
		}
		id := s.tasks.newID()
		done := func(_ struct{}, err error) {
			if len(killed) > 0 {
				s.log.Debug().Int("killed", len(killed)).Msg("redundant nodes pruned")
			}
			reply(phaseResult{count: len(killed), err: err})
		}
		s.fanOut(newTask(id, PhaseTrimRedundant, killed, nil, done), targets, killMsg{task: id})
	})
}

// releaseSprouts walks the snapshot deepest level first, one node at a
// time. Children created while processing a level are forwarded to the rest
// of that level so siblings are never seeded on top of each other.
func (s *supervisor) releaseSprouts(reply func(phaseResult)) {
	s.checkStatus(AllLevels, func(statuses []model.NodeStatus, err error) {
		if err != nil {
			reply(phaseResult{err: err})
			return
		}
		populated := make(map[int][][]float64)
		for _, st := range statuses {
			if st.PopulationLen > 0 && st.Center != nil {
				populated[st.Level] = append(populated[st.Level], st.Center)
			}
		}

		var accumulated []childState
		sprouted := 0
		groups := levelOrder(statuses, func(st model.NodeStatus) int { return st.Level }, deepestFirst)
		visit := func(level int, st model.NodeStatus, next func()) {
			h := s.byID[NodeID(st.ID)]
			id := s.tasks.newID()
			fold := func(acc sproutBody, _ NodeID, body any) sproutBody {
				if b, ok := body.(sproutBody); ok {
					return b
				}
				return acc
			}
			done := func(b sproutBody, err error) {
				if err == nil {
					err = b.err
				}
				accumulated = append(accumulated, b.children...)
				sprouted += len(b.children)
				if err != nil {
					reply(phaseResult{count: sprouted, err: err})
					return
				}
				next()
			}
			msg := releaseSproutsMsg{
				task:        id,
				siblings:    populated[level+1],
				accumulated: append([]childState(nil), accumulated...),
			}
			s.fanOut(newTask(id, PhaseReleaseSprouts, []NodeID{h.id}, fold, done), []*nodeHandle{h}, msg)
		}
		endLevel := func(int) {
			accumulated = nil
		}
		walk(groups, visit, endLevel, func() {
			reply(phaseResult{count: sprouted})
		})
	})
}

// revive resurrects every ripe node once nothing in the tree is alive, and
// halves every level's progress ratio.
func (s *supervisor) revive(reply func(phaseResult)) {
	s.checkStatus(AllLevels, func(statuses []model.NodeStatus, err error) {
		if err != nil {
			reply(phaseResult{err: err})
			return
		}
		var ripe []*nodeHandle
		for _, st := range statuses {
			if st.Alive {
				reply(phaseResult{})
				return
			}
			if st.Ripe {
				ripe = append(ripe, s.byID[NodeID(st.ID)])
			}
		}
		for i := range s.minProgress {
			s.minProgress[i] /= 2
		}
		metrics.RecordRevival()
		s.log.Info().Int("ripe", len(ripe)).Floats64("min_progress_ratio", s.minProgress).Msg("no node alive, reviving tree")

		id := s.tasks.newID()
		done := func(_ struct{}, err error) {
			reply(phaseResult{count: len(ripe), ratios: append([]float64(nil), s.minProgress...), err: err})
		}
		s.fanOut(newTask(id, PhaseRevive, s.ids(ripe), nil, done), ripe, reviveMsg{task: id})
	})
}
