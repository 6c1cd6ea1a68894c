package tree

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/Soamid/evogil-sub000/internal/config"
	"github.com/Soamid/evogil-sub000/internal/driver"
	"github.com/Soamid/evogil-sub000/internal/geometry"
	"github.com/Soamid/evogil-sub000/internal/hypervolume"
	"github.com/Soamid/evogil-sub000/internal/model"
)

const progressEpsilon = 1e-9

var errRegistrationClosed = errors.New("supervisor is not accepting registrations")

// sproutEnv is what a node needs from the rest of the tree while releasing
// sprouts: its children's liveness and the supervisor's registry.
type sproutEnv interface {
	childStatus(ctx context.Context, child *nodeHandle) (model.NodeStatus, error)
	register(ctx context.Context, parent NodeID, level int, population [][]float64) (*nodeHandle, error)
}

// node is one optimization unit. Its state is only touched by its own
// goroutine, in response to messages from its inbox.
type node struct {
	id     NodeID
	parent NodeID
	level  int
	cfg    config.Config
	driver driver.Driver
	rng    *rand.Rand
	log    zerolog.Logger

	alive      bool
	ripe       bool
	population []model.Individual
	delegates  [][]float64
	center     []float64

	scored      bool
	relativeHV  float64
	hypervolume float64
	oldHV       float64

	sprouts []*nodeHandle
	cost    int
}

func newNode(id, parent NodeID, level int, cfg config.Config, drv driver.Driver, seed int64, log zerolog.Logger) *node {
	return &node{
		id:         id,
		parent:     parent,
		level:      level,
		cfg:        cfg,
		driver:     drv,
		rng:        rand.New(rand.NewSource(seed)),
		log:        log.With().Int("node", int(id)).Int("level", level).Logger(),
		alive:      true,
		population: drv.Population(),
	}
}

// runMetaepoch advances the driver metaepoch_len generations, reporting the
// cost of each one through progress. A dead node returns immediately.
func (n *node) runMetaepoch(ctx context.Context, progress func(cost int)) (bool, error) {
	if !n.alive {
		return false, nil
	}
	generations := n.cfg.Level(n.level).MetaepochLen
	for gen := 0; gen < generations; gen++ {
		cost, err := n.driver.Step(ctx)
		if err != nil {
			return true, fmt.Errorf("node %d metaepoch: %w", n.id, err)
		}
		n.cost += cost
		progress(cost)
	}

	n.population = n.driver.Population()
	n.delegates = n.driver.Delegates()
	n.rng.Shuffle(len(n.delegates), func(i, j int) {
		n.delegates[i], n.delegates[j] = n.delegates[j], n.delegates[i]
	})
	n.center = nil
	n.score(hypervolume.Compute(n.cfg.ReferencePoint, model.ObjectiveVectors(n.population)))
	return true, nil
}

// score records a new hypervolume. The first score becomes the baseline and
// later ones are kept relative to it.
func (n *node) score(hv float64) {
	if !n.scored {
		n.scored = true
		n.relativeHV = hv
		n.hypervolume = 0
		n.oldHV = 0
		return
	}
	n.oldHV = n.hypervolume
	n.hypervolume = hv - n.relativeHV
}

func (n *node) centerOf() []float64 {
	if n.center == nil && len(n.population) > 0 {
		n.center = geometry.Mean(model.DecisionVectors(n.population))
	}
	return n.center
}

func (n *node) status() model.NodeStatus {
	return model.NodeStatus{
		ID:            int(n.id),
		Parent:        int(n.parent),
		Level:         n.level,
		Alive:         n.alive,
		Ripe:          n.ripe,
		Center:        append([]float64(nil), n.centerOf()...),
		PopulationLen: len(n.population),
		Hypervolume:   n.hypervolume,
		Cost:          n.cost,
		Sprouts:       len(n.sprouts),
	}
}

func (n *node) populationSnapshot(finalized bool) []model.Individual {
	if finalized {
		return n.driver.FinalizedPopulation()
	}
	return model.CloneIndividuals(n.population)
}

// trimNotProgressing turns the node ripe when its relative hypervolume
// improvement falls below ratio / 2^level.
func (n *node) trimNotProgressing(ratio float64) bool {
	if !n.alive || n.oldHV <= 0 {
		return false
	}
	improvement := n.hypervolume/(n.oldHV+progressEpsilon) - 1
	threshold := ratio / math.Pow(2, float64(n.level))
	if improvement >= threshold {
		return false
	}
	n.alive = false
	n.ripe = true
	n.center = geometry.Mean(model.DecisionVectors(n.population))
	n.log.Debug().
		Float64("improvement", improvement).
		Float64("threshold", threshold).
		Msg("node stopped progressing")
	return true
}

func (n *node) kill() {
	n.alive = false
	n.ripe = false
}

func (n *node) revive() {
	n.alive = true
	n.ripe = false
}

// releaseSprouts creates children from the node's delegates. siblings are
// the centers of populated nodes one level down, accumulated the children
// other parents created earlier in the same release.
func (n *node) releaseSprouts(ctx context.Context, env sproutEnv, siblings [][]float64, accumulated []childState) ([]childState, error) {
	if !n.ripe || n.level >= n.cfg.MaxLevel {
		return nil, nil
	}

	aliveChildren := 0
	for _, child := range n.sprouts {
		st, err := env.childStatus(ctx, child)
		if err != nil {
			return nil, fmt.Errorf("node %d child %d status: %w", n.id, child.id, err)
		}
		if st.Alive {
			aliveChildren++
		}
	}

	childLevel := n.level + 1
	minDist := n.cfg.MinDists[childLevel]
	known := make([][]float64, 0, len(siblings)+len(accumulated))
	known = append(known, siblings...)
	for _, c := range accumulated {
		known = append(known, c.center)
	}

	var created []childState
	for len(n.delegates) > 0 && len(created) < n.cfg.Sproutiveness && aliveChildren < n.cfg.MaxSproutsNo {
		delegate := n.delegates[0]
		n.delegates = n.delegates[1:]

		candidate := n.seedPopulation(delegate, childLevel)
		center := geometry.Mean(candidate)
		if redundant(center, known, minDist) {
			continue
		}
		handle, err := env.register(ctx, n.id, childLevel, candidate)
		if err != nil {
			return created, fmt.Errorf("node %d sprout: %w", n.id, err)
		}
		n.sprouts = append(n.sprouts, handle)
		aliveChildren++
		known = append(known, center)
		created = append(created, childState{id: handle.id, center: center})
		n.log.Debug().Int("child", int(handle.id)).Msg("sprout released")
	}
	return created, nil
}

// seedPopulation is the delegate followed by population_size-1 mutants of it.
func (n *node) seedPopulation(delegate []float64, level int) [][]float64 {
	size := n.cfg.Level(level).PopulationSize
	bounds := n.cfg.GeometryBounds()
	eta := n.cfg.Level(level).MutationEta
	rate := n.cfg.MutationRate(level)

	out := make([][]float64, 0, size)
	out = append(out, append([]float64(nil), delegate...))
	for len(out) < size {
		out = append(out, geometry.PolynomialMutation(n.rng, delegate, bounds, eta, rate))
	}
	return out
}

func redundant(center []float64, known [][]float64, minDist float64) bool {
	for _, other := range known {
		if other == nil {
			continue
		}
		if geometry.Distance(center, other) < minDist {
			return true
		}
	}
	return false
}

// nodeActor runs a node's message loop.
type nodeActor struct {
	*node
	inbox      *mailbox[nodeMessage]
	supervisor *mailbox[supervisorMessage]
}

func (a *nodeActor) handle() *nodeHandle {
	return &nodeHandle{id: a.id, level: a.level, inbox: a.inbox}
}

func (a *nodeActor) run(ctx context.Context) error {
	for {
		msg, ok := a.inbox.receive(ctx)
		if !ok {
			return nil
		}
		a.dispatch(ctx, msg)
	}
}

func (a *nodeActor) reply(r nodeReply) {
	r.from = a.id
	if !a.supervisor.send(r) {
		a.log.Debug().Msg("supervisor inbox closed, reply dropped")
	}
}

func (a *nodeActor) dispatch(ctx context.Context, msg nodeMessage) {
	switch m := msg.(type) {
	case metaepochMsg:
		ran, err := a.runMetaepoch(ctx, func(cost int) {
			a.reply(nodeReply{task: m.task, body: progressBody{cost: cost}})
		})
		a.reply(nodeReply{task: m.task, final: true, body: epochDoneBody{ran: ran, err: err}})
	case statusMsg:
		a.reply(nodeReply{task: m.task, final: true, body: a.status()})
	case populationMsg:
		a.reply(nodeReply{task: m.task, final: true, body: a.populationSnapshot(m.finalized)})
	case trimNotProgressingMsg:
		a.reply(nodeReply{task: m.task, final: true, body: trimBody{stagnated: a.trimNotProgressing(m.ratio)}})
	case killMsg:
		a.kill()
		a.reply(nodeReply{task: m.task, final: true, body: ackBody{}})
	case reviveMsg:
		a.revive()
		a.reply(nodeReply{task: m.task, final: true, body: ackBody{}})
	case releaseSproutsMsg:
		children, err := a.releaseSprouts(ctx, a, m.siblings, m.accumulated)
		a.reply(nodeReply{task: m.task, final: true, body: sproutBody{children: children, err: err}})
	case childStatusMsg:
		m.reply <- a.status()
	default:
		a.log.Warn().Str("type", fmt.Sprintf("%T", msg)).Msg("unexpected node message")
	}
}

func (a *nodeActor) childStatus(ctx context.Context, child *nodeHandle) (model.NodeStatus, error) {
	reply := make(chan model.NodeStatus, 1)
	if !child.inbox.send(childStatusMsg{reply: reply}) {
		return model.NodeStatus{}, fmt.Errorf("node %d inbox closed", child.id)
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return model.NodeStatus{}, ctx.Err()
	}
}

func (a *nodeActor) register(ctx context.Context, parent NodeID, level int, population [][]float64) (*nodeHandle, error) {
	reply := make(chan registerResult, 1)
	msg := registerNodeMsg{parent: parent, level: level, population: population, reply: reply}
	if !a.supervisor.send(msg) {
		return nil, errRegistrationClosed
	}
	select {
	case res := <-reply:
		return res.handle, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
