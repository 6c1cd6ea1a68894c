package tree

import (
	"github.com/google/uuid"

	"github.com/Soamid/evogil-sub000/internal/model"
)

// NodeID is the stable handle of a node, assigned sequentially by the
// registry. The root is 0.
type NodeID int

const noParent NodeID = -1

// AllLevels scopes a status collection to the whole tree.
const AllLevels = -1

type Phase string

const (
	PhaseNewMetaepoch       Phase = "new_metaepoch"
	PhaseCheckStatus        Phase = "check_status"
	PhasePopulation         Phase = "population"
	PhaseTrimNotProgressing Phase = "trim_not_progressing"
	PhaseTrimRedundant      Phase = "trim_redundant"
	PhaseReleaseSprouts     Phase = "release_sprouts"
	PhaseRevive             Phase = "revive"
	PhaseProgressRatios     Phase = "progress_ratios"
)

// nodeHandle is how other actors address a node.
type nodeHandle struct {
	id    NodeID
	level int
	inbox *mailbox[nodeMessage]
}

// childState is a node created during the current sprout release, passed
// forward so later parents see it as a sibling.
type childState struct {
	id     NodeID
	center []float64
}

// Messages handled by a node.
type nodeMessage interface {
	isNodeMessage()
}

type metaepochMsg struct{ task uuid.UUID }

type statusMsg struct{ task uuid.UUID }

type populationMsg struct {
	task      uuid.UUID
	finalized bool
}

type trimNotProgressingMsg struct {
	task  uuid.UUID
	ratio float64
}

type killMsg struct{ task uuid.UUID }

type reviveMsg struct{ task uuid.UUID }

type releaseSproutsMsg struct {
	task        uuid.UUID
	siblings    [][]float64
	accumulated []childState
}

// childStatusMsg is a direct parent to child query used while sprouting.
type childStatusMsg struct {
	reply chan<- model.NodeStatus
}

func (metaepochMsg) isNodeMessage()          {}
func (statusMsg) isNodeMessage()             {}
func (populationMsg) isNodeMessage()         {}
func (trimNotProgressingMsg) isNodeMessage() {}
func (killMsg) isNodeMessage()               {}
func (reviveMsg) isNodeMessage()             {}
func (releaseSproutsMsg) isNodeMessage()     {}
func (childStatusMsg) isNodeMessage()        {}

// Messages handled by the supervisor.
type supervisorMessage interface {
	isSupervisorMessage()
}

type phaseRequest struct {
	phase     Phase
	level     int
	finalized bool
	reply     chan phaseResult
}

// nodeReply routes a node's answer to the task named by its correlation id.
// Non-final replies (metaepoch progress) are folded without completing the
// sender.
type nodeReply struct {
	task  uuid.UUID
	from  NodeID
	final bool
	body  any
}

type registerNodeMsg struct {
	parent     NodeID
	level      int
	population [][]float64
	reply      chan registerResult
}

type registerResult struct {
	handle *nodeHandle
	err    error
}

type workerFailed struct {
	name string
	err  error
}

func (phaseRequest) isSupervisorMessage()    {}
func (nodeReply) isSupervisorMessage()       {}
func (registerNodeMsg) isSupervisorMessage() {}
func (workerFailed) isSupervisorMessage()    {}

// Reply bodies.
type progressBody struct{ cost int }

type epochDoneBody struct {
	ran bool
	err error
}

type trimBody struct{ stagnated bool }

type ackBody struct{}

type sproutBody struct {
	children []childState
	err      error
}

type phaseResult struct {
	cost       float64
	statuses   []model.NodeStatus
	population []model.Individual
	count      int
	ratios     []float64
	err        error
}
