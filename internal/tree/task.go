package tree

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrTaskCollision   = errors.New("task id collision")
	errUnknownTask     = errors.New("reply for unknown task")
	errUnexpectedReply = errors.New("reply from unexpected sender")
)

// phaseTask is one outstanding scatter-gather request.
type phaseTask interface {
	id() uuid.UUID
	phase() Phase
	// deliver folds r into the task. It reports true once the task has
	// completed and can be discarded.
	deliver(r nodeReply) (bool, error)
	// complete fires the reduction if nothing is pending.
	complete() bool
	fail(err error)
}

// task counts replies from an expected set of nodes and completes exactly
// once, after every expected node has sent its final reply.
type task[T any] struct {
	taskID   uuid.UUID
	name     Phase
	pending  map[NodeID]struct{}
	expected int
	received int
	acc      T
	fold     func(acc T, from NodeID, body any) T
	done     func(acc T, err error)
	fired    bool
}

func newTask[T any](id uuid.UUID, phase Phase, expected []NodeID, fold func(T, NodeID, any) T, done func(T, error)) *task[T] {
	pending := make(map[NodeID]struct{}, len(expected))
	for _, nodeID := range expected {
		pending[nodeID] = struct{}{}
	}
	return &task[T]{
		taskID:   id,
		name:     phase,
		pending:  pending,
		expected: len(pending),
		fold:     fold,
		done:     done,
	}
}

func (t *task[T]) id() uuid.UUID { return t.taskID }
func (t *task[T]) phase() Phase  { return t.name }

func (t *task[T]) deliver(r nodeReply) (bool, error) {
	if t.fired {
		return true, fmt.Errorf("%w: task %s already completed", errUnexpectedReply, t.taskID)
	}
	if _, ok := t.pending[r.from]; !ok {
		return false, fmt.Errorf("%w: node %d for %s task %s", errUnexpectedReply, r.from, t.name, t.taskID)
	}
	if t.fold != nil {
		t.acc = t.fold(t.acc, r.from, r.body)
	}
	if !r.final {
		return false, nil
	}
	delete(t.pending, r.from)
	t.received++
	return t.complete(), nil
}

func (t *task[T]) complete() bool {
	if t.fired || t.received < t.expected {
		return t.fired
	}
	t.fired = true
	t.done(t.acc, nil)
	return true
}

func (t *task[T]) fail(err error) {
	if t.fired {
		return
	}
	t.fired = true
	t.done(t.acc, err)
}

// taskTable is the supervisor's registry of outstanding tasks, keyed by
// correlation id. It is only touched from the supervisor goroutine.
type taskTable struct {
	tasks map[uuid.UUID]phaseTask
	newID func() uuid.UUID
}

func newTaskTable() *taskTable {
	return &taskTable{
		tasks: make(map[uuid.UUID]phaseTask),
		newID: uuid.New,
	}
}

// add registers t. A task that expects no replies completes immediately and
// is never stored.
func (tt *taskTable) add(t phaseTask) error {
	if _, exists := tt.tasks[t.id()]; exists {
		return fmt.Errorf("%w: %s", ErrTaskCollision, t.id())
	}
	if t.complete() {
		return nil
	}
	tt.tasks[t.id()] = t
	return nil
}

func (tt *taskTable) route(r nodeReply) error {
	t, ok := tt.tasks[r.task]
	if !ok {
		return fmt.Errorf("%w: %s from node %d", errUnknownTask, r.task, r.from)
	}
	finished, err := t.deliver(r)
	if finished {
		delete(tt.tasks, r.task)
	}
	return err
}

// failAll completes every outstanding task with err.
func (tt *taskTable) failAll(err error) {
	for id, t := range tt.tasks {
		delete(tt.tasks, id)
		t.fail(err)
	}
}

func (tt *taskTable) len() int {
	return len(tt.tasks)
}
