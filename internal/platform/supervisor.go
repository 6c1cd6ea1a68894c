package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"

	"github.com/Soamid/evogil-sub000/internal/logging"
)

var ErrSupervisorStopped = errors.New("supervisor stopped")

// TaskStatus reports a supervised loop. Finished tasks are retained only
// when they ended with an error.
type TaskStatus struct {
	Name      string `json:"name"`
	Group     string `json:"group,omitempty"`
	Running   bool   `json:"running"`
	LastError string `json:"last_error,omitempty"`
	Panicked  bool   `json:"panicked,omitempty"`
}

type SupervisorHooks struct {
	// OnTaskFailure runs on the failing task's goroutine after the task
	// has been removed from the running set.
	OnTaskFailure func(name string, err error)
}

// Supervisor hosts the tree's long-lived loops. A loop that fails is never
// restarted: node state lives only in the loop, so a restart could not
// resume it. Failures are recorded and reported through the hook instead.
type Supervisor struct {
	hooks SupervisorHooks
	log   zerolog.Logger

	mu       sync.Mutex
	stopped  bool
	tasks    map[string]*supervisorTask
	finished map[string]TaskStatus
}

type supervisorTask struct {
	cancel context.CancelFunc
	done   chan struct{}
	group  string
}

func NewSupervisor() *Supervisor {
	return NewSupervisorWithHooks(SupervisorHooks{})
}

func NewSupervisorWithHooks(hooks SupervisorHooks) *Supervisor {
	return &Supervisor{
		hooks:    hooks,
		log:      logging.Component("platform"),
		tasks:    make(map[string]*supervisorTask),
		finished: make(map[string]TaskStatus),
	}
}

// Start runs a loop under a name. The group is the name's prefix before the
// first dash, so "node-3" lands in group "node".
func (s *Supervisor) Start(name string, run func(ctx context.Context) error) error {
	if name == "" {
		return errors.New("task name is required")
	}
	if run == nil {
		return errors.New("task runner is required")
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSupervisorStopped
	}
	if _, exists := s.tasks[name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("task already running: %s", name)
	}
	delete(s.finished, name)
	ctx, cancel := context.WithCancel(context.Background())
	task := &supervisorTask{
		cancel: cancel,
		done:   make(chan struct{}),
		group:  taskGroup(name),
	}
	s.tasks[name] = task
	s.mu.Unlock()

	go s.runTask(ctx, name, task, run)
	return nil
}

func (s *Supervisor) runTask(ctx context.Context, name string, task *supervisorTask, run func(ctx context.Context) error) {
	var err error
	var pc panics.Catcher
	pc.Try(func() { err = run(ctx) })
	recovered := pc.Recovered()
	if recovered != nil {
		err = recovered.AsError()
	}
	failed := err != nil && ctx.Err() == nil

	s.mu.Lock()
	if current, ok := s.tasks[name]; ok && current == task {
		if failed {
			s.finished[name] = TaskStatus{
				Name:      name,
				Group:     task.group,
				LastError: err.Error(),
				Panicked:  recovered != nil,
			}
		}
		delete(s.tasks, name)
	}
	s.mu.Unlock()
	close(task.done)

	if !failed {
		return
	}
	s.log.Error().Err(err).Str("task", name).Bool("panicked", recovered != nil).Msg("supervised task failed")
	if s.hooks.OnTaskFailure != nil {
		s.hooks.OnTaskFailure(name, err)
	}
}

func (s *Supervisor) Stop(name string) {
	s.mu.Lock()
	task, ok := s.tasks[name]
	delete(s.finished, name)
	s.mu.Unlock()
	if !ok {
		return
	}
	task.cancel()
	<-task.done
}

// StopAll cancels every loop, waits for all of them and refuses new ones.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	s.stopped = true
	tasks := make([]*supervisorTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	s.mu.Unlock()

	for _, task := range tasks {
		task.cancel()
	}
	for _, task := range tasks {
		<-task.done
	}
}

func (s *Supervisor) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Supervisor) Children() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStatus, 0, len(s.tasks)+len(s.finished))
	for name, task := range s.tasks {
		out = append(out, TaskStatus{Name: name, Group: task.group, Running: true})
	}
	for name, status := range s.finished {
		if _, active := s.tasks[name]; active {
			continue
		}
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func taskGroup(name string) string {
	group, _, found := strings.Cut(name, "-")
	if !found {
		return ""
	}
	return group
}
