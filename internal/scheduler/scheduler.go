// Package scheduler implements the Scheduler: the event-driven loop that
// turns CREATED tasks into RUNNING workers and reaps their outcomes. It uses
// a config-with-defaults shape plus sync.Mutex and sync.WaitGroup for
// concurrency control, and is edge-triggered off channel signals rather than
// a fixed poll interval, with IdlePoll as a safety net only.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/haasonsaas/taskgraph/internal/graph"
	"github.com/haasonsaas/taskgraph/internal/queue"
)

// Config bounds the Scheduler's behavior. Zero values are replaced with
// sane defaults by New.
type Config struct {
	// MaxConcurrentWorkers caps how many tasks may be RUNNING at once.
	MaxConcurrentWorkers int
	// IdlePoll is the safety-net timeout in the main loop's select,
	// guarding against the benign race where a signal fires just before
	// the select arms.
	IdlePoll time.Duration
	Logger   *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrentWorkers <= 0 {
		c.MaxConcurrentWorkers = 8
	}
	if c.IdlePoll <= 0 {
		c.IdlePoll = 100 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Runner is the dependency the Scheduler spawns one goroutine per RUNNING
// task to drive. internal/runner.Runner satisfies this.
type Runner interface {
	Run(ctx context.Context, id int64) error
}

// outcome is one worker's result, sent on the completion channel when its
// Runner.Run call returns.
type outcome struct {
	id  int64
	err error
}

// Scheduler drives one Graph to quiescence: every reachable task either
// COMPLETED, FAILED, or CANCELED, with no worker running and nothing left
// READY or CREATED-with-satisfied-dependencies.
type Scheduler struct {
	g      *graph.Graph
	runner Runner
	cfg    Config

	mu      sync.Mutex
	running map[int64]context.CancelFunc

	completed  chan outcome
	newTaskCh  chan struct{}
	taskDoneCh chan struct{}
	wg         sync.WaitGroup
}

// New constructs a Scheduler bound to g. g must have been constructed with
// New's onNewTask/onRemoteResumed callbacks wired to the Scheduler's Notify
// methods (see NotifyNewTask, NotifyRemoteResumed) for the event-driven
// wakeups to fire; a Scheduler whose Graph never calls them still makes
// forward progress via the idle-poll safety net alone.
func New(g *graph.Graph, runner Runner, cfg Config) *Scheduler {
	return &Scheduler{
		g:          g,
		runner:     runner,
		cfg:        cfg.withDefaults(),
		running:    make(map[int64]context.CancelFunc),
		completed:  make(chan outcome, 64),
		newTaskCh:  make(chan struct{}, 1),
		taskDoneCh: make(chan struct{}, 1),
	}
}

// NotifyNewTask wakes the main loop because a new task entered the graph
// (via CreateTask, AddChild, or the planner). Non-blocking: a pending signal
// that hasn't been drained yet is sufficient, so a full buffer is a no-op.
func (s *Scheduler) NotifyNewTask() {
	select {
	case s.newTaskCh <- struct{}{}:
	default:
	}
}

// NotifyRemoteResumed wakes the main loop because ResumeRemote moved a task
// back out of WAITING_REMOTE.
func (s *Scheduler) NotifyRemoteResumed() {
	select {
	case s.taskDoneCh <- struct{}{}:
	default:
	}
}

// Run drives the scheduling loop to quiescence or until ctx is canceled.
// On cancellation it stops admitting new work, cancels every running
// worker, waits for them to unwind, and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	q := queue.New()

	for {
		s.reap(q)

		if ctx.Err() != nil {
			s.cancelAll()
			s.drainAll()
			return ctx.Err()
		}

		s.findReady(q)
		s.admit(ctx, q)

		if s.quiescent(q) {
			return nil
		}

		select {
		case <-ctx.Done():
			continue
		case o := <-s.completed:
			s.reapOne(o)
		case <-s.newTaskCh:
		case <-s.taskDoneCh:
		case <-time.After(s.cfg.IdlePoll):
		}
	}
}

// reap drains every outcome already sitting in the completion channel
// without blocking.
func (s *Scheduler) reap(q *queue.Queue) {
	for {
		select {
		case o := <-s.completed:
			s.reapOne(o)
		default:
			return
		}
	}
}

func (s *Scheduler) reapOne(o outcome) {
	s.mu.Lock()
	delete(s.running, o.id)
	s.mu.Unlock()

	_ = s.g.SetEndTime(o.id, time.Now())

	switch {
	case o.err == nil:
		_ = s.g.SetStatus(o.id, graph.StatusCompleted)
	case errors.Is(o.err, context.Canceled):
		_ = s.g.SetStatus(o.id, graph.StatusCanceled)
	default:
		_ = s.g.SetStatus(o.id, graph.StatusFailed)
		s.cfg.Logger.Warn("scheduler: task failed", "task_id", o.id, "error", o.err)
	}
}

// findReady scans every CREATED task whose dependencies are all COMPLETED
// and enqueues it.
func (s *Scheduler) findReady(q *queue.Queue) {
	for _, id := range s.g.IDs() {
		desc, ok := s.g.Desc(id)
		if !ok || desc.Status != graph.StatusCreated {
			continue
		}
		if !s.g.DependenciesCompleted(id) {
			continue
		}
		_ = s.g.SetStatus(id, graph.StatusReady)
		q.Push(id, desc.Priority)
	}
}

// admit pops from the queue while the concurrency cap has room, spawning
// one worker goroutine per admitted task.
func (s *Scheduler) admit(ctx context.Context, q *queue.Queue) {
	for {
		s.mu.Lock()
		slots := s.cfg.MaxConcurrentWorkers - len(s.running)
		s.mu.Unlock()
		if slots <= 0 {
			return
		}

		id, ok := q.Pop()
		if !ok {
			return
		}

		taskCtx, cancel := context.WithCancel(ctx)
		_ = s.g.SetCancel(id, cancel)
		_ = s.g.SetStartTime(id, time.Now())
		_ = s.g.SetStatus(id, graph.StatusRunning)

		s.mu.Lock()
		s.running[id] = cancel
		s.mu.Unlock()

		s.wg.Add(1)
		go s.work(taskCtx, id)
	}
}

func (s *Scheduler) work(ctx context.Context, id int64) {
	defer s.wg.Done()
	err := s.runner.Run(ctx, id)
	s.completed <- outcome{id: id, err: err}
}

// quiescent reports whether the loop has reached a terminal state: no
// workers running, the queue empty, and no descriptor left in CREATED,
// READY, or WAITING_REMOTE.
func (s *Scheduler) quiescent(q *queue.Queue) bool {
	s.mu.Lock()
	runningCount := len(s.running)
	s.mu.Unlock()

	if runningCount > 0 || q.Len() > 0 {
		return false
	}
	for _, id := range s.g.IDs() {
		desc, ok := s.g.Desc(id)
		if !ok {
			continue
		}
		switch desc.Status {
		case graph.StatusCreated, graph.StatusReady, graph.StatusWaitingRemote:
			return false
		}
	}
	return true
}

func (s *Scheduler) cancelAll() {
	s.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(s.running))
	for _, c := range s.running {
		cancels = append(cancels, c)
	}
	s.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

func (s *Scheduler) drainAll() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	<-done
	for {
		select {
		case o := <-s.completed:
			s.reapOne(o)
		default:
			return
		}
	}
}
