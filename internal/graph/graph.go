package graph

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Graph stores Task and TaskDesc records keyed by ID and enforces a
// single-writer discipline: only the Scheduler writes
// Status/StartTime/EndTime/Cancel; only a task's own Runner writes its
// Context and Result; the Planner only adds new entries.
//
// The ID Generator is scoped to one Graph (one atomic counter per instance)
// rather than process-wide, so multiple Agents may coexist without ID
// collisions across unrelated graphs.
type Graph struct {
	mu    sync.RWMutex
	tasks map[int64]*Task
	descs map[int64]*TaskDesc
	next  atomic.Int64

	// onNewTask, if set, is invoked (outside the lock) whenever a task is
	// registered — the Scheduler's new-task-created signal hooks in here.
	onNewTask func(id int64)

	// onRemoteResumed, if set, is invoked (outside the lock) whenever
	// ResumeRemote transitions a task back out of WAITING_REMOTE.
	onRemoteResumed func(id int64)
}

// New constructs an empty Graph. onNewTask and onRemoteResumed may be nil.
func New(onNewTask, onRemoteResumed func(id int64)) *Graph {
	return &Graph{
		tasks:           make(map[int64]*Task),
		descs:           make(map[int64]*TaskDesc),
		onNewTask:       onNewTask,
		onRemoteResumed: onRemoteResumed,
	}
}

func (g *Graph) nextID() int64 {
	return g.next.Add(1)
}

// CreateTask allocates a fresh ID and registers a root-level Task with an
// empty dependency set and no parent.
func (g *Graph) CreateTask(prompt string, tools []string) int64 {
	id := g.nextID()
	g.mu.Lock()
	g.tasks[id] = &Task{ID: id, Prompt: prompt, Tools: tools}
	g.descs[id] = &TaskDesc{ID: id, Status: StatusCreated, Priority: PriorityNormal}
	g.mu.Unlock()
	if g.onNewTask != nil {
		g.onNewTask(id)
	}
	return id
}

// AddChild registers a child task with the given parent, dependency set, and
// inherited context (cloned, never aliased to the parent's). The planner's
// two-pass algorithm typically calls this with deps == nil and follows up
// with SetDependencies once every sibling has been allocated an ID.
func (g *Graph) AddChild(parentID int64, prompt string, tools []string, deps []int64, inherited TaskContext) (int64, error) {
	g.mu.Lock()
	if _, ok := g.descs[parentID]; !ok {
		g.mu.Unlock()
		return 0, fmt.Errorf("add child of %d: %w", parentID, ErrNotFound)
	}
	for _, d := range deps {
		if _, ok := g.descs[d]; !ok {
			g.mu.Unlock()
			return 0, fmt.Errorf("dependency %d: %w", d, ErrDependencyUnknown)
		}
	}
	id := g.nextID()
	g.tasks[id] = &Task{ID: id, Prompt: prompt, Tools: tools}
	g.descs[id] = &TaskDesc{
		ID:           id,
		Status:       StatusCreated,
		Priority:     PriorityNormal,
		ParentID:     parentID,
		HasParent:    true,
		Dependencies: append([]int64(nil), deps...),
		Context:      inherited.Clone(),
	}
	g.mu.Unlock()
	if g.onNewTask != nil {
		g.onNewTask(id)
	}
	return id, nil
}

// SetDependencies installs the dependency set on an existing, not-yet-ready
// task, used by the planner's second pass once every sibling has an ID. It
// rejects unknown dependency IDs and any dependency that would create a
// cycle.
func (g *Graph) SetDependencies(id int64, deps []int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	desc, ok := g.descs[id]
	if !ok {
		return fmt.Errorf("set dependencies on %d: %w", id, ErrNotFound)
	}
	for _, d := range deps {
		if _, ok := g.descs[d]; !ok {
			return fmt.Errorf("dependency %d: %w", d, ErrDependencyUnknown)
		}
	}
	if g.reachesLocked(deps, id, make(map[int64]bool)) {
		return fmt.Errorf("dependency of %d: %w", id, ErrDependencyCycle)
	}
	desc.Dependencies = append([]int64(nil), deps...)
	return nil
}

// reachesLocked reports whether target is reachable by following dependency
// edges starting from any ID in from. Callers must hold g.mu.
func (g *Graph) reachesLocked(from []int64, target int64, seen map[int64]bool) bool {
	for _, id := range from {
		if id == target {
			return true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		if desc, ok := g.descs[id]; ok && g.reachesLocked(desc.Dependencies, target, seen) {
			return true
		}
	}
	return false
}

// Task returns a copy of the static Task definition for id.
func (g *Graph) Task(id int64) (Task, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, ok := g.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Desc returns a copy of the dynamic TaskDesc for id.
func (g *Graph) Desc(id int64) (TaskDesc, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	d, ok := g.descs[id]
	if !ok {
		return TaskDesc{}, false
	}
	return *d, true
}

// SetStatus is called only by the Scheduler.
func (g *Graph) SetStatus(id int64, status Status) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.descs[id]
	if !ok {
		return fmt.Errorf("set status of %d: %w", id, ErrNotFound)
	}
	d.Status = status
	return nil
}

// SetStartTime is called only by the Scheduler on admission.
func (g *Graph) SetStartTime(id int64, t time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.descs[id]
	if !ok {
		return fmt.Errorf("set start time of %d: %w", id, ErrNotFound)
	}
	d.StartTime = t
	return nil
}

// SetEndTime is called only by the Scheduler on reap.
func (g *Graph) SetEndTime(id int64, t time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.descs[id]
	if !ok {
		return fmt.Errorf("set end time of %d: %w", id, ErrNotFound)
	}
	d.EndTime = t
	return nil
}

// SetCancel stores the worker's cancel function, or clears it (pass nil) once
// the worker has been reaped.
func (g *Graph) SetCancel(id int64, cancel func()) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.descs[id]
	if !ok {
		return fmt.Errorf("set worker of %d: %w", id, ErrNotFound)
	}
	d.Cancel = cancel
	return nil
}

// SetResult is called only by a task's own Runner, exactly once.
func (g *Graph) SetResult(id int64, result string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.tasks[id]
	if !ok {
		return fmt.Errorf("set result of %d: %w", id, ErrNotFound)
	}
	t.Result = result
	return nil
}

// AppendMessage is called only by a task's own Runner.
func (g *Graph) AppendMessage(id int64, msg Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.descs[id]
	if !ok {
		return fmt.Errorf("append message to %d: %w", id, ErrNotFound)
	}
	d.Context.Messages = append(d.Context.Messages, msg)
	return nil
}

// ParkRemote transitions id into StatusWaitingRemote and records the request
// ID a resumer must present to resume it.
func (g *Graph) ParkRemote(id int64, requestID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.descs[id]
	if !ok {
		return fmt.Errorf("park %d: %w", id, ErrNotFound)
	}
	d.Status = StatusWaitingRemote
	d.RemoteRequestID = requestID
	return nil
}

// ResumeRemote looks up the task parked under requestID, records the
// delivered payload in its context, transitions it back to RUNNING, and
// fires onRemoteResumed. It starts no worker for the task. Returns the
// resumed task ID.
func (g *Graph) ResumeRemote(requestID string, payload []byte) (int64, error) {
	g.mu.Lock()
	var found *TaskDesc
	for _, d := range g.descs {
		if d.Status == StatusWaitingRemote && d.RemoteRequestID == requestID {
			found = d
			break
		}
	}
	if found == nil {
		g.mu.Unlock()
		return 0, ErrNotWaitingRemote
	}
	if found.Context.RemoteResponses == nil {
		found.Context.RemoteResponses = make(map[string][]byte)
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	found.Context.RemoteResponses[requestID] = cp
	found.Status = StatusRunning
	id := found.ID
	g.mu.Unlock()
	if g.onRemoteResumed != nil {
		g.onRemoteResumed(id)
	}
	return id, nil
}

// IDs returns every task ID currently registered, in no particular order.
func (g *Graph) IDs() []int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]int64, 0, len(g.descs))
	for id := range g.descs {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot returns a copy of every TaskDesc, for the ready-set scan and for
// the HTTP introspection API.
func (g *Graph) Snapshot() []TaskDesc {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]TaskDesc, 0, len(g.descs))
	for _, d := range g.descs {
		out = append(out, *d)
	}
	return out
}

// DependenciesCompleted reports whether every dependency of id has reached
// StatusCompleted. Used by the Scheduler's ready-set scan.
func (g *Graph) DependenciesCompleted(id int64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	d, ok := g.descs[id]
	if !ok {
		return false
	}
	for _, dep := range d.Dependencies {
		depDesc, ok := g.descs[dep]
		if !ok || depDesc.Status != StatusCompleted {
			return false
		}
	}
	return true
}
