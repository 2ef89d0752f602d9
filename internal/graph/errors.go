package graph

import "errors"

// Sentinel errors surfaced by the core, comparable with errors.Is.
var (
	// ErrNotFound is returned when a task ID does not exist in the graph.
	ErrNotFound = errors.New("graph: task not found")

	// ErrDependencyCycle is returned if a dependency set would make the
	// graph non-acyclic.
	ErrDependencyCycle = errors.New("graph: dependency cycle")

	// ErrDependencyUnknown is returned when a dependency references a task
	// ID the graph has never seen.
	ErrDependencyUnknown = errors.New("graph: unknown dependency")

	// ErrDependencyUnsatisfied means a task entered RUNNING with a
	// dependency that has not produced a result. This is a scheduler
	// invariant violation, not a recoverable tool error.
	ErrDependencyUnsatisfied = errors.New("graph: dependency unsatisfied")

	// ErrNotWaitingRemote is returned by ResumeRemote when the named task
	// is not currently parked in StatusWaitingRemote.
	ErrNotWaitingRemote = errors.New("graph: task is not waiting on a remote response")
)
