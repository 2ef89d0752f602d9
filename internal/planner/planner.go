// Package planner implements the plan_task → graph mutation integration:
// decoding the plan payload a Model produced and materializing it as child
// tasks and dependency edges.
//
// The decode-then-materialize algorithm is expressed here as two explicit
// passes over typed Go structs: DecodePlan decodes the plan and checks only
// its task_tag, then Integrate walks it once to create tasks (resolving each
// parent tag) and a second time to wire dependency edges, once every
// subtask's tag is bound.
package planner

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/haasonsaas/taskgraph/internal/graph"
)

// ToolName is the distinguished tool name the Runner special-cases.
const ToolName = "plan_task"

// Subtask is one entry of a Plan's subtasks list.
type Subtask struct {
	TaskTag         string   `json:"task_tag"`
	TaskType        string   `json:"task_type"`
	Description     string   `json:"description"`
	Parent          string   `json:"parent"`
	Dependencies    []string `json:"dependencies"`
	ToolRequire     []string `json:"tool_require"`
	ExpectedOutput  string   `json:"expected_output"`
	SuccessCriteria string   `json:"success_criteria"`
}

// Plan is the payload plan_task's arguments decode into.
type Plan struct {
	TaskTag         string    `json:"task_tag"`
	TaskType        string    `json:"task_type"`
	Description     string    `json:"description"`
	Subtasks        []Subtask `json:"subtasks"`
	SuccessCriteria string    `json:"success_criteria"`
}

// DecodePlan parses a plan_task argument payload. Unknown keys are ignored
// by json.Unmarshal's default behavior; missing optional keys default to
// their zero value.
func DecodePlan(raw json.RawMessage) (Plan, error) {
	var p Plan
	if err := json.Unmarshal(raw, &p); err != nil {
		return Plan{}, fmt.Errorf("planner: decode plan: %w", err)
	}
	if p.TaskTag == "" {
		return Plan{}, fmt.Errorf("planner: plan missing task_tag")
	}
	return p, nil
}

// Integrate materializes a decoded Plan into the graph as children of
// currentTaskID, following the two-pass algorithm: pass one allocates IDs
// and creates children with deep-copied context; pass two resolves
// tag-based dependencies to IDs, since a subtask may depend on a sibling
// declared later in the list. Returns the IDs of every child created, in
// plan order.
func Integrate(g *graph.Graph, currentTaskID int64, currentTools []string, plan Plan, logger *slog.Logger) ([]int64, error) {
	if logger == nil {
		logger = slog.Default()
	}

	currentDesc, ok := g.Desc(currentTaskID)
	if !ok {
		return nil, fmt.Errorf("planner: current task %d: %w", currentTaskID, graph.ErrNotFound)
	}

	tagToID := map[string]int64{plan.TaskTag: currentTaskID}
	childIDs := make([]int64, 0, len(plan.Subtasks))

	// Pass 1: allocate IDs, bind tags, create children with no dependencies
	// yet and a deep-copied parent context.
	for _, st := range plan.Subtasks {
		if st.TaskTag == "" {
			return nil, fmt.Errorf("planner: subtask missing task_tag")
		}
		tools := resolveTools(st.ToolRequire, currentTools, logger, st.TaskTag)

		parentID, ok := tagToID[st.Parent]
		if !ok {
			return nil, fmt.Errorf("planner: subtask %q references unresolved parent tag %q", st.TaskTag, st.Parent)
		}

		childID, err := g.AddChild(parentID, st.Description, tools, nil, currentDesc.Context)
		if err != nil {
			return nil, fmt.Errorf("planner: create subtask %q: %w", st.TaskTag, err)
		}
		tagToID[st.TaskTag] = childID
		childIDs = append(childIDs, childID)
	}

	// Pass 2: translate tag dependencies to IDs now that every sibling has
	// one, and install them.
	for _, st := range plan.Subtasks {
		if len(st.Dependencies) == 0 {
			continue
		}
		depIDs := make([]int64, 0, len(st.Dependencies))
		for _, tag := range st.Dependencies {
			id, ok := tagToID[tag]
			if !ok {
				return nil, fmt.Errorf("planner: subtask %q depends on unresolved tag %q", st.TaskTag, tag)
			}
			depIDs = append(depIDs, id)
		}
		childID := tagToID[st.TaskTag]
		if err := g.SetDependencies(childID, depIDs); err != nil {
			return nil, fmt.Errorf("planner: install dependencies for %q: %w", st.TaskTag, err)
		}
	}

	return childIDs, nil
}

// resolveTools keeps only the names in require that the current task's own
// tool set also has, logging a warning for each miss instead of failing the
// plan over a typo.
func resolveTools(require, current []string, logger *slog.Logger, tag string) []string {
	if len(require) == 0 {
		return nil
	}
	available := make(map[string]bool, len(current))
	for _, name := range current {
		available[name] = true
	}
	out := make([]string, 0, len(require))
	for _, name := range require {
		if available[name] {
			out = append(out, name)
			continue
		}
		logger.Warn("planner: subtask requested unavailable tool", "subtask", tag, "tool", name)
	}
	return out
}
