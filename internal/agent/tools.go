package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/haasonsaas/taskgraph/internal/planner"
	"github.com/haasonsaas/taskgraph/internal/toolregistry"
)

// planTaskToolInfo advertises plan_task to the Model with a generated
// schema matching planner.Plan. Its Func is never actually invoked: the
// Runner special-cases planner.ToolName and routes the call straight into
// planner.Integrate before reaching the registry's generic Dispatch path.
// It still must be registered so ToolSpecs reports it to the Model and so
// Strict validation (if ever enabled for it) has a schema to check against.
func planTaskToolInfo() toolregistry.ToolInfo {
	schema, err := toolregistry.GenerateSchema[planner.Plan]()
	if err != nil {
		slog.Default().Warn("agent: plan_task schema generation failed, advertising without one", "error", err)
		schema = map[string]any{"type": "object"}
	}
	return toolregistry.ToolInfo{
		Name:        planner.ToolName,
		Description: "Decompose the current task into dependent subtasks. Submitting a plan is itself the completion of the current task.",
		Parameters:  schema,
		Func: func(_ context.Context, args json.RawMessage) (any, error) {
			return nil, fmt.Errorf("agent: plan_task must be intercepted by the runner, not dispatched")
		},
	}
}
