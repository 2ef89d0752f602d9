package runner

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/taskgraph/internal/graph"
	"github.com/haasonsaas/taskgraph/internal/model"
	"github.com/haasonsaas/taskgraph/internal/planner"
	"github.com/haasonsaas/taskgraph/internal/toolregistry"
)

// scriptedClient replays a fixed sequence of responses, one per Complete
// call, so tests can drive the Runner's loop deterministically.
type scriptedClient struct {
	responses []model.Response
	calls     int
}

func (c *scriptedClient) Complete(_ context.Context, _ model.Request) (model.Response, error) {
	if c.calls >= len(c.responses) {
		return model.Response{}, nil
	}
	resp := c.responses[c.calls]
	c.calls++
	return resp, nil
}

func newRegistry(t *testing.T) *toolregistry.Registry {
	t.Helper()
	reg := toolregistry.New(nil)
	err := reg.Register(toolregistry.ToolInfo{
		Name:        "echo",
		Description: "echoes the input text back",
		Parameters:  map[string]any{"type": "object"},
		Func: func(_ context.Context, args json.RawMessage) (any, error) {
			var payload struct {
				Text string `json:"text"`
			}
			_ = json.Unmarshal(args, &payload)
			return payload.Text, nil
		},
	})
	require.NoError(t, err)
	return reg
}

func TestRunNoToolsReturnsSentinelStrippedResult(t *testing.T) {
	g := graph.New(nil, nil)
	id := g.CreateTask("say hello", nil)

	client := &scriptedClient{responses: []model.Response{
		{Text: "hello there[DONE]"},
	}}
	r := New(g, newRegistry(t), client, nil, Config{}, nil)

	err := r.Run(context.Background(), id)
	require.NoError(t, err)

	task, _ := g.Task(id)
	assert.Equal(t, "hello there", task.Result)
}

func TestRunSingleToolCall(t *testing.T) {
	g := graph.New(nil, nil)
	id := g.CreateTask("echo something", []string{"echo"})

	client := &scriptedClient{responses: []model.Response{
		{ToolCalls: []model.ToolCall{{ID: "call-1", Name: "echo", Arguments: []byte(`{"text":"hi"}`)}}},
		{Text: "done: hi[DONE]"},
	}}
	r := New(g, newRegistry(t), client, nil, Config{}, nil)

	err := r.Run(context.Background(), id)
	require.NoError(t, err)

	task, _ := g.Task(id)
	assert.Equal(t, "done: hi", task.Result)

	desc, _ := g.Desc(id)
	var sawToolResult bool
	for _, m := range desc.Context.Messages {
		if m.Role == graph.RoleToolResult && m.ToolCallID == "call-1" {
			sawToolResult = true
			assert.Equal(t, "hi", m.Text)
			assert.False(t, m.IsError)
		}
	}
	assert.True(t, sawToolResult)
}

func TestRunUnknownToolProducesErrorResultAndContinues(t *testing.T) {
	g := graph.New(nil, nil)
	id := g.CreateTask("call a bad tool", []string{"echo"})

	client := &scriptedClient{responses: []model.Response{
		{ToolCalls: []model.ToolCall{{ID: "call-1", Name: "does_not_exist", Arguments: []byte(`{}`)}}},
		{Text: "recovered[DONE]"},
	}}
	r := New(g, newRegistry(t), client, nil, Config{}, nil)

	err := r.Run(context.Background(), id)
	require.NoError(t, err)

	task, _ := g.Task(id)
	assert.Equal(t, "recovered", task.Result)
}

func TestRunIterationLimitExceeded(t *testing.T) {
	g := graph.New(nil, nil)
	id := g.CreateTask("never finishes", []string{"echo"})

	responses := make([]model.Response, 0, 5)
	for i := 0; i < 5; i++ {
		responses = append(responses, model.Response{
			ToolCalls: []model.ToolCall{{ID: "call", Name: "echo", Arguments: []byte(`{"text":"x"}`)}},
		})
	}
	client := &scriptedClient{responses: responses}
	r := New(g, newRegistry(t), client, nil, Config{MaxIterations: 3}, nil)

	err := r.Run(context.Background(), id)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIterationLimit)
}

func TestRunFailsWhenDependencyHasNoResult(t *testing.T) {
	g := graph.New(nil, nil)
	dep := g.CreateTask("unfinished dependency", nil)
	id, err := g.AddChild(dep, "depends on unfinished work", nil, []int64{dep}, graph.TaskContext{})
	require.NoError(t, err)

	client := &scriptedClient{responses: []model.Response{{Text: "should not be reached[DONE]"}}}
	r := New(g, newRegistry(t), client, nil, Config{}, nil)

	err = r.Run(context.Background(), id)
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrDependencyUnsatisfied)
	assert.Equal(t, 0, client.calls)
}

func TestRunPlanTaskIntegratesChildren(t *testing.T) {
	g := graph.New(nil, nil)
	id := g.CreateTask("break this into steps", []string{"echo", planner.ToolName})

	planArgs, err := json.Marshal(planner.Plan{
		TaskTag: "root",
		Subtasks: []planner.Subtask{
			{TaskTag: "A", Description: "first step", Parent: "root", ToolRequire: []string{"echo"}},
		},
	})
	require.NoError(t, err)

	client := &scriptedClient{responses: []model.Response{
		{ToolCalls: []model.ToolCall{{ID: "call-1", Name: planner.ToolName, Arguments: planArgs}}},
		{Text: "plan submitted[DONE]"},
	}}
	r := New(g, newRegistry(t), client, nil, Config{}, nil)

	err = r.Run(context.Background(), id)
	require.NoError(t, err)

	task, _ := g.Task(id)
	assert.Equal(t, "plan submitted", task.Result)
	assert.Len(t, g.IDs(), 2)
}
