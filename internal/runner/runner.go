// Package runner implements the Task Runner: the per-task think → call-tool
// → observe loop that drives a Model client and the Tool Registry for one
// task at a time. It is the heart of the scheduling core, structured as a
// non-streaming, single-task, sentinel-terminated loop rather than a
// general-purpose multi-turn chat state machine.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haasonsaas/taskgraph/internal/graph"
	"github.com/haasonsaas/taskgraph/internal/model"
	"github.com/haasonsaas/taskgraph/internal/planner"
	"github.com/haasonsaas/taskgraph/internal/tokenbudget"
	"github.com/haasonsaas/taskgraph/internal/toolregistry"
)

// completionTrailerTemplate is appended to the original prompt on every task,
// declaring the dependency summary and the completion protocol.
const completionTrailerTemplate = `

%s
Output the expected result and terminate your final message with the literal token [DONE].
If you choose to call plan_task, the plan you submit is the result and you still terminate
with [DONE] once plan_task has been invoked.`

// Config bounds the Runner's behavior. Zero values are replaced with sane
// defaults by New.
type Config struct {
	// MaxIterations bounds the tool loop's Model-call count, independent of
	// token usage.
	MaxIterations int
	// MaxOutputTokens bounds cumulative Model output across one task's tool
	// loop.
	MaxOutputTokens int
	// MaxDependencySummaryTokens caps each dependency's result excerpt
	// embedded in the prompt trailer.
	MaxDependencySummaryTokens int
	// ModelName selects the tokenizer encoding used for capping; it need not
	// match the Model client's own model selection.
	ModelName string
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 20
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = 32000
	}
	if c.MaxDependencySummaryTokens <= 0 {
		c.MaxDependencySummaryTokens = 2000
	}
	if c.ModelName == "" {
		c.ModelName = "gpt-4"
	}
	return c
}

// Runner drives one task to completion. It holds no per-task state — a
// single Runner value is reused across every task the Scheduler spawns a
// worker for.
type Runner struct {
	graph    *graph.Graph
	registry *toolregistry.Registry
	client   model.Client
	counter  *tokenbudget.Counter
	cfg      Config
	logger   *slog.Logger
}

// New constructs a Runner. counter may be nil, in which case dependency
// summaries are never capped (a degraded but functional mode, used by tests
// that don't care about token accounting).
func New(g *graph.Graph, registry *toolregistry.Registry, client model.Client, counter *tokenbudget.Counter, cfg Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		graph:    g,
		registry: registry,
		client:   client,
		counter:  counter,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Run executes task id to completion. The caller (the Scheduler) must have
// already transitioned the task to RUNNING; Run never touches Status itself.
// On success it has set Task.Result; on failure it returns a non-nil error
// and leaves Result empty.
func (r *Runner) Run(ctx context.Context, id int64) error {
	task, ok := r.graph.Task(id)
	if !ok {
		return fmt.Errorf("runner: task %d: %w", id, graph.ErrNotFound)
	}
	desc, ok := r.graph.Desc(id)
	if !ok {
		return fmt.Errorf("runner: task %d: %w", id, graph.ErrNotFound)
	}

	summary, err := r.dependencySummary(desc.Dependencies)
	if err != nil {
		return err
	}

	userText := task.Prompt + fmt.Sprintf(completionTrailerTemplate, summary)
	if err := r.graph.AppendMessage(id, graph.Message{Role: graph.RoleUser, Text: userText}); err != nil {
		return fmt.Errorf("runner: append user message: %w", err)
	}

	if len(task.Tools) == 0 {
		return r.runNoTools(ctx, id, desc.Context.System)
	}
	return r.runToolLoop(ctx, id, task.Tools, desc.Context.System)
}

// dependencySummary fetches each dependency's prompt/result, failing fast if
// the scheduler admitted this task before a dependency actually produced a
// result.
func (r *Runner) dependencySummary(deps []int64) (string, error) {
	if len(deps) == 0 {
		return "No dependency results.", nil
	}
	var b strings.Builder
	b.WriteString("Dependency results:\n")
	for _, depID := range deps {
		depTask, ok := r.graph.Task(depID)
		if !ok {
			return "", fmt.Errorf("runner: dependency %d: %w", depID, graph.ErrNotFound)
		}
		if depTask.Result == "" {
			return "", fmt.Errorf("runner: dependency %d has no result: %w", depID, graph.ErrDependencyUnsatisfied)
		}
		result := depTask.Result
		if r.counter != nil {
			result = r.counter.CapText(result, r.cfg.MaxDependencySummaryTokens)
		}
		fmt.Fprintf(&b, "- %s: %s\n", depTask.Prompt, result)
	}
	return b.String(), nil
}

// runNoTools handles the no-tools case: a single Model call, no loop.
func (r *Runner) runNoTools(ctx context.Context, id int64, system string) error {
	desc, _ := r.graph.Desc(id)
	resp, err := r.client.Complete(ctx, model.Request{Messages: toModelMessages(system, desc.Context.Messages)})
	if err != nil {
		return fmt.Errorf("runner: model call: %w", err)
	}
	if err := r.graph.AppendMessage(id, graph.Message{Role: graph.RoleAssistant, Text: resp.Text}); err != nil {
		return err
	}
	result := stripSentinel(resp.Text)
	return r.graph.SetResult(id, result)
}

// runToolLoop handles the think → call-tool → observe loop, terminated by
// the [DONE] sentinel or a safety ceiling.
func (r *Runner) runToolLoop(ctx context.Context, id int64, tools []string, system string) error {
	specs := r.registry.ToolSpecs(tools)
	totalOutputTokens := 0

	for iteration := 0; iteration < r.cfg.MaxIterations; iteration++ {
		desc, ok := r.graph.Desc(id)
		if !ok {
			return fmt.Errorf("runner: task %d: %w", id, graph.ErrNotFound)
		}

		resp, err := r.client.Complete(ctx, model.Request{
			Messages: toModelMessages(system, desc.Context.Messages),
			Tools:    specs,
		})
		if err != nil {
			return fmt.Errorf("runner: model call: %w", err)
		}

		if r.counter != nil {
			totalOutputTokens += r.counter.Count(resp.Text)
			if totalOutputTokens > r.cfg.MaxOutputTokens {
				return fmt.Errorf("runner: task %d: %w", id, ErrOutputTokenLimit)
			}
		}

		if len(resp.ToolCalls) == 0 {
			if err := r.graph.AppendMessage(id, graph.Message{Role: graph.RoleAssistant, Text: resp.Text}); err != nil {
				return err
			}
			if hasSentinel(resp.Text) {
				return r.graph.SetResult(id, stripSentinel(resp.Text))
			}
			continue
		}

		if err := r.appendAssistantToolCalls(id, resp); err != nil {
			return err
		}
		if err := r.executeToolCalls(ctx, id, tools, resp.ToolCalls); err != nil {
			return err
		}
	}

	return fmt.Errorf("runner: task %d: %w", id, ErrIterationLimit)
}

func (r *Runner) appendAssistantToolCalls(id int64, resp model.Response) error {
	calls := make([]graph.ToolCall, len(resp.ToolCalls))
	for i, tc := range resp.ToolCalls {
		calls[i] = graph.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
	}
	return r.graph.AppendMessage(id, graph.Message{Role: graph.RoleAssistant, Text: resp.Text, ToolCalls: calls})
}

// executeToolCalls dispatches each call in the order the Model returned
// them, special-casing plan_task into the Planner integration.
func (r *Runner) executeToolCalls(ctx context.Context, id int64, tools []string, calls []model.ToolCall) error {
	for _, call := range calls {
		args := toolregistry.NormalizeArguments(call.Arguments)

		var resultText string
		var isError bool
		if call.Name == planner.ToolName {
			resultText, isError = r.integratePlan(id, tools, args)
		} else {
			resultText, isError = r.registry.Dispatch(ctx, call.Name, args)
		}

		if err := r.graph.AppendMessage(id, graph.Message{
			Role:       graph.RoleToolResult,
			Text:       resultText,
			ToolCallID: call.ID,
			IsError:    isError,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) integratePlan(id int64, tools []string, args json.RawMessage) (string, bool) {
	plan, err := planner.DecodePlan(args)
	if err != nil {
		return fmt.Sprintf("error: %v", err), true
	}
	childIDs, err := planner.Integrate(r.graph, id, tools, plan, r.logger)
	if err != nil {
		return fmt.Sprintf("error: %v", err), true
	}
	if len(childIDs) == 0 {
		return "plan accepted: no subtasks were created", false
	}
	return fmt.Sprintf("plan accepted: created %d subtasks: %v", len(childIDs), childIDs), false
}

// toModelMessages translates stored graph messages (plus the task's static
// system prompt, if any) into the provider-agnostic model.Message shape.
func toModelMessages(system string, messages []graph.Message) []model.Message {
	out := make([]model.Message, 0, len(messages)+1)
	if system != "" {
		out = append(out, model.Message{Role: model.RoleSystem, Text: system})
	}
	for _, m := range messages {
		out = append(out, model.Message{
			Role:       toModelRole(m.Role),
			Text:       m.Text,
			ToolCalls:  toModelToolCalls(m.ToolCalls),
			ToolCallID: m.ToolCallID,
			IsError:    m.IsError,
		})
	}
	return out
}

func toModelRole(r graph.Role) model.Role {
	switch r {
	case graph.RoleSystem:
		return model.RoleSystem
	case graph.RoleUser:
		return model.RoleUser
	case graph.RoleAssistant:
		return model.RoleAssistant
	case graph.RoleToolResult:
		return model.RoleToolResult
	default:
		return model.RoleUser
	}
}

func toModelToolCalls(calls []graph.ToolCall) []model.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]model.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = model.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	return out
}
