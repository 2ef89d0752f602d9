// Package agent implements the Agent Facade: the thin coordinator a caller
// actually talks to. It owns one Model client, one Tool Registry (which
// always carries the plan_task tool), and the Token Budget component.
//
// Each Chat call builds a fresh Graph, Scheduler, and Runner rather than
// reusing a persistent loop state machine, so one Agent value can drive many
// independent conversations concurrently without cross-talk: the DAG of
// Runner-driven tasks that internal/scheduler coordinates is the only
// shared-mutable state, and it's scoped to a single call.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haasonsaas/taskgraph/internal/graph"
	"github.com/haasonsaas/taskgraph/internal/model"
	"github.com/haasonsaas/taskgraph/internal/planner"
	"github.com/haasonsaas/taskgraph/internal/runner"
	"github.com/haasonsaas/taskgraph/internal/scheduler"
	"github.com/haasonsaas/taskgraph/internal/tokenbudget"
	"github.com/haasonsaas/taskgraph/internal/toolregistry"
)

// Config bounds an Agent's behavior. Zero values are replaced with sane
// defaults by New.
type Config struct {
	RunnerConfig    runner.Config
	SchedulerConfig scheduler.Config
	// TokenizerModel selects the tokenizer encoding the Token Budget
	// component uses when capping dependency summaries.
	TokenizerModel string
	Logger         *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.TokenizerModel == "" {
		c.TokenizerModel = "gpt-4"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Agent is the facade callers construct once and reuse across many Chat
// calls, each of which gets its own Graph and Scheduler — requests never
// share graphs, so one caller's stalled request cannot block another's.
type Agent struct {
	client   model.Client
	registry *toolregistry.Registry
	cfg      Config
}

// New constructs an Agent. registry must already carry every tool the
// caller intends to make available beyond plan_task, which New registers
// itself if not already present.
func New(client model.Client, registry *toolregistry.Registry, cfg Config) (*Agent, error) {
	cfg = cfg.withDefaults()
	if _, ok := registry.Get(planner.ToolName); !ok {
		if err := registry.Register(planTaskToolInfo()); err != nil {
			return nil, fmt.Errorf("agent: register plan_task: %w", err)
		}
	}
	return &Agent{client: client, registry: registry, cfg: cfg}, nil
}

// Chat creates a root task for prompt, runs the scheduler to quiescence,
// and returns the root task's real result or a terminal error — never the
// placeholder success string a single-loop predecessor design might return
// regardless of outcome.
func (a *Agent) Chat(ctx context.Context, prompt string, tools []string) (string, error) {
	counter, err := tokenbudget.NewCounter(a.cfg.TokenizerModel)
	if err != nil {
		return "", fmt.Errorf("agent: token counter: %w", err)
	}

	var sched *scheduler.Scheduler
	g := graph.New(
		func(int64) { sched.NotifyNewTask() },
		func(int64) { sched.NotifyRemoteResumed() },
	)

	r := runner.New(g, a.registry, a.client, counter, a.cfg.RunnerConfig, a.cfg.Logger)
	sched = scheduler.New(g, r, a.cfg.SchedulerConfig)

	allTools := tools
	if !contains(tools, planner.ToolName) {
		allTools = append(append([]string{}, tools...), planner.ToolName)
	}
	root := g.CreateTask(prompt, allTools)

	if err := sched.Run(ctx); err != nil {
		return "", fmt.Errorf("agent: scheduler: %w", err)
	}

	rootDesc, ok := g.Desc(root)
	if !ok {
		return "", fmt.Errorf("agent: root task %d vanished from graph", root)
	}
	if rootDesc.Status == graph.StatusCompleted {
		rootTask, _ := g.Task(root)
		return rootTask.Result, nil
	}

	return "", fmt.Errorf("agent: root task %d ended %s: %w", root, rootDesc.Status, stalledCause(g, root))
}

// stalledCause scans every task in the graph and names each FAILED or
// CANCELED one in the error the caller sees; id does not narrow the scan.
// With no such task it returns ErrStalled alone.
func stalledCause(g *graph.Graph, id int64) error {
	var blockers []string
	for _, taskID := range g.IDs() {
		desc, ok := g.Desc(taskID)
		if !ok {
			continue
		}
		if desc.Status == graph.StatusFailed || desc.Status == graph.StatusCanceled {
			blockers = append(blockers, fmt.Sprintf("%d(%s)", taskID, desc.Status))
		}
	}
	if len(blockers) == 0 {
		return ErrStalled
	}
	return fmt.Errorf("%w: blocked on %s", ErrStalled, strings.Join(blockers, ", "))
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
