package main

import (
	"os"
	"strings"

	"github.com/haasonsaas/taskgraph/internal/config"
	"github.com/haasonsaas/taskgraph/internal/mcptools"
	"github.com/haasonsaas/taskgraph/internal/runner"
	"github.com/haasonsaas/taskgraph/internal/scheduler"
)

func runnerConfigFrom(c config.RunnerConfig) runner.Config {
	return runner.Config{
		MaxIterations:              c.MaxIterations,
		MaxOutputTokens:            c.MaxOutputTokens,
		MaxDependencySummaryTokens: c.MaxDependencySummaryTokens,
		ModelName:                  c.ModelName,
	}
}

func schedulerConfigFrom(c config.SchedulerConfig) scheduler.Config {
	return scheduler.Config{
		MaxConcurrentWorkers: c.MaxConcurrentWorkers,
		IdlePoll:             c.IdlePoll,
	}
}

// maybeBuildMCPSource builds an external MCP tool source from environment
// variables, since an MCP server is an optional deployment detail rather
// than a scheduling concern the YAML configuration schema owns. Returns
// ok=false when TASKGRAPH_MCP_COMMAND is unset.
func maybeBuildMCPSource() (*mcptools.Source, bool, error) {
	command := strings.TrimSpace(os.Getenv("TASKGRAPH_MCP_COMMAND"))
	if command == "" {
		return nil, false, nil
	}
	name := strings.TrimSpace(os.Getenv("TASKGRAPH_MCP_NAME"))
	if name == "" {
		name = "mcp"
	}
	var args []string
	if raw := strings.TrimSpace(os.Getenv("TASKGRAPH_MCP_ARGS")); raw != "" {
		args = strings.Fields(raw)
	}
	source, err := mcptools.New(mcptools.Config{
		Name:    name,
		Command: command,
		Args:    args,
	})
	if err != nil {
		return nil, false, err
	}
	return source, true, nil
}
