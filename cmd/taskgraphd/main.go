// Package main provides the CLI entry point for taskgraphd, a hierarchical
// task scheduler that drives tool-augmented LLM execution loops.
//
// # Basic Usage
//
// Run a single prompt to completion and print its result:
//
//	taskgraphd chat --config taskgraph.yaml "summarize this repository"
//
// Serve the read-only HTTP introspection API:
//
//	taskgraphd serve --config taskgraph.yaml
//
// Validate a configuration file without starting anything:
//
//	taskgraphd config validate --config taskgraph.yaml
//
// # Environment Variables
//
//   - TASKGRAPH_CONFIG: path to the configuration file (default: taskgraph.yaml)
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY: model provider credentials
//   - AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_SESSION_TOKEN: Bedrock credentials
package main

import (
	"fmt"
	"log/slog"
	"os"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}
