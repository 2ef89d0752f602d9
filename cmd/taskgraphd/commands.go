package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/taskgraph/internal/config"
	"github.com/haasonsaas/taskgraph/internal/graph"
	"github.com/haasonsaas/taskgraph/internal/httpapi"
)

// buildRootCmd creates the root command with every subcommand attached.
// Separated from main() so tests can exercise command wiring directly.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "taskgraphd",
		Short: "taskgraphd - hierarchical task scheduler for tool-augmented LLM execution",
		Long: `taskgraphd runs a think-call-tool-observe loop against a configured LLM
provider, recursively decomposing tasks via a plan_task tool, and scheduling
the resulting dependency graph across a bounded worker pool.`,
		Version:      versionString(),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildChatCmd(),
		buildServeCmd(),
		buildConfigCmd(),
	)
	return rootCmd
}

func buildChatCmd() *cobra.Command {
	var (
		configPath string
		tools      []string
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Run one prompt to completion and print the root task's result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			rt, err := buildRuntime(ctx, configPath)
			if err != nil {
				return err
			}
			defer shutdownRuntime(rt)

			result, err := rt.agent.Chat(ctx, args[0], tools)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	cmd.Flags().StringSliceVar(&tools, "tool", nil, "Tool name available to the root task (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Maximum time the root task may run")
	return cmd
}

func buildServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only HTTP introspection API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			rt, err := buildRuntime(ctx, configPath)
			if err != nil {
				return err
			}
			defer shutdownRuntime(rt)

			// serve exposes an empty Graph for /v1/tasks introspection: this
			// binary's HTTP surface is the scheduler's read side only, and
			// has no endpoint that creates tasks (see internal/httpapi).
			// A deployment wiring taskgraphd into a real workload shares the
			// Graph its own Agent.Chat calls populate instead.
			g := graph.New(nil, nil)

			srv := &http.Server{
				Addr:    rt.cfg.HTTP.Addr,
				Handler: httpapi.Router(g, rt.metrics, rt.logger),
			}

			errCh := make(chan error, 1)
			go func() {
				rt.logger.Info(ctx, "http server starting", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				return fmt.Errorf("serve: %w", err)
			}
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	return cmd
}

func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}
	cmd.AddCommand(buildConfigValidateCmd(), buildConfigSchemaCmd())
	return cmd
}

func buildConfigValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load a configuration file and report whether it is well-formed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config invalid: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config valid: %s\n", configPath)
			fmt.Fprintf(cmd.OutOrStdout(), "  scheduler.max_concurrent_workers: %d\n", cfg.Scheduler.MaxConcurrentWorkers)
			fmt.Fprintf(cmd.OutOrStdout(), "  model.default_provider: %s\n", cfg.Model.DefaultProvider)
			fmt.Fprintf(cmd.OutOrStdout(), "  http.addr: %s\n", cfg.HTTP.Addr)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	return cmd
}

func buildConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for the configuration file format",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := config.JSONSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(schema))
			return nil
		},
	}
}

func defaultConfigPath() string {
	if p := strings.TrimSpace(os.Getenv("TASKGRAPH_CONFIG")); p != "" {
		return p
	}
	return "taskgraph.yaml"
}

func shutdownRuntime(rt *runtime) {
	if rt == nil {
		return
	}
	if rt.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rt.tracer.Shutdown(ctx)
	}
}
