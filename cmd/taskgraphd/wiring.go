package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/haasonsaas/taskgraph/internal/agent"
	"github.com/haasonsaas/taskgraph/internal/config"
	"github.com/haasonsaas/taskgraph/internal/model"
	"github.com/haasonsaas/taskgraph/internal/model/anthropic"
	"github.com/haasonsaas/taskgraph/internal/model/bedrock"
	"github.com/haasonsaas/taskgraph/internal/model/openai"
	"github.com/haasonsaas/taskgraph/internal/observability"
	"github.com/haasonsaas/taskgraph/internal/toolregistry"
	"github.com/prometheus/client_golang/prometheus"
)

// runtime bundles the pieces buildRuntime wires together so chat and serve
// can share identical startup logic.
type runtime struct {
	cfg     *config.Config
	agent   *agent.Agent
	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

func buildRuntime(ctx context.Context, configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:         cfg.Logging.Level,
		Format:        cfg.Logging.Format,
		RotatePath:    cfg.Logging.RotatePath,
		RotateMaxMB:   cfg.Logging.RotateMaxMB,
		RotateBackups: cfg.Logging.RotateBackups,
		RotateMaxAge:  cfg.Logging.RotateMaxAge,
		AddSource:     cfg.Logging.AddSource,
	})

	metrics := observability.NewMetrics(prometheus.NewRegistry())

	tracer, err := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "taskgraphd",
		ServiceVersion: version,
		Environment:    "production",
		SamplingRatio:  1,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("start tracer: %w", err)
	}

	client, err := buildModelClient(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("build model client: %w", err)
	}

	registry := toolregistry.New(slog.Default())
	registerDemoTools(registry)

	if mcpSource, ok, mcpErr := maybeBuildMCPSource(); mcpErr != nil {
		return nil, fmt.Errorf("build mcp source: %w", mcpErr)
	} else if ok {
		tools, toolsErr := mcpSource.Tools(ctx)
		if toolsErr != nil {
			return nil, fmt.Errorf("list mcp tools: %w", toolsErr)
		}
		for _, tool := range tools {
			if regErr := registry.Register(tool); regErr != nil {
				return nil, fmt.Errorf("register mcp tool %q: %w", tool.Name, regErr)
			}
		}
	}

	a, err := agent.New(client, registry, agent.Config{
		RunnerConfig:    runnerConfigFrom(cfg.Runner),
		SchedulerConfig: schedulerConfigFrom(cfg.Scheduler),
		TokenizerModel:  cfg.Runner.ModelName,
		Logger:          slog.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("build agent: %w", err)
	}

	return &runtime{cfg: cfg, agent: a, logger: logger, metrics: metrics, tracer: tracer}, nil
}

// buildModelClient selects cfg.DefaultProvider as the primary client and
// wraps it with a FailoverClient over cfg.FallbackChain, per the provider
// selection rule named in the configuration reference.
func buildModelClient(ctx context.Context, cfg config.ModelConfig) (model.Client, error) {
	if cfg.DefaultProvider == "" {
		return nil, fmt.Errorf("model.default_provider is required")
	}

	primary, err := clientForProvider(ctx, cfg.DefaultProvider, cfg)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", cfg.DefaultProvider, err)
	}
	if len(cfg.FallbackChain) == 0 {
		return primary, nil
	}

	var fallbacks []struct {
		Name   string
		Client model.Client
	}
	for _, name := range cfg.FallbackChain {
		if name == cfg.DefaultProvider {
			continue
		}
		fc, fcErr := clientForProvider(ctx, name, cfg)
		if fcErr != nil {
			return nil, fmt.Errorf("fallback provider %q: %w", name, fcErr)
		}
		fallbacks = append(fallbacks, struct {
			Name   string
			Client model.Client
		}{Name: name, Client: fc})
	}
	return model.NewFailoverClient(model.DefaultFailoverConfig(), cfg.DefaultProvider, primary, fallbacks...), nil
}

func clientForProvider(ctx context.Context, name string, cfg config.ModelConfig) (model.Client, error) {
	switch name {
	case "anthropic":
		p, ok := cfg.Providers["anthropic"]
		if !ok {
			return nil, fmt.Errorf("no anthropic provider configured")
		}
		return anthropic.NewFromAPIKey(p.APIKey, p.DefaultModel)
	case "openai":
		p, ok := cfg.Providers["openai"]
		if !ok {
			return nil, fmt.Errorf("no openai provider configured")
		}
		return openai.NewFromAPIKey(p.APIKey, p.DefaultModel)
	case "bedrock":
		p := cfg.Providers["bedrock"]
		return bedrock.NewFromCredentials(ctx, bedrock.Credentials{
			Region:          cfg.Bedrock.Region,
			AccessKeyID:     cfg.Bedrock.AccessKeyID,
			SecretAccessKey: cfg.Bedrock.SecretAccessKey,
			SessionToken:    cfg.Bedrock.SessionToken,
		}, p.DefaultModel)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
