// Package config loads the YAML configuration this repository's binaries
// read at startup: a nested yaml-tagged struct shape, $include resolution,
// and env-var expansion, scoped to the five sections a task-graph scheduler
// actually needs (Scheduler, Runner, Model, Logging, HTTP).
package config

import "time"

// Config is the root configuration struct decoded from YAML.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Runner    RunnerConfig    `yaml:"runner"`
	Model     ModelConfig     `yaml:"model"`
	Logging   LoggingConfig   `yaml:"logging"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// SchedulerConfig configures internal/scheduler.Config.
type SchedulerConfig struct {
	// MaxConcurrentWorkers caps how many tasks may be RUNNING at once.
	// Safe to change at runtime; see Watcher.
	MaxConcurrentWorkers int `yaml:"max_concurrent_workers"`
	// IdlePoll is the scheduler loop's safety-net poll interval.
	IdlePoll time.Duration `yaml:"idle_poll"`
}

// RunnerConfig configures internal/runner.Config.
type RunnerConfig struct {
	MaxIterations              int    `yaml:"max_iterations"`
	MaxOutputTokens            int    `yaml:"max_output_tokens"`
	MaxDependencySummaryTokens int    `yaml:"max_dependency_summary_tokens"`
	ModelName                  string `yaml:"model_name"`
}

// ModelConfig selects and configures the Model Client providers.
type ModelConfig struct {
	DefaultProvider string                         `yaml:"default_provider"`
	Providers       map[string]ModelProviderConfig `yaml:"providers"`
	// FallbackChain lists provider names internal/model.FailoverClient tries
	// in order after the default provider fails.
	FallbackChain []string      `yaml:"fallback_chain"`
	Bedrock       BedrockConfig `yaml:"bedrock"`
}

// ModelProviderConfig holds one provider's credentials and defaults.
type ModelProviderConfig struct {
	APIKey       string  `yaml:"api_key"`
	DefaultModel string  `yaml:"default_model"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
}

// BedrockConfig configures the AWS Bedrock model.Client beyond the generic
// ModelProviderConfig fields, since it authenticates via AWS credentials
// rather than a bearer API key.
type BedrockConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

// LoggingConfig configures observability.NewLogger. Safe to change at
// runtime; see Watcher.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	RotatePath    string `yaml:"rotate_path"`
	RotateMaxMB   int    `yaml:"rotate_max_mb"`
	RotateBackups int    `yaml:"rotate_backups"`
	RotateMaxAge  int    `yaml:"rotate_max_age"`
	AddSource     bool   `yaml:"add_source"`
}

// HTTPConfig configures internal/httpapi's introspection server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

func (c Config) withDefaults() Config {
	if c.Scheduler.MaxConcurrentWorkers <= 0 {
		c.Scheduler.MaxConcurrentWorkers = 8
	}
	if c.Scheduler.IdlePoll <= 0 {
		c.Scheduler.IdlePoll = 100 * time.Millisecond
	}
	if c.Runner.MaxIterations <= 0 {
		c.Runner.MaxIterations = 20
	}
	if c.Runner.ModelName == "" {
		c.Runner.ModelName = "gpt-4"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	return c
}
