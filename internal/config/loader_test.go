package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
scheduler:
  max_concurrent_workers: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Scheduler.MaxConcurrentWorkers)
	assert.Equal(t, 100*time.Millisecond, cfg.Scheduler.IdlePoll)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoadResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
logging:
  level: debug
  format: text
`)
	path := writeFile(t, dir, "config.yaml", `
$include: base.yaml
scheduler:
  max_concurrent_workers: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 2, cfg.Scheduler.MaxConcurrentWorkers)
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TASKGRAPH_TEST_API_KEY", "secret-value")
	path := writeFile(t, dir, "config.yaml", `
model:
  default_provider: anthropic
  providers:
    anthropic:
      api_key: ${TASKGRAPH_TEST_API_KEY}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-value", cfg.Model.Providers["anthropic"].APIKey)
}

func TestLoadRejectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.yaml")
	pathB := filepath.Join(dir, "b.yaml")
	require.NoError(t, os.WriteFile(pathA, []byte("$include: b.yaml\n"), 0o644))
	require.NoError(t, os.WriteFile(pathB, []byte("$include: a.yaml\n"), 0o644))

	_, err := Load(pathA)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
not_a_real_section:
  foo: bar
`)

	_, err := Load(path)
	assert.Error(t, err)
}
