package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// writeConfig points every path at a temp dir and keeps records in memory.
func writeConfig(t *testing.T, restaurants string) string {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "restaurants.json")
	require.NoError(t, os.WriteFile(source, []byte(restaurants), 0o600))

	cfg := fmt.Sprintf(`
database:
  driver: sqlite
  sqlite_path: %q
bootstrap:
  source: %q
  progress: %q
pipeline:
  get_timeout: 20ms
storage:
  backend: memory
logging:
  development: false
  level: error
`, filepath.Join(dir, "frontier.db"), source, filepath.Join(dir, "progress.json"))
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := execute(context.Background(), args, func(cmd *cobra.Command) {
		cmd.SetOut(&out)
		cmd.SetErr(&out)
	})
	return out.String(), err
}

func TestMigrateAndStatus(t *testing.T) {
	t.Parallel()
	cfg := writeConfig(t, `[]`)

	out, err := runCLI(t, "migrate", "--config", cfg)
	require.NoError(t, err)
	require.Equal(t, "frontier schema is up to date\n", out)

	out, err = runCLI(t, "frontier", "status", "--config", cfg)
	require.NoError(t, err)
	require.Equal(t, "queued: 0\n", out)

	out, err = runCLI(t, "frontier", "peek", "--config", cfg)
	require.NoError(t, err)
	require.Equal(t, "queue is empty\n", out)
}

func TestFrontierEditsUnknownURL(t *testing.T) {
	t.Parallel()
	cfg := writeConfig(t, `[]`)

	out, err := runCLI(t, "frontier", "reprioritize", "https://Bistro.fr/menu/", "4", "--config", cfg)
	require.NoError(t, err)
	require.Equal(t, "https://bistro.fr/menu is not queued\n", out)

	out, err = runCLI(t, "frontier", "drop", "https://bistro.fr/menu", "--config", cfg)
	require.NoError(t, err)
	require.Equal(t, "https://bistro.fr/menu is not queued\n", out)

	_, err = runCLI(t, "frontier", "reprioritize", "https://bistro.fr/", "high", "--config", cfg)
	require.ErrorContains(t, err, `priority "high"`)
}

func TestRunWithEmptyBatch(t *testing.T) {
	t.Parallel()
	cfg := writeConfig(t, `[]`)

	out, err := runCLI(t, "run", "--config", cfg, "--batch-size", "3")
	require.NoError(t, err)
	require.Contains(t, out, "0 restaurants seeded")
	require.Contains(t, out, "search")
	require.Contains(t, out, "skipped")
	require.Regexp(t, `frontier depth\s+0`, out)
}

func TestInvalidConfigFails(t *testing.T) {
	t.Parallel()

	_, err := runCLI(t, "frontier", "status", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}
