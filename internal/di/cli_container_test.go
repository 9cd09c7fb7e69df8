package di

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/food-safety-agent/internal/config"
)

func parseTestFlags(t *testing.T, args ...string) *CLIFlags {
	t.Helper()
	flags, err := ParseFlags(flag.NewFlagSet("food-inspector", flag.ContinueOnError), args)
	require.NoError(t, err)
	return flags
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inspector.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseFlags(t *testing.T) {
	flags := parseTestFlags(t, "-ph", "5.5", "-gas", "120", "-hours", "48", "-temp", "4.5", "banana.jpg")

	assert.Equal(t, "banana.jpg", flags.InputFile)
	signal := flags.Signal()
	assert.Equal(t, 5.5, signal.PH)
	assert.Equal(t, 120, signal.GasLevel)
	assert.Equal(t, 48, signal.StorageTime)
	require.NotNil(t, signal.Temperature)
	assert.Equal(t, 4.5, *signal.Temperature)

	assert.Nil(t, parseTestFlags(t).Signal().Temperature)
}

func TestCreateConfigFromFlagsLayersFileAndFlags(t *testing.T) {
	path := writeConfigFile(t, `
roboflow:
  workflow_url: https://serverless.roboflow.com/acme/workflows/food
quality:
  provider: openai
`)
	flags := parseTestFlags(t, "-config", path, "-quality", "none", "-providers", "huggingface, roboflow", "-no-cache")

	cfg, err := createConfigFromFlags(flags)

	require.NoError(t, err)
	assert.Equal(t, "https://serverless.roboflow.com/acme/workflows/food", cfg.GetString("roboflow.workflow_url"))
	assert.Equal(t, "none", cfg.GetString("quality.provider"))
	assert.Equal(t, []string{"huggingface", "roboflow"}, cfg.GetStringSlice("detection.providers"))
	assert.False(t, cfg.GetBool("cache.enabled"))
	assert.False(t, cfg.GetBool("alerts.enabled"))
	assert.Equal(t, "https://serverless.roboflow.com", cfg.GetString("roboflow.api_url"))
}

func TestCreateConfigFromFlagsWithoutFile(t *testing.T) {
	cfg, err := createConfigFromFlags(parseTestFlags(t))

	require.NoError(t, err)
	assert.Empty(t, cfg.GetViper().ConfigFileUsed())
	assert.Equal(t, "gemini", cfg.GetString("quality.provider"))
}

func TestCreateConfigFromFlagsMissingFile(t *testing.T) {
	_, err := createConfigFromFlags(parseTestFlags(t, "-config", filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}

func TestBuildCLIContainerProvidesConfig(t *testing.T) {
	flags := parseTestFlags(t, "-workflow-url", "https://detect.roboflow.com/acme/1")

	container, err := BuildCLIContainer(flags)
	require.NoError(t, err)

	err = container.Invoke(func(cfg *config.Config) {
		assert.Equal(t, "https://detect.roboflow.com/acme/1", cfg.GetString("roboflow.workflow_url"))
	})
	require.NoError(t, err)
}
