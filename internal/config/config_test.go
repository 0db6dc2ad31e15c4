package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "eval/scenarios", cfg.Paths.Scenarios)
	assert.Equal(t, "eval/registry", cfg.Paths.Registry)
	assert.True(t, cfg.Thresholds.W1.PathMatchRequired)
	assert.InDelta(t, 0.6, cfg.Thresholds.W1.LineIoUMin, 0.001)
	assert.True(t, cfg.Thresholds.W1.RequireSymbolMatch)
	assert.True(t, cfg.Thresholds.W1.FaithfulnessRequired)
	assert.True(t, cfg.Thresholds.Canary.Require100Percent)
	assert.False(t, cfg.Judge.EnabledForW2)
	assert.Equal(t, 512, cfg.Judge.MaxTokens)
	assert.Equal(t, int64(5000), cfg.SLO.P95LatencyMs)
	assert.Equal(t, int64(20000), cfg.SLO.MaxTokensIn)
	assert.Equal(t, int64(4000), cfg.SLO.MaxTokensOut)
	assert.Equal(t, int64(50000), cfg.SLO.MaxContextTokens)
	assert.Equal(t, int64(7), cfg.Run.Seed)
	assert.True(t, cfg.Run.FailFastOnCanary)
	assert.Equal(t, []string{"json", "xlsx", "csv"}, cfg.Run.ReportFormat)
	assert.Equal(t, 60, cfg.SUT.TimeoutS)
	assert.True(t, cfg.Variants.Enabled)
	assert.Equal(t, []string{"case", "reexport", "test", "vendor", "nearname"}, cfg.Variants.Kinds)
	assert.Equal(t, 2, cfg.Variants.MaxPerSource)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	yaml := `
paths:
  scenarios: fixtures/scenarios
  goldens: fixtures/goldens
thresholds:
  w1:
    path_match_required: false
    line_iou_min: 0.4
sut_cli:
  cmd: ./bin/agent
  extra_args: ["--quiet"]
  timeout_s: 30
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fixtures/scenarios", cfg.Paths.Scenarios)
	assert.Equal(t, "fixtures/goldens", cfg.Paths.Goldens)
	assert.False(t, cfg.Thresholds.W1.PathMatchRequired)
	assert.InDelta(t, 0.4, cfg.Thresholds.W1.LineIoUMin, 0.001)
	assert.Equal(t, "./bin/agent", cfg.SUT.Cmd)
	assert.Equal(t, []string{"--quiet"}, cfg.SUT.ExtraArgs)
	assert.Equal(t, 30, cfg.SUT.TimeoutS)
	// Untouched sections keep defaults.
	assert.Equal(t, "eval/canary", cfg.Paths.Canary)
	assert.True(t, cfg.Thresholds.W1.RequireSymbolMatch)
}

func TestEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("EVAL_MODEL_NAME", "claude-haiku-4-5-20251001")
	t.Setenv("EVAL_P95_LATENCY_MS", "2500")
	t.Setenv("EVAL_SUT_CMD", "/usr/local/bin/agent")
	t.Setenv("EVAL_TIMEOUT_S", "15")
	t.Setenv("EVAL_PATH_REGISTRY", "/var/lib/loceval/registry")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Judge.ModelName)
	assert.Equal(t, int64(2500), cfg.SLO.P95LatencyMs)
	assert.Equal(t, "/usr/local/bin/agent", cfg.SUT.Cmd)
	assert.Equal(t, 15, cfg.SUT.TimeoutS)
	assert.Equal(t, "/var/lib/loceval/registry", cfg.Paths.Registry)
}

func TestEnvOverrideBadNumberIgnored(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("EVAL_P95_LATENCY_MS", "not-a-number")
	t.Setenv("EVAL_TIMEOUT_S", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(5000), cfg.SLO.P95LatencyMs)
	assert.Equal(t, 60, cfg.SUT.TimeoutS)
}

func TestValidateThresholdRange(t *testing.T) {
	cfg := &Config{
		Thresholds: ThresholdsConfig{W1: W1Thresholds{LineIoUMin: 1.5}},
		SUT:        SUTConfig{TimeoutS: 60},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line_iou_min")
}

func TestValidateTimeout(t *testing.T) {
	cfg := &Config{
		Thresholds: ThresholdsConfig{W1: W1Thresholds{LineIoUMin: 0.6}},
		SUT:        SUTConfig{TimeoutS: 0},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout_s")
}

func TestValidateListsAllMissingDirs(t *testing.T) {
	dir := t.TempDir()
	// Only two of six exist.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scenarios"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "goldens"), 0o755))

	cfg := &Config{
		Paths: PathsConfig{
			Scenarios: filepath.Join(dir, "scenarios"),
			Goldens:   filepath.Join(dir, "goldens"),
			Canary:    filepath.Join(dir, "canary"),
			Judges:    filepath.Join(dir, "judges"),
			Reports:   filepath.Join(dir, "reports"),
			Registry:  filepath.Join(dir, "registry"),
		},
		Thresholds: ThresholdsConfig{W1: W1Thresholds{LineIoUMin: 0.6}},
		SUT:        SUTConfig{TimeoutS: 60},
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, name := range []string{"paths.canary", "paths.judges", "paths.reports", "paths.registry"} {
		assert.Contains(t, err.Error(), name)
	}
	assert.NotContains(t, err.Error(), "paths.scenarios ->")
}

func TestValidateAllDirsPresent(t *testing.T) {
	dir := t.TempDir()
	paths := PathsConfig{
		Scenarios: filepath.Join(dir, "scenarios"),
		Goldens:   filepath.Join(dir, "goldens"),
		Canary:    filepath.Join(dir, "canary"),
		Judges:    filepath.Join(dir, "judges"),
		Reports:   filepath.Join(dir, "reports"),
		Registry:  filepath.Join(dir, "registry"),
	}
	for _, p := range []string{paths.Scenarios, paths.Goldens, paths.Canary, paths.Judges, paths.Reports, paths.Registry} {
		require.NoError(t, os.MkdirAll(p, 0o755))
	}

	cfg := &Config{
		Paths:      paths,
		Thresholds: ThresholdsConfig{W1: W1Thresholds{LineIoUMin: 0.6}},
		SUT:        SUTConfig{TimeoutS: 60},
	}
	require.NoError(t, cfg.Validate())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	require.Error(t, InitLogger(LogConfig{Level: "loud", Format: "json"}))
}
