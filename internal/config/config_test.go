package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "signal-council/internal/errors"
)

func mustDefault(t *testing.T) *Config {
	t.Helper()
	cfg, err := Default()
	require.NoError(t, err)
	return cfg
}

func TestDefaultDecodesAndValidates(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Indicators.ShortWindow)
	assert.Equal(t, 200, cfg.Predictor.NumTrees)
	assert.Equal(t, filepath.Join(DefaultConfigDir(), "council.db"), cfg.Store.Path)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWritesTemplateAndUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "config.toml"))
	assert.NoError(t, statErr)

	assert.Equal(t, 20, cfg.Indicators.ShortWindow)
	assert.Equal(t, 50, cfg.Indicators.LongWindow)
	assert.Equal(t, 200, cfg.Predictor.NumTrees)
	assert.Equal(t, int64(42), cfg.Predictor.Seed)
	assert.InDelta(t, 0.015, cfg.Predictor.ImpactFactor, 1e-12)
	assert.Equal(t, 300, cfg.Analysis.MinObservations)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, filepath.Join(dir, "council.db"), cfg.Store.Path)
}

func TestLoadReadsTemplateBack(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.NoError(t, err)

	// Second load parses the template written by the first.
	cfg, err := Load(dir)
	require.NoError(t, err)
	defaults := mustDefault(t)
	assert.Equal(t, defaults.Indicators, cfg.Indicators)
	assert.Equal(t, defaults.Predictor, cfg.Predictor)
	assert.Equal(t, defaults.Analysis, cfg.Analysis)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `symbol = "ACME"

[indicators]
short_window = 10
long_window = 40
sample_std_dev = true

[predictor]
num_trees = 25
seed = 7

[store]
path = "/tmp/acme.db"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "ACME", cfg.Symbol)
	assert.Equal(t, 10, cfg.Indicators.ShortWindow)
	assert.Equal(t, 40, cfg.Indicators.LongWindow)
	assert.True(t, cfg.Indicators.SampleStdDev)
	assert.Equal(t, 14, cfg.Indicators.RSIPeriod)
	assert.Equal(t, 25, cfg.Predictor.NumTrees)
	assert.Equal(t, int64(7), cfg.Predictor.Seed)
	assert.Equal(t, "/tmp/acme.db", cfg.Store.Path)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COUNCIL_SYMBOL", "XYZ")
	t.Setenv("COUNCIL_LOG_LEVEL", "DEBUG")
	t.Setenv("COUNCIL_DB_PATH", "/tmp/env.db")
	t.Setenv("COUNCIL_SEED", "99")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "XYZ", cfg.Symbol)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/env.db", cfg.Store.Path)
	assert.Equal(t, int64(99), cfg.Predictor.Seed)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	content := `[predictor]
test_fraction = 1.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "TestFraction must be less than 1")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"long shorter than short", func(c *Config) { c.Indicators.LongWindow = 10 }, "LongWindow must be greater than ShortWindow"},
		{"macd slow not above fast", func(c *Config) { c.Indicators.MACDSlow = 12 }, "MACDSlow must be greater than MACDFast"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "Level must be one of: debug, info, warn, error"},
		{"zero trees", func(c *Config) { c.Predictor.NumTrees = 0 }, "NumTrees must be greater than or equal to 1"},
		{"cycle band inverted", func(c *Config) { c.Analysis.CycleMax = 10 }, "CycleMax must be greater than CycleMin"},
		{"missing store path", func(c *Config) { c.Store.Path = "" }, "Path is required"},
		{"rsi exceeds long window", func(c *Config) { c.Indicators.RSIPeriod = 60 }, "indicators.rsi_period"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := mustDefault(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConverters(t *testing.T) {
	cfg := mustDefault(t)
	cfg.Indicators.SampleStdDev = true
	cfg.Predictor.NumTrees = 12

	opts := cfg.IndicatorOptions()
	assert.Equal(t, cfg.Indicators.LongWindow, opts.LongWindow)
	assert.True(t, opts.SampleStdDev)

	pc := cfg.PredictorConfig()
	assert.Equal(t, 12, pc.NumTrees)
	assert.Equal(t, cfg.Predictor.Seed, pc.Seed)

	ao := cfg.AnalysisOptions()
	assert.Equal(t, cfg.Analysis.SeasonalPeriod, ao.SeasonalPeriod)
	assert.Equal(t, cfg.Analysis.CycleMax, ao.CycleMax)

	lc := cfg.LogConfig()
	assert.Equal(t, cfg.Log.Level, lc.Level)
	assert.Equal(t, cfg.Log.FilePath, lc.FilePath)
}
