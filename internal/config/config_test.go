package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  env: test
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":8099", cfg.App.HTTPAddr)
	assert.Equal(t, "data", cfg.Data.Root)
	assert.Equal(t, "momentum_trend_breakout", cfg.Backtest.Strategy)
	assert.Equal(t, "single", cfg.Backtest.Policy)
	assert.Equal(t, 200, cfg.Backtest.MinHistory)
	assert.Equal(t, 4, cfg.Backtest.MaxConcurrent)
	assert.True(t, cfg.Backtest.EntryGuard)
}

func TestLoadExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `
backtest:
  policy: multi
  entry_guard: false
  min_history: 100
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "multi", cfg.Backtest.Policy)
	assert.False(t, cfg.Backtest.EntryGuard)
	assert.Equal(t, 100, cfg.Backtest.MinHistory)
}

func TestLoadStrategySettings(t *testing.T) {
	path := writeConfig(t, `
strategies:
  - name: momentum_trend_breakout
    settings:
      rsi_threshold: 60
  - name: moving_average
    settings:
      short_ma: 20
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	settings := cfg.StrategySettings("momentum_trend_breakout")
	require.NotNil(t, settings)
	assert.EqualValues(t, 60, settings["rsi_threshold"])
	assert.Nil(t, cfg.StrategySettings("no_such"))
}

func TestLoadValidation(t *testing.T) {
	t.Run("BadPolicy", func(t *testing.T) {
		path := writeConfig(t, "backtest:\n  policy: both\n")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("BadEntryType", func(t *testing.T) {
		path := writeConfig(t, "backtest:\n  entry_types: [HOLD]\n")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("DuplicateStrategy", func(t *testing.T) {
		path := writeConfig(t, `
strategies:
  - name: moving_average
  - name: moving_average
`)
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("BadScanInterval", func(t *testing.T) {
		path := writeConfig(t, "scan:\n  interval: daily\n")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("TelegramMissingToken", func(t *testing.T) {
		path := writeConfig(t, `
notify:
  telegram:
    enabled: true
`)
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestLoadIncludes(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.yaml")
	require.NoError(t, os.WriteFile(base, []byte("backtest:\n  min_history: 150\n"), 0o644))
	main := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(main, []byte("include:\n  - base.yaml\napp:\n  env: prod\n"), 0o644))

	cfg, err := Load(main)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, 150, cfg.Backtest.MinHistory)
}

func TestIsValidInterval(t *testing.T) {
	assert.True(t, IsValidInterval("15m"))
	assert.True(t, IsValidInterval("1d"))
	assert.False(t, IsValidInterval("daily"))
	assert.False(t, IsValidInterval(""))
	assert.False(t, IsValidInterval("d"))
}
