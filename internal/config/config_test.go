package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renjie/featex/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, "data", cfg.DataPath)
	assert.Equal(t, []string{"15-minutes", "1-hour"}, cfg.Granularities)

	table := cfg.ThresholdTable()
	assert.Equal(t, 0.3, table.Get("PickAndPlaceUnit"))
	assert.Equal(t, 0.0, table.Get("AnythingElse"))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "featex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_path: /tmp/hipe
workers: 4
granularities:
  - 1-day
off_threshold: 0.05
off_overrides:
  ChipPress: 0.7
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/hipe", cfg.DataPath)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, []string{"1-day"}, cfg.Granularities)

	table := cfg.ThresholdTable()
	assert.Equal(t, 0.7, table.Get("ChipPress"))
	assert.Equal(t, 0.05, table.Get("Unknown"))
}

func TestLoadRejectsUnknownGranularity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "featex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("granularities: [weekly]\n"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}
