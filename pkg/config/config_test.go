package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wbcore/pkg/correlation"
	"wbcore/pkg/dense"
	"wbcore/pkg/extrema"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, runtime.NumCPU(), cfg.Workers())
	assert.Equal(t, dense.DefaultStructureNames(), cfg.Structures)

	overlap, err := cfg.OverlapLogic()
	require.NoError(t, err)
	assert.Equal(t, extrema.Allow, overlap)

	settings, err := cfg.CorrelationSettings()
	require.NoError(t, err)
	assert.Equal(t, correlation.Settings{}, settings)
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFillsUnsetKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wbcore.yaml")
	yaml := `
extrema:
  overlap: closest
correlation:
  mode: COVARIANCE
  fisherZ: true
structures:
  - THALAMUS_LEFT
  - THALAMUS_RIGHT
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, runtime.NumCPU(), cfg.Processing.NumCores)
	assert.False(t, cfg.Smoothing.FixZeros)

	overlap, err := cfg.OverlapLogic()
	require.NoError(t, err)
	assert.Equal(t, extrema.Closest, overlap)

	settings, err := cfg.CorrelationSettings()
	require.NoError(t, err)
	assert.Equal(t, correlation.NewSettings(correlation.Covariance, true, false), settings)

	table, err := cfg.StructureTable()
	require.NoError(t, err)
	assert.Equal(t, []string{"THALAMUS_LEFT", "THALAMUS_RIGHT"}, table.Names())
}

func TestLoadRejectsBadValues(t *testing.T) {
	for name, body := range map[string]string{
		"overlap":   "extrema:\n  overlap: nearest\n",
		"mode":      "correlation:\n  mode: spearman\n",
		"structure": "structures:\n  - CORTEX_LEFT\n",
		"cores":     "processing:\n  numCores: -2\n",
		"syntax":    "processing: [\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wbcore.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg.Processing.NumCores = 2
	cfg.Smoothing.FixZeros = true
	require.NoError(t, SaveConfig(cfg, path))

	again, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Workers())
	assert.True(t, again.Smoothing.FixZeros)
}
