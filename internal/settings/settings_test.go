package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/jifmaker/pkg/models"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	store := Open(filepath.Join(t.TempDir(), "settings.yaml"), models.DefaultEncodeParameters())

	params, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, models.DefaultEncodeParameters(), params)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	store := Open(path, models.DefaultEncodeParameters())

	params := models.DefaultEncodeParameters()
	params.OutputWidth = 480
	params.OutputHeight = 270
	params.DitherMode = models.DitherFloydSteinberg
	params.TrimStart = "00:00:05"
	params.TrimEnd = "00:00:12"
	params.CompressionTier = models.CompressionVeryHigh
	params.UseExternalOptimizer = true
	params.OptimizerLevel = models.OptimizerFast
	params.CropLeft = 16

	require.NoError(t, store.Save(params))
	assert.FileExists(t, path)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, params, loaded)
}

func TestSaveAutoHeight(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	store := Open(path, models.DefaultEncodeParameters())

	params := models.DefaultEncodeParameters()
	params.OutputHeight = models.AutoHeight
	require.NoError(t, store.Save(params))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "output_height: auto")

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.True(t, loaded.OutputHeight.IsAuto())
}

func TestLoadMergesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("frame_rate: 24\nmax_colors: 64\n"), 0o644))

	loaded, err := Open(path, models.DefaultEncodeParameters()).Load()
	require.NoError(t, err)

	want := models.DefaultEncodeParameters()
	want.FrameRate = 24
	want.MaxColors = 64
	assert.Equal(t, want, loaded)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("frame_rate: [unterminated\n"), 0o644))

	_, err := Open(path, models.DefaultEncodeParameters()).Load()
	assert.Error(t, err)
}
