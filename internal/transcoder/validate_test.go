package transcoder

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/jifmaker/pkg/models"
)

func problems(t *testing.T, err error) []string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	return verr.Problems
}

func TestValidateDefaults(t *testing.T) {
	assert.NoError(t, Validate(models.DefaultEncodeParameters(), hdSource))
	assert.NoError(t, Validate(models.DefaultEncodeParameters(), models.SourceMediaInfo{}))
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.EncodeParameters)
	}{
		{"width too small", func(p *models.EncodeParameters) { p.OutputWidth = 5 }},
		{"width too large", func(p *models.EncodeParameters) { p.OutputWidth = 5000 }},
		{"height too large", func(p *models.EncodeParameters) { p.OutputHeight = 4000 }},
		{"height too small", func(p *models.EncodeParameters) { p.OutputHeight = 4 }},
		{"frame rate zero", func(p *models.EncodeParameters) { p.FrameRate = 0 }},
		{"frame rate high", func(p *models.EncodeParameters) { p.FrameRate = 120 }},
		{"one color", func(p *models.EncodeParameters) { p.MaxColors = 1 }},
		{"too many colors", func(p *models.EncodeParameters) { p.MaxColors = 512 }},
		{"frame skip zero", func(p *models.EncodeParameters) { p.FrameSkip = 0 }},
		{"frame skip high", func(p *models.EncodeParameters) { p.FrameSkip = 11 }},
		{"diff negative", func(p *models.EncodeParameters) { p.FrameDiffThresholdPercent = -1 }},
		{"diff high", func(p *models.EncodeParameters) { p.FrameDiffThresholdPercent = 101 }},
		{"dither", func(p *models.EncodeParameters) { p.DitherMode = "ordered" }},
		{"tier", func(p *models.EncodeParameters) { p.CompressionTier = "Extreme" }},
		{"optimizer level", func(p *models.EncodeParameters) {
			p.UseExternalOptimizer = true
			p.OptimizerLevel = "Max"
		}},
		{"negative crop", func(p *models.EncodeParameters) { p.CropLeft = -1 }},
		{"bad trim start", func(p *models.EncodeParameters) { p.TrimStart = "ten" }},
		{"bad trim end", func(p *models.EncodeParameters) { p.TrimEnd = "00:99:00" }},
		{"zero end", func(p *models.EncodeParameters) { p.TrimEnd = "00:00:00" }},
		{"zero end after zero start", func(p *models.EncodeParameters) {
			p.TrimStart = "00:00:00"
			p.TrimEnd = "0"
		}},
		{"end before start", func(p *models.EncodeParameters) {
			p.TrimStart = "00:00:30"
			p.TrimEnd = "00:00:10"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := models.DefaultEncodeParameters()
			tt.mutate(&params)
			assert.Len(t, problems(t, Validate(params, hdSource)), 1)
		})
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	params := models.DefaultEncodeParameters()
	params.OutputWidth = 1
	params.FrameRate = 0
	params.MaxColors = 1000

	got := problems(t, Validate(params, hdSource))
	assert.Len(t, got, 3)
}

func TestValidateCropBounds(t *testing.T) {
	params := models.DefaultEncodeParameters()
	params.CropTop = 541 // beyond half of 1080

	assert.NotEmpty(t, problems(t, Validate(params, hdSource)))

	// Unknown source dimensions skip the bound check
	assert.NoError(t, Validate(params, models.SourceMediaInfo{}))

	params.CropTop = 540
	params.CropBottom = 540
	got := problems(t, Validate(params, hdSource))
	assert.Contains(t, got[len(got)-1], "empty frame")

	params.CropTop = 100
	params.CropBottom = 100
	assert.NoError(t, Validate(params, hdSource))
}

func TestValidateRequestPaths(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.mp4")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0o644))

	params := models.DefaultEncodeParameters()

	assert.NoError(t, ValidateRequest(params, hdSource, input, filepath.Join(dir, "out.gif")))
	assert.Len(t, problems(t, ValidateRequest(params, hdSource, "", "")), 2)
	assert.Len(t, problems(t, ValidateRequest(params, hdSource, filepath.Join(dir, "missing.mp4"), "out.gif")), 1)
	assert.Len(t, problems(t, ValidateRequest(params, hdSource, dir, "out.gif")), 1)
}
