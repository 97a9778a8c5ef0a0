package transcoder

import (
	"os"
	"strings"

	"github.com/therealutkarshpriyadarshi/jifmaker/pkg/models"
)

// Validate checks parameter ranges, crop bounds and trim strings. Crop bounds
// are only checked against a probed source.
func Validate(params models.EncodeParameters, source models.SourceMediaInfo) error {
	verr := &ValidationError{}
	validateParams(verr, params, source)
	return verr.orNil()
}

// ValidateRequest runs Validate plus the path checks needed before execution
func ValidateRequest(params models.EncodeParameters, source models.SourceMediaInfo, inputPath, outputPath string) error {
	verr := &ValidationError{}

	if strings.TrimSpace(inputPath) == "" {
		verr.add("input path is required")
	} else if info, err := os.Stat(inputPath); err != nil {
		verr.add("input file %s does not exist", inputPath)
	} else if info.IsDir() {
		verr.add("input %s is a directory", inputPath)
	}
	if strings.TrimSpace(outputPath) == "" {
		verr.add("output path is required")
	}

	validateParams(verr, params, source)
	return verr.orNil()
}

func validateParams(verr *ValidationError, p models.EncodeParameters, src models.SourceMediaInfo) {
	if p.OutputWidth < models.MinOutputWidth || p.OutputWidth > models.MaxOutputWidth {
		verr.add("output width %d outside %d-%d", p.OutputWidth, models.MinOutputWidth, models.MaxOutputWidth)
	}
	if !p.OutputHeight.IsAuto() && (int(p.OutputHeight) < models.MinOutputHeight || int(p.OutputHeight) > models.MaxOutputHeight) {
		verr.add("output height %d outside %d-%d", p.OutputHeight, models.MinOutputHeight, models.MaxOutputHeight)
	}
	if p.FrameRate < models.MinFrameRate || p.FrameRate > models.MaxFrameRate {
		verr.add("frame rate %d outside %d-%d", p.FrameRate, models.MinFrameRate, models.MaxFrameRate)
	}
	if p.MaxColors < models.MinColors || p.MaxColors > models.MaxColors {
		verr.add("max colors %d outside %d-%d", p.MaxColors, models.MinColors, models.MaxColors)
	}
	if p.FrameSkip < models.MinFrameSkip || p.FrameSkip > models.MaxFrameSkip {
		verr.add("frame skip %d outside %d-%d", p.FrameSkip, models.MinFrameSkip, models.MaxFrameSkip)
	}
	if p.FrameDiffThresholdPercent < 0 || p.FrameDiffThresholdPercent > models.MaxFrameDiff {
		verr.add("frame difference threshold %d%% outside 0-%d", p.FrameDiffThresholdPercent, models.MaxFrameDiff)
	}
	if p.DitherMode != "" && !p.DitherMode.Valid() {
		verr.add("unknown dither mode %q", p.DitherMode)
	}
	if !p.CompressionTier.Valid() {
		verr.add("unknown compression tier %q", p.CompressionTier)
	}
	if p.UseExternalOptimizer && !p.OptimizerLevel.Valid() {
		verr.add("unknown optimizer level %q", p.OptimizerLevel)
	}

	validateCrop(verr, p, src)
	validateTrim(verr, p)
}

func validateCrop(verr *ValidationError, p models.EncodeParameters, src models.SourceMediaInfo) {
	margins := []struct {
		name  string
		value int
	}{
		{"top", p.CropTop},
		{"bottom", p.CropBottom},
		{"left", p.CropLeft},
		{"right", p.CropRight},
	}
	for _, m := range margins {
		if m.value < 0 {
			verr.add("crop %s %d is negative", m.name, m.value)
		}
	}

	if !src.Probed() || !p.HasCrop() {
		return
	}

	limit := src.MaxCropMargin()
	for _, m := range margins {
		if m.value > limit {
			verr.add("crop %s %d exceeds %d", m.name, m.value, limit)
		}
	}

	if w, h := p.CropSize(src); w <= 0 || h <= 0 {
		verr.add("crop leaves an empty frame (%dx%d)", w, h)
	}
}

func validateTrim(verr *ValidationError, p models.EncodeParameters) {
	var start, end float64
	var startOK, endOK bool

	if strings.TrimSpace(p.TrimStart) != "" {
		s, err := ParseTimecode(p.TrimStart)
		if err != nil {
			verr.add("trim start %q is not HH:MM:SS", p.TrimStart)
		} else {
			start, startOK = s, true
		}
	}
	if strings.TrimSpace(p.TrimEnd) != "" {
		e, err := ParseTimecode(p.TrimEnd)
		if err != nil {
			verr.add("trim end %q is not HH:MM:SS", p.TrimEnd)
		} else {
			end, endOK = e, true
		}
	}

	if endOK && end <= 0 {
		verr.add("trim end %s must be after the start of the file", p.TrimEnd)
	} else if startOK && endOK && end <= start {
		verr.add("trim end %s is not after trim start %s", p.TrimEnd, p.TrimStart)
	}
}
