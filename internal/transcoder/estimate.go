package transcoder

import (
	"fmt"
	"math"

	"github.com/therealutkarshpriyadarshi/jifmaker/pkg/models"
)

const (
	bytesPerKB = 1024
	bytesPerMB = 1024 * 1024
)

// SizeEstimate is a rough guess at the output size. It is a heuristic for
// user feedback, not a bound: real GIF sizes depend heavily on content.
type SizeEstimate struct {
	Bytes float64 `json:"bytes"`
	Known bool    `json:"known"`
}

// String formats the estimate as KB below 1 MiB, MB above, one decimal place
func (e SizeEstimate) String() string {
	if !e.Known {
		return "Unknown"
	}
	if e.Bytes < bytesPerMB {
		return fmt.Sprintf("%.1f KB", e.Bytes/bytesPerKB)
	}
	return fmt.Sprintf("%.1f MB", e.Bytes/bytesPerMB)
}

// EffectiveDimensions resolves the output size the builder would request,
// deriving an auto height from the source aspect ratio
func EffectiveDimensions(params models.EncodeParameters, source models.SourceMediaInfo) (width, height int) {
	width = params.OutputWidth
	if !params.OutputHeight.IsAuto() {
		return width, int(params.OutputHeight)
	}
	return width, models.HeightForWidth(source, width)
}

// EffectiveDuration applies the trim window to the source duration.
// The trim end is measured from the start of the file.
func EffectiveDuration(params models.EncodeParameters, source models.SourceMediaInfo) float64 {
	duration := source.DurationSeconds

	var start float64
	if hasTrimStart(params.TrimStart) {
		if s, err := ParseTimecode(params.TrimStart); err == nil {
			start = s
			duration -= start
		}
	}

	if params.TrimEnd != "" {
		if end, err := ParseTimecode(params.TrimEnd); err == nil {
			duration = math.Min(duration, end-start)
		}
	}

	if duration < 0 {
		return 0
	}
	return duration
}

// EstimateOutputSize returns a heuristic output size using a log2(colors)
// bits-per-pixel model scaled by the compression tier and frame-difference
// threshold. An unprobed source yields an unknown estimate.
func EstimateOutputSize(params models.EncodeParameters, source models.SourceMediaInfo) SizeEstimate {
	if source.Width == 0 {
		return SizeEstimate{}
	}

	width, height := EffectiveDimensions(params, source)

	frameSkip := params.FrameSkip
	if frameSkip < 1 {
		frameSkip = 1
	}
	frames := EffectiveDuration(params, source) * source.FrameRate / float64(frameSkip)

	bitsPerPixel := 1.0
	if params.MaxColors > 1 {
		bitsPerPixel = math.Log2(float64(params.MaxColors))
	}

	size := float64(width) * float64(height) * frames * bitsPerPixel / 8
	size *= params.CompressionTier.Factor()
	// Caps the reduction at roughly a third
	size *= 1.0 - float64(params.FrameDiffThresholdPercent)/300.0

	if size < 0 {
		size = 0
	}
	return SizeEstimate{Bytes: size, Known: true}
}
