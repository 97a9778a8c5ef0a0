package models

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// DitherMode selects the paletteuse dithering algorithm
type DitherMode string

// Dither modes understood by ffmpeg's paletteuse filter
const (
	DitherBayer          DitherMode = "bayer"
	DitherHeckbert       DitherMode = "heckbert"
	DitherFloydSteinberg DitherMode = "floyd_steinberg"
	DitherSierra2        DitherMode = "sierra2"
	DitherSierra2_4a     DitherMode = "sierra2_4a"
	DitherNone           DitherMode = "none"
)

// DitherModes lists every supported dither mode in display order
var DitherModes = []DitherMode{
	DitherBayer,
	DitherHeckbert,
	DitherFloydSteinberg,
	DitherSierra2,
	DitherSierra2_4a,
	DitherNone,
}

// Valid reports whether d is a known dither mode
func (d DitherMode) Valid() bool {
	for _, m := range DitherModes {
		if d == m {
			return true
		}
	}
	return false
}

// CompressionTier is a coarse size multiplier used by the estimator
type CompressionTier string

// Compression tiers
const (
	CompressionLow      CompressionTier = "Low"
	CompressionMedium   CompressionTier = "Medium"
	CompressionHigh     CompressionTier = "High"
	CompressionVeryHigh CompressionTier = "VeryHigh"
)

// CompressionTiers lists tiers from weakest to strongest
var CompressionTiers = []CompressionTier{
	CompressionLow,
	CompressionMedium,
	CompressionHigh,
	CompressionVeryHigh,
}

var compressionFactors = map[CompressionTier]float64{
	CompressionLow:      1.0,
	CompressionMedium:   0.7,
	CompressionHigh:     0.5,
	CompressionVeryHigh: 0.3,
}

// Factor returns the size multiplier for the tier. Unknown tiers fall back to Medium.
func (c CompressionTier) Factor() float64 {
	if f, ok := compressionFactors[c]; ok {
		return f
	}
	return compressionFactors[CompressionMedium]
}

// Valid reports whether c is a known tier
func (c CompressionTier) Valid() bool {
	_, ok := compressionFactors[c]
	return ok
}

// OptimizerLevel maps to gifsicle's -O1/-O2/-O3
type OptimizerLevel string

// Optimizer levels, weakest to strongest
const (
	OptimizerFast     OptimizerLevel = "Fast"
	OptimizerBalanced OptimizerLevel = "Balanced"
	OptimizerBest     OptimizerLevel = "Best"
)

// Flag returns the gifsicle optimization flag for the level
func (o OptimizerLevel) Flag() string {
	switch o {
	case OptimizerFast:
		return "-O1"
	case OptimizerBalanced:
		return "-O2"
	default:
		return "-O3"
	}
}

// Valid reports whether o is a known optimizer level
func (o OptimizerLevel) Valid() bool {
	return o == OptimizerFast || o == OptimizerBalanced || o == OptimizerBest
}

// OutputFormat is derived from the output file extension
type OutputFormat string

// Output formats
const (
	FormatGIF   OutputFormat = "gif"
	FormatOther OutputFormat = "other"
)

// OutputFormatFor derives the output format from a path
func OutputFormatFor(path string) OutputFormat {
	if strings.EqualFold(filepath.Ext(path), ".gif") {
		return FormatGIF
	}
	return FormatOther
}

// DefaultOutputPath returns <base>_processed.gif next to the input
func DefaultOutputPath(inputPath string) string {
	base := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
	return base + "_processed.gif"
}

// Height is an output height in pixels, or AutoHeight
type Height int

// AutoHeight asks the transcoder to derive the height from the aspect ratio.
// It is also the value passed on the wire (scale=W:-1).
const AutoHeight Height = -1

// IsAuto reports whether h requests an automatic height
func (h Height) IsAuto() bool {
	return h <= 0
}

// MarshalJSON encodes AutoHeight as "auto"
func (h Height) MarshalJSON() ([]byte, error) {
	if h.IsAuto() {
		return []byte(`"auto"`), nil
	}
	return []byte(strconv.Itoa(int(h))), nil
}

// UnmarshalJSON accepts a number or the string "auto"
func (h *Height) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || strings.EqualFold(s, "auto") {
			*h = AutoHeight
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid height %q", s)
		}
		*h = Height(n)
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid height: %w", err)
	}
	if n <= 0 {
		n = int(AutoHeight)
	}
	*h = Height(n)
	return nil
}

func (h Height) String() string {
	if h.IsAuto() {
		return "auto"
	}
	return strconv.Itoa(int(h))
}

// Parameter bounds
const (
	MinOutputWidth  = 10
	MaxOutputWidth  = 3840
	MinOutputHeight = 10
	MaxOutputHeight = 2160
	MinFrameRate    = 1
	MaxFrameRate    = 60
	MinColors       = 2
	MaxColors       = 256
	MinFrameSkip    = 1
	MaxFrameSkip    = 10
	MaxFrameDiff    = 100
)

// EncodeParameters holds the user-chosen encode options
type EncodeParameters struct {
	OutputWidth         int    `json:"output_width" mapstructure:"output_width"`
	OutputHeight        Height `json:"output_height" mapstructure:"output_height"`
	MaintainAspectRatio bool   `json:"maintain_aspect_ratio" mapstructure:"maintain_aspect_ratio"`

	CropTop    int `json:"crop_top" mapstructure:"crop_top"`
	CropBottom int `json:"crop_bottom" mapstructure:"crop_bottom"`
	CropLeft   int `json:"crop_left" mapstructure:"crop_left"`
	CropRight  int `json:"crop_right" mapstructure:"crop_right"`

	FrameRate      int        `json:"frame_rate" mapstructure:"frame_rate"`
	MaxColors      int        `json:"max_colors" mapstructure:"max_colors"`
	DitherMode     DitherMode `json:"dither_mode" mapstructure:"dither_mode"`
	LoopInfinitely bool       `json:"loop_infinitely" mapstructure:"loop_infinitely"`

	TrimStart string `json:"trim_start,omitempty" mapstructure:"trim_start"`
	TrimEnd   string `json:"trim_end,omitempty" mapstructure:"trim_end"`

	FrameSkip                 int             `json:"frame_skip" mapstructure:"frame_skip"`
	FrameDiffThresholdPercent int             `json:"frame_diff_threshold_percent" mapstructure:"frame_diff_threshold_percent"`
	CompressionTier           CompressionTier `json:"compression_tier" mapstructure:"compression_tier"`
	OptimizeTransparency      bool            `json:"optimize_transparency" mapstructure:"optimize_transparency"`
	DisableGIFExtensions      bool            `json:"disable_gif_extensions" mapstructure:"disable_gif_extensions"`

	UseExternalOptimizer bool           `json:"use_external_optimizer" mapstructure:"use_external_optimizer"`
	OptimizerLevel       OptimizerLevel `json:"optimizer_level" mapstructure:"optimizer_level"`
}

// DefaultEncodeParameters returns the session start-up defaults
func DefaultEncodeParameters() EncodeParameters {
	return EncodeParameters{
		OutputWidth:               800,
		OutputHeight:              AutoHeight,
		MaintainAspectRatio:       true,
		FrameRate:                 15,
		MaxColors:                 256,
		DitherMode:                DitherBayer,
		LoopInfinitely:            true,
		FrameSkip:                 1,
		FrameDiffThresholdPercent: 10,
		CompressionTier:           CompressionMedium,
		OptimizeTransparency:      true,
		OptimizerLevel:            OptimizerBest,
	}
}

// HasCrop reports whether any crop margin is set
func (p EncodeParameters) HasCrop() bool {
	return p.CropTop != 0 || p.CropBottom != 0 || p.CropLeft != 0 || p.CropRight != 0
}

// CropSize returns the crop rectangle left after removing the margins from the source
func (p EncodeParameters) CropSize(src SourceMediaInfo) (width, height int) {
	return src.Width - p.CropLeft - p.CropRight, src.Height - p.CropTop - p.CropBottom
}

// WithWidth sets the output width. With aspect ratio maintained and a probed
// source, the height follows.
func (p EncodeParameters) WithWidth(width int, src SourceMediaInfo) EncodeParameters {
	p.OutputWidth = width
	if p.MaintainAspectRatio && src.Probed() {
		p.OutputHeight = Height(HeightForWidth(src, width))
	}
	return p
}

// WithHeight sets the output height. With aspect ratio maintained and a probed
// source, an explicit height drives the width.
func (p EncodeParameters) WithHeight(height Height, src SourceMediaInfo) EncodeParameters {
	p.OutputHeight = height
	if p.MaintainAspectRatio && src.Probed() && !height.IsAuto() {
		p.OutputWidth = WidthForHeight(src, int(height))
	}
	return p
}
