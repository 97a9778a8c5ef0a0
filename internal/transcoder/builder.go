package transcoder

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/therealutkarshpriyadarshi/jifmaker/pkg/models"
)

// PaletteFileName is the palette artifact written by the first GIF pass
const PaletteFileName = "palette.png"

// Stage names, in pipeline order
const (
	StagePalette  = "palette"
	StageEncode   = "encode"
	StageOptimize = "optimize"
)

// ToolPaths holds the executables a pipeline invokes
type ToolPaths struct {
	FFmpeg   string
	GIFsicle string
}

func (t ToolPaths) ffmpeg() string {
	if t.FFmpeg == "" {
		return "ffmpeg"
	}
	return t.FFmpeg
}

func (t ToolPaths) gifsicle() string {
	if t.GIFsicle == "" {
		return "gifsicle"
	}
	return t.GIFsicle
}

// Builder turns encode parameters into an invocation pipeline. It performs no I/O.
type Builder struct {
	tools ToolPaths
}

// NewBuilder creates a builder that invokes the given tools
func NewBuilder(tools ToolPaths) *Builder {
	return &Builder{tools: tools}
}

// BuildPipeline builds a pipeline using ffmpeg and gifsicle from PATH
func BuildPipeline(params models.EncodeParameters, source models.SourceMediaInfo, inputPath, outputPath, tempDir string) models.Pipeline {
	return NewBuilder(ToolPaths{}).Build(params, source, inputPath, outputPath, tempDir)
}

// Build returns the ordered invocations for converting inputPath to outputPath.
// GIF output gets a palette pass, an encode pass and an optional gifsicle pass;
// anything else gets a single scale/crop encode. The palette path under tempDir
// is listed in TempFiles and must be removed by the caller.
func (b *Builder) Build(params models.EncodeParameters, source models.SourceMediaInfo, inputPath, outputPath, tempDir string) models.Pipeline {
	crop := cropFilter(params, source)
	scale := scaleFilter(params)

	if models.OutputFormatFor(outputPath) != models.FormatGIF {
		filters := joinFilters(crop, scale)

		args := b.inputArgs(params, inputPath)
		args = append(args, trimEndArgs(params)...)
		args = append(args, "-vf", filters)
		if params.LoopInfinitely {
			args = append(args, "-loop", "0")
		}
		args = append(args, outputPath)

		return models.Pipeline{
			Invocations: []models.Invocation{{Executable: b.tools.ffmpeg(), Args: args}},
		}
	}

	palettePath := filepath.Join(tempDir, PaletteFileName)

	// Palette pass: crop only, no scaling, so the palette sees the source colors
	paletteArgs := b.inputArgs(params, inputPath)
	paletteArgs = append(paletteArgs, trimEndArgs(params)...)
	paletteArgs = append(paletteArgs,
		"-vf", joinFilters(crop, fmt.Sprintf("palettegen=max_colors=%d:stats_mode=diff", params.MaxColors)),
		"-frames:v", "1",
		palettePath,
	)

	// Encode pass
	chain := joinFilters(crop, frameSkipFilter(params), scale)
	graph := fmt.Sprintf("%s[x];[x][1:v]paletteuse=dither=%s:diff_mode=rectangle", chain, ditherMode(params))

	encodeArgs := b.inputArgs(params, inputPath)
	encodeArgs = append(encodeArgs, "-i", palettePath)
	encodeArgs = append(encodeArgs, trimEndArgs(params)...)
	encodeArgs = append(encodeArgs, "-filter_complex", graph)
	if params.OptimizeTransparency {
		encodeArgs = append(encodeArgs, "-gifflags", "+transdiff")
	}
	if params.DisableGIFExtensions {
		encodeArgs = append(encodeArgs, "-gifflags", "-offsetting")
	}
	if params.LoopInfinitely {
		encodeArgs = append(encodeArgs, "-loop", "0")
	} else {
		encodeArgs = append(encodeArgs, "-loop", "-1")
	}
	encodeArgs = append(encodeArgs, outputPath)

	pipeline := models.Pipeline{
		Invocations: []models.Invocation{
			{Executable: b.tools.ffmpeg(), Args: paletteArgs},
			{Executable: b.tools.ffmpeg(), Args: encodeArgs},
		},
		TempFiles: []string{palettePath},
	}

	if params.UseExternalOptimizer {
		pipeline.Invocations = append(pipeline.Invocations, models.Invocation{
			Executable: b.tools.gifsicle(),
			Args:       []string{params.OptimizerLevel.Flag(), outputPath, "-o", outputPath},
		})
	}

	return pipeline
}

// StageNames labels each invocation of a pipeline built for outputPath
func StageNames(p models.Pipeline, outputPath string) []string {
	names := make([]string, len(p.Invocations))
	if models.OutputFormatFor(outputPath) != models.FormatGIF {
		for i := range names {
			names[i] = StageEncode
		}
		return names
	}
	order := []string{StagePalette, StageEncode, StageOptimize}
	for i := range names {
		if i < len(order) {
			names[i] = order[i]
		} else {
			names[i] = "stage-" + strconv.Itoa(i+1)
		}
	}
	return names
}

// inputArgs opens the source, seeking before -i so ffmpeg seeks on the input
func (b *Builder) inputArgs(params models.EncodeParameters, inputPath string) []string {
	args := []string{"-y"}
	if hasTrimStart(params.TrimStart) {
		args = append(args, "-ss", strings.TrimSpace(params.TrimStart))
	}
	return append(args, "-i", inputPath)
}

// trimEndArgs goes after the inputs
func trimEndArgs(params models.EncodeParameters) []string {
	end := strings.TrimSpace(params.TrimEnd)
	if end == "" {
		return nil
	}
	return []string{"-to", end}
}

func cropFilter(params models.EncodeParameters, source models.SourceMediaInfo) string {
	if !params.HasCrop() {
		return ""
	}
	w, h := params.CropSize(source)
	if w <= 0 || h <= 0 {
		return ""
	}
	return fmt.Sprintf("crop=%d:%d:%d:%d", w, h, params.CropLeft, params.CropTop)
}

func frameSkipFilter(params models.EncodeParameters) string {
	if params.FrameSkip <= 1 {
		return ""
	}
	return fmt.Sprintf(`select='not(mod(n\,%d))'`, params.FrameSkip)
}

func scaleFilter(params models.EncodeParameters) string {
	return fmt.Sprintf("fps=%d,scale=%d:%s:flags=lanczos", params.FrameRate, params.OutputWidth, wireHeight(params.OutputHeight))
}

func wireHeight(h models.Height) string {
	if h.IsAuto() {
		return strconv.Itoa(int(models.AutoHeight))
	}
	return strconv.Itoa(int(h))
}

func ditherMode(params models.EncodeParameters) models.DitherMode {
	if params.DitherMode == "" {
		return models.DitherBayer
	}
	return params.DitherMode
}

func joinFilters(filters ...string) string {
	var parts []string
	for _, f := range filters {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, ",")
}
