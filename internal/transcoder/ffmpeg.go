package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/therealutkarshpriyadarshi/jifmaker/pkg/models"
)

// FFmpeg wraps the external ffmpeg, ffprobe and gifsicle binaries
type FFmpeg struct {
	ffmpegPath   string
	ffprobePath  string
	gifsiclePath string
}

// NewFFmpeg creates a new FFmpeg instance
func NewFFmpeg(ffmpegPath, ffprobePath, gifsiclePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if gifsiclePath == "" {
		gifsiclePath = "gifsicle"
	}
	return &FFmpeg{
		ffmpegPath:   ffmpegPath,
		ffprobePath:  ffprobePath,
		gifsiclePath: gifsiclePath,
	}
}

// Tools returns the executables pipelines should invoke
func (f *FFmpeg) Tools() ToolPaths {
	return ToolPaths{FFmpeg: f.ffmpegPath, GIFsicle: f.gifsiclePath}
}

// VideoMetadata holds the ffprobe JSON document
type VideoMetadata struct {
	Format  FormatInfo   `json:"format"`
	Streams []StreamInfo `json:"streams"`
}

// FormatInfo holds format information
type FormatInfo struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// StreamInfo holds stream information
type StreamInfo struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Duration     string `json:"duration"`
	FrameRate    string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

// CheckTools verifies ffmpeg and ffprobe are installed, and gifsicle when
// withOptimizer is set
func (f *FFmpeg) CheckTools(withOptimizer bool) error {
	tools := []string{f.ffprobePath, f.ffmpegPath}
	if withOptimizer {
		tools = append(tools, f.gifsiclePath)
	}
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			return &ToolMissingError{Tool: tool, Err: err}
		}
	}
	return nil
}

// ProbeVideo runs ffprobe and decodes its JSON output
func (f *FFmpeg) ProbeVideo(ctx context.Context, inputPath string) (*VideoMetadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}

	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if isNotFound(err) {
			return nil, &ToolMissingError{Tool: f.ffprobePath, Err: err}
		}
		return nil, &ProbeError{Path: inputPath, Reason: "ffprobe failed: " + strings.TrimSpace(stderr.String()), Err: err}
	}

	var metadata VideoMetadata
	if err := json.Unmarshal(stdout.Bytes(), &metadata); err != nil {
		return nil, &ProbeError{Path: inputPath, Reason: "unreadable ffprobe output", Err: err}
	}

	return &metadata, nil
}

// ProbeSource extracts the properties of the first video stream
func (f *FFmpeg) ProbeSource(ctx context.Context, inputPath string) (models.SourceMediaInfo, error) {
	metadata, err := f.ProbeVideo(ctx, inputPath)
	if err != nil {
		return models.SourceMediaInfo{}, err
	}
	return sourceFromMetadata(inputPath, metadata)
}

func sourceFromMetadata(inputPath string, metadata *VideoMetadata) (models.SourceMediaInfo, error) {
	for _, stream := range metadata.Streams {
		if stream.CodecType != "video" {
			continue
		}

		info := models.SourceMediaInfo{
			Width:     stream.Width,
			Height:    stream.Height,
			FrameRate: parseFrameRate(stream.AvgFrameRate),
			CodecName: stream.CodecName,
		}

		// Stream duration is missing for some containers (mkv, webm)
		if d, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
			info.DurationSeconds = d
		} else if d, err := strconv.ParseFloat(metadata.Format.Duration, 64); err == nil {
			info.DurationSeconds = d
		}

		return info, nil
	}

	return models.SourceMediaInfo{}, &ProbeError{Path: inputPath, Reason: "no video stream"}
}

// parseFrameRate accepts "num/den" or a plain number; a zero denominator yields 0
func parseFrameRate(s string) float64 {
	if s == "" {
		return 0
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0
		}
		return n / d
	}
	fps, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return fps
}

// ExtractFrame writes the first frame of inputPath to outputPath as a preview image
func (f *FFmpeg) ExtractFrame(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-y",
		"-i", inputPath,
		"-vframes", "1",
		"-q:v", "2",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if isNotFound(err) {
			return &ToolMissingError{Tool: f.ffmpegPath, Err: err}
		}
		return fmt.Errorf("failed to extract frame: %w, stderr: %s", err, stderr.String())
	}

	return nil
}
