package models

// SourceMediaInfo holds the probed properties of an input file.
// The zero value means the source has not been probed.
type SourceMediaInfo struct {
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	DurationSeconds float64 `json:"duration_seconds"`
	FrameRate       float64 `json:"frame_rate"`
	CodecName       string  `json:"codec_name,omitempty"`
}

// Probed reports whether the source has usable dimensions
func (s SourceMediaInfo) Probed() bool {
	return s.Width > 0 && s.Height > 0
}

// MaxCropMargin is the largest margin allowed on any side
func (s SourceMediaInfo) MaxCropMargin() int {
	m := s.Width
	if s.Height < m {
		m = s.Height
	}
	return m / 2
}

// HeightForWidth scales width by the source aspect ratio, truncating
func HeightForWidth(src SourceMediaInfo, width int) int {
	if src.Width <= 0 {
		return 0
	}
	return int(float64(width) * (float64(src.Height) / float64(src.Width)))
}

// WidthForHeight scales height by the source aspect ratio, truncating
func WidthForHeight(src SourceMediaInfo, height int) int {
	if src.Height <= 0 {
		return 0
	}
	return int(float64(height) * (float64(src.Width) / float64(src.Height)))
}
