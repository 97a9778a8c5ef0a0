package transcoder

import (
	"fmt"
	"strconv"
	"strings"
)

// zeroTimecode is treated as "no trim start"
const zeroTimecode = "00:00:00"

// ParseTimecode converts HH:MM:SS, MM:SS or SS to seconds
func ParseTimecode(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &ValidationError{Problems: []string{"empty timecode"}}
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, &ValidationError{Problems: []string{fmt.Sprintf("malformed timecode %q", s)}}
	}

	total := 0
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || part == "" || strings.HasPrefix(part, "+") {
			return 0, &ValidationError{Problems: []string{fmt.Sprintf("malformed timecode %q", s)}}
		}
		// Every field after the leading one is base 60
		if i > 0 && n >= 60 {
			return 0, &ValidationError{Problems: []string{fmt.Sprintf("malformed timecode %q", s)}}
		}
		total = total*60 + n
	}

	return float64(total), nil
}

// FormatTimecode renders seconds as HH:MM:SS, dropping fractions
func FormatTimecode(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// hasTrimStart reports whether a trim start should be passed to ffmpeg
func hasTrimStart(start string) bool {
	start = strings.TrimSpace(start)
	return start != "" && start != zeroTimecode
}
