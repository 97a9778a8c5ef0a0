package transcoder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTimecode(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"00:00:10", 10, false},
		{"01:02:03", 3723, false},
		{"02:30", 150, false},
		{"45", 45, false},
		{" 00:00:05 ", 5, false},
		{"90:00", 5400, false},
		{"", 0, true},
		{"abc", 0, true},
		{"00:60:00", 0, true},
		{"00:00:75", 0, true},
		{"1:2:3:4", 0, true},
		{"-5", 0, true},
		{"00::10", 0, true},
		{"+5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimecode(tt.input)
			if tt.wantErr {
				var verr *ValidationError
				assert.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatTimecode(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatTimecode(0))
	assert.Equal(t, "00:01:05", FormatTimecode(65.9))
	assert.Equal(t, "01:02:03", FormatTimecode(3723))
	assert.Equal(t, "00:00:00", FormatTimecode(-3))
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, s := range []float64{0, 1, 59, 60, 3599, 3600, 86399} {
		got, err := ParseTimecode(FormatTimecode(s))
		assert.NoError(t, err)
		assert.Equal(t, s, got)
	}
}
