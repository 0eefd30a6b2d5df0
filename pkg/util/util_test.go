package util

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00.000"},
		{12.2, "00:00:12.200"},
		{65.8, "00:01:05.800"},
		{3725.0004, "01:02:05.000"},
		{59.9996, "00:01:00.000"},
		{-1.5, "-00:00:01.500"},
		{math.NaN(), "--:--:--.---"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSeconds(tt.in), "%v", tt.in)
	}
}

func TestParseTimestamp(t *testing.T) {
	valid := map[string]float64{
		"45.5":         45.5,
		"  30 ":        30,
		"01:30":        90,
		"1:02:03.5":    3723.5,
		"00:00:00.000": 0,
		"120":          120,
	}
	for in, want := range valid {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}

	for _, in := range []string{"", "abc", "1:2:3:4", "-5", "1:75", "1.5:30", "NaN", "Inf"} {
		_, err := ParseTimestamp(in)
		assert.Error(t, err, in)
	}
}

func TestParseFrameRate(t *testing.T) {
	assert.Equal(t, 30.0, ParseFrameRate("30/1"))
	assert.InDelta(t, 29.97, ParseFrameRate("30000/1001"), 0.001)
	assert.Equal(t, 0.0, ParseFrameRate("0/0"))
	assert.Equal(t, 0.0, ParseFrameRate("25"))
}

func TestFileHelpers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	assert.False(t, FileExists(dir))
	require.NoError(t, EnsureDir(dir))
	assert.True(t, FileExists(dir))
}
