package ffmpeg

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kikiluvv/cuepoint/internal/cues"
)

const (
	// SilenceFloorDB stands in for digital silence, which astats reports as -inf
	SilenceFloorDB = -120.0

	// DefaultLoudnessWindow is the width in seconds of one loudness reading
	DefaultLoudnessWindow = 0.1

	fallbackSampleRate = 48000
	rmsLevelKey        = "lavfi.astats.Overall.RMS_level"
)

// LoudnessTrace measures the RMS level of the first audio stream in
// consecutive windows of the given width. Each reading is stamped at the
// centre of its window. sampleRate is the stream's native rate; pass 0 when
// it is unknown and the audio is resampled to 48 kHz first.
func (e *Executor) LoudnessTrace(ctx context.Context, input string, window float64, sampleRate int) (cues.Trace, error) {
	if window <= 0 || math.IsNaN(window) || math.IsInf(window, 0) {
		window = DefaultLoudnessWindow
	}

	fb := NewFilterBuilder()
	if sampleRate <= 0 {
		sampleRate = fallbackSampleRate
		fb.Custom(fmt.Sprintf("aresample=%d", sampleRate))
	}
	samples := int(math.Round(window * float64(sampleRate)))
	if samples < 1 {
		samples = 1
	}
	filter := fb.AudioWindow(samples).AudioStats().PrintMetadata(rmsLevelKey).Build()

	e.logger.Info().
		Str("input", input).
		Float64("window", window).
		Int("samples", samples).
		Msg("measuring loudness")

	output, err := e.capture(ctx, []string{
		"-i", input,
		"-vn",
		"-map", "0:a:0",
		"-af", filter,
		"-f", "null",
		"-",
	}, "loudness measurement")
	if err != nil {
		return nil, err
	}

	actual := float64(samples) / float64(sampleRate)
	trace := parseLoudnessOutput(output, actual/2)
	e.logger.Info().Int("samples", len(trace)).Msg("loudness measurement complete")
	return trace, nil
}

// parseLoudnessOutput pairs each ametadata frame header with the RMS level
// printed after it. offset is added to every frame start.
func parseLoudnessOutput(output string, offset float64) cues.Trace {
	var trace cues.Trace
	frameStart, haveFrame := 0.0, false

	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "Parsed_ametadata") {
			continue
		}
		if strings.Contains(line, "pts_time:") {
			frameStart, haveFrame = ptsTime(line)
			continue
		}
		idx := strings.Index(line, rmsLevelKey+"=")
		if idx < 0 || !haveFrame {
			continue
		}
		level, ok := parseLevel(line[idx+len(rmsLevelKey)+1:])
		haveFrame = false
		if !ok {
			continue
		}

		ts := frameStart + offset
		if ts < 0 {
			ts = 0
		}
		// keep the trace ordered
		if n := len(trace); n > 0 && ts < trace[n-1].Timestamp {
			continue
		}
		trace = append(trace, cues.LoudnessSample{Timestamp: ts, Level: level})
	}

	return trace
}

func parseLevel(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if fields := strings.Fields(s); len(fields) > 0 {
		s = fields[0]
	}
	switch strings.ToLower(s) {
	case "-inf", "inf":
		return SilenceFloorDB, true
	case "", "nan", "-nan":
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	if v < SilenceFloorDB {
		v = SilenceFloorDB
	}
	return v, true
}

// VolumeStats holds volume analysis results
type VolumeStats struct {
	MeanVolume float64
	MaxVolume  float64
}

// AnalyzeVolume calculates whole-file volume statistics
func (e *Executor) AnalyzeVolume(ctx context.Context, input string) (*VolumeStats, error) {
	e.logger.Info().Str("input", input).Msg("analyzing volume")

	output, err := e.capture(ctx, []string{
		"-i", input,
		"-vn",
		"-af", NewFilterBuilder().VolumeDetect().Build(),
		"-f", "null",
		"-",
	}, "volume analysis")
	if err != nil {
		return nil, err
	}

	if output == "" {
		return nil, fmt.Errorf("volume analysis produced no output")
	}

	return parseVolumeOutput(output), nil
}

// parseVolumeOutput extracts volume stats from ffmpeg output
func parseVolumeOutput(output string) *VolumeStats {
	stats := &VolumeStats{}

	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "mean_volume:") {
			parts := strings.Split(line, "mean_volume:")
			if len(parts) == 2 {
				stats.MeanVolume, _ = parseLevel(parts[1])
			}
		} else if strings.Contains(line, "max_volume:") {
			parts := strings.Split(line, "max_volume:")
			if len(parts) == 2 {
				stats.MaxVolume, _ = parseLevel(parts[1])
			}
		}
	}

	return stats
}
