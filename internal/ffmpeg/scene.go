package ffmpeg

import (
	"context"
	"strconv"
	"strings"

	"github.com/kikiluvv/cuepoint/internal/cues"
)

// DefaultSceneThreshold is the scene score above which a frame starts a new shot
const DefaultSceneThreshold = 0.3

// DetectScenes finds scene changes in video using ffmpeg scene detection.
// The result holds the presentation time in seconds of every frame whose
// scene score exceeds threshold, in stream order.
func (e *Executor) DetectScenes(ctx context.Context, input string, threshold float64) ([]float64, error) {
	e.logger.Info().
		Str("input", input).
		Float64("threshold", threshold).
		Msg("detecting scene changes")

	filter := NewFilterBuilder().SceneSelect(threshold).ShowInfo().Build()
	output, err := e.capture(ctx, []string{
		"-i", input,
		"-an",
		"-vf", filter,
		"-f", "null",
		"-",
	}, "scene detection")
	if err != nil {
		return nil, err
	}

	scenes := parseSceneOutput(output)
	e.logger.Info().Int("scenes", len(scenes)).Msg("scene detection complete")
	return scenes, nil
}

// parseSceneOutput extracts scene change timestamps from showinfo output
func parseSceneOutput(output string) []float64 {
	var scenes []float64

	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "Parsed_showinfo") {
			continue
		}
		if seconds, ok := ptsTime(line); ok {
			scenes = append(scenes, seconds)
		}
	}

	return scenes
}

// ptsTime reads the pts_time field of a filter log line
func ptsTime(line string) (float64, bool) {
	parts := strings.SplitN(line, "pts_time:", 2)
	if len(parts) != 2 {
		return 0, false
	}
	fields := strings.Fields(strings.TrimSpace(parts[1]))
	if len(fields) == 0 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return seconds, true
}

// SegmentsFromScenes turns scene boundaries into shot segments. Each shot
// ends one frame before the next boundary and the last one runs to the end
// of the stream. Without boundaries the whole asset is a single shot.
func SegmentsFromScenes(info *VideoInfo, scenes []float64) []cues.Segment {
	duration := info.DurationSeconds()
	if len(scenes) == 0 {
		return []cues.Segment{{Start: 0, End: duration}}
	}

	spf := info.SecondsPerFrame()
	boundaries := append([]float64{info.StartTime}, scenes...)

	segments := make([]cues.Segment, 0, len(boundaries))
	for i, start := range boundaries {
		end := duration
		if i+1 < len(boundaries) {
			end = boundaries[i+1] - spf
		}
		segments = append(segments, cues.Segment{Start: start, End: end})
	}
	return segments
}
