package ffmpeg

import (
	"context"
	"math"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// makeCutVideo renders four seconds of red then blue, with a tone over the
// red shot and silence over the blue one
func makeCutVideo(t *testing.T) string {
	t.Helper()
	out := filepath.Join(t.TempDir(), "cut.mp4")

	cmd := exec.Command("ffmpeg", "-y", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=c=red:s=160x120:r=25:d=2",
		"-f", "lavfi", "-i", "color=c=blue:s=160x120:r=25:d=2",
		"-f", "lavfi", "-i", "sine=frequency=440:sample_rate=48000:duration=2",
		"-f", "lavfi", "-i", "anullsrc=r=48000:cl=mono",
		"-filter_complex", "[0:v][1:v]concat=n=2:v=1:a=0[v];[3:a]atrim=duration=2[q];[2:a][q]concat=n=2:v=0:a=1[a]",
		"-map", "[v]", "-map", "[a]",
		"-c:v", "mpeg4", "-c:a", "aac",
		"-pix_fmt", "yuv420p",
		out)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("could not generate test video: %v\n%s", err, output)
	}
	return out
}

func TestIntegrationProbeAndDetect(t *testing.T) {
	skipIfNoFFmpeg(t)
	input := makeCutVideo(t)

	exec, err := New(testLogger(), Options{Threads: 2})
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	info, err := exec.ProbeVideo(ctx, input)
	if err != nil {
		t.Fatalf("ProbeVideo failed: %v", err)
	}
	if d := info.DurationSeconds(); d < 3.5 || d > 4.5 {
		t.Errorf("expected about 4s of video, got %v", d)
	}
	if !info.HasAudio {
		t.Error("expected an audio stream")
	}

	scenes, err := exec.DetectScenes(ctx, input, DefaultSceneThreshold)
	if err != nil {
		t.Fatalf("DetectScenes failed: %v", err)
	}
	if len(scenes) != 1 {
		t.Fatalf("expected one scene change, got %v", scenes)
	}
	if scenes[0] < 1.9 || scenes[0] > 2.1 {
		t.Errorf("expected the cut near 2s, got %v", scenes[0])
	}

	segments := SegmentsFromScenes(info, scenes)
	if len(segments) != 2 {
		t.Errorf("expected two shots, got %+v", segments)
	}
}

func TestIntegrationLoudnessTrace(t *testing.T) {
	skipIfNoFFmpeg(t)
	input := makeCutVideo(t)

	exec, err := New(testLogger(), Options{})
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	trace, err := exec.LoudnessTrace(ctx, input, 0.1, 48000)
	if err != nil {
		t.Fatalf("LoudnessTrace failed: %v", err)
	}
	if len(trace) < 30 {
		t.Fatalf("expected roughly 40 readings, got %d", len(trace))
	}

	tone, quiet := math.Inf(-1), math.Inf(1)
	for _, s := range trace {
		if s.Timestamp > 0.5 && s.Timestamp < 1.5 {
			tone = max(tone, s.Level)
		}
		if s.Timestamp > 2.5 && s.Timestamp < 3.5 {
			quiet = min(quiet, s.Level)
		}
	}
	if tone-quiet < 40 {
		t.Errorf("expected the silent shot to measure far below the tone, tone=%v quiet=%v", tone, quiet)
	}

	stats, err := exec.AnalyzeVolume(ctx, input)
	if err != nil {
		t.Fatalf("AnalyzeVolume failed: %v", err)
	}
	if stats.MaxVolume < stats.MeanVolume {
		t.Errorf("max volume %v below mean %v", stats.MaxVolume, stats.MeanVolume)
	}
}
