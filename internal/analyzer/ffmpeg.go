package analyzer

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/kikiluvv/cuepoint/internal/cues"
	"github.com/kikiluvv/cuepoint/internal/ffmpeg"
	"github.com/kikiluvv/cuepoint/internal/logging"
	"github.com/rs/zerolog"
)

// Media is the subset of the ffmpeg executor the analyzer drives
type Media interface {
	ProbeVideo(ctx context.Context, filePath string) (*ffmpeg.VideoInfo, error)
	DetectScenes(ctx context.Context, input string, threshold float64) ([]float64, error)
	LoudnessTrace(ctx context.Context, input string, window float64, sampleRate int) (cues.Trace, error)
	AnalyzeVolume(ctx context.Context, input string) (*ffmpeg.VolumeStats, error)
}

// Settings are the detection parameters shared by every analysis
type Settings struct {
	SceneThreshold float64
	LoudnessWindow float64
}

// DefaultSettings mirrors the ffmpeg package defaults
func DefaultSettings() Settings {
	return Settings{
		SceneThreshold: ffmpeg.DefaultSceneThreshold,
		LoudnessWindow: ffmpeg.DefaultLoudnessWindow,
	}
}

// FFmpegAnalyzer detects shots and measures loudness with ffmpeg. Remote
// HTTP sources are only scanned for shots; loudness needs a local read.
type FFmpegAnalyzer struct {
	logger   zerolog.Logger
	media    Media
	settings Settings
}

// NewFFmpegAnalyzer creates an analyzer backed by media
func NewFFmpegAnalyzer(logger zerolog.Logger, media Media, settings Settings) *FFmpegAnalyzer {
	return &FFmpegAnalyzer{
		logger:   logging.WithComponent(logger, "ffmpeg_analyzer"),
		media:    media,
		settings: settings,
	}
}

// Analyze probes uri, detects its shots and, for local files with audio,
// records a loudness trace
func (a *FFmpegAnalyzer) Analyze(ctx context.Context, uri string) (*Analysis, error) {
	remote := IsRemote(uri)
	input := uri
	if !remote {
		if !IsLocal(uri) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, uri)
		}
		input = LocalPath(uri)
		if _, err := os.Stat(input); err != nil {
			return nil, fmt.Errorf("video file not found: %w", err)
		}
	}

	log := a.logger.With().Str("input", uri).Logger()

	info, err := a.media.ProbeVideo(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", uri, err)
	}

	scenes, err := a.media.DetectScenes(ctx, input, a.settings.SceneThreshold)
	if err != nil {
		return nil, fmt.Errorf("detect scenes: %w", err)
	}

	result := &Analysis{
		Segments: ffmpeg.SegmentsFromScenes(info, scenes),
		Duration: info.DurationSeconds(),
	}
	result.setMeta("video_codec", info.VideoCodec)
	result.setMeta("audio_codec", info.AudioCodec)
	result.setMeta("resolution", fmt.Sprintf("%dx%d", info.Width, info.Height))
	if info.FPS > 0 {
		result.setMeta("fps", strconv.FormatFloat(info.FPS, 'f', 3, 64))
	}

	switch {
	case remote:
		log.Info().Msg("remote source, skipping loudness measurement")
	case !info.HasAudio:
		log.Info().Msg("no audio stream, skipping loudness measurement")
	default:
		trace, err := a.media.LoudnessTrace(ctx, input, a.settings.LoudnessWindow, info.AudioSampleRate)
		if err != nil {
			return nil, fmt.Errorf("measure loudness: %w", err)
		}
		result.Trace = trace
		result.HasTrace = true

		if stats, err := a.media.AnalyzeVolume(ctx, input); err != nil {
			log.Warn().Err(err).Msg("volume summary failed")
		} else {
			result.setMeta("mean_volume", fmt.Sprintf("%.1f dB", stats.MeanVolume))
			result.setMeta("max_volume", fmt.Sprintf("%.1f dB", stats.MaxVolume))
		}
	}

	log.Info().
		Int("shots", len(result.Segments)).
		Int("loudness_samples", len(result.Trace)).
		Float64("duration", result.Duration).
		Msg("analysis complete")

	return result, nil
}
