package main

import (
	"context"
	"fmt"

	"github.com/kikiluvv/cuepoint/internal/analyzer"
	"github.com/kikiluvv/cuepoint/internal/cache"
	"github.com/kikiluvv/cuepoint/internal/config"
	"github.com/kikiluvv/cuepoint/internal/ffmpeg"
	"github.com/rs/zerolog"
)

// stack is the analyzer chain for one command, plus what must be closed
type stack struct {
	analyzer analyzer.Analyzer
	store    *cache.Store
}

func (s *stack) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// buildAnalyzer wires ffmpeg, S3, GCS, shots files and the cache into a router.
// A missing ffmpeg only fails the inputs that need it.
func buildAnalyzer(logger zerolog.Logger, cfg *config.Config, useCache bool, shotsPath string) *stack {
	settings := analyzer.Settings{
		SceneThreshold: cfg.FFmpeg.SceneThreshold,
		LoudnessWindow: cfg.FFmpeg.LoudnessWindow,
	}

	var media analyzer.Analyzer
	exec, err := ffmpeg.New(logger, ffmpeg.Options{
		FFmpegPath:  cfg.FFmpeg.BinaryPath,
		FFprobePath: cfg.FFmpeg.ProbePath,
		Threads:     cfg.FFmpeg.Threads,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("ffmpeg unavailable, only shots files can be analyzed")
		ffmpegErr := fmt.Errorf("failed to initialize ffmpeg: %w", err)
		media = analyzer.Func(func(context.Context, string) (*analyzer.Analysis, error) {
			return nil, ffmpegErr
		})
	} else {
		media = analyzer.NewFFmpegAnalyzer(logger, exec, settings)
	}

	s := &stack{}
	local := media
	if useCache && cfg.Cache.Enabled {
		store, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.Cache.Path).Msg("analysis cache disabled")
		} else {
			s.store = store
			local = cache.NewCachedAnalyzer(logger, store, media, settings)
		}
	}

	router := &analyzer.Router{
		Local:  local,
		Remote: media,
		S3: analyzer.NewS3Analyzer(logger, media, analyzer.S3Options{
			Region:  cfg.AWS.Region,
			Profile: cfg.AWS.Profile,
			TempDir: cfg.TempDir,
		}),
		GCS:   analyzer.NewVideoIntelligenceAnalyzer(logger),
		Shots: analyzer.ShotsFileAnalyzer{},
	}

	s.analyzer = router
	if shotsPath != "" {
		s.analyzer = analyzer.ShotsOverride{ShotsPath: shotsPath, Next: router}
	}
	return s
}
